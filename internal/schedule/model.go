package schedule

// Kind identifies which scheduling model a device speaks.
type Kind string

const (
	// KindLegacy is the fixed 7-day, single-window-per-day model.
	KindLegacy Kind = "legacy"

	// KindFlexible is the multi-window-per-day, per-zone model.
	KindFlexible Kind = "flexible"
)

// Model is the common surface of the two scheduling models.
//
// A device carries exactly one Model, selected from its protocol
// variant at construction. Callers needing model-specific operations
// type-assert to *Legacy or *Flexible.
type Model interface {
	// Kind reports which concrete model this is.
	Kind() Kind

	// IsEmpty reports whether no mowing window is configured.
	IsEmpty() bool

	// Copy returns a deep copy of the model.
	Copy() Model
}
