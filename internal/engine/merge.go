package engine

import (
	"strconv"

	"github.com/nerrad567/sunseeker-core/internal/device"
)

// fieldChange is one recorded old/new pair destined for the history
// repository.
type fieldChange struct {
	field string
	old   string
	new   string
}

// merger accumulates the effect of one push message on one device.
// Setters coerce the incoming value, compare against the stored one
// and only then assign, so unchanged pushes never mark StateChanged.
type merger struct {
	d       *device.Device
	cs      *ChangeSet
	changes []fieldChange
}

func (m *merger) note(field, old, new string) {
	m.cs.StateChanged = true
	m.changes = append(m.changes, fieldChange{field: field, old: old, new: new})
}

func (m *merger) setInt(field string, dst *int, v any) {
	n, ok := asInt(v)
	if !ok || *dst == n {
		return
	}
	m.note(field, strconv.Itoa(*dst), strconv.Itoa(n))
	*dst = n
}

func (m *merger) setFloat(field string, dst *float64, v any) {
	f, ok := asFloat(v)
	if !ok || *dst == f {
		return
	}
	m.note(field,
		strconv.FormatFloat(*dst, 'g', -1, 64),
		strconv.FormatFloat(f, 'g', -1, 64))
	*dst = f
}

func (m *merger) setBool(field string, dst *bool, v any) {
	b, ok := asBool(v)
	if !ok || *dst == b {
		return
	}
	m.note(field, strconv.FormatBool(*dst), strconv.FormatBool(b))
	*dst = b
}

func (m *merger) setString(field string, dst *string, v any) {
	s, ok := v.(string)
	if !ok || *dst == s {
		return
	}
	m.note(field, *dst, s)
	*dst = s
}
