package engine

import "encoding/json"

// payload wraps a decoded JSON object with tolerant typed accessors.
// Push messages mix types freely (numbers for booleans, strings for
// numbers), so every accessor coerces where the intent is clear and
// reports failure otherwise.
type payload map[string]any

// has reports key presence regardless of the value's type.
func (p payload) has(key string) bool {
	_, ok := p[key]
	return ok
}

// child returns a nested object value.
func (p payload) child(key string) (payload, bool) {
	m, ok := p[key].(map[string]any)
	if !ok {
		return nil, false
	}
	return payload(m), true
}

// list returns a nested array value.
func (p payload) list(key string) ([]any, bool) {
	l, ok := p[key].([]any)
	return l, ok
}

// str returns a string value. Non-strings report failure rather than
// being formatted, so object values never leak into string fields.
func (p payload) str(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// float coerces a numeric or numeric-string value.
func (p payload) float(key string) (float64, bool) {
	return asFloat(p[key])
}

// integer coerces a numeric, boolean or numeric-string value.
func (p payload) integer(key string) (int, bool) {
	return asInt(p[key])
}

// boolean coerces a boolean, 0/1 number or "true"/"1" string.
func (p payload) boolean(key string) (bool, bool) {
	return asBool(p[key])
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		var f float64
		if err := json.Unmarshal([]byte(t), &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		var f float64
		if err := json.Unmarshal([]byte(t), &f); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case string:
		switch t {
		case "1", "true", "True":
			return true, true
		case "0", "false", "False":
			return false, true
		}
	}
	return false, false
}

// reencode converts an already-decoded JSON fragment into a concrete
// type by round-tripping through the codec. Used for wire lists whose
// element shape is owned by another package.
func reencode(v any, dst any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
