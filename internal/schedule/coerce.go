package schedule

import "strconv"

// toInt coerces a decoded JSON value to an int.
// The wire delivers numbers as float64 and occasionally as strings.
func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case int:
		return val, true
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
