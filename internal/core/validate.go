package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Default string bound used by ValidateString when callers have no tighter one.
const DefaultMaxLength = 255

// ValidateNumber coerces value to a finite number clamped into [min, max].
// Numbers and numeric strings are accepted; anything else (nil, NaN, ±Inf,
// non-numeric strings, booleans, objects) yields def unchanged.
func ValidateNumber(value any, min, max, def float64) float64 {
	num, ok := toNumber(value)
	if !ok {
		return def
	}
	return math.Max(min, math.Min(max, num))
}

func toNumber(value any) (float64, bool) {
	var num float64
	switch v := value.(type) {
	case float64:
		num = v
	case float32:
		num = float64(v)
	case int:
		num = float64(v)
	case int64:
		num = float64(v)
	case int32:
		num = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		num = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		num = f
	default:
		return 0, false
	}
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	return num, true
}

// ValidateString coerces value to a trimmed string of at most maxLength
// characters. Empty results, including whitespace-only input, yield def.
func ValidateString(value any, maxLength int, def string) string {
	str := strings.TrimSpace(stringify(value))
	if str == "" {
		return def
	}
	if maxLength >= 0 && utf8.RuneCountInString(str) > maxLength {
		str = string([]rune(str)[:maxLength])
	}
	return str
}

// stringify renders scalar JSON values as text. Falsy values (nil, false,
// zero, NaN) and composite values render empty.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return ""
	case json.Number:
		return v.String()
	case float64:
		if v == 0 || math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		if v == 0 {
			return ""
		}
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// truthy mirrors loose boolean coercion of decoded JSON values.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0 && !math.IsNaN(v)
	case int:
		return v != 0
	default:
		return true
	}
}

// round2 rounds to two decimal places the way the stored format always has,
// via decimal formatting rather than scaled math.
func round2(v float64) float64 {
	out, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return out
}
