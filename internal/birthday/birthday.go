package birthday

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned when a raw birthday string cannot be interpreted.
var ErrInvalidFormat = errors.New("invalid birthday format")

var monthAbbrev = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// Value is a partial birthday. Month and Day are always set on a parsed value
// with a known date; Year may be 0 (unknown). A year-only value (Month == 0)
// comes from a bare 4-digit input and is only useful to callers that can
// tolerate a dateless birthday.
type Value struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// YearOnly reports whether the value carries a year but no month/day.
func (v *Value) YearOnly() bool {
	return v != nil && v.Year != 0 && v.Month == 0
}

// Parse interprets a loosely-formatted birthday string.
// Accepted shapes, tried in order:
//
//	"2024-03-15" → year, month, day (first part must be 4 digits)
//	"03-15"      → month, day (month always first; never swapped by magnitude)
//	"1990"       → year only
//	"" or "null" → nil value, nil error (explicit clear)
//
// Anything else fails with ErrInvalidFormat. Month must be 1-12 and day 1-31;
// day counts per month and leap years are deliberately not checked.
func Parse(raw string) (*Value, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}

	parts := strings.Split(s, "-")
	switch len(parts) {
	case 3:
		if len(parts[0]) != 4 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
		}
		year, ok1 := atoi(parts[0])
		month, ok2 := atoi(parts[1])
		day, ok3 := atoi(parts[2])
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
		}
		return build(year, month, day, raw)
	case 2:
		month, ok1 := atoi(parts[0])
		day, ok2 := atoi(parts[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
		}
		return build(0, month, day, raw)
	case 1:
		if len(s) != 4 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
		}
		year, ok := atoi(s)
		if !ok || year == 0 {
			// Year 0 is the "unknown" marker and never a real value.
			return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
		}
		return &Value{Year: year}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
}

func build(year, month, day int, raw string) (*Value, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	return &Value{Year: year, Month: month, Day: day}, nil
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Format renders a value for display: "Mar 15 2024", "Mar 15" when the year is
// unknown, "1990" for a year-only value, and "" for nil.
func Format(v *Value) string {
	if v == nil {
		return ""
	}
	if v.YearOnly() {
		return strconv.Itoa(v.Year)
	}
	if v.Month < 1 || v.Month > 12 {
		return ""
	}
	abbrev := monthAbbrev[v.Month-1]
	if v.Year != 0 {
		return fmt.Sprintf("%s %d %d", abbrev, v.Day, v.Year)
	}
	return fmt.Sprintf("%s %d", abbrev, v.Day)
}
