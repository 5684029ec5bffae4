package birthday

import (
	"errors"
	"testing"
)

func TestParseFullDate(t *testing.T) {
	v, err := Parse("2024-03-15")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v.Year != 2024 || v.Month != 3 || v.Day != 15 {
		t.Fatalf("got %+v", v)
	}
}

func TestParseMonthDay(t *testing.T) {
	v, err := Parse("03-15")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v.Year != 0 || v.Month != 3 || v.Day != 15 {
		t.Fatalf("got %+v", v)
	}
}

func TestParseMonthFirstPolicy(t *testing.T) {
	// "15-03" must not be reinterpreted as day-month; 15 is out of month range.
	if _, err := Parse("15-03"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("want ErrInvalidFormat, got %v", err)
	}
}

func TestParseYearOnly(t *testing.T) {
	v, err := Parse("1990")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !v.YearOnly() || v.Year != 1990 {
		t.Fatalf("got %+v", v)
	}
}

func TestParseClear(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "NULL", "Null"} {
		v, err := Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if v != nil {
			t.Fatalf("parse %q: want nil, got %+v", raw, v)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []string{
		"13-40",       // month out of range
		"03-40",       // day out of range
		"24-03-15",    // year not 4 digits
		"2024-0-15",   // month zero
		"abc",         // not numeric
		"2024-3-15-1", // too many parts
		"199",         // not a 4-digit year
		"12345",       // not a 4-digit year
		"03-",         // missing day
		"0000",        // year zero collides with the unknown marker
	}
	for _, raw := range cases {
		if _, err := Parse(raw); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("parse %q: want ErrInvalidFormat, got %v", raw, err)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		v    *Value
		want string
	}{
		{&Value{Year: 2024, Month: 3, Day: 15}, "Mar 15 2024"},
		{&Value{Month: 3, Day: 15}, "Mar 15"},
		{&Value{Month: 12, Day: 1}, "Dec 1"},
		{&Value{Year: 1990}, "1990"},
		{nil, ""},
		// A zero value cannot come out of Parse, but Format must still not panic.
		{&Value{}, ""},
	}
	for _, c := range cases {
		if got := Format(c.v); got != c.want {
			t.Fatalf("format %+v: want %q, got %q", c.v, c.want, got)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	// Reparsing the canonical form of a parsed value must yield the same value.
	// Format is not a parser input shape, so the round trip goes through the
	// canonical hyphenated rendering instead.
	inputs := []string{"2024-03-15", "03-15", "2024-3-5", "1-1", "12-31"}
	for _, raw := range inputs {
		first, err := Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		second, err := Parse(canonical(first))
		if err != nil {
			t.Fatalf("reparse %q: %v", canonical(first), err)
		}
		if *first != *second {
			t.Fatalf("%q: %+v != %+v", raw, first, second)
		}
	}
}

func canonical(v *Value) string {
	if v.Year != 0 {
		return itoa4(v.Year) + "-" + itoa(v.Month) + "-" + itoa(v.Day)
	}
	return itoa(v.Month) + "-" + itoa(v.Day)
}

func itoa(n int) string  { return string(rune('0'+n/10)) + string(rune('0'+n%10)) }
func itoa4(n int) string { return itoa(n/100) + itoa(n%100) }
