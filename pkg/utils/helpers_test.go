package utils

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("5m", time.Second); got != 5*time.Minute {
		t.Errorf("ParseDuration(5m) = %v", got)
	}
	if got := ParseDuration("", time.Second); got != time.Second {
		t.Errorf("empty input should fall back, got %v", got)
	}
	if got := ParseDuration("garbage", time.Second); got != time.Second {
		t.Errorf("bad input should fall back, got %v", got)
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want interface{}
	}{
		{"10", 10},
		{"25.99", 25.99},
		{"PROD001", "PROD001"},
		{"  42 ", 42},
		{"", nil},
		{"   ", nil},
	}
	for _, c := range cases {
		if got := ParseValue(c.in); got != c.want {
			t.Errorf("ParseValue(%q) = %v (%T), want %v", c.in, got, got, c.want)
		}
	}
}

func TestNumeric(t *testing.T) {
	for _, v := range []interface{}{10, int64(10), 10.0, float32(10)} {
		if f, ok := Numeric(v); !ok || f != 10 {
			t.Errorf("Numeric(%v %T) = %v, %v", v, v, f, ok)
		}
	}
	for _, v := range []interface{}{"10", nil, true, []int{1}} {
		if _, ok := Numeric(v); ok {
			t.Errorf("Numeric(%v %T) should not be numeric", v, v)
		}
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-01-01", "2024-01-01T10:30:00Z", "2024-01-01 10:30:00", "01/15/2024"} {
		if _, ok := ParseDate(s); !ok {
			t.Errorf("ParseDate(%q) failed", s)
		}
	}
	now := time.Now()
	if d, ok := ParseDate(now); !ok || !d.Equal(now) {
		t.Error("time.Time values should pass through")
	}
	for _, v := range []interface{}{"not a date", "", nil, 42} {
		if _, ok := ParseDate(v); ok {
			t.Errorf("ParseDate(%v) should fail", v)
		}
	}
}
