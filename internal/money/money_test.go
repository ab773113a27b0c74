package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"10", true},
		{"10.5", true},
		{"10.55", true},
		{"10.555", false}, // beyond scale, parsing never rounds
		{"-3.10", true},
		{"abc", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := Parse(tc.in, DefaultScale)
		if tc.ok && err != nil {
			t.Fatalf("Parse(%q) err=%v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("Parse(%q) expected error", tc.in)
		}
	}
}

func TestFromMinorUnits(t *testing.T) {
	if got := FromMinorUnits(135000).String(); got != "1350.00" {
		t.Fatalf("FromMinorUnits(135000)=%s want 1350.00", got)
	}
	if got := FromMinorUnits(-1).String(); got != "-0.01" {
		t.Fatalf("FromMinorUnits(-1)=%s want -0.01", got)
	}
}

func TestMaterializeRounding(t *testing.T) {
	cases := []struct {
		in   string
		r    Rounding
		want string
	}{
		{"2.344", RoundHalfUp, "2.34"},
		{"2.345", RoundHalfUp, "2.35"},
		{"-2.345", RoundHalfUp, "-2.35"},
		{"2.345", RoundHalfEven, "2.34"},
		{"2.355", RoundHalfEven, "2.36"},
	}
	for _, tc := range cases {
		d := decimal.RequireFromString(tc.in)
		if got := Materialize(d, 2, tc.r).String(); got != tc.want {
			t.Fatalf("Materialize(%s, %d)=%s want %s", tc.in, tc.r, got, tc.want)
		}
	}
}

func TestArithmeticIsExact(t *testing.T) {
	a := MustParse("0.10")
	sum := Zero()
	for i := 0; i < 10; i++ {
		sum = sum.Add(a)
	}
	if !sum.Equal(MustParse("1.00")) {
		t.Fatalf("10 × 0.10 = %s want 1.00", sum)
	}
	if got := MustParse("800.00").Sub(MustParse("1000.00")); !got.Equal(MustParse("-200.00")) {
		t.Fatalf("800 - 1000 = %s want -200.00", got)
	}
	if got := MustParse("-5.25").Abs(); !got.Equal(MustParse("5.25")) {
		t.Fatalf("Abs(-5.25)=%s", got)
	}
}

func TestComparisons(t *testing.T) {
	if MustParse("1.00").Cmp(MustParse("1")) != 0 {
		t.Fatal("1.00 should equal 1")
	}
	if !MustParse("0.01").IsPositive() || MustParse("0.01").IsNegative() {
		t.Fatal("0.01 should be positive")
	}
	if !Zero().IsZero() {
		t.Fatal("Zero() should be zero")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	b, err := MustParse("1350.5").MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "1350.50" {
		t.Fatalf("MarshalJSON=%s want 1350.50", b)
	}

	var m Money
	if err := m.UnmarshalJSON([]byte(`"200.00"`)); err != nil {
		t.Fatal(err)
	}
	if !m.Equal(MustParse("200.00")) {
		t.Fatalf("UnmarshalJSON=%s want 200.00", m)
	}
}
