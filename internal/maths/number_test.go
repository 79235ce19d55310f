package maths

import (
	"errors"
	"math"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

func TestIntRoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 2, -2, 40, -40, 1000, math.MaxInt16, math.MinInt16, math.MaxInt32, math.MinInt32}
	for _, v := range values {
		if got := FromInt(v).Int(); got != int64(v) {
			t.Errorf("FromInt(%d).Int() = %d", v, got)
		}
	}

	for _, v := range []int64{maxWhole, minWhole, 123456789} {
		n, err := FromInt64(v)
		if err != nil {
			t.Fatalf("FromInt64(%d) failed: %v", v, err)
		}
		if n.Int() != v {
			t.Errorf("FromInt64(%d).Int() = %d", v, n.Int())
		}
	}
}

func TestFromInt64OutOfRange(t *testing.T) {
	for _, v := range []int64{maxWhole + 1, minWhole - 1, math.MaxInt64, math.MinInt64} {
		if _, err := FromInt64(v); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("FromInt64(%d) error = %v, expected ErrOutOfRange", v, err)
		}
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		got      Number
		expected Number
	}{
		{"add", FromInt(2).Add(FromInt(3)), FromInt(5)},
		{"sub", FromInt(2).Sub(FromInt(3)), FromInt(-1)},
		{"mul", FromInt(-4).Mul(FromInt(3)), FromInt(-12)},
		{"mul fraction", Half.Mul(Half), FromRaw(oneRaw / 4)},
		{"neg", FromInt(7).Neg(), FromInt(-7)},
		{"abs", FromInt(-7).Abs(), FromInt(7)},
		{"mul int", Half.MulInt(6), FromInt(3)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.expected {
				t.Errorf("got %s, expected %s", tc.got, tc.expected)
			}
		})
	}
}

func TestDivision(t *testing.T) {
	q, err := FromInt(7).Div(FromInt(2))
	if err != nil {
		t.Fatalf("Div failed: %v", err)
	}
	if q != MustParse("3.5") {
		t.Errorf("7/2 = %s, expected 3.5", q)
	}

	q, err = FromInt(-1).Div(FromInt(3))
	if err != nil {
		t.Fatalf("Div failed: %v", err)
	}
	// Truncation towards zero: -0.33333 in Q.16 is -21845 raw.
	if q.Raw() != -21845 {
		t.Errorf("-1/3 raw = %d, expected -21845", q.Raw())
	}

	if _, err := One.Div(Zero); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("Div by zero error = %v, expected ErrDivisionByZero", err)
	}
	if _, err := One.DivInt(0); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("DivInt by zero error = %v, expected ErrDivisionByZero", err)
	}
	if _, err := FromRatio(1, 0); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("FromRatio(1, 0) error = %v, expected ErrDivisionByZero", err)
	}
}

func TestSaturation(t *testing.T) {
	if got := MaxNumber.Add(One); got != MaxNumber {
		t.Errorf("Max+1 = %s, expected saturation", got)
	}
	if got := MinNumber.Sub(One); got != MinNumber {
		t.Errorf("Min-1 = %s, expected saturation", got)
	}
	if got := MaxNumber.Mul(FromInt(2)); got != MaxNumber {
		t.Errorf("Max*2 = %s, expected saturation", got)
	}
	if got := MaxNumber.Mul(FromInt(-2)); got != MinNumber {
		t.Errorf("Max*-2 = %s, expected negative saturation", got)
	}
	if got := MinNumber.Neg(); got != MaxNumber {
		t.Errorf("-Min = %s, expected MaxNumber", got)
	}
	q, err := MaxNumber.Div(FromRaw(1))
	if err != nil {
		t.Fatalf("Div failed: %v", err)
	}
	if q != MaxNumber {
		t.Errorf("Max/epsilon = %s, expected saturation", q)
	}
}

func TestOrdering(t *testing.T) {
	a, b := FromInt(-3), FromInt(5)
	if a.Cmp(b) != -1 || b.Cmp(a) != 1 || a.Cmp(a) != 0 {
		t.Error("Cmp does not define a total order")
	}
	if !a.Less(b) || b.Less(a) {
		t.Error("Less inconsistent with Cmp")
	}
	if Min(a, b) != a || Max(a, b) != b {
		t.Error("Min/Max wrong")
	}
	if got := FromInt(10).Clamp(Zero, FromInt(4)); got != FromInt(4) {
		t.Errorf("Clamp = %s, expected 4", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in  string
		raw int64
	}{
		{"0", 0},
		{"1", oneRaw},
		{"-2", -2 * oneRaw},
		{"0.5", oneRaw / 2},
		{"-0.25", -oneRaw / 4},
		{".5", oneRaw / 2},
		{"+3.0", 3 * oneRaw},
		{"-9.81", -642908},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			n, err := Parse(tc.in)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tc.in, err)
			}
			if n.Raw() != tc.raw {
				t.Errorf("Parse(%q) raw = %d, expected %d", tc.in, n.Raw(), tc.raw)
			}
		})
	}

	for _, bad := range []string{"", "abc", "1.2.3", "-", "1e5"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) should fail", bad)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, raw := range []int64{0, 1, -1, oneRaw, -oneRaw / 2, 642908, -642908, math.MaxInt64, math.MinInt64} {
		n := FromRaw(raw)
		back, err := Parse(n.String())
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", n.String(), err)
		}
		if back != n {
			t.Errorf("round trip of %d via %q gave %d", raw, n.String(), back.Raw())
		}
	}
}

func TestYAMLDecoding(t *testing.T) {
	var cfg struct {
		Gravity Vector2 `yaml:"gravity"`
		Speed   Number  `yaml:"speed"`
	}
	src := "gravity:\n  x: 0\n  y: -9.81\nspeed: 2.5\n"
	if err := yaml.Unmarshal([]byte(src), &cfg); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v", err)
	}
	if cfg.Gravity.Y != MustParse("-9.81") || !cfg.Gravity.X.IsZero() {
		t.Errorf("gravity = %s", cfg.Gravity)
	}
	if cfg.Speed != MustParse("2.5") {
		t.Errorf("speed = %s", cfg.Speed)
	}
}

func TestMsgpackEncoding(t *testing.T) {
	v := NewVector2(MustParse("-1.5"), FromRaw(math.MaxInt64))
	data, err := msgpack.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back Vector2
	if err := msgpack.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back != v {
		t.Errorf("got %s, expected %s", back, v)
	}
}

func TestVectorOps(t *testing.T) {
	a, b := V2(1, 2), V2(3, -4)
	if got := a.Add(b); got != V2(4, -2) {
		t.Errorf("Add = %s", got)
	}
	if got := a.Sub(b); got != V2(-2, 6) {
		t.Errorf("Sub = %s", got)
	}
	if got := b.Scale(Half); got != NewVector2(MustParse("1.5"), FromInt(-2)) {
		t.Errorf("Scale = %s", got)
	}
	if got := a.Dot(b); got != FromInt(-5) {
		t.Errorf("Dot = %s", got)
	}
	if a.Cmp(b) != -1 || V2(1, 3).Cmp(a) != 1 || a.Cmp(a) != 0 {
		t.Error("lexicographic Cmp wrong")
	}
	if _, err := a.Div(V2(1, 0)); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("Div error = %v", err)
	}
}

func TestSqrt(t *testing.T) {
	tests := []struct {
		in, expected Number
	}{
		{Zero, Zero},
		{One, One},
		{FromInt(4), FromInt(2)},
		{FromInt(196), FromInt(14)},
		{MustParse("0.25"), Half},
	}

	for _, tc := range tests {
		got, err := tc.in.Sqrt()
		if err != nil {
			t.Fatalf("Sqrt(%s) failed: %v", tc.in, err)
		}
		if got != tc.expected {
			t.Errorf("Sqrt(%s) = %s, expected %s", tc.in, got, tc.expected)
		}
	}

	// Rounded down: sqrt(2) ~ 1.41421, 92681 raw.
	if got, _ := FromInt(2).Sqrt(); got.Raw() != 92681 {
		t.Errorf("Sqrt(2) raw = %d, expected 92681", got.Raw())
	}
	if _, err := FromInt(-1).Sqrt(); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Sqrt(-1) error = %v, expected ErrOutOfRange", err)
	}
	if _, err := MaxNumber.Sqrt(); err != nil {
		t.Errorf("Sqrt(Max) failed: %v", err)
	}
}
