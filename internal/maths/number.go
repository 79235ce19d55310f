// Package maths provides the deterministic fixed-point scalar and vector
// types used for every simulation computation.
//
// A Number is a signed 64-bit integer scaled by 2^FracBits. All arithmetic
// happens on the scaled integer so results are bit-identical on every
// platform. Overflow saturates at the representable bounds; the policy is
// the same for addition, subtraction, multiplication and division.
package maths

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// FracBits is the number of fractional bits (Q47.16).
const FracBits = 16

const (
	oneRaw   = int64(1) << FracBits
	maxWhole = math.MaxInt64 >> FracBits
	minWhole = math.MinInt64 >> FracBits
)

var (
	// ErrDivisionByZero is returned when a Number is divided by zero.
	ErrDivisionByZero = errors.New("maths: division by zero")

	// ErrOutOfRange is returned by conversions whose source does not fit.
	ErrOutOfRange = errors.New("maths: value out of range")
)

// Number is a fixed-point scalar. The zero value is 0.
type Number struct {
	raw int64
}

// Predefined constants.
var (
	Zero = Number{}
	One  = Number{raw: oneRaw}
	Half = Number{raw: oneRaw / 2}

	// MaxNumber and MinNumber are the saturation bounds.
	MaxNumber = Number{raw: math.MaxInt64}
	MinNumber = Number{raw: math.MinInt64}
)

// FromInt converts a 32-bit integer. Every int32 is representable.
func FromInt(n int32) Number {
	return Number{raw: int64(n) << FracBits}
}

// FromInt64 converts a 64-bit integer, failing if it does not fit.
func FromInt64(n int64) (Number, error) {
	if n > maxWhole || n < minWhole {
		return Zero, fmt.Errorf("%w: %d", ErrOutOfRange, n)
	}
	return Number{raw: n << FracBits}, nil
}

// FromRaw builds a Number from its scaled representation.
func FromRaw(raw int64) Number {
	return Number{raw: raw}
}

// FromRatio returns num/den computed on integers.
func FromRatio(num, den int64) (Number, error) {
	n, err := FromInt64(num)
	if err != nil {
		return Zero, err
	}
	return n.DivInt(den)
}

// FromFloat converts a float. It is meant for tools and tests only; the
// simulation never derives state from floating point.
func FromFloat(f float64) (Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Zero, fmt.Errorf("%w: %v", ErrOutOfRange, f)
	}
	scaled := math.Round(f * float64(oneRaw))
	if scaled >= math.MaxInt64 || scaled < math.MinInt64 {
		return Zero, fmt.Errorf("%w: %v", ErrOutOfRange, f)
	}
	return Number{raw: int64(scaled)}, nil
}

// Raw returns the scaled integer representation.
func (n Number) Raw() int64 {
	return n.raw
}

// Int returns the integer part, rounding towards negative infinity.
func (n Number) Int() int64 {
	return n.raw >> FracBits
}

// Float64 converts to floating point for presentation. The result must
// never be fed back into simulation state.
func (n Number) Float64() float64 {
	return float64(n.raw) / float64(oneRaw)
}

// Add returns n+o, saturating on overflow.
func (n Number) Add(o Number) Number {
	s := n.raw + o.raw
	switch {
	case n.raw > 0 && o.raw > 0 && s < 0:
		return MaxNumber
	case n.raw < 0 && o.raw < 0 && s >= 0:
		return MinNumber
	}
	return Number{raw: s}
}

// Sub returns n-o, saturating on overflow.
func (n Number) Sub(o Number) Number {
	d := n.raw - o.raw
	switch {
	case n.raw >= 0 && o.raw < 0 && d < 0:
		return MaxNumber
	case n.raw < 0 && o.raw > 0 && d >= 0:
		return MinNumber
	}
	return Number{raw: d}
}

// Neg returns -n. The negation of MinNumber saturates to MaxNumber.
func (n Number) Neg() Number {
	if n.raw == math.MinInt64 {
		return MaxNumber
	}
	return Number{raw: -n.raw}
}

// Abs returns |n|, saturating for MinNumber.
func (n Number) Abs() Number {
	if n.raw < 0 {
		return n.Neg()
	}
	return n
}

// Mul returns n*o truncated towards zero, saturating on overflow.
func (n Number) Mul(o Number) Number {
	if n.raw == 0 || o.raw == 0 {
		return Zero
	}
	ua, na := split(n.raw)
	ub, nb := split(o.raw)
	hi, lo := bits.Mul64(ua, ub)
	// Q.16 * Q.16 = Q.32; drop FracBits to get back to Q.16.
	if hi>>FracBits != 0 {
		return saturate(na != nb)
	}
	return join((hi<<(64-FracBits))|(lo>>FracBits), na != nb)
}

// MulInt returns n*k, saturating on overflow.
func (n Number) MulInt(k int64) Number {
	if n.raw == 0 || k == 0 {
		return Zero
	}
	ua, na := split(n.raw)
	ub, nb := split(k)
	hi, lo := bits.Mul64(ua, ub)
	if hi != 0 {
		return saturate(na != nb)
	}
	return join(lo, na != nb)
}

// Div returns n/o truncated towards zero. Dividing by zero is a domain
// error; an overflowing quotient saturates.
func (n Number) Div(o Number) (Number, error) {
	if o.raw == 0 {
		return Zero, ErrDivisionByZero
	}
	if n.raw == 0 {
		return Zero, nil
	}
	ua, na := split(n.raw)
	ub, nb := split(o.raw)
	// Numerator is ua << FracBits as a 128-bit value.
	hi := ua >> (64 - FracBits)
	lo := ua << FracBits
	if hi >= ub {
		return saturate(na != nb), nil
	}
	quo, _ := bits.Div64(hi, lo, ub)
	return join(quo, na != nb), nil
}

// DivInt returns n/k truncated towards zero.
func (n Number) DivInt(k int64) (Number, error) {
	if k == 0 {
		return Zero, ErrDivisionByZero
	}
	if n.raw == math.MinInt64 && k == -1 {
		return MaxNumber, nil
	}
	return Number{raw: n.raw / k}, nil
}

// Sqrt returns the square root of n rounded down. A negative n is a
// domain error.
func (n Number) Sqrt() (Number, error) {
	if n.raw < 0 {
		return Zero, fmt.Errorf("%w: sqrt of %s", ErrOutOfRange, n)
	}
	// sqrt(raw * 2^16) keeps the result in Q.16. The root is below 2^40.
	hi, lo := bits.Mul64(uint64(n.raw), uint64(oneRaw))
	var r uint64
	for bit := uint64(1) << 39; bit != 0; bit >>= 1 {
		c := r | bit
		chi, clo := bits.Mul64(c, c)
		if chi < hi || (chi == hi && clo <= lo) {
			r = c
		}
	}
	return Number{raw: int64(r)}, nil
}

// Cmp returns -1, 0 or +1.
func (n Number) Cmp(o Number) int {
	switch {
	case n.raw < o.raw:
		return -1
	case n.raw > o.raw:
		return 1
	}
	return 0
}

// Less reports n < o.
func (n Number) Less(o Number) bool { return n.raw < o.raw }

// IsZero reports n == 0.
func (n Number) IsZero() bool { return n.raw == 0 }

// Sign returns -1, 0 or +1.
func (n Number) Sign() int {
	return n.Cmp(Zero)
}

// Clamp restricts n to [lo, hi].
func (n Number) Clamp(lo, hi Number) Number {
	return Max(lo, Min(hi, n))
}

// Min returns the smaller of a and b.
func Min(a, b Number) Number {
	if a.raw < b.raw {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Number) Number {
	if a.raw > b.raw {
		return a
	}
	return b
}

// String formats n as an exact decimal.
func (n Number) String() string {
	var sb strings.Builder
	mag, neg := split(n.raw)
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString(strconv.FormatUint(mag>>FracBits, 10))
	frac := mag & uint64(oneRaw-1)
	if frac == 0 {
		return sb.String()
	}
	sb.WriteByte('.')
	// 2^-16 has exactly 16 decimal digits.
	for frac != 0 {
		frac *= 10
		sb.WriteByte(byte('0' + frac>>FracBits))
		frac &= uint64(oneRaw - 1)
	}
	return sb.String()
}

// Parse reads a decimal literal such as "-9.81" without going through
// floating point. Fractional digits beyond the representable precision are
// rounded half away from zero.
func Parse(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("maths: empty number")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return Zero, fmt.Errorf("maths: invalid number %q", s)
	}
	var w uint64
	if whole != "" {
		var err error
		w, err = strconv.ParseUint(whole, 10, 64)
		if err != nil || w > uint64(maxWhole)+1 {
			return Zero, fmt.Errorf("%w: %q", ErrOutOfRange, s)
		}
	}
	if len(frac) > 18 {
		frac = frac[:18]
	}
	var f uint64
	if frac != "" {
		digits, err := strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return Zero, fmt.Errorf("maths: invalid number %q", s)
		}
		den := uint64(1)
		for range frac {
			den *= 10
		}
		hi, lo := bits.Mul64(digits, uint64(oneRaw))
		lo, carry := bits.Add64(lo, den/2, 0)
		hi += carry
		f, _ = bits.Div64(hi, lo, den)
	}
	mag := w<<FracBits + f
	if !neg {
		if mag > math.MaxInt64 {
			return Zero, fmt.Errorf("%w: %q", ErrOutOfRange, s)
		}
		return Number{raw: int64(mag)}, nil
	}
	if mag > 1<<63 {
		return Zero, fmt.Errorf("%w: -%q", ErrOutOfRange, s)
	}
	return join(mag, true), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Number {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// MarshalText implements encoding.TextMarshaler.
func (n Number) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Number) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// EncodeMsgpack writes the scaled integer.
func (n Number) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeInt(n.raw)
}

// DecodeMsgpack reads the scaled integer.
func (n *Number) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeInt64()
	if err != nil {
		return err
	}
	n.raw = raw
	return nil
}

// split returns |v| and whether v was negative.
func split(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(^v) + 1, true
	}
	return uint64(v), false
}

// join applies the sign to a magnitude, saturating if it does not fit.
func join(mag uint64, neg bool) Number {
	if neg {
		if mag > 1<<63 {
			return MinNumber
		}
		return Number{raw: int64(^(mag - 1))}
	}
	if mag > math.MaxInt64 {
		return MaxNumber
	}
	return Number{raw: int64(mag)}
}

func saturate(neg bool) Number {
	if neg {
		return MinNumber
	}
	return MaxNumber
}
