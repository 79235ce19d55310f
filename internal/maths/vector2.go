package maths

import "fmt"

// Vector2 is a pair of fixed-point numbers used for positions, velocities
// and extents.
type Vector2 struct {
	X Number `yaml:"x" msgpack:"x"`
	Y Number `yaml:"y" msgpack:"y"`
}

// V2 builds a vector from integer components.
func V2(x, y int32) Vector2 {
	return Vector2{X: FromInt(x), Y: FromInt(y)}
}

// NewVector2 builds a vector from two numbers.
func NewVector2(x, y Number) Vector2 {
	return Vector2{X: x, Y: y}
}

// Add returns v+o.
func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{X: v.X.Add(o.X), Y: v.Y.Add(o.Y)}
}

// Sub returns v-o.
func (v Vector2) Sub(o Vector2) Vector2 {
	return Vector2{X: v.X.Sub(o.X), Y: v.Y.Sub(o.Y)}
}

// Neg returns -v.
func (v Vector2) Neg() Vector2 {
	return Vector2{X: v.X.Neg(), Y: v.Y.Neg()}
}

// Abs returns the componentwise absolute value.
func (v Vector2) Abs() Vector2 {
	return Vector2{X: v.X.Abs(), Y: v.Y.Abs()}
}

// Scale multiplies both components by s.
func (v Vector2) Scale(s Number) Vector2 {
	return Vector2{X: v.X.Mul(s), Y: v.Y.Mul(s)}
}

// Mul multiplies componentwise.
func (v Vector2) Mul(o Vector2) Vector2 {
	return Vector2{X: v.X.Mul(o.X), Y: v.Y.Mul(o.Y)}
}

// Div divides componentwise.
func (v Vector2) Div(o Vector2) (Vector2, error) {
	x, err := v.X.Div(o.X)
	if err != nil {
		return Vector2{}, err
	}
	y, err := v.Y.Div(o.Y)
	if err != nil {
		return Vector2{}, err
	}
	return Vector2{X: x, Y: y}, nil
}

// DivInt divides both components by k.
func (v Vector2) DivInt(k int64) (Vector2, error) {
	x, err := v.X.DivInt(k)
	if err != nil {
		return Vector2{}, err
	}
	y, err := v.Y.DivInt(k)
	if err != nil {
		return Vector2{}, err
	}
	return Vector2{X: x, Y: y}, nil
}

// Dot returns the dot product.
func (v Vector2) Dot(o Vector2) Number {
	return v.X.Mul(o.X).Add(v.Y.Mul(o.Y))
}

// IsZero reports whether both components are zero.
func (v Vector2) IsZero() bool {
	return v.X.IsZero() && v.Y.IsZero()
}

// Cmp orders vectors lexicographically by (X, Y). It exists for
// deterministic comparison in tests and sorting, not spatial ordering.
func (v Vector2) Cmp(o Vector2) int {
	if c := v.X.Cmp(o.X); c != 0 {
		return c
	}
	return v.Y.Cmp(o.Y)
}

func (v Vector2) String() string {
	return fmt.Sprintf("(%s, %s)", v.X, v.Y)
}
