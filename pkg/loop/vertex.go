package loop

import "math"

// MaxKeyDims is the largest position item size that can carry an identity key.
const MaxKeyDims = 4

// Vertex is an ordered tuple of scalars, one per component of its attribute.
type Vertex []float64

// Key is the exact-value identity of a position vertex. Two vertices are the
// same entity iff their keys are equal; there is no tolerance.
type Key struct {
	n    uint8
	bits [MaxKeyDims]uint64
}

// KeyOf returns the identity key of v. It panics if v has more than
// MaxKeyDims components; callers validate item sizes first.
func KeyOf(v Vertex) Key {
	if len(v) > MaxKeyDims {
		panic(&DimensionMismatchError{Want: MaxKeyDims, Got: len(v)})
	}
	k := Key{n: uint8(len(v))}
	for i, c := range v {
		if c == 0 {
			c = 0 // fold -0 into +0
		}
		k.bits[i] = math.Float64bits(c)
	}
	return k
}

// Dims returns the number of components the key was built from.
func (k Key) Dims() int {
	return int(k.n)
}

// Clone returns a copy of v.
func (v Vertex) Clone() Vertex {
	out := make(Vertex, len(v))
	copy(out, v)
	return out
}

// Add returns v + o.
func (v Vertex) Add(o Vertex) Vertex {
	mustMatch(len(v), len(o))
	out := make(Vertex, len(v))
	for i := range v {
		out[i] = v[i] + o[i]
	}
	return out
}

// Scale returns k·v.
func (v Vertex) Scale(k float64) Vertex {
	out := make(Vertex, len(v))
	for i := range v {
		out[i] = v[i] * k
	}
	return out
}

// AddScaled accumulates k·o into v in place.
func (v Vertex) AddScaled(o Vertex, k float64) {
	mustMatch(len(v), len(o))
	for i := range v {
		v[i] += o[i] * k
	}
}

func mustMatch(want, got int) {
	if want != got {
		panic(&DimensionMismatchError{Want: want, Got: got})
	}
}
