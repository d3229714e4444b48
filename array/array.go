// Package array provides the row-major n-d arrays that flow through the
// transform pipelines. Storage is always complex128; a Float64 array keeps
// its imaginary parts at zero.
package array

import (
	"fmt"
	"math/cmplx"

	"github.com/notargets/spectral/utils"
)

// DType tags the logical element type of an Array
type DType uint8

const (
	Float64 DType = iota
	Complex128
)

func (d DType) String() string {
	if d == Float64 {
		return "float64"
	}
	return "complex128"
}

// Shape is the extent of each axis
type Shape []int

// Size is the product of the extents
func (s Shape) Size() int {
	n := 1
	for _, v := range s {
		n *= v
	}
	return n
}

// Strides returns row-major element strides
func (s Shape) Strides() []int {
	st := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= s[i]
	}
	return st
}

func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

// With returns a copy with axis set to n
func (s Shape) With(axis, n int) Shape {
	c := s.Clone()
	c[axis] = n
	return c
}

// Range is a half-open index interval [Start, Stop)
type Range struct {
	Start, Stop int
}

func (r Range) Len() int { return r.Stop - r.Start }

// Contains reports whether i lies inside the range
func (r Range) Contains(i int) bool { return i >= r.Start && i < r.Stop }

// Array is a dense row-major n-d array
type Array struct {
	Shape Shape
	DType DType
	Data  []complex128
}

// Zeros allocates a zero array
func Zeros(shape Shape, dt DType) *Array {
	return &Array{Shape: shape.Clone(), DType: dt, Data: make([]complex128, shape.Size())}
}

// FromReal builds a Float64 array from data
func FromReal(shape Shape, data []float64) *Array {
	if len(data) != shape.Size() {
		panic(fmt.Sprintf("array: %d values for shape %v", len(data), shape))
	}
	a := Zeros(shape, Float64)
	for i, v := range data {
		a.Data[i] = complex(v, 0)
	}
	return a
}

// FromComplex builds a Complex128 array, copying data
func FromComplex(shape Shape, data []complex128) *Array {
	if len(data) != shape.Size() {
		panic(fmt.Sprintf("array: %d values for shape %v", len(data), shape))
	}
	a := Zeros(shape, Complex128)
	copy(a.Data, data)
	return a
}

func (a *Array) Ndim() int { return len(a.Shape) }
func (a *Array) Size() int { return len(a.Data) }

// Clone returns a deep copy
func (a *Array) Clone() *Array {
	c := &Array{Shape: a.Shape.Clone(), DType: a.DType, Data: make([]complex128, len(a.Data))}
	copy(c.Data, a.Data)
	return c
}

// Like returns a zero array with a's shape and dtype
func (a *Array) Like() *Array { return Zeros(a.Shape, a.DType) }

// CopyFrom copies src into a. Shapes must match; a complex source copied
// into a real array drops its imaginary part.
func (a *Array) CopyFrom(src *Array) error {
	if !a.Shape.Equal(src.Shape) {
		return fmt.Errorf("%w: copy %v into %v", utils.ErrShapeMismatch, src.Shape, a.Shape)
	}
	copy(a.Data, src.Data)
	if a.DType == Float64 && src.DType == Complex128 {
		a.Real()
	}
	return nil
}

// Index is the flat offset of idx
func (a *Array) Index(idx ...int) int {
	off, stride := 0, 1
	for i := len(a.Shape) - 1; i >= 0; i-- {
		off += idx[i] * stride
		stride *= a.Shape[i]
	}
	return off
}

func (a *Array) At(idx ...int) complex128 { return a.Data[a.Index(idx...)] }

func (a *Array) Set(v complex128, idx ...int) {
	if a.DType == Float64 {
		v = complex(real(v), 0)
	}
	a.Data[a.Index(idx...)] = v
}

// Fill sets every element to v
func (a *Array) Fill(v complex128) {
	if a.DType == Float64 {
		v = complex(real(v), 0)
	}
	for i := range a.Data {
		a.Data[i] = v
	}
}

// Scale multiplies every element by f
func (a *Array) Scale(f complex128) {
	for i := range a.Data {
		a.Data[i] *= f
	}
	if a.DType == Float64 && imag(f) != 0 {
		a.Real()
	}
}

// Real zeroes all imaginary parts
func (a *Array) Real() {
	for i, v := range a.Data {
		a.Data[i] = complex(real(v), 0)
	}
}

// RealValues returns the real parts as a new slice
func (a *Array) RealValues() []float64 {
	out := make([]float64, len(a.Data))
	for i, v := range a.Data {
		out[i] = real(v)
	}
	return out
}

// MaxAbs is the largest modulus
func (a *Array) MaxAbs() float64 {
	m := 0.0
	for _, v := range a.Data {
		if x := cmplx.Abs(v); x > m {
			m = x
		}
	}
	return m
}

// MaxAbsDiff is the largest elementwise modulus of a-b
func MaxAbsDiff(a, b *Array) float64 {
	if len(a.Data) != len(b.Data) {
		panic(fmt.Sprintf("array: diff of %v and %v", a.Shape, b.Shape))
	}
	m := 0.0
	for i := range a.Data {
		if x := cmplx.Abs(a.Data[i] - b.Data[i]); x > m {
			m = x
		}
	}
	return m
}
