package pencil

import (
	"fmt"

	"github.com/notargets/spectral/array"
)

// BlockDist is the size and start offset of rank r's share of n items
// split over p ranks: the first n%p ranks get one extra item
func BlockDist(n, p, r int) (size, start int) {
	q, rem := n/p, n%p
	size = q
	if r < rem {
		size++
	}
	start = r*q + min(r, rem)
	return size, start
}

// Pencil is the local block of a global shape that is whole along Axis
type Pencil struct {
	Subcomm  Subcomm
	Shape    array.Shape
	Axis     int
	Subshape array.Shape
	Substart []int
}

// New aligns a pencil of shape in axis. subcomm[axis] must have one rank.
func New(subcomm Subcomm, shape array.Shape, axis int) *Pencil {
	if len(subcomm) != len(shape) {
		panic(fmt.Sprintf("pencil: %d sub-communicators for %d axes", len(subcomm), len(shape)))
	}
	if axis < 0 {
		axis += len(shape)
	}
	if axis < 0 || axis >= len(shape) {
		panic(fmt.Sprintf("pencil: axis %d out of range for %d axes", axis, len(shape)))
	}
	if subcomm[axis].Size() != 1 {
		panic(fmt.Sprintf("pencil: axis %d is distributed over %d ranks", axis, subcomm[axis].Size()))
	}
	p := &Pencil{
		Subcomm:  append(Subcomm(nil), subcomm...),
		Shape:    shape.Clone(),
		Axis:     axis,
		Subshape: make(array.Shape, len(shape)),
		Substart: make([]int, len(shape)),
	}
	for i, n := range shape {
		p.Subshape[i], p.Substart[i] = BlockDist(n, subcomm[i].Size(), subcomm[i].Rank())
	}
	return p
}

// Pencil returns the sibling aligned in axis: the sub-communicators of the
// two axes trade places
func (p *Pencil) Pencil(axis int) *Pencil {
	if axis < 0 {
		axis += len(p.Shape)
	}
	sub := append(Subcomm(nil), p.Subcomm...)
	sub[axis], sub[p.Axis] = sub[p.Axis], sub[axis]
	return New(sub, p.Shape, axis)
}

// LocalSlice is the global index range held locally, per axis
func (p *Pencil) LocalSlice() []array.Range {
	r := make([]array.Range, len(p.Shape))
	for i := range r {
		r[i] = array.Range{Start: p.Substart[i], Stop: p.Substart[i] + p.Subshape[i]}
	}
	return r
}

func (p *Pencil) String() string {
	return fmt.Sprintf("pencil(axis=%d shape=%v subshape=%v start=%v)",
		p.Axis, p.Shape, p.Subshape, p.Substart)
}
