package basis

import (
	"fmt"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/config"
	"github.com/notargets/spectral/utils"
)

// Direction of a local transform
type Direction uint8

const (
	ForwardDir Direction = iota
	BackwardDir
	ScalarDir
)

func (d Direction) String() string {
	switch d {
	case ForwardDir:
		return "forward"
	case BackwardDir:
		return "backward"
	}
	return "scalar_product"
}

// Transform is one planned local transform. Its buffers are shared with the
// sibling transforms of the same basis.
type Transform struct {
	dir   Direction
	basis Basis
	in    *array.Array
	out   *array.Array
	run   func(in, out *array.Array, opts ExecOptions) error
}

func (t *Transform) Input() *array.Array  { return t.in }
func (t *Transform) Output() *array.Array { return t.out }
func (t *Transform) Direction() Direction { return t.dir }
func (t *Transform) Basis() Basis         { return t.basis }

// Execute transforms Input into Output
func (t *Transform) Execute(opts ExecOptions) error {
	if t == nil {
		return utils.ErrNotPlanned
	}
	if err := t.run(t.in, t.out, opts); err != nil {
		return fmt.Errorf("%s %s: %w", t.basis, t.dir, err)
	}
	return nil
}

// eachLine applies op to every line along axis, pairing lines of in and
// out that share their other indices
func eachLine(in, out *array.Array, axis int, op func(src, dst []complex128)) {
	inOff, inStride := in.Lines(axis)
	outOff, outStride := out.Lines(axis)
	src := make([]complex128, in.Shape[axis])
	dst := make([]complex128, out.Shape[axis])
	for l := range inOff {
		in.GetLine(inOff[l], inStride, src)
		op(src, dst)
		out.PutLine(outOff[l], outStride, dst)
	}
}

// inPlaceLines applies op to every line of a along axis
func inPlaceLines(a *array.Array, axis int, op func(line []complex128)) {
	off, stride := a.Lines(axis)
	line := make([]complex128, a.Shape[axis])
	for _, o := range off {
		a.GetLine(o, stride, line)
		op(line)
		a.PutLine(o, stride, line)
	}
}

// errKind rejects a kind the family does not implement
func errKind(f Family, k config.Kind) error {
	return fmt.Errorf("%w: %s has no %q transform", utils.ErrConfiguration, f, k)
}
