package space

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/basis"
	"github.com/notargets/spectral/mpi"
	"github.com/notargets/spectral/utils"
)

// Space is either a TensorProductSpace or a composite of them
type Space interface {
	// Leaves lists the scalar spaces depth first
	Leaves() []*TensorProductSpace
	NumComponents() int
	Dimensions() int
	// Rank is 0 for a scalar space and 1 for a composite
	Rank() int
	// TensorRank is 0 scalar, 1 vector, 2 second-order tensor and -1 for a
	// plain composite
	TensorRank() int
}

type compositeKind uint8

const (
	plainComposite compositeKind = iota
	vectorComposite
	tensorComposite
)

// CompositeSpace is an ordered tuple of spaces over the same communicator
// and dimensionality. Its pipelines apply the leaf pipelines componentwise.
type CompositeSpace struct {
	kind     compositeKind
	children []Space
	leaves   []*TensorProductSpace

	forward, backward, scalar *VectorTransform
}

// NewComposite groups arbitrary spaces
func NewComposite(children ...Space) (*CompositeSpace, error) {
	return newComposite(plainComposite, children)
}

// NewVectorSpace builds a vector space. A single child is repeated once per
// dimension; otherwise there must be one child per dimension.
func NewVectorSpace(children ...*TensorProductSpace) (*CompositeSpace, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: vector space without components", utils.ErrConfiguration)
	}
	d := children[0].Dimensions()
	if len(children) == 1 {
		children = repeat(children[0], d)
	}
	if len(children) != d {
		return nil, fmt.Errorf("%w: %d components in %d dimensions", utils.ErrConfiguration, len(children), d)
	}
	cs := make([]Space, len(children))
	for i, c := range children {
		cs[i] = c
	}
	return newComposite(vectorComposite, cs)
}

// NewTensorSpace builds a second-order tensor space from one
// TensorProductSpace or one vector space, repeated per dimension, or from
// one vector space per dimension
func NewTensorSpace(children ...Space) (*CompositeSpace, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: tensor space without components", utils.ErrConfiguration)
	}
	if len(children) == 1 {
		v, err := asVector(children[0])
		if err != nil {
			return nil, err
		}
		children = repeat[Space](v, v.Dimensions())
	}
	d := children[0].Dimensions()
	if len(children) != d {
		return nil, fmt.Errorf("%w: %d vector components in %d dimensions", utils.ErrConfiguration, len(children), d)
	}
	for i, c := range children {
		if c.TensorRank() != 1 {
			return nil, fmt.Errorf("%w: tensor row %d has tensor rank %d", utils.ErrConfiguration, i, c.TensorRank())
		}
	}
	return newComposite(tensorComposite, children)
}

func asVector(s Space) (Space, error) {
	switch c := s.(type) {
	case *TensorProductSpace:
		return NewVectorSpace(c)
	case *CompositeSpace:
		if c.kind == vectorComposite {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: tensor space from a space of tensor rank %d", utils.ErrConfiguration, s.TensorRank())
}

func repeat[T any](v T, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newComposite(kind compositeKind, children []Space) (*CompositeSpace, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: composite without components", utils.ErrConfiguration)
	}
	c := &CompositeSpace{kind: kind, children: append([]Space(nil), children...)}
	for _, ch := range children {
		c.leaves = append(c.leaves, ch.Leaves()...)
	}
	var errs *multierror.Error
	first := c.leaves[0]
	for i, l := range c.leaves[1:] {
		if l.Dimensions() != first.Dimensions() {
			errs = multierror.Append(errs, fmt.Errorf("%w: component %d has %d dimensions, component 0 has %d",
				utils.ErrConfiguration, i+1, l.Dimensions(), first.Dimensions()))
		}
		if l.Comm() != first.Comm() {
			errs = multierror.Append(errs, fmt.Errorf("%w: component %d uses another communicator",
				utils.ErrConfiguration, i+1))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	pick := func(dir basis.Direction, f func(*TensorProductSpace) *Transform) *VectorTransform {
		v := &VectorTransform{dir: dir, leaves: make([]*Transform, len(c.leaves))}
		for i, l := range c.leaves {
			v.leaves[i] = f(l)
		}
		return v
	}
	c.forward = pick(basis.ForwardDir, (*TensorProductSpace).Forward)
	c.backward = pick(basis.BackwardDir, (*TensorProductSpace).Backward)
	c.scalar = pick(basis.ScalarDir, (*TensorProductSpace).ScalarProduct)
	return c, nil
}

// Children returns the direct components
func (c *CompositeSpace) Children() []Space             { return append([]Space(nil), c.children...) }
func (c *CompositeSpace) Child(i int) Space             { return c.children[i] }
func (c *CompositeSpace) Leaves() []*TensorProductSpace { return append([]*TensorProductSpace(nil), c.leaves...) }
func (c *CompositeSpace) NumComponents() int            { return len(c.leaves) }
func (c *CompositeSpace) Dimensions() int               { return c.leaves[0].Dimensions() }
func (c *CompositeSpace) Rank() int                     { return 1 }
func (c *CompositeSpace) IsComposite() bool             { return true }

func (c *CompositeSpace) TensorRank() int {
	switch c.kind {
	case vectorComposite:
		return 1
	case tensorComposite:
		return 2
	}
	return -1
}

func (c *CompositeSpace) Forward() *VectorTransform       { return c.forward }
func (c *CompositeSpace) Backward() *VectorTransform      { return c.backward }
func (c *CompositeSpace) ScalarProduct() *VectorTransform { return c.scalar }

// Comm, Mesh and the axis classifications are those of the first
// leaf; all leaves share the communicator.
func (c *CompositeSpace) Comm() *mpi.Comm                   { return c.leaves[0].Comm() }
func (c *CompositeSpace) DiagonalAxes() []int               { return c.leaves[0].DiagonalAxes() }
func (c *CompositeSpace) NondiagonalAxes() []int            { return c.leaves[0].NondiagonalAxes() }
func (c *CompositeSpace) Mesh(k basis.MeshKind) [][]float64 { return c.leaves[0].Mesh(k) }

// Shape lists the local shape of every component
func (c *CompositeSpace) Shape(forwardOutput bool) []array.Shape {
	out := make([]array.Shape, len(c.leaves))
	for i, l := range c.leaves {
		out[i] = l.Shape(forwardOutput)
	}
	return out
}

// GlobalShape is the shape of the first component prefixed by the number
// of components
func (c *CompositeSpace) GlobalShape(forwardOutput bool) array.Shape {
	return append(array.Shape{len(c.leaves)}, c.leaves[0].GlobalShape(forwardOutput)...)
}

// LocalSlice is the slice of the first component prefixed by the full
// component range
func (c *CompositeSpace) LocalSlice(forwardOutput bool) []array.Range {
	return append([]array.Range{{Stop: len(c.leaves)}}, c.leaves[0].LocalSlice(forwardOutput)...)
}

// Size is the total local size over all components
func (c *CompositeSpace) Size(forwardOutput bool) int {
	n := 0
	for _, l := range c.leaves {
		n += l.Size(forwardOutput)
	}
	return n
}

// Dim is the total number of unknowns
func (c *CompositeSpace) Dim() int {
	n := 0
	for _, l := range c.leaves {
		n += l.Dim()
	}
	return n
}

// DimsComposite lists the unknowns per axis of every component
func (c *CompositeSpace) DimsComposite() [][]int {
	out := make([][]int, len(c.leaves))
	for i, l := range c.leaves {
		out[i] = l.Dims()
	}
	return out
}

// Offsets holds a row of zeros followed by the running per-axis sums of
// DimsComposite
func (c *CompositeSpace) Offsets() [][]int {
	dims := c.DimsComposite()
	out := make([][]int, len(dims)+1)
	out[0] = make([]int, c.Dimensions())
	for i, d := range dims {
		row := make([]int, len(d))
		for k := range d {
			row[k] = out[i][k] + d[k]
		}
		out[i+1] = row
	}
	return out
}

// NdiagCumDofs is the cumulative count of unknowns coupled by the
// non-diagonal axes, per component, with a leading zero
func (c *CompositeSpace) NdiagCumDofs() []int {
	diag := c.DiagonalAxes()
	out := make([]int, 1, len(c.leaves)+1)
	for _, d := range c.DimsComposite() {
		for _, ax := range diag {
			d[ax] = 1
		}
		n := 1
		for _, v := range d {
			n *= v
		}
		out = append(out, out[len(out)-1]+n)
	}
	return out
}

// NdiagSlices returns, per component, the component index followed by the
// unknowns' range on every non-diagonal axis and j[k] on the k-th diagonal
// axis
func (c *CompositeSpace) NdiagSlices(j []int) ([][]Selector, error) {
	diag := c.DiagonalAxes()
	if len(j) != len(diag) {
		return nil, fmt.Errorf("%w: %d indices for %d diagonal axes", utils.ErrConfiguration, len(j), len(diag))
	}
	out := make([][]Selector, len(c.leaves))
	for i, l := range c.leaves {
		row := []Selector{{Index: i, Point: true}}
		for _, r := range l.Slice() {
			row = append(row, Selector{Range: r})
		}
		for k, ax := range diag {
			row[ax+1] = Selector{Index: j[k], Point: true}
		}
		out[i] = row
	}
	return out, nil
}

func (c *CompositeSpace) NdiagSlicesAndDims(j []int) ([][]Selector, []int, error) {
	sl, err := c.NdiagSlices(j)
	if err != nil {
		return nil, nil, err
	}
	return sl, cumulativeSizes(sl), nil
}

// Eval evaluates every component at points
func (c *CompositeSpace) Eval(points [][]float64, coeffs, out []*array.Array, method int) ([]*array.Array, error) {
	if len(coeffs) != len(c.leaves) {
		return nil, fmt.Errorf("%w: %d coefficient arrays for %d components", utils.ErrShapeMismatch, len(coeffs), len(c.leaves))
	}
	if out != nil && len(out) != len(c.leaves) {
		return nil, fmt.Errorf("%w: %d outputs for %d components", utils.ErrShapeMismatch, len(out), len(c.leaves))
	}
	res := make([]*array.Array, len(c.leaves))
	for i, l := range c.leaves {
		var o *array.Array
		if out != nil {
			o = out[i]
		}
		r, err := l.Eval(points, coeffs[i], o, method)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		res[i] = r
	}
	return res, nil
}

// Convolve forms the componentwise products of a and b
func (c *CompositeSpace) Convolve(a, b, ab []*array.Array) ([]*array.Array, error) {
	ua, err := c.backward.Call(a, nil, nil)
	if err != nil {
		return nil, err
	}
	ub, err := c.backward.Call(b, nil, nil)
	if err != nil {
		return nil, err
	}
	for i := range ua {
		if err := ua[i].MulBroadcast(ub[i]); err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
	}
	return c.forward.Call(ua, ab, nil)
}

// CompatibleBase reports whether o has as many components, each with
// compatible bases
func (c *CompositeSpace) CompatibleBase(o *CompositeSpace) bool {
	if len(o.leaves) != len(c.leaves) {
		return false
	}
	for i, l := range c.leaves {
		if !l.CompatibleBase(o.leaves[i]) {
			return false
		}
	}
	return true
}

// GetRefined refines every component. Shared components stay shared.
func (c *CompositeSpace) GetRefined(r Refinement) (*CompositeSpace, error) {
	return c.mapLeaves("refine", func(t *TensorProductSpace) (*TensorProductSpace, error) { return t.GetRefined(r) })
}

// GetDealiased pads every component. c is returned when nothing changes.
func (c *CompositeSpace) GetDealiased(pf []float64, direct bool) (*CompositeSpace, error) {
	if !direct {
		identity := true
		for _, f := range pf {
			if f != 1 {
				identity = false
			}
		}
		if identity {
			return c, nil
		}
	}
	return c.mapLeaves("dealias", func(t *TensorProductSpace) (*TensorProductSpace, error) {
		return t.GetDealiased(pf, direct)
	})
}

// GetOrthogonal replaces every component by its orthogonal space
func (c *CompositeSpace) GetOrthogonal() (*CompositeSpace, error) {
	return c.mapLeaves("orthogonal", (*TensorProductSpace).GetOrthogonal)
}

// mapLeaves rebuilds a vector or tensor space with f applied to each
// distinct component
func (c *CompositeSpace) mapLeaves(op string, f func(*TensorProductSpace) (*TensorProductSpace, error)) (*CompositeSpace, error) {
	shared := true
	for _, ch := range c.children[1:] {
		if ch != c.children[0] {
			shared = false
		}
	}
	switch c.kind {
	case vectorComposite:
		if shared {
			s, err := f(c.children[0].(*TensorProductSpace))
			if err != nil {
				return nil, err
			}
			return NewVectorSpace(s)
		}
		out := make([]*TensorProductSpace, len(c.children))
		for i, ch := range c.children {
			s, err := f(ch.(*TensorProductSpace))
			if err != nil {
				return nil, fmt.Errorf("component %d: %w", i, err)
			}
			out[i] = s
		}
		return NewVectorSpace(out...)
	case tensorComposite:
		if shared {
			v, err := c.children[0].(*CompositeSpace).mapLeaves(op, f)
			if err != nil {
				return nil, err
			}
			return NewTensorSpace(v)
		}
		out := make([]Space, len(c.children))
		for i, ch := range c.children {
			v, err := ch.(*CompositeSpace).mapLeaves(op, f)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			out[i] = v
		}
		return NewTensorSpace(out...)
	}
	return nil, fmt.Errorf("%w: %s of a plain composite space", utils.ErrUnimplementedPath, op)
}

func (c *CompositeSpace) String() string {
	names := make([]string, len(c.children))
	for i, ch := range c.children {
		names[i] = fmt.Sprint(ch)
	}
	kind := [...]string{"CompositeSpace", "VectorSpace", "TensorSpace"}[c.kind]
	return kind + "(" + strings.Join(names, ", ") + ")"
}
