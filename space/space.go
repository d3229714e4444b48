// Package space composes 1D bases into distributed tensor product spaces.
//
// A TensorProductSpace decides the order in which axes are transformed,
// decomposes the global array into pencils over the ranks of a
// communicator, and chains local basis transforms with the all-to-all
// redistributions between them. Forward, Backward and ScalarProduct own
// their buffers; calls on one space are not reentrant.
package space

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/basis"
	"github.com/notargets/spectral/config"
	"github.com/notargets/spectral/coordinates"
	"github.com/notargets/spectral/mpi"
	"github.com/notargets/spectral/pencil"
	"github.com/notargets/spectral/symbolic"
	"github.com/notargets/spectral/utils"
)

// TensorProductSpace is the Cartesian product of one basis per axis
type TensorProductSpace struct {
	comm     *mpi.Comm
	subcomm  pencil.Subcomm
	bases    []basis.Basis
	axes     [][]int
	dtype    array.DType
	coors    *coordinates.System
	kinds    config.Transforms
	logger   hclog.Logger
	settings settings

	// planned bases and transfers in planning order
	xfftn     []basis.Basis
	transfers []*pencil.Transfer
	phys      *pencil.Pencil
	spec      *pencil.Pencil
	empty     bool

	forward, backward, scalar *Transform
	boundary                  []*BoundaryValues
	// set when the metric cannot be carried by per-axis mass weights
	forwardErr error
}

// New builds a space over comm from bases, one per axis
func New(comm *mpi.Comm, bases []basis.Basis, opts ...Option) (*TensorProductSpace, error) {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	n := len(bases)
	if n == 0 || n > len(symbolic.AxisSymbols) {
		return nil, fmt.Errorf("%w: %d bases, need 1 to %d", utils.ErrConfiguration, n, len(symbolic.AxisSymbols))
	}
	t := &TensorProductSpace{
		comm:     comm,
		logger:   utils.OrNull(s.logger),
		kinds:    config.Current().Transforms.Clone(),
		settings: s,
		coors:    s.coors,
		boundary: make([]*BoundaryValues, n),
	}
	if t.coors == nil {
		t.coors = coordinates.Cartesian(n)
	}
	if t.coors.Dims() != n {
		return nil, fmt.Errorf("%w: %d coordinates for %d bases", utils.ErrConfiguration, t.coors.Dims(), n)
	}
	t.bases = make([]basis.Basis, n)
	for i, b := range bases {
		if !s.inplace {
			b = b.GetUnplanned()
		}
		b.SetAxis(i)
		t.bases[i] = b
	}

	if t.GlobalShape(false).Size() == 0 {
		t.empty = true
		t.subcomm = s.subcomm
		t.dtype = s.dtype
		t.forward = &Transform{dir: basis.ForwardDir, space: t}
		t.backward = &Transform{dir: basis.BackwardDir, space: t}
		t.scalar = &Transform{dir: basis.ScalarDir, space: t}
		t.logger.Debug("empty space", "shape", t.GlobalShape(false))
		return t, nil
	}

	t.bindMetric()
	axes, err := normalizeAxes(s.axes, n)
	if err != nil {
		return nil, err
	}
	t.axes = axes
	last := t.distinguished()
	dtype := s.dtype
	if !s.dtypeSet {
		dtype = array.Float64
		if t.bases[last].IsC2C() {
			dtype = array.Complex128
		}
	}
	if s.fromPencil != nil {
		err = t.configureBackward(s.fromPencil, dtype)
	} else {
		err = t.configureForward(dtype)
	}
	if err != nil {
		return nil, err
	}
	t.logger.Debug("axis plan", "axes", t.axes, "dtype", t.dtype,
		"physical", t.phys.Subshape, "spectral", t.spec.Subshape)

	if err := t.bindBoundaries(); err != nil {
		return nil, err
	}
	return t, nil
}

// distinguished is the axis transformed first by Forward
func (t *TensorProductSpace) distinguished() int {
	g := t.axes[len(t.axes)-1]
	return g[len(g)-1]
}

func (t *TensorProductSpace) buildSubcomm() error {
	s := t.settings
	n := len(t.bases)
	last := t.distinguished()
	if s.subcomm != nil {
		if s.slab {
			return fmt.Errorf("%w: slab decomposition with an explicit subcomm", utils.ErrConfiguration)
		}
		if len(s.subcomm) != n {
			return fmt.Errorf("%w: subcomm has %d axes, space has %d", utils.ErrConfiguration, len(s.subcomm), n)
		}
		if s.subcomm[last].Size() != 1 {
			return fmt.Errorf("%w: axis %d is transformed first but distributed over %d ranks",
				utils.ErrConfiguration, last, s.subcomm[last].Size())
		}
		t.subcomm = s.subcomm
		return nil
	}
	dims := make([]int, n)
	switch {
	case n == 1:
		dims[0] = 1
	case s.slab:
		for i := range dims {
			dims[i] = 1
		}
		dims[(last+1)%n] = t.comm.Size()
	default:
		for _, ax := range t.axes[len(t.axes)-1] {
			dims[ax] = 1
		}
	}
	sub, err := pencil.NewSubcomm(t.comm, dims)
	if err != nil {
		return fmt.Errorf("%w: decomposition %v over %d ranks: %v", utils.ErrConfiguration, dims, t.comm.Size(), err)
	}
	t.subcomm = sub
	return nil
}

func (t *TensorProductSpace) plan(b basis.Basis, shape array.Shape, group []int, dt array.DType) error {
	if err := b.Plan(shape, group, dt); err != nil {
		return fmt.Errorf("plan %s on axes %v: %w", b, group, err)
	}
	t.xfftn = append(t.xfftn, b)
	return nil
}

// configureForward plans from the physical layout: the distinguished group
// first, then every earlier group, re-deriving the global shape and dtype
// after each local transform
func (t *TensorProductSpace) configureForward(dtype array.DType) error {
	last := t.distinguished()
	switch {
	case t.bases[last].IsC2C() && dtype != array.Complex128:
		return fmt.Errorf("%w: complex basis %s on axis %d needs complex data", utils.ErrConfiguration, t.bases[last], last)
	case t.bases[last].IsR2C() && dtype != array.Float64:
		return fmt.Errorf("%w: real basis %s on axis %d needs real data", utils.ErrConfiguration, t.bases[last], last)
	}
	t.dtype = dtype
	if err := t.buildSubcomm(); err != nil {
		return err
	}
	if t.settings.collapse && !anyPadded(t.bases) {
		t.axes = collapseFourier(t.axes, t.bases, t.subcomm)
	}
	shape := t.GlobalShape(false)
	groups := t.axes
	g := groups[len(groups)-1]
	pA := pencil.New(t.subcomm, shape, g[len(g)-1])
	t.phys = pA
	b := t.bases[g[len(g)-1]]
	if err := t.plan(b, pA.Subshape, g, dtype); err != nil {
		return err
	}
	shape, dtype, pA = t.rederive(b, pA, shape, dtype, false)
	for i := len(groups) - 2; i >= 0; i-- {
		g := groups[i]
		ax := g[len(g)-1]
		pB := pA.Pencil(ax)
		tr, err := pA.Transfer(pB, dtype)
		if err != nil {
			return err
		}
		b := t.bases[ax]
		if err := t.plan(b, pB.Subshape, g, dtype); err != nil {
			return err
		}
		t.transfers = append(t.transfers, tr)
		shape, dtype, pA = t.rederive(b, pB, shape, dtype, false)
	}
	t.spec = pA

	n := len(t.xfftn)
	fwd := make([]*basis.Transform, n)
	sp := make([]*basis.Transform, n)
	bwd := make([]*basis.Transform, n)
	moves := make([]move, n-1)
	back := make([]move, n-1)
	for i, b := range t.xfftn {
		fwd[i], sp[i], bwd[n-1-i] = b.Forward(), b.ScalarProduct(), b.Backward()
	}
	for i, tr := range t.transfers {
		moves[i] = move{t: tr}
		back[n-2-i] = move{t: tr, backward: true}
	}
	t.forward = newTransform(basis.ForwardDir, t, fwd, moves, t.phys, t.spec)
	t.scalar = newTransform(basis.ScalarDir, t, sp, moves, t.phys, t.spec)
	t.backward = newTransform(basis.BackwardDir, t, bwd, back, t.spec, t.phys)
	return nil
}

// configureBackward plans from the spectral layout p outward. Used for
// padded companions whose spectral distribution must match p exactly.
func (t *TensorProductSpace) configureBackward(p *pencil.Pencil, dtype array.DType) error {
	t.subcomm = p.Subcomm
	shape := t.GlobalShape(true)
	groups := t.axes
	ax := groups[0][len(groups[0])-1]
	t.spec = pencil.New(p.Subcomm, shape, ax)
	pA := t.spec
	for i, g := range groups {
		ax := g[len(g)-1]
		pB := pA
		if i > 0 {
			pB = pA.Pencil(ax)
			tr, err := pA.Transfer(pB, dtype)
			if err != nil {
				return err
			}
			t.transfers = append(t.transfers, tr)
		}
		b := t.bases[ax]
		if b.IsR2C() {
			dtype = array.Float64
		}
		if err := t.plan(b, pB.Subshape.With(ax, b.PhysicalSize()), g, dtype); err != nil {
			return err
		}
		shape, dtype, pA = t.rederive(b, pB, shape, dtype, true)
	}
	t.phys = pA
	t.dtype = dtype

	n := len(t.xfftn)
	fwd := make([]*basis.Transform, n)
	sp := make([]*basis.Transform, n)
	bwd := make([]*basis.Transform, n)
	moves := make([]move, n-1)
	back := make([]move, n-1)
	for i, b := range t.xfftn {
		bwd[i], fwd[n-1-i], sp[n-1-i] = b.Backward(), b.Forward(), b.ScalarProduct()
	}
	for i, tr := range t.transfers {
		moves[i] = move{t: tr}
		back[n-2-i] = move{t: tr, backward: true}
	}
	t.backward = newTransform(basis.BackwardDir, t, bwd, moves, t.spec, t.phys)
	t.forward = newTransform(basis.ForwardDir, t, fwd, back, t.phys, t.spec)
	t.scalar = newTransform(basis.ScalarDir, t, sp, back, t.phys, t.spec)
	return nil
}

// rederive updates the nominal global shape and dtype after planning b and
// rebuilds the pencil when they changed. outward selects the physical side
// of b (backward planning) instead of the spectral side.
func (t *TensorProductSpace) rederive(b basis.Basis, p *pencil.Pencil, shape array.Shape, dt array.DType,
	outward bool) (array.Shape, array.DType, *pencil.Pencil) {
	in, out := b.Forward().Input(), b.Forward().Output()
	ax := b.Axis()
	side := out
	if outward {
		side = in
	}
	if shape[ax] == side.Shape[ax] && in.DType == out.DType {
		return shape, dt, p
	}
	shape = shape.With(ax, side.Shape[ax])
	if side.DType != dt {
		t.logger.Debug("dtype change", "axis", ax, "from", dt, "to", side.DType)
	}
	q := pencil.New(p.Subcomm, shape, ax)
	t.logger.Debug("pencil", "axis", ax, "shape", shape, "subshape", q.Subshape)
	return shape, side.DType, q
}

// bindBoundaries installs a BoundaryValues provider in every basis with
// non-homogeneous conditions and derives its tensor boundary data
func (t *TensorProductSpace) bindBoundaries() error {
	nh := t.NonhomogeneousAxes()
	if len(nh) > 1 && (len(t.bases) != 2 || t.comm.Size() != 1) {
		return fmt.Errorf("%w: %d non-homogeneous axes in a %d-dimensional space on %d ranks",
			utils.ErrUnimplementedPath, len(nh), len(t.bases), t.comm.Size())
	}
	for _, ax := range nh {
		bv := newBoundaryValues(t, ax)
		t.boundary[ax] = bv
		t.bases[ax].SetBoundary(bv)
	}
	for _, ax := range nh {
		if err := t.boundary[ax].setTensorBCs(); err != nil {
			return fmt.Errorf("boundary values on axis %d: %w", ax, err)
		}
	}
	return nil
}

func (t *TensorProductSpace) Comm() *mpi.Comm                  { return t.comm }
func (t *TensorProductSpace) Subcomm() pencil.Subcomm          { return t.subcomm }
func (t *TensorProductSpace) Bases() []basis.Basis             { return append([]basis.Basis(nil), t.bases...) }
func (t *TensorProductSpace) Basis(axis int) basis.Basis       { return t.bases[axis] }
func (t *TensorProductSpace) Coordinates() *coordinates.System { return t.coors }
func (t *TensorProductSpace) Logger() hclog.Logger             { return t.logger }
func (t *TensorProductSpace) Forward() *Transform              { return t.forward }
func (t *TensorProductSpace) Backward() *Transform             { return t.backward }
func (t *TensorProductSpace) ScalarProduct() *Transform        { return t.scalar }
func (t *TensorProductSpace) Dimensions() int                  { return len(t.bases) }
func (t *TensorProductSpace) Empty() bool                      { return t.empty }

// BoundaryValues returns the provider bound to axis, or nil when the axis
// has homogeneous conditions
func (t *TensorProductSpace) BoundaryValues(axis int) *BoundaryValues { return t.boundary[axis] }

// Axes returns a copy of the axis plan
func (t *TensorProductSpace) Axes() [][]int {
	out := make([][]int, len(t.axes))
	for i, g := range t.axes {
		out[i] = append([]int(nil), g...)
	}
	return out
}

// DType is the dtype of physical arrays, or of spectral ones when
// forwardOutput is set
func (t *TensorProductSpace) DType(forwardOutput bool) array.DType {
	if t.empty {
		return t.dtype
	}
	if forwardOutput {
		return t.forward.Output().DType
	}
	return t.forward.Input().DType
}

// GlobalShape is the shape of the global physical (or spectral) array
func (t *TensorProductSpace) GlobalShape(forwardOutput bool) array.Shape {
	s := make(array.Shape, len(t.bases))
	for i, b := range t.bases {
		if forwardOutput {
			s[i] = b.SpectralSize()
		} else {
			s[i] = b.PhysicalSize()
		}
	}
	return s
}

// Shape is the local shape on this rank
func (t *TensorProductSpace) Shape(forwardOutput bool) array.Shape {
	if t.empty {
		return t.GlobalShape(forwardOutput)
	}
	if forwardOutput {
		return t.spec.Subshape.Clone()
	}
	return t.phys.Subshape.Clone()
}

// LocalSlice is the global index range held by this rank, per axis
func (t *TensorProductSpace) LocalSlice(forwardOutput bool) []array.Range {
	if t.empty {
		out := make([]array.Range, len(t.bases))
		for i, n := range t.GlobalShape(forwardOutput) {
			out[i] = array.Range{Stop: n}
		}
		return out
	}
	if forwardOutput {
		return t.spec.LocalSlice()
	}
	return t.phys.LocalSlice()
}

// InputPencil and OutputPencil are the physical and spectral layouts
func (t *TensorProductSpace) InputPencil() *pencil.Pencil  { return t.phys }
func (t *TensorProductSpace) OutputPencil() *pencil.Pencil { return t.spec }

// Size is the number of local elements
func (t *TensorProductSpace) Size(forwardOutput bool) int { return t.Shape(forwardOutput).Size() }

// Dims is the number of unknowns per axis
func (t *TensorProductSpace) Dims() []int {
	d := make([]int, len(t.bases))
	for i, b := range t.bases {
		d[i] = b.Dim()
	}
	return d
}

// Dim is the total number of unknowns
func (t *TensorProductSpace) Dim() int {
	n := 1
	for _, d := range t.Dims() {
		n *= d
	}
	return n
}

// Slice is the index range of the unknowns per axis
func (t *TensorProductSpace) Slice() []array.Range {
	s := make([]array.Range, len(t.bases))
	for i, b := range t.bases {
		s[i] = b.Slice()
	}
	return s
}

func (t *TensorProductSpace) Domains() [][2]float64 {
	d := make([][2]float64, len(t.bases))
	for i, b := range t.bases {
		d[i] = b.Domain()
	}
	return d
}

// Volume is the product of the domain lengths
func (t *TensorProductSpace) Volume() float64 {
	v := 1.0
	for _, d := range t.Domains() {
		v *= d[1] - d[0]
	}
	return v
}

func (t *TensorProductSpace) Rank() int       { return 0 }
func (t *TensorProductSpace) TensorRank() int { return 0 }
func (t *TensorProductSpace) NumComponents() int {
	return 1
}

// Leaves returns the space itself
func (t *TensorProductSpace) Leaves() []*TensorProductSpace { return []*TensorProductSpace{t} }

func (t *TensorProductSpace) IsComposite() bool { return false }

// IsOrthogonal reports whether every basis is orthogonal
func (t *TensorProductSpace) IsOrthogonal() bool {
	for _, b := range t.bases {
		if !b.IsOrthogonal() {
			return false
		}
	}
	return true
}

// IsPadded reports whether every basis is padded
func (t *TensorProductSpace) IsPadded() bool {
	for _, b := range t.bases {
		if !b.IsPadded() {
			return false
		}
	}
	return true
}

// CompatibleBase reports whether o has, per axis, the same family, size,
// padding and domain
func (t *TensorProductSpace) CompatibleBase(o *TensorProductSpace) bool {
	if len(o.bases) != len(t.bases) {
		return false
	}
	for i, b := range t.bases {
		c := o.bases[i]
		if b.Family() != c.Family() || b.N() != c.N() || b.PaddingFactor() != c.PaddingFactor() ||
			b.Domain() != c.Domain() || b.IsR2C() != c.IsR2C() {
			return false
		}
	}
	return true
}

func (t *TensorProductSpace) String() string {
	s := "TensorProductSpace("
	for i, b := range t.bases {
		if i > 0 {
			s += ", "
		}
		s += b.String()
	}
	return s + ")"
}
