package space

import (
	"fmt"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/basis"
	"github.com/notargets/spectral/symbolic"
	"github.com/notargets/spectral/utils"
)

// BoundaryValues feeds the boundary dofs of one composite basis inside a
// space. bcs holds the values in the layout the basis sees during the
// forward chain, bcsFinal the fully transformed values. Both are
// hyperplanes of length one along the bound axis; a nil bcsFinal entry
// belongs to another rank.
type BoundaryValues struct {
	space    *TensorProductSpace
	basis    basis.Basis
	axis     int
	bc       *basis.BoundaryConditions
	bcs      []*array.Array
	bcsFinal []*array.Array
	time     float64
}

func newBoundaryValues(t *TensorProductSpace, axis int) *BoundaryValues {
	b := t.bases[axis]
	nb := b.NumBCs()
	return &BoundaryValues{
		space:    t,
		basis:    b,
		axis:     axis,
		bc:       b.BC(),
		bcs:      make([]*array.Array, nb),
		bcsFinal: make([]*array.Array, nb),
	}
}

func (bv *BoundaryValues) Axis() int                             { return bv.axis }
func (bv *BoundaryValues) Time() float64                         { return bv.time }
func (bv *BoundaryValues) Conditions() *basis.BoundaryConditions { return bv.bc }

// BCs and FinalBCs return copies of the current boundary data
func (bv *BoundaryValues) BCs() []*array.Array      { return cloneAll(bv.bcs) }
func (bv *BoundaryValues) FinalBCs() []*array.Array { return cloneAll(bv.bcsFinal) }

func cloneAll(in []*array.Array) []*array.Array {
	out := make([]*array.Array, len(in))
	for i, a := range in {
		if a != nil {
			out[i] = a.Clone()
		}
	}
	return out
}

// HasNonhomogeneousBCs reports whether any value is a nonzero number, an
// array with a nonzero entry, an expression or a projection
func (bv *BoundaryValues) HasNonhomogeneousBCs() bool {
	for _, v := range bv.bc.OrderedVals() {
		switch v := v.(type) {
		case basis.Constant:
			if v != 0 {
				return true
			}
		case basis.ArrayValue:
			if !basis.IsZero(v) {
				return true
			}
		case basis.SymbolicValue, basis.Projection:
			return true
		}
	}
	return false
}

// Update re-projects projection values and re-derives the boundary data
// at time. Repeating the same time without projections is a no-op.
func (bv *BoundaryValues) Update(time float64) error {
	projections := false
	for _, v := range bv.bc.OrderedVals() {
		p, ok := v.(basis.Projection)
		if !ok {
			continue
		}
		projections = true
		if err := p.Source.Project(); err != nil {
			return fmt.Errorf("re-project boundary value: %w", err)
		}
	}
	if time == bv.time && !projections {
		return nil
	}
	bv.time = time
	bv.space.logger.Debug("boundary update", "axis", bv.axis, "time", time)
	if len(bv.space.NonhomogeneousAxes()) > 1 {
		// the companion axis derives its data from this one
		for _, o := range bv.space.boundary {
			if o != nil && o != bv {
				o.time = time
			}
		}
		return bv.space.setAllTensorBCs()
	}
	return bv.setTensorBCs()
}

func (t *TensorProductSpace) setAllTensorBCs() error {
	for _, bv := range t.boundary {
		if bv == nil {
			continue
		}
		if err := bv.setTensorBCs(); err != nil {
			return err
		}
	}
	return nil
}

// SetBoundaryDofs overwrites the trailing NumBCs slots of u along the bound
// axis. final selects the fully transformed values, written only where
// this rank owns the slot of the spectral layout.
func (bv *BoundaryValues) SetBoundaryDofs(u *array.Array, final bool) error {
	nb := len(bv.bcs)
	for j := 0; j < nb; j++ {
		var err error
		if final {
			v := bv.bcsFinal[j]
			l := bv.finalSlot(j)
			if v == nil || l < 0 {
				continue
			}
			err = u.SetAlongAxis(bv.axis, l, v)
		} else {
			slot := u.Shape[bv.axis] - nb + j
			if v := bv.bcs[j]; v != nil {
				err = u.SetAlongAxis(bv.axis, slot, v)
			} else {
				u.FillAlongAxis(bv.axis, slot, 0)
			}
		}
		if err != nil {
			return fmt.Errorf("boundary dof %d on axis %d: %w", j, bv.axis, err)
		}
	}
	return nil
}

// finalSlot is the local index of boundary dof j in the spectral layout,
// or -1 when another rank holds it
func (bv *BoundaryValues) finalSlot(j int) int {
	p := bv.space.spec
	g := bv.basis.N() - len(bv.bcs) + j
	l := g - p.Substart[bv.axis]
	if l < 0 || l >= p.Subshape[bv.axis] {
		return -1
	}
	return l
}

// AddMassRHS fixes the boundary dofs of u and moves their mass to the
// right hand side of the interior rows
func (bv *BoundaryValues) AddMassRHS(u *array.Array) error {
	if err := bv.SetBoundaryDofs(u, false); err != nil {
		return err
	}
	if bv.HasNonhomogeneousBCs() {
		bv.basis.SubtractBCMass(u)
	}
	return nil
}

// AddToOrthogonal adds the boundary functions, expressed in the orthogonal
// family, to the orthogonal coefficients u of the spectral layout
func (bv *BoundaryValues) AddToOrthogonal(u *array.Array) error {
	p := bv.space.spec
	if p.Subcomm[bv.axis].Size() != 1 {
		return fmt.Errorf("%w: axis %d is distributed in spectral space", utils.ErrUnimplementedPath, bv.axis)
	}
	if !u.Shape.Equal(p.Subshape) {
		return fmt.Errorf("%w: orthogonal coefficients %v for layout %v", utils.ErrShapeMismatch, u.Shape, p.Subshape)
	}
	s := bv.basis.Stencil()
	n, nb := bv.basis.N(), len(bv.bcs)
	for j, v := range bv.bcsFinal {
		row := n - nb + j
		for k := 0; k < n; k++ {
			c := s.At(row, k)
			if c == 0 {
				continue
			}
			plane := u.GetAlongAxis(bv.axis, k)
			for i := range plane.Data {
				plane.Data[i] += complex(c, 0) * v.Data[i]
			}
			if err := u.SetAlongAxis(bv.axis, k, plane); err != nil {
				return err
			}
		}
	}
	return nil
}

// setTensorBCs derives bcs and bcsFinal. The values are placed in the
// trailing physical slots of an otherwise zero array; bcs is read after
// the transforms that precede the bound axis, bcsFinal after the full
// forward chain. The forward input buffer is restored afterwards.
func (bv *BoundaryValues) setTensorBCs() (err error) {
	t := bv.space
	if len(t.NonhomogeneousAxes()) > 1 {
		return bv.setCoupledBCs()
	}
	fwd := t.forward
	saved := fwd.Input().Clone()
	defer func() {
		if rerr := fwd.Input().CopyFrom(saved); err == nil {
			err = rerr
		}
	}()
	nb := len(bv.bcs)
	phys := fwd.Input().Like()
	if err := bv.fill(phys); err != nil {
		return err
	}
	src := phys
	if p := fwd.stepOf(bv.axis); p > 0 {
		if err := fwd.Input().CopyFrom(phys); err != nil {
			return err
		}
		if err := fwd.run(p, callOptions{}); err != nil {
			return err
		}
		src = fwd.steps[p].Input()
	}
	m := src.Shape[bv.axis]
	for j := 0; j < nb; j++ {
		bv.bcs[j] = src.GetAlongAxis(bv.axis, m-nb+j)
	}
	if err := fwd.Input().CopyFrom(phys); err != nil {
		return err
	}
	if err := fwd.run(len(fwd.steps), callOptions{}); err != nil {
		return err
	}
	out := fwd.Output()
	for j := 0; j < nb; j++ {
		bv.bcsFinal[j] = nil
		if l := bv.finalSlot(j); l >= 0 {
			bv.bcsFinal[j] = out.GetAlongAxis(bv.axis, l)
		}
	}
	t.logger.Trace("tensor boundary values", "axis", bv.axis, "time", bv.time)
	return nil
}

// fill writes every scaled boundary value into its physical slot of u on
// the rank that holds the end of the bound axis
func (bv *BoundaryValues) fill(u *array.Array) error {
	t := bv.space
	ax := bv.axis
	nb := len(bv.bcs)
	items := bv.bc.Items()
	m := bv.basis.PhysicalSize()
	for j, c := range items {
		// projections may evaluate collectively, so every rank evaluates
		plane, err := bv.evalPlane(c, u.Shape.With(ax, 1))
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name(), err)
		}
		l := m - nb + j - t.phys.Substart[ax]
		if l < 0 || l >= t.phys.Subshape[ax] {
			continue
		}
		plane.Scale(complex(basis.DofScale(bv.basis, j), 0))
		if err := u.SetAlongAxis(ax, l, plane); err != nil {
			return fmt.Errorf("%s: %w", c.Name(), err)
		}
	}
	return nil
}

// endpoint is the true-domain coordinate of side
func endpoint(b basis.Basis, side basis.Side) float64 {
	d := b.Domain()
	if side == basis.Left {
		return d[0]
	}
	return d[1]
}

// evalPlane evaluates one condition over the local boundary plane
func (bv *BoundaryValues) evalPlane(c basis.Condition, plane array.Shape) (*array.Array, error) {
	t := bv.space
	switch v := c.Value.(type) {
	case basis.Constant:
		out := array.Zeros(plane, array.Float64)
		out.Fill(complex(float64(v), 0))
		return out, nil
	case basis.ArrayValue:
		if v.Values == nil {
			return array.Zeros(plane, array.Float64), nil
		}
		return array.BroadcastTo(v.Values, plane)
	case basis.SymbolicValue:
		vars, err := t.meshVars()
		if err != nil {
			return nil, err
		}
		fixed := symbolic.Vars{
			symbolic.Time:        bv.time,
			t.coors.Psi[bv.axis]: endpoint(bv.basis, c.Side),
		}
		return symbolic.Lambdify(v.Expr, vars, fixed, plane)
	case basis.Projection:
		pts, err := bv.planePoints(c.Side, plane)
		if err != nil {
			return nil, err
		}
		vals, err := v.Source.EvalAt(pts)
		if err != nil {
			return nil, err
		}
		if len(vals) != plane.Size() {
			return nil, fmt.Errorf("%w: projection gave %d values for %d points", utils.ErrShapeMismatch, len(vals), plane.Size())
		}
		return array.FromReal(plane, vals), nil
	}
	return nil, fmt.Errorf("%w: boundary value %T", utils.ErrConfiguration, c.Value)
}

// planePoints lists the true-domain coordinates of every local point of
// the boundary plane on side, one row per axis
func (bv *BoundaryValues) planePoints(side basis.Side, plane array.Shape) ([][]float64, error) {
	mesh, err := bv.space.LocalMesh(basis.MeshQuadrature, false)
	if err != nil {
		return nil, err
	}
	pts := make([][]float64, len(plane))
	for d := range pts {
		pts[d] = make([]float64, 0, plane.Size())
	}
	x := endpoint(bv.basis, side)
	for o := array.NewOdometer(plane); !o.Done(); o.Next() {
		for d, i := range o.Index() {
			if d == bv.axis {
				pts[d] = append(pts[d], x)
			} else {
				pts[d] = append(pts[d], real(mesh[d].Data[i]))
			}
		}
	}
	return pts, nil
}
