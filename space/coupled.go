package space

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/basis"
	"github.com/notargets/spectral/la"
	"github.com/notargets/spectral/symbolic"
	"github.com/notargets/spectral/utils"
)

// Two-axis boundary coupling is limited to 2D spaces on one rank.
func (t *TensorProductSpace) checkCoupled() error {
	if len(t.bases) != 2 || t.comm.Size() != 1 {
		return fmt.Errorf("%w: coupled boundary values need a 2D space on one rank, have %dD on %d",
			utils.ErrUnimplementedPath, len(t.bases), t.comm.Size())
	}
	return nil
}

// coupledForward solves M0 U M1 = S on the interior modes, where S is the
// scalar product of the input and the boundary rows and columns of U are
// known from both axes' boundary values
func (t *TensorProductSpace) coupledForward(tr *Transform, o callOptions) error {
	if err := t.checkCoupled(); err != nil {
		return err
	}
	if _, ok := symbolic.Constant(t.coors.SqrtDetG); !ok {
		return fmt.Errorf("%w: coupled boundary values in curvilinear coordinates", utils.ErrUnimplementedPath)
	}
	sp := t.scalar
	if sp.Input() != tr.Input() {
		if err := sp.Input().CopyFrom(tr.Input()); err != nil {
			return err
		}
	}
	if err := sp.run(len(sp.steps), o); err != nil {
		return err
	}
	s := sp.Output()
	b0, b1 := t.bases[0], t.bases[1]
	n0, n1 := b0.N(), b1.N()
	ni0, ni1 := b0.Dim(), b1.Dim()

	ukr, uki := mat.NewDense(n0, n1, nil), mat.NewDense(n0, n1, nil)
	for j, v := range t.boundary[0].bcsFinal {
		for l := 0; l < n1; l++ {
			ukr.Set(ni0+j, l, real(v.Data[l]))
			uki.Set(ni0+j, l, imag(v.Data[l]))
		}
	}
	for j, v := range t.boundary[1].bcsFinal {
		for k := 0; k < n0; k++ {
			ukr.Set(k, ni1+j, real(v.Data[k]))
			uki.Set(k, ni1+j, imag(v.Data[k]))
		}
	}

	m0, m1 := b0.TrialMass(), b1.TrialMass()
	a0 := m0.Slice(0, ni0, 0, n0)
	a1 := m1.Slice(0, ni1, 0, n1)
	rhs := func(uk *mat.Dense, part func(complex128) float64) *mat.Dense {
		var tmp, r mat.Dense
		tmp.Mul(a0, uk)
		r.Mul(&tmp, a1.T())
		for i := 0; i < ni0; i++ {
			for j := 0; j < ni1; j++ {
				r.Set(i, j, part(s.Data[i*n1+j])-r.At(i, j))
			}
		}
		return &r
	}
	solver, err := la.NewSolver2D(la.Leading(m0, ni0), la.Leading(m1, ni1))
	if err != nil {
		return err
	}
	xr, xi, err := solver.SolveComplex(
		rhs(ukr, func(c complex128) float64 { return real(c) }),
		rhs(uki, func(c complex128) float64 { return imag(c) }))
	if err != nil {
		return fmt.Errorf("coupled mass solve: %w", err)
	}
	out := tr.Output()
	for k := 0; k < n0; k++ {
		for l := 0; l < n1; l++ {
			v := complex(ukr.At(k, l), uki.At(k, l))
			if k < ni0 && l < ni1 {
				v = complex(xr.At(k, l), xi.At(k, l))
			}
			out.Set(v, k, l)
		}
	}
	for ax, b := range t.bases {
		if b.DealiasDirect() && !b.IsPadded() {
			for k := 2 * b.N() / 3; k < b.Dim(); k++ {
				out.FillAlongAxis(ax, k, 0)
			}
		}
	}
	t.logger.Trace("coupled forward", "interior", []int{ni0, ni1})
	return nil
}

// setCoupledBCs derives the boundary data of one axis when the other axis
// is also non-homogeneous. Each boundary function is expanded in the
// companion basis, whose own conditions are read off the function at the
// companion's endpoints.
func (bv *BoundaryValues) setCoupledBCs() error {
	t := bv.space
	if err := t.checkCoupled(); err != nil {
		return err
	}
	a := bv.axis
	c := 1 - a
	cb := t.bases[c]
	sym := t.coors.Psi[c]
	x := cb.Mesh(basis.MeshQuadrature)
	first := t.forward.stepOf(a) == 0
	for j, cond := range bv.bc.Items() {
		g, err := bv.restrict(cond, sym)
		if err != nil {
			return fmt.Errorf("%s: %w", cond.Name(), err)
		}
		scale := basis.DofScale(bv.basis, j)
		derived, err := deriveBCs(cb, g, sym, scale)
		if err != nil {
			return err
		}
		proj, err := cb.WithBC(derived)
		if err != nil {
			return err
		}
		if err := proj.Plan(array.Shape{len(x)}, []int{0}, array.Float64); err != nil {
			return err
		}
		in := proj.Forward().Input()
		for k, xk := range x {
			in.Data[k] = complex(scale*g.Eval(symbolic.Vars{sym: xk}), 0)
		}
		shape := array.Shape{1, 1}
		if first {
			shape[c] = len(x)
			bv.bcs[j] = array.FromComplex(shape, in.Data)
		}
		if err := proj.Forward().Execute(basis.ExecOptions{Kind: t.kinds.Resolve(proj.Family(), nil)}); err != nil {
			return err
		}
		shape[c] = cb.N()
		bv.bcsFinal[j] = array.FromComplex(shape, proj.Forward().Output().Data)
		if !first {
			bv.bcs[j] = bv.bcsFinal[j].Clone()
		}
	}
	return nil
}

// restrict is the boundary value of cond as an expression in sym alone
func (bv *BoundaryValues) restrict(cond basis.Condition, sym string) (symbolic.Expr, error) {
	var e symbolic.Expr
	switch v := cond.Value.(type) {
	case basis.Constant:
		e = symbolic.Const(float64(v))
	case basis.SymbolicValue:
		e = symbolic.Subs(v.Expr, bv.space.coors.Psi[bv.axis], endpoint(bv.basis, cond.Side))
		e = symbolic.Subs(e, symbolic.Time, bv.time)
	default:
		return nil, fmt.Errorf("%w: %T values with two non-homogeneous axes", utils.ErrUnimplementedPath, cond.Value)
	}
	for _, s := range e.FreeSymbols() {
		if s != sym {
			return nil, fmt.Errorf("%w: %s depends on %q", utils.ErrConfiguration, e, s)
		}
	}
	return e, nil
}

// deriveBCs evaluates scale*g and its derivatives at the endpoints of b for
// every condition of b. Orders above two need analytic partials in g.
func deriveBCs(b basis.Basis, g symbolic.Expr, sym string, scale float64) (*basis.BoundaryConditions, error) {
	conds := b.BC().Items()
	for i, c := range conds {
		k := basis.DerivativeOrder(c.Key)
		e, ok := symbolic.Analytic(g, sym, k)
		if !ok {
			if k > 2 {
				return nil, fmt.Errorf("%w: order %d derivative of %s needs analytic partials (symbolic.Differentiable)",
					utils.ErrConfiguration, k, g)
			}
			e = symbolic.Diff(g, sym, k)
		}
		conds[i].Value = basis.Constant(scale * e.Eval(symbolic.Vars{sym: endpoint(b, c.Side)}))
	}
	return basis.NewBoundaryConditions(conds...)
}
