package basis

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/config"
	"github.com/notargets/spectral/symbolic"
	"github.com/notargets/spectral/utils"
)

func plan1D(t *testing.T, b Basis, dt array.DType) {
	t.Helper()
	require.NoError(t, b.Plan(array.Shape{b.PhysicalSize()}, []int{0}, dt))
}

func fill(b Basis, fn func(x float64) complex128) {
	in := b.Forward().Input()
	for j, x := range b.Mesh(MeshQuadrature) {
		in.Set(fn(x), j)
	}
}

func TestQuadratureWeights(t *testing.T) {
	_, w := chebyshevGL(9)
	assert.InDelta(t, math.Pi, floats.Sum(w), 1e-14)
	x, w := legendreGL(7)
	assert.InDelta(t, 2, floats.Sum(w), 1e-13)
	assert.Equal(t, -1.0, x[0])
	assert.Equal(t, 1.0, x[6])
	// Gauss-Lobatto with 7 points integrates x^10 exactly
	var s float64
	for j := range x {
		s += w[j] * math.Pow(x[j], 10)
	}
	assert.InDelta(t, 2.0/11, s, 1e-13)
	x, w = jacobiGauss(0, 0, 5)
	s = 0
	for j := range x {
		s += w[j] * math.Pow(x[j], 8)
	}
	assert.InDelta(t, 2.0/9, s, 1e-13)
	assert.True(t, sort64(x))
}

func sort64(x []float64) bool {
	for i := 1; i < len(x); i++ {
		if x[i] <= x[i-1] {
			return false
		}
	}
	return true
}

func TestFourierR2CSinusoid(t *testing.T) {
	b, err := NewFourier(8, array.Float64)
	require.NoError(t, err)
	plan1D(t, b, array.Float64)
	fill(b, func(x float64) complex128 { return complex(math.Cos(2*x)+math.Sin(3*x), 0) })
	u := b.Forward().Input().Clone()
	require.NoError(t, b.Forward().Execute(ExecOptions{}))
	c := b.Forward().Output()
	require.Equal(t, array.Shape{5}, c.Shape)
	want := []complex128{0, 0, 0.5, -0.5i, 0}
	for k := range want {
		assert.InDelta(t, 0, cmplx.Abs(c.Data[k]-want[k]), 1e-14, "mode %d", k)
	}
	require.NoError(t, b.Backward().Execute(ExecOptions{}))
	assert.Less(t, array.MaxAbsDiff(b.Backward().Output(), u), 1e-14)
}

func TestFourierPaddedRoundTrip(t *testing.T) {
	for _, dt := range []array.DType{array.Float64, array.Complex128} {
		b, err := NewFourier(8, dt, WithPadding(1.5))
		require.NoError(t, err)
		require.Equal(t, 12, b.PhysicalSize())
		plan1D(t, b, dt)
		fill(b, func(x float64) complex128 { return complex(1+math.Cos(x)-2*math.Sin(3*x), 0) })
		u := b.Forward().Input().Clone()
		require.NoError(t, b.Forward().Execute(ExecOptions{}))
		c := b.Forward().Output()
		assert.InDelta(t, 1, real(c.Data[0]), 1e-14)
		assert.InDelta(t, 0.5, real(c.Data[1]), 1e-14)
		require.NoError(t, b.Backward().Execute(ExecOptions{}))
		assert.Less(t, array.MaxAbsDiff(b.Backward().Output(), u), 1e-13, dt.String())
	}
}

func TestFourierC2CAndNyquist(t *testing.T) {
	b, err := NewFourier(8, array.Complex128)
	require.NoError(t, err)
	plan1D(t, b, array.Complex128)
	fill(b, func(x float64) complex128 { return cmplx.Exp(complex(0, -2*x)) })
	require.NoError(t, b.Forward().Execute(ExecOptions{}))
	c := b.Forward().Output()
	assert.InDelta(t, 1, real(c.Data[6]), 1e-14)
	assert.Equal(t, []float64{0, 1, 2, 3, -4, -3, -2, -1}, b.Wavenumbers(false, false))
	assert.Equal(t, 0.0, b.Wavenumbers(false, true)[4])
	mask := b.MaskNyquist()
	assert.Equal(t, 1, countZeros(mask))
	assert.Equal(t, 0.0, mask[4])

	odd, _ := NewFourier(9, array.Float64)
	assert.Nil(t, odd.MaskNyquist())

	// C2C needs complex input
	err = b.GetUnplanned().Plan(array.Shape{8}, []int{0}, array.Float64)
	assert.True(t, errors.Is(err, utils.ErrConfiguration))
}

func countZeros(m []float64) int {
	n := 0
	for _, v := range m {
		if v == 0 {
			n++
		}
	}
	return n
}

func TestChebyshevKindsAgree(t *testing.T) {
	var outs []*array.Array
	for _, kind := range []config.Kind{config.KindFast, config.KindRecursive, config.KindVandermonde} {
		b, err := NewChebyshev(12)
		require.NoError(t, err)
		plan1D(t, b, array.Float64)
		fill(b, func(x float64) complex128 { return complex(math.Exp(x)*math.Sin(3*x), 0) })
		u := b.Forward().Input().Clone()
		require.NoError(t, b.Forward().Execute(ExecOptions{Kind: kind}))
		outs = append(outs, b.Forward().Output().Clone())
		require.NoError(t, b.Backward().Execute(ExecOptions{Kind: kind}))
		assert.Less(t, array.MaxAbsDiff(b.Backward().Output(), u), 1e-12, string(kind))
	}
	assert.Less(t, array.MaxAbsDiff(outs[0], outs[1]), 1e-12)
	assert.Less(t, array.MaxAbsDiff(outs[0], outs[2]), 1e-12)
}

func TestLegendreJacobiRoundTrip(t *testing.T) {
	leg, err := NewLegendre(10)
	require.NoError(t, err)
	jac, err := NewJacobi(10, 0.5, 0.5)
	require.NoError(t, err)
	for _, b := range []Basis{leg, jac} {
		plan1D(t, b, array.Complex128)
		fill(b, func(x float64) complex128 { return complex(math.Cos(x), x*x) })
		u := b.Forward().Input().Clone()
		require.NoError(t, b.Forward().Execute(ExecOptions{}))
		require.NoError(t, b.Backward().Execute(ExecOptions{}))
		assert.Less(t, array.MaxAbsDiff(b.Backward().Output(), u), 1e-12, b.String())
	}
	err = leg.Forward().Execute(ExecOptions{Kind: config.KindFast})
	assert.True(t, errors.Is(err, utils.ErrConfiguration))
}

func TestDirichletNonhomogeneous(t *testing.T) {
	b, err := NewChebyshev(16, WithBC(Dirichlet(Constant(5), Constant(-3))))
	require.NoError(t, err)
	assert.True(t, b.HasNonhomogeneousBCs())
	assert.Equal(t, []string{"LD", "RD"}, b.BC().OrderedNames())
	assert.Equal(t, 14, b.Dim())
	plan1D(t, b, array.Float64)
	exact := func(x float64) float64 { return 1 - 4*x + (1-x*x)*x*x*x }
	fill(b, func(x float64) complex128 { return complex(exact(x), 0) })
	u := b.Forward().Input().Clone()
	require.NoError(t, b.Forward().Execute(ExecOptions{}))
	c := b.Forward().Output()
	assert.InDelta(t, 5, real(c.Data[14]), 1e-14)
	assert.InDelta(t, -3, real(c.Data[15]), 1e-14)
	require.NoError(t, b.Backward().Execute(ExecOptions{}))
	out := b.Backward().Output()
	assert.Less(t, array.MaxAbsDiff(out, u), 1e-12)
	assert.InDelta(t, 5, real(out.Data[0]), 1e-12)
	assert.InDelta(t, -3, real(out.Data[15]), 1e-12)

	// uniform mesh evaluation of the same expansion
	require.NoError(t, b.Forward().Execute(ExecOptions{}))
	require.NoError(t, b.Backward().Execute(ExecOptions{Mesh: Mesh{Kind: MeshUniform}}))
	for j, x := range b.Mesh(MeshUniform) {
		assert.InDelta(t, exact(x), real(out.Data[j]), 1e-12)
	}
}

func TestStencilsSatisfyConditions(t *testing.T) {
	for _, f := range []family{chebyshev{}, legendre{}, jacobi{alpha: 0, beta: 0}} {
		for _, bc := range []*BoundaryConditions{
			Dirichlet(Constant(0), Constant(0)),
			Neumann(Constant(0), Constant(0)),
		} {
			n := 10
			k, err := buildStencil(f, n, bc)
			require.NoError(t, err)
			conds := bc.Items()
			for row := 0; row < n; row++ {
				for i, c := range conds {
					var v float64
					for col := 0; col < n; col++ {
						v += k.At(row, col) * f.boundaryDerivative(col, DerivativeOrder(c.Key), c.Side)
					}
					want := 0.0
					if row == n-len(conds)+i {
						want = 1
					}
					assert.InDelta(t, want, v, 1e-10, "%s %s row %d cond %s", f.name(), bc.Kind(), row, c.Name())
				}
			}
		}
	}
}

func TestBoundaryConditions(t *testing.T) {
	bc, err := NewBoundaryConditions(
		Condition{Right, KeyN, Constant(1)},
		Condition{Left, KeyD, Constant(0)},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"LD", "RN"}, bc.OrderedNames())
	assert.Equal(t, "Mixed", bc.Kind())
	assert.False(t, bc.IsHomogeneous())
	assert.True(t, bc.Homogeneous().IsHomogeneous())
	v, ok := bc.Get(Right, KeyN)
	require.True(t, ok)
	assert.Equal(t, Constant(1), v)
	nb := bc.With(Right, KeyN, Constant(2))
	v, _ = nb.Get(Right, KeyN)
	assert.Equal(t, Constant(2), v)
	v, _ = bc.Get(Right, KeyN)
	assert.Equal(t, Constant(1), v)

	_, err = NewBoundaryConditions(Condition{Left, "Q", Constant(0)})
	assert.Error(t, err)
	_, err = NewBoundaryConditions(Condition{Left, KeyD, nil}, Condition{Left, KeyD, nil})
	assert.Error(t, err)

	e := symbolic.Func("sin(y)", []string{"y"}, func(v symbolic.Vars) float64 { return math.Sin(v["y"]) })
	assert.IsType(t, SymbolicValue{}, ValueOf(e))
	assert.Equal(t, Constant(3), ValueOf(symbolic.Const(3)))
}

func TestDerivations(t *testing.T) {
	b, err := NewLegendre(8, WithBC(Dirichlet(Constant(1), Constant(2))), WithDomain(0, 2))
	require.NoError(t, err)
	assert.True(t, b.GetHomogeneous().BC().IsHomogeneous())
	assert.True(t, b.GetOrthogonal().IsOrthogonal())
	r, err := b.GetRefined(16)
	require.NoError(t, err)
	assert.Equal(t, 16, r.N())
	assert.Equal(t, 2, r.NumBCs())
	_, err = b.GetRefined(2)
	assert.True(t, errors.Is(err, utils.ErrConfiguration))
	d := b.GetDealiased(1.5, false)
	assert.Equal(t, 12, d.PhysicalSize())
	assert.True(t, d.IsPadded())
	assert.Equal(t, "Dirichlet", b.GetTestspace("G").BoundaryCondition())
	assert.Equal(t, "Orthogonal", b.GetTestspace("PG").BoundaryCondition())
	assert.InDelta(t, 1, b.DomainFactor(), 0)
	assert.Equal(t, []float64{0, 1, 2}, b.MapTrueDomain([]float64{-1, 0, 1}))
}

func TestGetAdaptive(t *testing.T) {
	b, err := NewChebyshev(0)
	require.NoError(t, err)
	fun := symbolic.Func("exp(x)", []string{"x"}, func(v symbolic.Vars) float64 { return math.Exp(v["x"]) })
	a, err := GetAdaptive(b, fun, 1e-12, 1e-15)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, a.N(), 10)
	assert.LessOrEqual(t, a.N(), 16)

	plan1D(t, a, array.Float64)
	fill(a, func(x float64) complex128 { return complex(math.Exp(x), 0) })
	require.NoError(t, a.Forward().Execute(ExecOptions{}))
	x := []float64{0.3}
	e := a.EvaluateBasisAll(x)
	var v complex128
	for k := 0; k < a.N(); k++ {
		v += e.At(0, k) * a.Forward().Output().Data[k]
	}
	assert.InDelta(t, math.Exp(0.3), real(v), 1e-10)

	fixed, _ := NewChebyshev(8)
	same, err := GetAdaptive(fixed, fun, 1e-12, 1e-15)
	require.NoError(t, err)
	assert.Same(t, fixed, same)
}

func TestBoundaryArrayShapeError(t *testing.T) {
	vals := ArrayValue{Values: array.FromReal(array.Shape{3}, []float64{1, 2, 3})}
	b, err := NewChebyshev(8, WithBC(Dirichlet(vals, Constant(0))))
	require.NoError(t, err)
	plan1D(t, b, array.Float64)
	fill(b, func(float64) complex128 { return 1 })
	err = b.Forward().Execute(ExecOptions{})
	assert.True(t, errors.Is(err, utils.ErrShapeMismatch), "%v", err)
}

func TestWeightedForward(t *testing.T) {
	fn := func(x float64) complex128 { return complex(x*x*x+1, 0) }
	for _, bc := range []*BoundaryConditions{nil, Dirichlet(Constant(2), Constant(9))} {
		opts := []Option{WithDomain(1, 2)}
		if bc != nil {
			opts = append(opts, WithBC(bc))
		}
		b, err := NewChebyshev(10, opts...)
		require.NoError(t, err)
		b.SetWeight(func(x float64) float64 { return x })
		plan1D(t, b, array.Float64)
		fill(b, fn)
		u := b.Forward().Input().Clone()
		require.NoError(t, b.Forward().Execute(ExecOptions{}))
		require.NoError(t, b.Backward().Execute(ExecOptions{}))
		assert.Less(t, array.MaxAbsDiff(b.Backward().Output(), u), 1e-12, b.BoundaryCondition())
	}
}
