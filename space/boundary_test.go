package space

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/basis"
	"github.com/notargets/spectral/mpi"
	"github.com/notargets/spectral/symbolic"
	"github.com/notargets/spectral/utils"
)

func dirichletSpace(t *testing.T, comm *mpi.Comm, left, right basis.BCValue) *TensorProductSpace {
	t.Helper()
	s, err := New(comm, []basis.Basis{
		fourier(t, 8, array.Float64),
		chebyshev(t, 16, basis.WithBC(basis.Dirichlet(left, right))),
	})
	require.NoError(t, err)
	return s
}

func TestConstantDirichlet(t *testing.T) {
	s := dirichletSpace(t, mpi.Self(), basis.Constant(5), basis.Constant(-3))
	assert.Equal(t, []int{1}, s.NonhomogeneousAxes())
	bv := s.BoundaryValues(1)
	require.NotNil(t, bv)
	assert.True(t, bv.HasNonhomogeneousBCs())
	assert.Nil(t, s.BoundaryValues(0))

	fn := func(x []float64) float64 { return 1 - 4*x[1] + math.Sin(x[0])*(1-x[1]*x[1]) }
	c, diff := roundTrip(t, s, physical(t, s, fn))
	assert.Less(t, diff, 1e-12)
	// the mean over x carries the boundary values
	assert.InDelta(t, 5, real(c.At(0, 14)), 1e-12)
	assert.InDelta(t, -3, real(c.At(0, 15)), 1e-12)
	assert.InDelta(t, 0, real(c.At(1, 14)), 1e-12)
}

func TestSetBoundaryDofs(t *testing.T) {
	s := dirichletSpace(t, mpi.Self(), basis.Constant(5), basis.Constant(-3))
	u := array.Zeros(s.Shape(true), s.DType(true))
	require.NoError(t, s.SetBoundaryDofs(u))
	assert.InDelta(t, 5, real(u.At(0, 14)), 1e-12)
	assert.InDelta(t, -3, real(u.At(0, 15)), 1e-12)
	assert.Equal(t, complex(0, 0), u.At(0, 3))

	err := s.SetBoundaryDofs(array.Zeros(array.Shape{2, 2}, array.Complex128))
	assert.True(t, errors.Is(err, utils.ErrShapeMismatch))
}

func TestTimeDependentBoundary(t *testing.T) {
	g := symbolic.Func("1+t", []string{"t"}, func(v symbolic.Vars) float64 { return 1 + v["t"] })
	s := dirichletSpace(t, mpi.Self(), basis.SymbolicValue{Expr: g}, basis.Constant(0))
	bv := s.BoundaryValues(1)
	require.NotNil(t, bv)

	u := array.Zeros(s.Shape(true), s.DType(true))
	require.NoError(t, s.SetBoundaryDofs(u))
	assert.InDelta(t, 1, real(u.At(0, 14)), 1e-12)

	require.NoError(t, s.UpdateBoundaries(2))
	assert.Equal(t, 2.0, bv.Time())
	require.NoError(t, s.SetBoundaryDofs(u))
	assert.InDelta(t, 3, real(u.At(0, 14)), 1e-12)

	before := bv.FinalBCs()
	require.NoError(t, s.UpdateBoundaries(2))
	after := bv.FinalBCs()
	for i := range before {
		assert.Equal(t, before[i].Data, after[i].Data)
	}
}

func TestDistributedDirichlet(t *testing.T) {
	fn := func(x []float64) float64 { return 1 - 4*x[1] + math.Cos(2*x[0])*(1-x[1]*x[1]) }
	err := mpi.Run(2, func(c *mpi.Comm) error {
		s := dirichletSpace(t, c, basis.Constant(5), basis.Constant(-3))
		_, diff := roundTrip(t, s, physical(t, s, fn))
		assert.Less(t, diff, 1e-12, "rank %d", c.Rank())
		return nil
	})
	require.NoError(t, err)
}

func TestCoupledDirichlet(t *testing.T) {
	line := func(name string, sym string, off float64) basis.BCValue {
		return basis.SymbolicValue{Expr: symbolic.Func(name, []string{sym}, func(v symbolic.Vars) float64 {
			return v[sym] + off
		})}
	}
	bases := func() []basis.Basis {
		return []basis.Basis{
			chebyshev(t, 10, basis.WithBC(basis.Dirichlet(line("y-1", "y", -1), line("y+1", "y", 1)))),
			chebyshev(t, 12, basis.WithBC(basis.Dirichlet(line("x-1", "x", -1), line("x+1", "x", 1)))),
		}
	}
	s, err := New(mpi.Self(), bases())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, s.NonhomogeneousAxes())

	fn := func(x []float64) float64 { return x[0] + x[1] + (1-x[0]*x[0])*(1-x[1]*x[1]) }
	_, diff := roundTrip(t, s, physical(t, s, fn))
	assert.Less(t, diff, 1e-10)

	err = mpi.Run(2, func(c *mpi.Comm) error {
		_, err := New(c, bases())
		if !errors.Is(err, utils.ErrUnimplementedPath) {
			t.Errorf("two non-homogeneous axes on two ranks: got %v", err)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSetBoundaryDofsTwice(t *testing.T) {
	s := dirichletSpace(t, mpi.Self(), basis.Constant(5), basis.Constant(-3))
	u := array.Zeros(s.Shape(true), s.DType(true))
	u.Fill(7)
	require.NoError(t, s.SetBoundaryDofs(u))
	once := u.Clone()
	require.NoError(t, s.SetBoundaryDofs(u))
	assert.Equal(t, once.Data, u.Data)
}

func TestDirichlet1DEndpoints(t *testing.T) {
	s, err := New(mpi.Self(), []basis.Basis{
		chebyshev(t, 16, basis.WithBC(basis.Dirichlet(basis.Constant(5), basis.Constant(-3)))),
	})
	require.NoError(t, err)
	c, err := s.Forward().Call(array.Zeros(s.Shape(false), s.DType(false)), nil)
	require.NoError(t, err)
	assert.InDelta(t, 5, real(c.At(14)), 1e-12)
	assert.InDelta(t, -3, real(c.At(15)), 1e-12)
	u, err := s.Backward().Call(c.Clone(), nil)
	require.NoError(t, err)

	x := s.Mesh(basis.MeshQuadrature)[0]
	found := 0
	for j, xj := range x {
		switch {
		case math.Abs(xj+1) < 1e-14:
			assert.InDelta(t, 5, real(u.At(j)), 1e-12)
			found++
		case math.Abs(xj-1) < 1e-14:
			assert.InDelta(t, -3, real(u.At(j)), 1e-12)
			found++
		}
	}
	assert.Equal(t, 2, found, "Gauss-Lobatto mesh holds both endpoints")
}

func TestUpdateKeepsForwardInput(t *testing.T) {
	g := symbolic.Func("1+t", []string{"t"}, func(v symbolic.Vars) float64 { return 1 + v["t"] })
	s := dirichletSpace(t, mpi.Self(), basis.SymbolicValue{Expr: g}, basis.Constant(0))
	u := physical(t, s, func(x []float64) float64 { return math.Sin(x[0]) * (1 - x[1]*x[1]) })
	_, err := s.Forward().Call(u, nil)
	require.NoError(t, err)

	require.NoError(t, s.UpdateBoundaries(1))
	assert.Equal(t, u.Data, s.Forward().Input().Data)
	again, err := s.Forward().Call(nil, nil)
	require.NoError(t, err)
	again = again.Clone()
	fresh, err := s.Forward().Call(u, nil)
	require.NoError(t, err)
	assert.Less(t, array.MaxAbsDiff(again, fresh), 1e-14)
	assert.InDelta(t, 2, real(fresh.At(0, 14)), 1e-12)
}

func TestDeriveBoundaryDerivatives(t *testing.T) {
	bc, err := basis.NewBoundaryConditions(
		basis.Condition{Side: basis.Left, Key: basis.KeyN2},
		basis.Condition{Side: basis.Left, Key: basis.KeyN3},
		basis.Condition{Side: basis.Right, Key: basis.KeyD},
		basis.Condition{Side: basis.Right, Key: basis.KeyN4},
	)
	require.NoError(t, err)
	b := chebyshev(t, 0, basis.WithBC(bc))
	x := symbolic.Symbol("x")
	// g = x^4 + x^3
	g := symbolic.Add(symbolic.Mul(x, x, x, x), symbolic.Mul(x, x, x))
	derived, err := deriveBCs(b, g, "x", 2)
	require.NoError(t, err)
	var got []float64
	for _, c := range derived.Items() {
		got = append(got, float64(c.Value.(basis.Constant)))
	}
	// g''(-1) = 6, g'''(-1) = -18, g(1) = 2, g''''(1) = 24
	assert.InDeltaSlice(t, []float64{12, -36, 4, 48}, got, 1e-12)

	numeric := symbolic.Func("x^4", []string{"x"}, func(v symbolic.Vars) float64 { return math.Pow(v["x"], 4) })
	_, err = deriveBCs(b, numeric, "x", 1)
	assert.True(t, errors.Is(err, utils.ErrConfiguration))
}
