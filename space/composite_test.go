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
	"github.com/notargets/spectral/utils"
)

func fourier2D(t *testing.T, comm *mpi.Comm) *TensorProductSpace {
	t.Helper()
	s, err := New(comm, []basis.Basis{
		fourier(t, 8, array.Complex128),
		fourier(t, 8, array.Float64),
	})
	require.NoError(t, err)
	return s
}

func TestVectorSpace(t *testing.T) {
	s := fourier2D(t, mpi.Self())
	v, err := NewVectorSpace(s)
	require.NoError(t, err)
	assert.Equal(t, 2, v.NumComponents())
	assert.Equal(t, 1, v.Rank())
	assert.Equal(t, 1, v.TensorRank())
	assert.Equal(t, array.Shape{2, 8, 8}, v.GlobalShape(false))
	assert.Equal(t, array.Shape{2, 8, 5}, v.GlobalShape(true))
	assert.Equal(t, []array.Shape{{8, 5}, {8, 5}}, v.Shape(true))
	assert.Equal(t, 2*s.Dim(), v.Dim())
	assert.Equal(t, [][]int{{0, 0}, {8, 5}, {16, 10}}, v.Offsets())

	_, err = NewVectorSpace(s, s, s)
	assert.True(t, errors.Is(err, utils.ErrConfiguration))
}

func TestTensorSpaceFlattens(t *testing.T) {
	s := fourier2D(t, mpi.Self())
	ts, err := NewTensorSpace(s)
	require.NoError(t, err)
	assert.Equal(t, 4, ts.NumComponents())
	assert.Equal(t, 2, ts.TensorRank())
	assert.Len(t, ts.Leaves(), 4)
	for _, l := range ts.Leaves() {
		assert.Same(t, s, l)
	}
	assert.Len(t, ts.Forward().Components(), 4)

	mixed, err := NewComposite(s, ts)
	require.NoError(t, err)
	assert.Equal(t, 5, mixed.NumComponents())
	assert.Equal(t, -1, mixed.TensorRank())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, mixed.NdiagCumDofs())
}

func TestCompositeRejectsMixedDimensions(t *testing.T) {
	s := fourier2D(t, mpi.Self())
	l, err := New(mpi.Self(), []basis.Basis{fourier(t, 8, array.Float64)})
	require.NoError(t, err)
	_, err = NewComposite(s, l)
	assert.True(t, errors.Is(err, utils.ErrConfiguration))
}

func TestCompositeRoundTrip(t *testing.T) {
	s := fourier2D(t, mpi.Self())
	v, err := NewVectorSpace(s)
	require.NoError(t, err)
	u := []*array.Array{
		physical(t, s, func(x []float64) float64 { return math.Sin(x[0]) }),
		physical(t, s, func(x []float64) float64 { return math.Cos(2 * x[1]) }),
	}
	c, err := v.Forward().Call(u, nil, nil)
	require.NoError(t, err)
	require.Len(t, c, 2)
	back, err := v.Backward().Call(c, nil, nil)
	require.NoError(t, err)
	for i := range u {
		assert.Less(t, array.MaxAbsDiff(u[i], back[i]), 1e-13, "component %d", i)
	}
	assert.InDelta(t, 0.5, real(c[1].At(0, 2)), 1e-14)

	vals, err := v.Eval([][]float64{{0.4}, {1.2}}, c, nil, EvalPrecomputed)
	require.NoError(t, err)
	assert.InDelta(t, math.Sin(0.4), real(vals[0].Data[0]), 1e-12)
	assert.InDelta(t, math.Cos(2.4), real(vals[1].Data[0]), 1e-12)

	_, err = v.Forward().Call(u[:1], nil, nil)
	assert.True(t, errors.Is(err, utils.ErrShapeMismatch))
}

func TestCompositeDerivedSpaces(t *testing.T) {
	s := fourier2D(t, mpi.Self())
	v, err := NewVectorSpace(s)
	require.NoError(t, err)

	same, err := v.GetDealiased([]float64{1}, false)
	require.NoError(t, err)
	assert.Same(t, v, same)

	r, err := v.GetRefined(Scale(2))
	require.NoError(t, err)
	assert.Same(t, r.Child(0), r.Child(1))
	assert.Equal(t, array.Shape{2, 16, 16}, r.GlobalShape(false))

	ts, err := NewTensorSpace(v)
	require.NoError(t, err)
	p, err := ts.GetDealiased([]float64{1.5}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, p.TensorRank())
	assert.Equal(t, array.Shape{4, 12, 12}, p.GlobalShape(false))
	assert.True(t, p.CompatibleBase(p))
	assert.False(t, p.CompatibleBase(ts))

	plain, err := NewComposite(s, s)
	require.NoError(t, err)
	_, err = plain.GetRefined(Scale(2))
	assert.True(t, errors.Is(err, utils.ErrUnimplementedPath))
}

func TestCompositeConvolve(t *testing.T) {
	s := fourier2D(t, mpi.Self())
	v, err := NewVectorSpace(s)
	require.NoError(t, err)
	one := physical(t, s, func([]float64) float64 { return 2 })
	c, err := s.Forward().Call(one, nil)
	require.NoError(t, err)
	a := []*array.Array{c.Clone(), c.Clone()}
	ab, err := v.Convolve(a, a, nil)
	require.NoError(t, err)
	for i := range ab {
		assert.InDelta(t, 4, real(ab[i].At(0, 0)), 1e-13)
	}
}
