package symbolic

import (
	"fmt"
	"math"
	"testing"

	"github.com/notargets/spectral/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sinXY() Expr {
	return Func("sin(x)*y", []string{"y", "x"}, func(v Vars) float64 {
		return math.Sin(v["x"]) * v["y"]
	})
}

func TestSubsRemovesSymbol(t *testing.T) {
	e := sinXY()
	assert.Equal(t, []string{"x", "y"}, e.FreeSymbols())
	s := Subs(e, "y", 2)
	assert.Equal(t, []string{"x"}, s.FreeSymbols())
	assert.InDelta(t, 2*math.Sin(0.3), s.Eval(Vars{"x": 0.3}), 1e-15)
	c := Subs(s, "x", math.Pi/2)
	v, ok := Constant(c)
	require.True(t, ok)
	assert.InDelta(t, 2, v, 1e-15)
	assert.Same(t, e, Subs(e, "t", 1))
}

func TestDiffOrders(t *testing.T) {
	x := 0.7
	e := Func("x^5", []string{"x"}, func(v Vars) float64 { return math.Pow(v["x"], 5) })
	want := []float64{math.Pow(x, 5), 5 * math.Pow(x, 4), 20 * math.Pow(x, 3), 60 * x * x, 120 * x}
	tol := []float64{0, 1e-7, 1e-4, 1e-3, 1e-2}
	for k := 0; k <= 4; k++ {
		got := Diff(e, "x", k).Eval(Vars{"x": x})
		assert.InDelta(t, want[k], got, tol[k]+1e-12, "order %d", k)
	}
	assert.True(t, IsZero(Diff(e, "y", 1)))
}

// sin3 is the k-th derivative of sin(3x)
func sin3(k int) Expr {
	amp := math.Pow(3, float64(k))
	shift := float64(k) * math.Pi / 2
	return Differentiable(fmt.Sprintf("d%d sin(3x)", k), []string{"x"}, func(v Vars) float64 {
		return amp * math.Sin(3*v["x"]+shift)
	}, func(string) Expr { return sin3(k + 1) })
}

func TestAnalyticDiff(t *testing.T) {
	x := Symbol("x")
	e := Add(Mul(x, x, x, x), sin3(0))
	at := 0.7
	s, c := math.Sin(3*at), math.Cos(3*at)
	want := []float64{
		math.Pow(at, 4) + s,
		4*math.Pow(at, 3) + 3*c,
		12*at*at - 9*s,
		24*at - 27*c,
		24 + 81*s,
	}
	for k := 0; k <= 4; k++ {
		d, ok := Analytic(e, "x", k)
		require.True(t, ok, "order %d", k)
		assert.InDelta(t, want[k], d.Eval(Vars{"x": at}), 1e-12, "order %d", k)
		assert.InDelta(t, want[k], Diff(e, "x", k).Eval(Vars{"x": at}), 1e-12, "order %d", k)
	}

	// partials survive substitution of another symbol
	g := Subs(Mul(Symbol("y"), e), "y", 2)
	d, ok := Analytic(g, "x", 3)
	require.True(t, ok)
	assert.InDelta(t, 2*want[3], d.Eval(Vars{"x": at}), 1e-12)

	_, ok = Analytic(Mul(x, sinXY()), "x", 1)
	assert.False(t, ok)
	d, ok = Analytic(sinXY(), "z", 2)
	require.True(t, ok)
	assert.True(t, IsZero(d))
}

func TestLambdify(t *testing.T) {
	xs := array.FromReal(array.Shape{3, 1}, []float64{0, math.Pi / 2, math.Pi})
	ys := array.FromReal(array.Shape{1, 2}, []float64{1, 2})
	out, err := Lambdify(sinXY(), map[string]*array.Array{"x": xs, "y": ys}, nil, array.Shape{3, 2})
	require.NoError(t, err)
	assert.InDelta(t, 2, real(out.At(1, 1)), 1e-15)
	assert.InDelta(t, 0, real(out.At(0, 1)), 1e-15)

	_, err = Lambdify(sinXY(), map[string]*array.Array{"x": xs}, nil, array.Shape{3, 2})
	assert.Error(t, err)

	out, err = Lambdify(sinXY(), map[string]*array.Array{"x": xs}, Vars{"y": 3}, array.Shape{3, 2})
	require.NoError(t, err)
	assert.InDelta(t, 3, real(out.At(1, 0)), 1e-15)
}

func TestMul(t *testing.T) {
	m := Mul(Symbol("r"), Const(2), Symbol("z"))
	assert.ElementsMatch(t, []string{"r", "z"}, m.FreeSymbols())
	assert.InDelta(t, 12, m.Eval(Vars{"r": 2, "z": 3}), 0)
}
