package coordinates

import (
	"math"
	"testing"

	"github.com/notargets/spectral/symbolic"
)

func TestCartesian(t *testing.T) {
	c := Cartesian(3)
	if !c.IsCartesian() || c.Dims() != 3 || c.AxisOf("z") != 2 || c.AxisOf("t") != -1 {
		t.Fatalf("unexpected cartesian system %+v", c)
	}
	if syms := c.HiProduct().FreeSymbols(); len(syms) != 0 {
		t.Fatalf("cartesian hi product depends on %v", syms)
	}
}

func TestPolar(t *testing.T) {
	c, err := Curvilinear([]string{"r", "s"}, []symbolic.Expr{symbolic.Const(1), symbolic.Symbol("r")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.IsCartesian() {
		t.Fatal("polar system reported cartesian")
	}
	if got := c.SqrtDetG.Eval(symbolic.Vars{"r": 2}); got != 2 {
		t.Fatalf("sqrt det g = %v", got)
	}
	if _, err = Curvilinear([]string{"r"}, nil, nil); err == nil {
		t.Fatal("expected error for mismatched scale factors")
	}
}

func TestWithPosition(t *testing.T) {
	c, err := Curvilinear([]string{"r", "s"}, []symbolic.Expr{symbolic.Const(1), symbolic.Symbol("r")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Rv != nil {
		t.Fatal("curvilinear system without a position map has Rv")
	}
	x := symbolic.Func("r*cos(s)", []string{"r", "s"}, func(v symbolic.Vars) float64 { return v["r"] * math.Cos(v["s"]) })
	y := symbolic.Func("r*sin(s)", []string{"r", "s"}, func(v symbolic.Vars) float64 { return v["r"] * math.Sin(v["s"]) })
	p, err := c.WithPosition([]symbolic.Expr{x, y})
	if err != nil {
		t.Fatal(err)
	}
	if c.Rv != nil || len(p.Rv) != 2 {
		t.Fatalf("WithPosition modified its receiver or lost components: %v %v", c.Rv, p.Rv)
	}
	if got := p.Rv[1].Eval(symbolic.Vars{"r": 2, "s": math.Pi / 2}); math.Abs(got-2) > 1e-15 {
		t.Fatalf("y(2, pi/2) = %v", got)
	}
	if _, err := c.WithPosition(nil); err == nil {
		t.Fatal("expected error for an empty position map")
	}
}
