// Package symbolic provides the small expression layer used for boundary
// values and metric factors: closures over named symbols that can be
// substituted, differentiated and evaluated on a mesh.
package symbolic

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/diff/fd"
)

// Time is the symbol BoundaryValues substitutes on update
const Time = "t"

// Axis symbols, by axis number
var AxisSymbols = []string{"x", "y", "z", "r", "s"}

// Vars binds symbol names to values
type Vars map[string]float64

// Expr is a scalar expression in named symbols
type Expr interface {
	Eval(vars Vars) float64
	FreeSymbols() []string
	String() string
}

type constant float64

func (c constant) Eval(Vars) float64     { return float64(c) }
func (c constant) FreeSymbols() []string { return nil }
func (c constant) String() string        { return fmt.Sprintf("%g", float64(c)) }

// Const is an expression with no free symbols
func Const(v float64) Expr { return constant(v) }

// Constant returns the value of e when it has no free symbols
func Constant(e Expr) (float64, bool) {
	if len(e.FreeSymbols()) != 0 {
		return 0, false
	}
	return e.Eval(nil), true
}

// IsZero reports whether e is the constant zero
func IsZero(e Expr) bool {
	v, ok := Constant(e)
	return ok && v == 0
}

type function struct {
	name    string
	symbols []string
	fn      func(Vars) float64
	d       func(sym string) Expr
}

func (f *function) Eval(v Vars) float64   { return f.fn(v) }
func (f *function) FreeSymbols() []string { return f.symbols }
func (f *function) String() string        { return f.name }

func (f *function) partial(sym string) Expr {
	if f.d == nil {
		return nil
	}
	return f.d(sym)
}

type differentiable interface {
	partial(sym string) Expr
}

func newFunction(name string, symbols []string, fn func(Vars) float64, d func(string) Expr) Expr {
	s := append([]string(nil), symbols...)
	sort.Strings(s)
	if len(s) == 0 {
		return Const(fn(nil))
	}
	return &function{name: name, symbols: s, fn: fn, d: d}
}

// Func wraps fn as an expression in symbols. name is used for printing.
// Derivatives of a Func are finite differences; see Differentiable.
func Func(name string, symbols []string, fn func(Vars) float64) Expr {
	return newFunction(name, symbols, fn, nil)
}

// Differentiable is Func with analytic partial derivatives. partial returns
// the derivative in one of symbols, itself usually Differentiable so that
// higher orders stay exact, or nil when it is not known.
func Differentiable(name string, symbols []string, fn func(Vars) float64, partial func(sym string) Expr) Expr {
	return newFunction(name, symbols, fn, partial)
}

// Partial is the analytic first derivative of e in sym. ok is false when
// some part of e only supports finite differences.
func Partial(e Expr, sym string) (Expr, bool) {
	if !HasSymbol(e, sym) {
		return Const(0), true
	}
	d, ok := e.(differentiable)
	if !ok {
		return nil, false
	}
	p := d.partial(sym)
	return p, p != nil
}

// Analytic is the order-th analytic partial derivative of e in sym
func Analytic(e Expr, sym string, order int) (Expr, bool) {
	for k := 0; k < order; k++ {
		var ok bool
		if e, ok = Partial(e, sym); !ok {
			return nil, false
		}
	}
	return e, true
}

// Symbol is the identity expression of one symbol
func Symbol(name string) Expr {
	return Differentiable(name, []string{name}, func(v Vars) float64 { return v[name] },
		func(string) Expr { return Const(1) })
}

// Subs binds sym to val. The result no longer has sym as a free symbol.
func Subs(e Expr, sym string, val float64) Expr {
	if !HasSymbol(e, sym) {
		return e
	}
	var rest []string
	for _, s := range e.FreeSymbols() {
		if s != sym {
			rest = append(rest, s)
		}
	}
	return Differentiable(fmt.Sprintf("%s[%s=%g]", e, sym, val), rest, func(v Vars) float64 {
		w := make(Vars, len(v)+1)
		for k, x := range v {
			w[k] = x
		}
		w[sym] = val
		return e.Eval(w)
	}, func(s string) Expr {
		p, ok := Partial(e, s)
		if !ok {
			return nil
		}
		return Subs(p, sym, val)
	})
}

// HasSymbol reports whether sym is free in e
func HasSymbol(e Expr, sym string) bool {
	for _, s := range e.FreeSymbols() {
		if s == sym {
			return true
		}
	}
	return false
}

func symbolsOf(terms []Expr) []string {
	set := map[string]struct{}{}
	for _, f := range terms {
		for _, s := range f.FreeSymbols() {
			set[s] = struct{}{}
		}
	}
	syms := make([]string, 0, len(set))
	for s := range set {
		syms = append(syms, s)
	}
	return syms
}

func names(terms []Expr) []string {
	n := make([]string, len(terms))
	for i, f := range terms {
		n[i] = f.String()
	}
	return n
}

// Mul is the product of the factors
func Mul(factors ...Expr) Expr {
	factors = append([]Expr(nil), factors...)
	return Differentiable(strings.Join(names(factors), "*"), symbolsOf(factors), func(v Vars) float64 {
		p := 1.0
		for _, f := range factors {
			p *= f.Eval(v)
		}
		return p
	}, func(sym string) Expr {
		var terms []Expr
		for i, f := range factors {
			df, ok := Partial(f, sym)
			if !ok {
				return nil
			}
			if IsZero(df) {
				continue
			}
			fs := append([]Expr(nil), factors...)
			fs[i] = df
			terms = append(terms, Mul(fs...))
		}
		return Add(terms...)
	})
}

// Add is the sum of the terms
func Add(terms ...Expr) Expr {
	terms = append([]Expr(nil), terms...)
	if len(terms) == 0 {
		return Const(0)
	}
	return Differentiable(strings.Join(names(terms), "+"), symbolsOf(terms), func(v Vars) float64 {
		s := 0.0
		for _, f := range terms {
			s += f.Eval(v)
		}
		return s
	}, func(sym string) Expr {
		ds := make([]Expr, 0, len(terms))
		for _, f := range terms {
			df, ok := Partial(f, sym)
			if !ok {
				return nil
			}
			ds = append(ds, df)
		}
		return Add(ds...)
	})
}

var (
	third = fd.Formula{
		Stencil:    []fd.Point{{Loc: -2, Coeff: -0.5}, {Loc: -1, Coeff: 1}, {Loc: 1, Coeff: -1}, {Loc: 2, Coeff: 0.5}},
		Derivative: 3,
		Step:       1e-3,
	}
	fourth = fd.Formula{
		Stencil:    []fd.Point{{Loc: -2, Coeff: 1}, {Loc: -1, Coeff: -4}, {Loc: 0, Coeff: 6}, {Loc: 1, Coeff: -4}, {Loc: 2, Coeff: 1}},
		Derivative: 4,
		Step:       1e-2,
	}
)

func formula(order int) fd.Formula {
	switch order {
	case 1:
		return fd.Central
	case 2:
		return fd.Central2nd
	case 3:
		return third
	case 4:
		return fourth
	}
	panic(fmt.Sprintf("symbolic: derivative order %d", order))
}

// Diff is the order-th partial derivative of e in sym, orders 0 to 4.
// Analytic partials are used when every part of e carries them. Otherwise
// the derivative is a central finite difference, good to roughly 1e-9 at
// order one and 1e-7 at order two for smooth functions of unit scale;
// orders three and four keep only a few digits.
func Diff(e Expr, sym string, order int) Expr {
	if d, ok := Analytic(e, sym, order); ok {
		return d
	}
	f := formula(order)
	return Func(fmt.Sprintf("d%d(%s)/d%s", order, e, sym), e.FreeSymbols(), func(v Vars) float64 {
		w := make(Vars, len(v))
		for k, x := range v {
			w[k] = x
		}
		return fd.Derivative(func(x float64) float64 {
			w[sym] = x
			return e.Eval(w)
		}, v[sym], &fd.Settings{Formula: f})
	})
}
