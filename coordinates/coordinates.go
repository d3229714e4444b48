// Package coordinates describes the coordinate system of a tensor product
// space: one symbol per axis, the square root of the metric determinant and
// the scale factors.
package coordinates

import (
	"fmt"

	"github.com/notargets/spectral/symbolic"
	"github.com/notargets/spectral/utils"
)

// System is a (possibly curvilinear) coordinate system
type System struct {
	Psi      []string        // coordinate symbol per axis
	SqrtDetG symbolic.Expr   // sqrt(det g)
	Hi       []symbolic.Expr // scale factor per axis
	// Rv is the Cartesian position as functions of Psi. nil when only the
	// metric is known.
	Rv []symbolic.Expr
}

// Cartesian is the unit-metric system on n axes named x, y, z, r, s
func Cartesian(n int) *System {
	s := &System{
		Psi:      append([]string(nil), symbolic.AxisSymbols[:n]...),
		SqrtDetG: symbolic.Const(1),
		Hi:       make([]symbolic.Expr, n),
		Rv:       make([]symbolic.Expr, n),
	}
	for i := range s.Hi {
		s.Hi[i] = symbolic.Const(1)
		s.Rv[i] = symbolic.Symbol(s.Psi[i])
	}
	return s
}

// Curvilinear builds a system from its metric factors. sqrtDetG may be nil,
// in which case the product of the scale factors is used.
func Curvilinear(psi []string, hi []symbolic.Expr, sqrtDetG symbolic.Expr) (*System, error) {
	if len(psi) != len(hi) {
		return nil, fmt.Errorf("%w: %d coordinates but %d scale factors",
			utils.ErrConfiguration, len(psi), len(hi))
	}
	if sqrtDetG == nil {
		sqrtDetG = symbolic.Mul(hi...)
	}
	return &System{Psi: append([]string(nil), psi...), SqrtDetG: sqrtDetG, Hi: hi}, nil
}

func (s *System) Dims() int { return len(s.Psi) }

// IsCartesian reports whether every scale factor is the constant one
func (s *System) IsCartesian() bool {
	for _, h := range s.Hi {
		if v, ok := symbolic.Constant(h); !ok || v != 1 {
			return false
		}
	}
	v, ok := symbolic.Constant(s.SqrtDetG)
	return ok && v == 1
}

// HiProduct is the product of all scale factors
func (s *System) HiProduct() symbolic.Expr {
	return symbolic.Mul(s.Hi...)
}

// AxisOf returns the axis whose coordinate symbol is sym, or -1
func (s *System) AxisOf(sym string) int {
	for i, p := range s.Psi {
		if p == sym {
			return i
		}
	}
	return -1
}

// WithPosition returns a copy of s with the Cartesian position map rv
func (s *System) WithPosition(rv []symbolic.Expr) (*System, error) {
	if len(rv) == 0 {
		return nil, fmt.Errorf("%w: empty position map", utils.ErrConfiguration)
	}
	c := *s
	c.Rv = append([]symbolic.Expr(nil), rv...)
	return &c, nil
}
