package basis

import (
	"fmt"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/symbolic"
)

// staticBoundary is the provider a composite basis uses on its own. It
// knows constant values, expressions of time only (taken at t=0) and
// arrays that broadcast over the boundary plane; anything else reads as
// zero until a space installs its own provider.
type staticBoundary struct {
	b *Poly
}

func (s *staticBoundary) SetBoundaryDofs(u *array.Array, _ bool) error {
	p := s.b
	nb := p.NumBCs()
	for i, v := range p.bc.OrderedVals() {
		slot := p.n - nb + i
		scale := DofScale(p, i)
		switch v := v.(type) {
		case Constant:
			u.FillAlongAxis(p.axis, slot, complex(scale*float64(v), 0))
		case SymbolicValue:
			val := 0.0
			if syms := v.Expr.FreeSymbols(); len(syms) == 0 || (len(syms) == 1 && syms[0] == symbolic.Time) {
				val = v.Expr.Eval(symbolic.Vars{symbolic.Time: 0})
			}
			u.FillAlongAxis(p.axis, slot, complex(scale*val, 0))
		case ArrayValue:
			vals := v.Values.Clone()
			vals.Scale(complex(scale, 0))
			if err := u.SetAlongAxis(p.axis, slot, vals); err != nil {
				return fmt.Errorf("boundary dof %d of %s: %w", i, p, err)
			}
		default:
			u.FillAlongAxis(p.axis, slot, 0)
		}
	}
	return nil
}

func (s *staticBoundary) AddMassRHS(u *array.Array) error {
	if err := s.SetBoundaryDofs(u, false); err != nil {
		return err
	}
	s.b.SubtractBCMass(u)
	return nil
}

func (s *staticBoundary) HasNonhomogeneousBCs() bool { return s.b.HasNonhomogeneousBCs() }
