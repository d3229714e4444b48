package basis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/symbolic"
	"github.com/notargets/spectral/utils"
)

// Side of the 1D domain a condition applies to
type Side uint8

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Condition keys: value and derivatives of order one to four
const (
	KeyD  = "D"
	KeyN  = "N"
	KeyN2 = "N2"
	KeyN3 = "N3"
	KeyN4 = "N4"
)

var keyOrder = map[string]int{KeyD: 0, KeyN: 1, KeyN2: 2, KeyN3: 3, KeyN4: 4}

// DerivativeOrder is the derivative a condition key constrains
func DerivativeOrder(key string) int { return keyOrder[key] }

// BCValue is the value of one boundary condition. The variants are
// Constant, ArrayValue, SymbolicValue and Projection.
type BCValue interface {
	bcValue()
	String() string
}

// Constant is a fixed number
type Constant float64

// ArrayValue is an explicit array over the boundary plane. Its shape has
// length one along the bound axis and broadcasts over the others.
type ArrayValue struct {
	Values *array.Array
}

// SymbolicValue is an expression in the other coordinates and time
type SymbolicValue struct {
	Expr symbolic.Expr
}

// Projector is a function living in another space that can be re-projected
// and point-evaluated
type Projector interface {
	Project() error
	EvalAt(points [][]float64) ([]float64, error)
}

// Projection evaluates a projected function on the boundary
type Projection struct {
	Source Projector
}

func (Constant) bcValue()      {}
func (ArrayValue) bcValue()    {}
func (SymbolicValue) bcValue() {}
func (Projection) bcValue()    {}

func (c Constant) String() string      { return fmt.Sprintf("%g", float64(c)) }
func (a ArrayValue) String() string    { return fmt.Sprintf("array%v", a.Values.Shape) }
func (s SymbolicValue) String() string { return s.Expr.String() }
func (Projection) String() string      { return "projection" }

// ValueOf wraps e, folding constant expressions into Constant
func ValueOf(e symbolic.Expr) BCValue {
	if v, ok := symbolic.Constant(e); ok {
		return Constant(v)
	}
	return SymbolicValue{Expr: e}
}

// IsZero reports whether v is the constant zero or an all-zero array
func IsZero(v BCValue) bool {
	switch v := v.(type) {
	case Constant:
		return v == 0
	case ArrayValue:
		return v.Values == nil || v.Values.MaxAbs() == 0
	}
	return false
}

// DofScale converts the true-domain value of condition i of b into the
// boundary dof, which constrains the reference-domain derivative
func DofScale(b Basis, i int) float64 {
	order := DerivativeOrder(b.BC().Items()[i].Key)
	return math.Pow(1/b.DomainFactor(), float64(order))
}

// Condition is one named boundary condition
type Condition struct {
	Side  Side
	Key   string
	Value BCValue
}

// Name is the short ordered name, e.g. "LD" or "RN2"
func (c Condition) Name() string {
	return strings.ToUpper(c.Side.String()[:1]) + c.Key
}

// BoundaryConditions is the ordered set of conditions of a composite basis.
// Left conditions come first, each side ordered by derivative.
type BoundaryConditions struct {
	conds []Condition
}

// NewBoundaryConditions validates and orders conds
func NewBoundaryConditions(conds ...Condition) (*BoundaryConditions, error) {
	seen := map[string]bool{}
	out := make([]Condition, 0, len(conds))
	for _, c := range conds {
		if _, ok := keyOrder[c.Key]; !ok {
			return nil, fmt.Errorf("%w: unknown boundary key %q", utils.ErrConfiguration, c.Key)
		}
		if seen[c.Name()] {
			return nil, fmt.Errorf("%w: duplicate boundary condition %s", utils.ErrConfiguration, c.Name())
		}
		if c.Value == nil {
			c.Value = Constant(0)
		}
		seen[c.Name()] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Side != out[j].Side {
			return out[i].Side < out[j].Side
		}
		return keyOrder[out[i].Key] < keyOrder[out[j].Key]
	})
	return &BoundaryConditions{conds: out}, nil
}

// Dirichlet fixes the value on both sides
func Dirichlet(left, right BCValue) *BoundaryConditions {
	bc, _ := NewBoundaryConditions(Condition{Left, KeyD, left}, Condition{Right, KeyD, right})
	return bc
}

// Neumann fixes the first derivative on both sides
func Neumann(left, right BCValue) *BoundaryConditions {
	bc, _ := NewBoundaryConditions(Condition{Left, KeyN, left}, Condition{Right, KeyN, right})
	return bc
}

func (b *BoundaryConditions) NumBCs() int { return len(b.conds) }

// Items returns the conditions in order
func (b *BoundaryConditions) Items() []Condition {
	return append([]Condition(nil), b.conds...)
}

// OrderedVals returns the values in condition order
func (b *BoundaryConditions) OrderedVals() []BCValue {
	v := make([]BCValue, len(b.conds))
	for i, c := range b.conds {
		v[i] = c.Value
	}
	return v
}

// OrderedNames returns the short names in condition order
func (b *BoundaryConditions) OrderedNames() []string {
	n := make([]string, len(b.conds))
	for i, c := range b.conds {
		n[i] = c.Name()
	}
	return n
}

// Get looks up the value of one condition
func (b *BoundaryConditions) Get(side Side, key string) (BCValue, bool) {
	for _, c := range b.conds {
		if c.Side == side && c.Key == key {
			return c.Value, true
		}
	}
	return nil, false
}

// With returns a copy with the value of (side, key) replaced
func (b *BoundaryConditions) With(side Side, key string, v BCValue) *BoundaryConditions {
	c := b.Clone()
	for i := range c.conds {
		if c.conds[i].Side == side && c.conds[i].Key == key {
			c.conds[i].Value = v
		}
	}
	return c
}

// Clone copies the descriptor; values are shared
func (b *BoundaryConditions) Clone() *BoundaryConditions {
	return &BoundaryConditions{conds: b.Items()}
}

// Homogeneous returns a copy with every value zero
func (b *BoundaryConditions) Homogeneous() *BoundaryConditions {
	c := b.Clone()
	for i := range c.conds {
		c.conds[i].Value = Constant(0)
	}
	return c
}

// IsHomogeneous reports whether every value is the constant zero
func (b *BoundaryConditions) IsHomogeneous() bool {
	for _, c := range b.conds {
		if !IsZero(c.Value) {
			return false
		}
	}
	return true
}

// Kind is "Dirichlet" or "Neumann" when all keys agree, else "Mixed"
func (b *BoundaryConditions) Kind() string {
	d, n := 0, 0
	for _, c := range b.conds {
		switch c.Key {
		case KeyD:
			d++
		case KeyN:
			n++
		}
	}
	switch {
	case d == len(b.conds):
		return "Dirichlet"
	case n == len(b.conds):
		return "Neumann"
	}
	return "Mixed"
}

func (b *BoundaryConditions) String() string {
	parts := make([]string, len(b.conds))
	for i, c := range b.conds {
		parts[i] = fmt.Sprintf("%s=%s", c.Name(), c.Value)
	}
	return "{" + strings.Join(parts, " ") + "}"
}
