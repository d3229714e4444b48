package space

import (
	"fmt"
	"math"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/basis"
	"github.com/notargets/spectral/symbolic"
	"github.com/notargets/spectral/utils"
)

// Refinement selects the point counts of GetRefined
type Refinement struct {
	factor float64
	shape  []int
}

// Scale multiplies the point count of every axis by f
func Scale(f float64) Refinement { return Refinement{factor: f} }

// Shape sets the point count of each axis
func Shape(n ...int) Refinement { return Refinement{shape: append([]int(nil), n...)} }

// deriveOptions rebuilds a sibling space over the same decomposition
func (t *TensorProductSpace) deriveOptions() []Option {
	opts := []Option{WithCoordinates(t.coors), WithLogger(t.logger)}
	if t.settings.dtypeSet || !t.empty {
		opts = append(opts, WithDType(t.dtype))
	}
	switch {
	case t.empty:
		if t.settings.axes != nil {
			opts = append(opts, WithAxes(t.settings.axes...))
		}
		if t.subcomm != nil {
			opts = append(opts, WithSubcomm(t.subcomm))
		}
	case t.settings.fromPencil != nil:
		opts = append(opts, WithAxes(t.axes...), WithBackwardFromPencil(t.spec), WithDType(t.DType(true)))
	default:
		opts = append(opts, WithAxes(t.axes...), WithSubcomm(t.subcomm))
	}
	return opts
}

func (t *TensorProductSpace) mapBases(f func(basis.Basis) (basis.Basis, error)) ([]basis.Basis, error) {
	out := make([]basis.Basis, len(t.bases))
	for i, b := range t.bases {
		c, err := f(b)
		if err != nil {
			return nil, fmt.Errorf("axis %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// GetDealiased returns the space with padded bases whose spectral layout
// matches t exactly. pf holds one factor, or one per axis. t itself is
// returned when nothing is padded or truncated.
func (t *TensorProductSpace) GetDealiased(pf []float64, direct bool) (*TensorProductSpace, error) {
	n := len(t.bases)
	switch len(pf) {
	case 0:
		pf = []float64{1}
		fallthrough
	case 1:
		f := pf[0]
		pf = make([]float64, n)
		for i := range pf {
			pf[i] = f
		}
	case n:
	default:
		return nil, fmt.Errorf("%w: %d padding factors for %d axes", utils.ErrConfiguration, len(pf), n)
	}
	identity := !direct
	for _, f := range pf {
		if math.Abs(f-1) > 1e-8 {
			identity = false
		}
	}
	if identity {
		return t, nil
	}
	bases, err := t.mapBases(func(b basis.Basis) (basis.Basis, error) {
		return b.GetDealiased(pf[b.Axis()], direct), nil
	})
	if err != nil {
		return nil, err
	}
	if t.empty {
		return New(t.comm, bases, t.deriveOptions()...)
	}
	return New(t.comm, bases,
		WithAxisOrder(flatten(t.axes)...),
		WithBackwardFromPencil(t.spec),
		WithDType(t.DType(true)),
		WithCoordinates(t.coors),
		WithLogger(t.logger))
}

// GetRefined returns the space with every basis resized
func (t *TensorProductSpace) GetRefined(r Refinement) (*TensorProductSpace, error) {
	if r.shape != nil && len(r.shape) != len(t.bases) {
		return nil, fmt.Errorf("%w: refine %d axes to %v", utils.ErrConfiguration, len(t.bases), r.shape)
	}
	bases, err := t.mapBases(func(b basis.Basis) (basis.Basis, error) {
		n := int(math.Round(r.factor * float64(b.N())))
		if r.shape != nil {
			n = r.shape[b.Axis()]
		}
		return b.GetRefined(n)
	})
	if err != nil {
		return nil, err
	}
	return New(t.comm, bases, t.deriveOptions()...)
}

// GetOrthogonal returns the space of the orthogonal families
func (t *TensorProductSpace) GetOrthogonal() (*TensorProductSpace, error) {
	bases, _ := t.mapBases(func(b basis.Basis) (basis.Basis, error) { return b.GetOrthogonal(), nil })
	return New(t.comm, bases, t.deriveOptions()...)
}

// GetTestspace returns the Galerkin ("G") or Petrov-Galerkin ("PG") test
// space
func (t *TensorProductSpace) GetTestspace(kind string) (*TensorProductSpace, error) {
	if kind != "G" && kind != "PG" {
		return nil, fmt.Errorf("%w: test space kind %q", utils.ErrConfiguration, kind)
	}
	bases, _ := t.mapBases(func(b basis.Basis) (basis.Basis, error) { return b.GetTestspace(kind), nil })
	return New(t.comm, bases, t.deriveOptions()...)
}

// GetHomogeneous returns the space with every boundary value zero
func (t *TensorProductSpace) GetHomogeneous() (*TensorProductSpace, error) {
	bases, _ := t.mapBases(func(b basis.Basis) (basis.Basis, error) { return b.GetHomogeneous(), nil })
	return New(t.comm, bases, t.deriveOptions()...)
}

// GetUnplanned returns unplanned copies of the bases
func (t *TensorProductSpace) GetUnplanned() []basis.Basis {
	bases, _ := t.mapBases(func(b basis.Basis) (basis.Basis, error) { return b.GetUnplanned(), nil })
	return bases
}

// GetUnplannedSpace rebuilds t from unplanned copies of its bases
func (t *TensorProductSpace) GetUnplannedSpace() (*TensorProductSpace, error) {
	return New(t.comm, t.GetUnplanned(), t.deriveOptions()...)
}

// GetAdaptive sizes every basis declared with zero points by fitting fun
// restricted to its axis, the other coordinates fixed at their domain
// midpoints. t is returned when every basis is already sized.
func (t *TensorProductSpace) GetAdaptive(fun symbolic.Expr, reltol, abstol float64) (*TensorProductSpace, error) {
	sized := true
	for _, b := range t.bases {
		if basis.Adaptive(b) {
			sized = false
		}
	}
	if sized {
		return t, nil
	}
	bases, err := t.mapBases(func(b basis.Basis) (basis.Basis, error) {
		if !basis.Adaptive(b) {
			return b.GetUnplanned(), nil
		}
		f := symbolic.Subs(fun, symbolic.Time, 0)
		for d, o := range t.bases {
			if d == b.Axis() {
				continue
			}
			dom := o.Domain()
			f = symbolic.Subs(f, t.coors.Psi[d], (dom[0]+dom[1])/2)
		}
		return basis.GetAdaptive(b, f, reltol, abstol)
	})
	if err != nil {
		return nil, err
	}
	t.logger.Debug("adaptive sizes", "N", nsOf(bases))
	opts := []Option{WithCoordinates(t.coors), WithLogger(t.logger)}
	if t.settings.axes != nil {
		opts = append(opts, WithAxes(t.settings.axes...))
	}
	if t.settings.dtypeSet {
		opts = append(opts, WithDType(t.settings.dtype))
	}
	if t.settings.subcomm != nil {
		opts = append(opts, WithSubcomm(t.settings.subcomm))
	}
	if t.settings.slab {
		opts = append(opts, WithSlab())
	}
	return New(t.comm, bases, opts...)
}

func nsOf(bases []basis.Basis) []int {
	n := make([]int, len(bases))
	for i, b := range bases {
		n[i] = b.N()
	}
	return n
}

// Convolve transforms a and b backward, multiplies them pointwise and
// transforms the product forward into ab. Aliasing is avoided only when
// the bases are padded.
func (t *TensorProductSpace) Convolve(a, b, ab *array.Array) (*array.Array, error) {
	ua, err := t.backward.Call(a, nil)
	if err != nil {
		return nil, err
	}
	ua = ua.Clone()
	ub, err := t.backward.Call(b, nil)
	if err != nil {
		return nil, err
	}
	if err := ua.MulBroadcast(ub); err != nil {
		return nil, err
	}
	return t.forward.Call(ua, ab)
}

// SetBoundaryDofs writes the fully transformed boundary values of every
// non-homogeneous axis into the spectral array u
func (t *TensorProductSpace) SetBoundaryDofs(u *array.Array) error {
	if !u.Shape.Equal(t.Shape(true)) {
		return fmt.Errorf("%w: boundary dofs into %v, layout is %v", utils.ErrShapeMismatch, u.Shape, t.Shape(true))
	}
	for _, bv := range t.boundary {
		if bv == nil {
			continue
		}
		if err := bv.SetBoundaryDofs(u, true); err != nil {
			return err
		}
	}
	return nil
}

// UpdateBoundaries moves every time-dependent boundary value to time
func (t *TensorProductSpace) UpdateBoundaries(time float64) error {
	for _, bv := range t.boundary {
		if bv == nil {
			continue
		}
		if err := bv.Update(time); err != nil {
			return err
		}
	}
	return nil
}
