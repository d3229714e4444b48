package space

import (
	"fmt"
	"maps"
	"math"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/basis"
	"github.com/notargets/spectral/config"
	"github.com/notargets/spectral/symbolic"
	"github.com/notargets/spectral/utils"
)

// axisArray is a values slice shaped to broadcast along axis of an n-d array
func axisArray(n, axis int, values []float64) *array.Array {
	shape := make(array.Shape, n)
	for i := range shape {
		shape[i] = 1
	}
	shape[axis] = len(values)
	return array.FromReal(shape, values)
}

// Mesh returns the global true-domain points per axis
func (t *TensorProductSpace) Mesh(kind basis.MeshKind) [][]float64 {
	m := make([][]float64, len(t.bases))
	for i, b := range t.bases {
		m[i] = b.Mesh(kind)
	}
	return m
}

// LocalMesh returns this rank's points per axis, each shaped to broadcast
// over the local physical array, or expanded to it when bcast is set
func (t *TensorProductSpace) LocalMesh(kind basis.MeshKind, bcast bool) ([]*array.Array, error) {
	sl := t.LocalSlice(false)
	shape := t.Shape(false)
	out := make([]*array.Array, len(t.bases))
	for i, b := range t.bases {
		x := b.Mesh(kind)[sl[i].Start:sl[i].Stop]
		out[i] = axisArray(len(t.bases), i, x)
		if bcast {
			a, err := array.BroadcastTo(out[i], shape)
			if err != nil {
				return nil, err
			}
			out[i] = a
		}
	}
	return out, nil
}

// meshVars maps every coordinate symbol to its local quadrature mesh
func (t *TensorProductSpace) meshVars() (map[string]*array.Array, error) {
	m, err := t.LocalMesh(basis.MeshQuadrature, false)
	if err != nil {
		return nil, err
	}
	vars := make(map[string]*array.Array, len(m))
	for i, a := range m {
		vars[t.coors.Psi[i]] = a
	}
	return vars, nil
}

// CartesianMesh returns the local Cartesian position components on the
// quadrature mesh
func (t *TensorProductSpace) CartesianMesh() ([]*array.Array, error) {
	if t.coors.Rv == nil {
		return nil, fmt.Errorf("%w: coordinate system has no position map", utils.ErrConfiguration)
	}
	vars, err := t.meshVars()
	if err != nil {
		return nil, err
	}
	out := make([]*array.Array, len(t.coors.Rv))
	for i, rv := range t.coors.Rv {
		if out[i], err = symbolic.Lambdify(rv, vars, nil, t.Shape(false)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Wavenumbers returns the global wavenumbers per axis
func (t *TensorProductSpace) Wavenumbers(scaled, eliminateHighest bool) [][]float64 {
	k := make([][]float64, len(t.bases))
	for i, b := range t.bases {
		k[i] = b.Wavenumbers(scaled, eliminateHighest)
	}
	return k
}

// LocalWavenumbers returns the wavenumbers of this rank's spectral slice,
// shaped like LocalMesh
func (t *TensorProductSpace) LocalWavenumbers(scaled, eliminateHighest, bcast bool) ([]*array.Array, error) {
	sl := t.LocalSlice(true)
	shape := t.Shape(true)
	out := make([]*array.Array, len(t.bases))
	for i, b := range t.bases {
		k := b.Wavenumbers(scaled, eliminateHighest)[sl[i].Start:sl[i].Stop]
		out[i] = axisArray(len(t.bases), i, k)
		if bcast {
			a, err := array.BroadcastTo(out[i], shape)
			if err != nil {
				return nil, err
			}
			out[i] = a
		}
	}
	return out, nil
}

// NyquistMasks returns the global mask per axis, nil where an axis has no
// Nyquist mode
func (t *TensorProductSpace) NyquistMasks() [][]float64 {
	m := make([][]float64, len(t.bases))
	for i, b := range t.bases {
		m[i] = b.MaskNyquist()
	}
	return m
}

// MaskNyquist returns the local spectral mask zeroing every Nyquist mode,
// or nil when no axis needs one
func (t *TensorProductSpace) MaskNyquist() (*array.Array, error) {
	var mask *array.Array
	sl := t.LocalSlice(true)
	for i, m := range t.NyquistMasks() {
		if m == nil {
			continue
		}
		if mask == nil {
			mask = array.Zeros(t.Shape(true), array.Float64)
			mask.Fill(1)
		}
		if err := mask.MulBroadcast(axisArray(len(t.bases), i, m[sl[i].Start:sl[i].Stop])); err != nil {
			return nil, fmt.Errorf("nyquist mask axis %d: %w", i, err)
		}
	}
	return mask, nil
}

// ApplyMaskNyquist zeroes the Nyquist modes of u. A nil mask is computed.
func (t *TensorProductSpace) ApplyMaskNyquist(u, mask *array.Array) error {
	if mask == nil {
		var err error
		if mask, err = t.MaskNyquist(); err != nil {
			return err
		}
	}
	if mask == nil {
		return nil
	}
	return u.MulBroadcast(mask)
}

// GetMeasuredArray multiplies the physical array u in place by the square
// root of the metric determinant and returns it
func (t *TensorProductSpace) GetMeasuredArray(u *array.Array) (*array.Array, error) {
	if err := t.measure(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (t *TensorProductSpace) measure(u *array.Array) error {
	if t.coors.IsCartesian() {
		return nil
	}
	if c, ok := symbolic.Constant(t.coors.SqrtDetG); ok {
		u.Scale(complex(c, 0))
		return nil
	}
	vars, err := t.meshVars()
	if err != nil {
		return err
	}
	w, err := symbolic.Lambdify(t.coors.SqrtDetG, vars, nil, u.Shape)
	if err != nil {
		return fmt.Errorf("metric: %w", err)
	}
	return u.MulBroadcast(w)
}

// weighted is a basis whose forward projection can carry a mass weight
type weighted interface {
	SetWeight(w func(x float64) float64)
}

// bindMetric splits sqrt(det g) into a constant times one factor per axis
// and hands each polynomial basis its factor as a mass weight, so Forward
// is the projection in the metric-weighted norm and inverts Backward. A
// metric that does not separate, or that varies along a Fourier axis,
// leaves Forward unavailable.
func (t *TensorProductSpace) bindMetric() {
	t.forwardErr = nil
	for _, b := range t.bases {
		if w, ok := b.(weighted); ok {
			w.SetWeight(nil)
		}
	}
	sg := t.coors.SqrtDetG
	if _, ok := symbolic.Constant(sg); ok {
		return
	}
	pts := t.Mesh(basis.MeshQuadrature)
	factors, ok := separate(sg, t.coors.Psi, pts)
	if !ok {
		t.forwardErr = fmt.Errorf("%w: metric %s does not separate by axis", utils.ErrUnimplementedPath, sg)
		return
	}
	for d, f := range factors {
		if f == nil {
			continue
		}
		w, ok := t.bases[d].(weighted)
		if !ok {
			t.forwardErr = fmt.Errorf("%w: metric %s varies along %s axis %d",
				utils.ErrUnimplementedPath, sg, t.bases[d].Family(), d)
			return
		}
		w.SetWeight(f)
	}
	t.logger.Debug("metric weights", "sqrtg", sg.String())
}

const metricSamples = 8

// separate writes sg as c*f_0(x_0)*...*f_n(x_n), normalizing each factor
// to one at a reference point and checking the product on a sampled grid
// of pts. A nil factor is constant.
func separate(sg symbolic.Expr, psi []string, pts [][]float64) ([]func(float64) float64, bool) {
	n := len(psi)
	ref := symbolic.Vars{}
	for d, x := range pts {
		ref[psi[d]] = x[len(x)/2]
	}
	c := sg.Eval(ref)
	if c == 0 {
		return nil, false
	}
	at := func(d int, x float64) float64 {
		v := maps.Clone(ref)
		v[psi[d]] = x
		return sg.Eval(v) / c
	}
	factors := make([]func(float64) float64, n)
	sample := make([][]float64, n)
	for d := range psi {
		if !symbolic.HasSymbol(sg, psi[d]) {
			continue
		}
		varies := false
		for _, x := range pts[d] {
			if math.Abs(at(d, x)-1) > 1e-12 {
				varies = true
				break
			}
		}
		if !varies {
			continue
		}
		step := max(1, len(pts[d])/metricSamples)
		for j := 0; j < len(pts[d]); j += step {
			sample[d] = append(sample[d], pts[d][j])
		}
		factors[d] = func(x float64) float64 { return at(d, x) }
	}
	shape := make(array.Shape, n)
	for d := range shape {
		shape[d] = max(1, len(sample[d]))
	}
	scale := math.Abs(c)
	for o := array.NewOdometer(shape); !o.Done(); o.Next() {
		v := maps.Clone(ref)
		prod := c
		for d, i := range o.Index() {
			if factors[d] == nil {
				continue
			}
			x := sample[d][i]
			v[psi[d]] = x
			prod *= factors[d](x)
		}
		got := sg.Eval(v)
		scale = max(scale, math.Abs(got))
		if math.Abs(got-prod) > 1e-10*scale {
			return nil, false
		}
	}
	return factors, true
}

// UseFixedGauge reports whether every basis is pure Neumann, leaving the
// discrete system singular up to a constant
func (t *TensorProductSpace) UseFixedGauge() bool {
	for _, b := range t.bases {
		if b.BoundaryCondition() != "Neumann" {
			return false
		}
	}
	return true
}

func (t *TensorProductSpace) axesWhere(keep func(int, basis.Basis) bool) []int {
	var out []int
	for i, b := range t.bases {
		if keep(i, b) {
			out = append(out, i)
		}
	}
	return out
}

// NonperiodicAxes are the axes of polynomial bases
func (t *TensorProductSpace) NonperiodicAxes() []int {
	return t.axesWhere(func(_ int, b basis.Basis) bool { return b.Family() != config.Fourier })
}

// NonhomogeneousAxes are the axes whose boundary values are not all zero
func (t *TensorProductSpace) NonhomogeneousAxes() []int {
	return t.axesWhere(func(_ int, b basis.Basis) bool { return b.HasNonhomogeneousBCs() })
}

// NondiagonalAxes are the axes whose modes couple: polynomial axes, and
// Fourier axes the metric depends on
func (t *TensorProductSpace) NondiagonalAxes() []int {
	return t.axesWhere(func(i int, b basis.Basis) bool {
		if b.Family() != config.Fourier {
			return true
		}
		return b.N() > 1 && symbolic.HasSymbol(t.coors.SqrtDetG, t.coors.Psi[i])
	})
}

// DiagonalAxes complements NondiagonalAxes
func (t *TensorProductSpace) DiagonalAxes() []int {
	nd := map[int]bool{}
	for _, ax := range t.NondiagonalAxes() {
		nd[ax] = true
	}
	return t.axesWhere(func(i int, _ basis.Basis) bool { return !nd[i] })
}
