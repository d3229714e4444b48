package basis

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/config"
	"github.com/notargets/spectral/utils"
)

// Fourier is the periodic exponential basis exp(ikx) on [0, 2pi). A real
// (R2C) basis stores the N/2+1 non-negative wavenumbers, a complex (C2C)
// basis all N in FFT order. Forward transforms are normalized by the
// number of points, backward transforms are not.
type Fourier struct {
	n      int
	r2c    bool
	domain [2]float64
	pf     float64
	direct bool
	axis   int

	planned  bool
	axes     []int
	rfft     *fourier.FFT
	cfft     map[int]*fourier.CmplxFFT
	fwd, bwd *Transform
	sp       *Transform
}

// NewFourier returns a Fourier basis with n points. dt Float64 selects the
// real-to-complex transform, Complex128 the complex one.
func NewFourier(n int, dt array.DType, opts ...Option) (*Fourier, error) {
	s := defaultSettings()
	for _, o := range opts {
		o(&s)
	}
	if err := s.validate(n); err != nil {
		return nil, err
	}
	if s.bc != nil {
		return nil, fmt.Errorf("%w: Fourier bases are periodic", utils.ErrConfiguration)
	}
	f := &Fourier{n: n, r2c: dt == array.Float64, domain: [2]float64{0, 2 * math.Pi}, pf: s.padding, direct: s.direct}
	if s.domain != nil {
		f.domain = *s.domain
	}
	return f, nil
}

func (f *Fourier) Family() Family { return config.Fourier }

func (f *Fourier) String() string {
	if f.r2c {
		return fmt.Sprintf("R2C(N=%d)", f.n)
	}
	return fmt.Sprintf("C2C(N=%d)", f.n)
}

func (f *Fourier) N() int                      { return f.n }
func (f *Fourier) Dim() int                    { return f.SpectralSize() }
func (f *Fourier) PaddingFactor() float64      { return f.pf }
func (f *Fourier) DealiasDirect() bool         { return f.direct }
func (f *Fourier) Domain() [2]float64          { return f.domain }
func (f *Fourier) ReferenceDomain() [2]float64 { return [2]float64{0, 2 * math.Pi} }
func (f *Fourier) DomainFactor() float64       { return 2 * math.Pi / (f.domain[1] - f.domain[0]) }
func (f *Fourier) Axis() int                   { return f.axis }
func (f *Fourier) SetAxis(axis int)            { f.axis = axis }
func (f *Fourier) PhysicalSize() int           { return physical(f.n, f.pf) }
func (f *Fourier) Slice() array.Range          { return array.Range{Start: 0, Stop: f.SpectralSize()} }
func (f *Fourier) Planned() bool               { return f.planned }
func (f *Fourier) Forward() *Transform         { return f.fwd }
func (f *Fourier) Backward() *Transform        { return f.bwd }
func (f *Fourier) ScalarProduct() *Transform   { return f.sp }
func (f *Fourier) IsOrthogonal() bool          { return true }
func (f *Fourier) IsPadded() bool              { return math.Abs(f.pf-1) > 1e-8 }
func (f *Fourier) IsR2C() bool                 { return f.r2c }
func (f *Fourier) IsC2C() bool                 { return !f.r2c }
func (f *Fourier) BC() *BoundaryConditions     { return nil }
func (f *Fourier) BoundaryCondition() string   { return "Periodic" }
func (f *Fourier) NumBCs() int                 { return 0 }
func (f *Fourier) HasNonhomogeneousBCs() bool  { return false }
func (f *Fourier) SetBoundary(Boundary)        {}
func (f *Fourier) Boundary() Boundary          { return nil }
func (f *Fourier) SubtractBCMass(*array.Array) {}

func (f *Fourier) SpectralSize() int {
	if f.r2c {
		return f.n/2 + 1
	}
	return f.n
}

func (f *Fourier) Points(MeshKind) []float64 {
	m := f.PhysicalSize()
	x := make([]float64, m)
	for j := range x {
		x[j] = 2 * math.Pi * float64(j) / float64(m)
	}
	return x
}

func (f *Fourier) Mesh(kind MeshKind) []float64 { return f.MapTrueDomain(f.Points(kind)) }

func (f *Fourier) MapReferenceDomain(x []float64) []float64 {
	return mapDomain(x, f.domain, f.ReferenceDomain())
}

func (f *Fourier) MapTrueDomain(x []float64) []float64 {
	return mapDomain(x, f.ReferenceDomain(), f.domain)
}

// wavenumber of spectral index i
func (f *Fourier) wavenumber(i int) int {
	if f.r2c || i < (f.n+1)/2 {
		return i
	}
	return i - f.n
}

// Wavenumbers in storage order. scaled multiplies by the domain factor;
// eliminateHighest zeroes the Nyquist wavenumber of an even basis.
func (f *Fourier) Wavenumbers(scaled, eliminateHighest bool) []float64 {
	k := make([]float64, f.SpectralSize())
	for i := range k {
		k[i] = float64(f.wavenumber(i))
	}
	if eliminateHighest && f.n%2 == 0 && f.n > 0 {
		k[f.n/2] = 0
	}
	if scaled {
		d := f.DomainFactor()
		for i := range k {
			k[i] *= d
		}
	}
	return k
}

func (f *Fourier) MaskNyquist() []float64 {
	if f.n%2 != 0 || f.n == 0 {
		return nil
	}
	m := make([]float64, f.SpectralSize())
	for i := range m {
		m[i] = 1
	}
	m[f.n/2] = 0
	return m
}

func (f *Fourier) EvaluateBasisAll(x []float64) *mat.CDense {
	ns := f.SpectralSize()
	out := mat.NewCDense(len(x), ns, nil)
	for i, xi := range x {
		for k := 0; k < ns; k++ {
			out.Set(i, k, cmplx.Exp(complex(0, float64(f.wavenumber(k))*xi)))
		}
	}
	return out
}

func (f *Fourier) Stencil() *mat.Dense {
	ns := f.SpectralSize()
	id := mat.NewDense(ns, ns, nil)
	for i := 0; i < ns; i++ {
		id.Set(i, i, 1)
	}
	return id
}

func (f *Fourier) TrialMass() *mat.Dense {
	g := f.Stencil()
	g.Scale(2*math.Pi, g)
	return g
}

// Plan allocates buffers for local shape. The last entry of axes is the
// axis of this basis; the others are collapsed complex transforms.
func (f *Fourier) Plan(shape array.Shape, axes []int, dt array.DType) error {
	last := axes[len(axes)-1]
	if f.n == 0 {
		return fmt.Errorf("%w: %s has no points", utils.ErrConfiguration, f)
	}
	if shape[last] != f.PhysicalSize() {
		return fmt.Errorf("%w: %s planned with %d points along axis %d, needs %d",
			utils.ErrShapeMismatch, f, shape[last], last, f.PhysicalSize())
	}
	if f.r2c && dt != array.Float64 {
		return fmt.Errorf("%w: %s needs real input, got %s", utils.ErrConfiguration, f, dt)
	}
	if !f.r2c && dt != array.Complex128 {
		return fmt.Errorf("%w: %s needs complex input, got %s", utils.ErrConfiguration, f, dt)
	}
	if len(axes) > 1 && f.IsPadded() {
		return fmt.Errorf("%w: padded %s cannot be collapsed", utils.ErrConfiguration, f)
	}
	f.axis = last
	f.axes = append([]int(nil), axes...)
	m := f.PhysicalSize()
	f.cfft = map[int]*fourier.CmplxFFT{}
	if f.r2c {
		f.rfft = fourier.NewFFT(m)
	} else {
		f.cfft[m] = fourier.NewCmplxFFT(m)
	}
	for _, ax := range axes[:len(axes)-1] {
		if _, ok := f.cfft[shape[ax]]; !ok {
			f.cfft[shape[ax]] = fourier.NewCmplxFFT(shape[ax])
		}
	}
	in := array.Zeros(shape, dt)
	out := array.Zeros(shape.With(last, f.SpectralSize()), array.Complex128)
	f.fwd = &Transform{dir: ForwardDir, basis: f, in: in, out: out, run: f.forward}
	f.sp = &Transform{dir: ScalarDir, basis: f, in: in, out: out, run: f.scalar}
	f.bwd = &Transform{dir: BackwardDir, basis: f, in: out, out: in, run: f.backward}
	f.planned = true
	return nil
}

func (f *Fourier) checkKind(k config.Kind) error {
	if k = resolveKind(config.Fourier, k); k != config.KindFast {
		return errKind(config.Fourier, k)
	}
	return nil
}

// truncate copies the m-point spectrum src into the n-point spectrum dst,
// folding the split Nyquist mode of an even n back together
func (f *Fourier) truncate(src, dst []complex128) {
	m := f.PhysicalSize()
	if f.r2c {
		copy(dst, src[:len(dst)])
		if f.n%2 == 0 && m > f.n {
			dst[f.n/2] *= 2
		}
		return
	}
	for i := range dst {
		k := f.wavenumber(i)
		dst[i] = src[(k+m)%m]
	}
	if f.n%2 == 0 && m > f.n {
		dst[f.n/2] += src[f.n/2]
	}
}

// pad is the inverse of truncate; the Nyquist mode of an even n is split
// symmetrically
func (f *Fourier) pad(src, dst []complex128) {
	m := f.PhysicalSize()
	for i := range dst {
		dst[i] = 0
	}
	if f.r2c {
		copy(dst, src)
		if f.n%2 == 0 && m > f.n {
			dst[f.n/2] /= 2
		}
		return
	}
	for i, v := range src {
		dst[(f.wavenumber(i)+m)%m] = v
	}
	if f.n%2 == 0 && m > f.n {
		h := src[f.n/2] / 2
		dst[m-f.n/2] = h
		dst[f.n/2] = h
	}
}

// complexAxes runs a normalized (forward) or plain (inverse) complex FFT
// in place along each collapsed axis
func (f *Fourier) complexAxes(u *array.Array, forward bool) {
	axes := f.axes[:len(f.axes)-1]
	for i := range axes {
		ax := axes[i]
		if !forward {
			ax = axes[len(axes)-1-i]
		}
		n := u.Shape[ax]
		fft := f.cfft[n]
		tmp := make([]complex128, n)
		scale := complex(1/float64(n), 0)
		inPlaceLines(u, ax, func(line []complex128) {
			if forward {
				fft.Coefficients(tmp, line)
				for k := range line {
					line[k] = tmp[k] * scale
				}
			} else {
				fft.Sequence(tmp, line)
				copy(line, tmp)
			}
		})
	}
}

func (f *Fourier) forward(in, out *array.Array, opts ExecOptions) error {
	if err := f.checkKind(opts.Kind); err != nil {
		return err
	}
	m := f.PhysicalSize()
	scale := complex(1/float64(m), 0)
	if f.r2c {
		re := make([]float64, m)
		coef := make([]complex128, m/2+1)
		eachLine(in, out, f.axis, func(src, dst []complex128) {
			for j, v := range src {
				re[j] = real(v)
			}
			f.rfft.Coefficients(coef, re)
			for k := range coef {
				coef[k] *= scale
			}
			f.truncate(coef, dst)
		})
	} else {
		fft := f.cfft[m]
		coef := make([]complex128, m)
		eachLine(in, out, f.axis, func(src, dst []complex128) {
			fft.Coefficients(coef, src)
			for k := range coef {
				coef[k] *= scale
			}
			f.truncate(coef, dst)
		})
	}
	f.complexAxes(out, true)
	f.applyDealias(out)
	return nil
}

// scalar is the forward transform weighted by the quadrature weight 2pi/m
// of every transformed axis
func (f *Fourier) scalar(in, out *array.Array, opts ExecOptions) error {
	if err := f.forward(in, out, opts); err != nil {
		return err
	}
	out.Scale(complex(math.Pow(2*math.Pi, float64(len(f.axes))), 0))
	return nil
}

func (f *Fourier) applyDealias(u *array.Array) {
	if !f.direct || f.IsPadded() {
		return
	}
	inPlaceLines(u, f.axis, func(line []complex128) {
		for i := range line {
			if k := f.wavenumber(i); 3*k > f.n || -3*k > f.n {
				line[i] = 0
			}
		}
	})
}

func (f *Fourier) backward(in, out *array.Array, opts ExecOptions) error {
	if err := f.checkKind(opts.Kind); err != nil {
		return err
	}
	f.applyDealias(in)
	work := in
	if len(f.axes) > 1 {
		work = in.Clone()
		f.complexAxes(work, false)
	}
	if opts.Mesh.Kind == MeshBasis {
		x := f.MapReferenceDomain(opts.Mesh.Bases[0].Mesh(MeshQuadrature))
		if !samePoints(x, f.Points(MeshQuadrature)) {
			return f.backwardAt(work, out, x)
		}
	}
	m := f.PhysicalSize()
	if f.r2c {
		padded := make([]complex128, m/2+1)
		re := make([]float64, m)
		eachLine(work, out, f.axis, func(src, dst []complex128) {
			f.pad(src, padded)
			f.rfft.Sequence(re, padded)
			for j, v := range re {
				dst[j] = complex(v, 0)
			}
		})
		return nil
	}
	fft := f.cfft[m]
	padded := make([]complex128, m)
	eachLine(work, out, f.axis, func(src, dst []complex128) {
		f.pad(src, padded)
		fft.Sequence(dst, padded)
	})
	return nil
}

// backwardAt evaluates the series at reference points x
func (f *Fourier) backwardAt(in, out *array.Array, x []float64) error {
	if len(x) != out.Shape[f.axis] {
		return fmt.Errorf("%w: mesh of %d points for %d outputs",
			utils.ErrShapeMismatch, len(x), out.Shape[f.axis])
	}
	e := f.EvaluateBasisAll(x)
	eachLine(in, out, f.axis, func(src, dst []complex128) {
		for j := range dst {
			var acc complex128
			for k, c := range src {
				term := c * e.At(j, k)
				acc += term
				if f.r2c && k > 0 && (2*k < f.n) {
					acc += cmplx.Conj(term)
				}
			}
			dst[j] = acc
		}
	})
	return nil
}

func samePoints(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			return false
		}
	}
	return true
}

func (f *Fourier) clone() *Fourier {
	return &Fourier{n: f.n, r2c: f.r2c, domain: f.domain, pf: f.pf, direct: f.direct, axis: f.axis}
}

func (f *Fourier) GetUnplanned() Basis { return f.clone() }

func (f *Fourier) GetDealiased(pf float64, direct bool) Basis {
	c := f.clone()
	c.pf, c.direct = pf, direct
	return c
}

func (f *Fourier) GetRefined(n int) (Basis, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: refine %s to %d points", utils.ErrConfiguration, f, n)
	}
	c := f.clone()
	c.n = n
	return c, nil
}

func (f *Fourier) GetOrthogonal() Basis      { return f.clone() }
func (f *Fourier) GetTestspace(string) Basis { return f.clone() }
func (f *Fourier) GetHomogeneous() Basis     { return f.clone() }

func (f *Fourier) WithBC(bc *BoundaryConditions) (Basis, error) {
	if bc != nil && bc.NumBCs() > 0 {
		return nil, fmt.Errorf("%w: Fourier bases are periodic", utils.ErrConfiguration)
	}
	return f.clone(), nil
}
