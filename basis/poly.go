package basis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/config"
	"github.com/notargets/spectral/utils"
)

// Poly is a polynomial basis on Gauss or Gauss-Lobatto points. Without
// boundary conditions it is the orthogonal family itself; with them each
// interior trial function is P_k plus a combination of the next NumBCs
// polynomials that satisfies the homogeneous conditions, and the last
// NumBCs slots hold boundary functions with unit value in one condition.
type Poly struct {
	fam      family
	n        int
	domain   [2]float64
	pf       float64
	direct   bool
	axis     int
	bc       *BoundaryConditions
	boundary Boundary
	stencil  *mat.Dense // nil for orthogonal
	weight   func(float64) float64

	planned  bool
	x, w     []float64
	wf       []float64 // weight on the quadrature mesh, nil when unweighted
	v        *mat.Dense // orthogonal Vandermonde, m by n
	vt       *mat.Dense // trial Vandermonde, m by n
	gram     *mat.Dense
	chol     mat.Cholesky // interior (or full) Gram factorization
	bcMass   *mat.Dense   // interior rows by boundary columns
	dct      *fourier.DCT
	fwd, bwd *Transform
	sp       *Transform
}

// NewChebyshev returns a Chebyshev basis on n Gauss-Lobatto points
func NewChebyshev(n int, opts ...Option) (*Poly, error) {
	return newPoly(chebyshev{}, n, opts...)
}

// NewLegendre returns a Legendre basis on n Gauss-Lobatto points
func NewLegendre(n int, opts ...Option) (*Poly, error) {
	return newPoly(legendre{}, n, opts...)
}

// NewJacobi returns an orthonormal Jacobi basis P^(alpha,beta) on n Gauss
// points
func NewJacobi(n int, alpha, beta float64, opts ...Option) (*Poly, error) {
	if alpha <= -1 || beta <= -1 {
		return nil, fmt.Errorf("%w: Jacobi parameters (%g, %g) must exceed -1",
			utils.ErrConfiguration, alpha, beta)
	}
	return newPoly(jacobi{alpha: alpha, beta: beta}, n, opts...)
}

func newPoly(f family, n int, opts ...Option) (*Poly, error) {
	s := defaultSettings()
	for _, o := range opts {
		o(&s)
	}
	if err := s.validate(n); err != nil {
		return nil, err
	}
	p := &Poly{fam: f, n: n, domain: [2]float64{-1, 1}, pf: s.padding, direct: s.direct}
	if s.domain != nil {
		p.domain = *s.domain
	}
	if err := p.setBC(s.bc); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Poly) setBC(bc *BoundaryConditions) error {
	p.bc, p.stencil, p.boundary = nil, nil, nil
	if bc == nil || bc.NumBCs() == 0 {
		return nil
	}
	p.bc = bc
	if p.n == 0 {
		// sized later by GetAdaptive
		p.boundary = &staticBoundary{b: p}
		return nil
	}
	k, err := buildStencil(p.fam, p.n, bc)
	if err != nil {
		return err
	}
	p.stencil = k
	p.boundary = &staticBoundary{b: p}
	return nil
}

// buildStencil expresses every trial function in the orthogonal family
func buildStencil(f family, n int, bc *BoundaryConditions) (*mat.Dense, error) {
	conds := bc.Items()
	nb := len(conds)
	if n < nb+1 {
		return nil, fmt.Errorf("%w: %d points cannot carry %d boundary conditions",
			utils.ErrConfiguration, n, nb)
	}
	l := func(i, k int) float64 {
		return f.boundaryDerivative(k, DerivativeOrder(conds[i].Key), conds[i].Side)
	}
	k := mat.NewDense(n, n, nil)
	a := mat.NewDense(nb, nb, nil)
	rhs := mat.NewVecDense(nb, nil)
	var coef mat.VecDense
	for row := 0; row < n-nb; row++ {
		for i := 0; i < nb; i++ {
			for m := 1; m <= nb; m++ {
				a.Set(i, m-1, l(i, row+m))
			}
			rhs.SetVec(i, -l(i, row))
		}
		if err := coef.SolveVec(a, rhs); err != nil {
			return nil, fmt.Errorf("%w: %s stencil row %d: %v", utils.ErrConfiguration, bc, row, err)
		}
		k.Set(row, row, 1)
		for m := 1; m <= nb; m++ {
			k.Set(row, row+m, coef.AtVec(m-1))
		}
	}
	// boundary functions from the lowest polynomials the conditions see
	for off := 0; off <= 2 && off+nb <= n; off++ {
		for i := 0; i < nb; i++ {
			for j := 0; j < nb; j++ {
				a.Set(i, j, l(i, off+j))
			}
		}
		if math.Abs(mat.Det(a)) < 1e-10 {
			continue
		}
		var inv mat.Dense
		if err := inv.Inverse(a); err != nil {
			continue
		}
		for j := 0; j < nb; j++ {
			for m := 0; m < nb; m++ {
				k.Set(n-nb+j, off+m, inv.At(m, j))
			}
		}
		return k, nil
	}
	return nil, fmt.Errorf("%w: no boundary functions satisfy %s", utils.ErrConfiguration, bc)
}

func (p *Poly) Family() Family { return p.fam.name() }

func (p *Poly) String() string {
	name := string(p.fam.name())
	if p.bc != nil {
		return fmt.Sprintf("%s(N=%d, %s%s)", name, p.n, p.bc.Kind(), p.bc)
	}
	return fmt.Sprintf("%s(N=%d)", name, p.n)
}

func (p *Poly) N() int                      { return p.n }
func (p *Poly) Dim() int                    { return p.n - p.NumBCs() }
func (p *Poly) PaddingFactor() float64      { return p.pf }
func (p *Poly) DealiasDirect() bool         { return p.direct }
func (p *Poly) Domain() [2]float64          { return p.domain }
func (p *Poly) ReferenceDomain() [2]float64 { return [2]float64{-1, 1} }
func (p *Poly) DomainFactor() float64       { return 2 / (p.domain[1] - p.domain[0]) }
func (p *Poly) Axis() int                   { return p.axis }
func (p *Poly) SetAxis(axis int)            { p.axis = axis }
func (p *Poly) PhysicalSize() int           { return physical(p.n, p.pf) }
func (p *Poly) SpectralSize() int           { return p.n }
func (p *Poly) Slice() array.Range          { return array.Range{Start: 0, Stop: p.Dim()} }
func (p *Poly) Planned() bool               { return p.planned }
func (p *Poly) Forward() *Transform         { return p.fwd }
func (p *Poly) Backward() *Transform        { return p.bwd }
func (p *Poly) ScalarProduct() *Transform   { return p.sp }
func (p *Poly) IsOrthogonal() bool          { return p.bc == nil }
func (p *Poly) IsPadded() bool              { return math.Abs(p.pf-1) > 1e-8 }
func (p *Poly) IsR2C() bool                 { return false }
func (p *Poly) IsC2C() bool                 { return false }
func (p *Poly) BC() *BoundaryConditions     { return p.bc }
func (p *Poly) Boundary() Boundary          { return p.boundary }
func (p *Poly) MaskNyquist() []float64      { return nil }

func (p *Poly) NumBCs() int {
	if p.bc == nil {
		return 0
	}
	return p.bc.NumBCs()
}

func (p *Poly) BoundaryCondition() string {
	if p.bc == nil {
		return "Orthogonal"
	}
	return p.bc.Kind()
}

func (p *Poly) HasNonhomogeneousBCs() bool {
	return p.bc != nil && !p.bc.IsHomogeneous()
}

// SetBoundary installs the provider of boundary-dof values. nil restores
// the built-in provider that only knows constant values.
func (p *Poly) SetBoundary(b Boundary) {
	if p.bc == nil {
		return
	}
	if b == nil {
		b = &staticBoundary{b: p}
	}
	p.boundary = b
}

func (p *Poly) Points(kind MeshKind) []float64 {
	m := p.PhysicalSize()
	if kind == MeshUniform {
		return linspace(-1, 1, m)
	}
	x, _ := p.fam.quadrature(m)
	return x
}

func (p *Poly) Mesh(kind MeshKind) []float64 {
	return p.MapTrueDomain(p.Points(kind))
}

func (p *Poly) MapReferenceDomain(x []float64) []float64 {
	return mapDomain(x, p.domain, p.ReferenceDomain())
}

func (p *Poly) MapTrueDomain(x []float64) []float64 {
	return mapDomain(x, p.ReferenceDomain(), p.domain)
}

func (p *Poly) Wavenumbers(bool, bool) []float64 {
	k := make([]float64, p.n)
	for i := range k {
		k[i] = float64(i)
	}
	return k
}

// trialAt is the len(x) by n matrix of trial functions at x
func (p *Poly) trialAt(x []float64) *mat.Dense {
	v := vandermonde(p.fam, x, p.n)
	if p.stencil == nil {
		return v
	}
	var vt mat.Dense
	vt.Mul(v, p.stencil.T())
	return &vt
}

func (p *Poly) EvaluateBasisAll(x []float64) *mat.CDense {
	t := p.trialAt(x)
	out := mat.NewCDense(len(x), p.n, nil)
	for i := range x {
		for k := 0; k < p.n; k++ {
			out.Set(i, k, complex(t.At(i, k), 0))
		}
	}
	return out
}

func (p *Poly) Stencil() *mat.Dense {
	if p.stencil == nil {
		id := mat.NewDense(p.n, p.n, nil)
		for i := 0; i < p.n; i++ {
			id.Set(i, i, 1)
		}
		return id
	}
	return mat.DenseCopyOf(p.stencil)
}

// TrialMass is available after Plan
func (p *Poly) TrialMass() *mat.Dense {
	if !p.planned {
		p.buildMatrices()
	}
	return mat.DenseCopyOf(p.gram)
}

// SetWeight makes Forward the projection in the norm weighted by w, a
// positive function of the true-domain coordinate. The mass matrices
// carry the weight; ScalarProduct does not. nil removes it. Takes effect
// at the next Plan.
func (p *Poly) SetWeight(w func(x float64) float64) {
	p.weight = w
	p.planned = false
}

func (p *Poly) buildMatrices() {
	m := p.PhysicalSize()
	p.x, p.w = p.fam.quadrature(m)
	p.wf = nil
	if p.weight != nil {
		p.wf = make([]float64, m)
		for j, x := range p.MapTrueDomain(p.x) {
			p.wf[j] = p.weight(x)
		}
	}
	p.v = vandermonde(p.fam, p.x, p.n)
	p.vt = p.v
	if p.stencil != nil {
		var vt mat.Dense
		vt.Mul(p.v, p.stencil.T())
		p.vt = &vt
	}
	wvt := mat.DenseCopyOf(p.vt)
	for i := 0; i < m; i++ {
		wi := p.w[i]
		if p.wf != nil {
			wi *= p.wf[i]
		}
		for k := 0; k < p.n; k++ {
			wvt.Set(i, k, wvt.At(i, k)*wi)
		}
	}
	p.gram = mat.NewDense(p.n, p.n, nil)
	p.gram.Mul(p.vt.T(), wvt)
	ni := p.Dim()
	g := mat.NewSymDense(ni, nil)
	for i := 0; i < ni; i++ {
		for j := i; j < ni; j++ {
			g.SetSym(i, j, (p.gram.At(i, j)+p.gram.At(j, i))/2)
		}
	}
	if !p.chol.Factorize(g) {
		panic(fmt.Sprintf("basis: %s mass matrix is not positive definite", p))
	}
	if nb := p.NumBCs(); nb > 0 {
		p.bcMass = mat.DenseCopyOf(p.gram.Slice(0, ni, ni, p.n))
	}
	p.dct = nil
	if _, ok := p.fam.(chebyshev); ok && m >= 2 {
		p.dct = fourier.NewDCT(m)
	}
}

// Plan allocates buffers for local shape, transformed along axes[0]
func (p *Poly) Plan(shape array.Shape, axes []int, dt array.DType) error {
	if len(axes) != 1 {
		return fmt.Errorf("%w: %s transforms one axis, got %v", utils.ErrConfiguration, p, axes)
	}
	ax := axes[0]
	if shape[ax] != p.PhysicalSize() {
		return fmt.Errorf("%w: %s planned with %d points along axis %d, needs %d",
			utils.ErrShapeMismatch, p, shape[ax], ax, p.PhysicalSize())
	}
	if p.n == 0 {
		return fmt.Errorf("%w: %s has no points", utils.ErrConfiguration, p)
	}
	p.axis = ax
	p.buildMatrices()
	in := array.Zeros(shape, dt)
	out := array.Zeros(shape.With(ax, p.n), dt)
	p.fwd = &Transform{dir: ForwardDir, basis: p, in: in, out: out, run: p.forward}
	p.sp = &Transform{dir: ScalarDir, basis: p, in: in, out: out, run: p.scalar}
	p.bwd = &Transform{dir: BackwardDir, basis: p, in: out, out: in, run: p.backward}
	p.planned = true
	return nil
}

// orthScalar computes s_k = sum_j w_j u_j P_k(x_j)
func (p *Poly) orthScalar(kind config.Kind, u, s []complex128) error {
	m, n := len(u), len(s)
	switch kind {
	case config.KindFast:
		if p.dct == nil {
			return p.orthScalar(config.KindVandermonde, u, s)
		}
		re, im := make([]float64, m), make([]float64, m)
		for j, v := range u {
			re[j], im[j] = real(v), imag(v)
		}
		yr := p.dct.Transform(nil, re)
		yi := p.dct.Transform(nil, im)
		f := math.Pi / (2 * float64(m-1))
		for k := 0; k < n; k++ {
			sgn := f
			if k%2 == 1 {
				sgn = -f
			}
			s[k] = complex(sgn*yr[k], sgn*yi[k])
		}
	case config.KindRecursive:
		row := make([]float64, n)
		for k := range s {
			s[k] = 0
		}
		for j, v := range u {
			p.fam.eval(p.x[j], row)
			wv := v * complex(p.w[j], 0)
			for k := range s {
				s[k] += wv * complex(row[k], 0)
			}
		}
	case config.KindVandermonde:
		raw := p.v.RawMatrix()
		for k := range s {
			s[k] = 0
		}
		for j, v := range u {
			wv := v * complex(p.w[j], 0)
			r := raw.Data[j*raw.Stride : j*raw.Stride+n]
			for k := range s {
				s[k] += wv * complex(r[k], 0)
			}
		}
	default:
		return errKind(p.fam.name(), kind)
	}
	return nil
}

// orthEval computes u_j = sum_k o_k P_k(x_j)
func (p *Poly) orthEval(kind config.Kind, o, u []complex128) error {
	m, n := len(u), len(o)
	switch kind {
	case config.KindFast:
		if p.dct == nil {
			return p.orthEval(config.KindVandermonde, o, u)
		}
		re, im := make([]float64, m), make([]float64, m)
		for k := 0; k < n; k++ {
			sgn := 1.0
			if k%2 == 1 {
				sgn = -1
			}
			re[k], im[k] = sgn*real(o[k]), sgn*imag(o[k])
		}
		yr := p.dct.Transform(nil, re)
		yi := p.dct.Transform(nil, im)
		for j := 0; j < m; j++ {
			sgn := 1.0
			if j%2 == 1 {
				sgn = -1
			}
			u[j] = complex((yr[j]+re[0]+sgn*re[m-1])/2, (yi[j]+im[0]+sgn*im[m-1])/2)
		}
	case config.KindRecursive:
		row := make([]float64, n)
		for j := range u {
			p.fam.eval(p.x[j], row)
			var acc complex128
			for k, c := range o {
				acc += c * complex(row[k], 0)
			}
			u[j] = acc
		}
	case config.KindVandermonde:
		raw := p.v.RawMatrix()
		for j := range u {
			r := raw.Data[j*raw.Stride : j*raw.Stride+n]
			var acc complex128
			for k, c := range o {
				acc += c * complex(r[k], 0)
			}
			u[j] = acc
		}
	default:
		return errKind(p.fam.name(), kind)
	}
	return nil
}

// applyStencil computes dst = K src (trans false) or K^T src
func (p *Poly) applyStencil(trans bool, src, dst []complex128) {
	if p.stencil == nil {
		copy(dst, src)
		return
	}
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < p.n; i++ {
		for k := 0; k < p.n; k++ {
			kv := p.stencil.At(i, k)
			if kv == 0 {
				continue
			}
			if trans {
				dst[k] += complex(kv, 0) * src[i]
			} else {
				dst[i] += complex(kv, 0) * src[k]
			}
		}
	}
}

func (p *Poly) checkKind(k config.Kind) (config.Kind, error) {
	k = resolveKind(p.fam.name(), k)
	for _, s := range p.fam.kinds() {
		if s == k {
			return k, nil
		}
	}
	return k, errKind(p.fam.name(), k)
}

func (p *Poly) scalar(in, out *array.Array, opts ExecOptions) error {
	return p.project(in, out, opts, nil)
}

// project is the scalar product with the extra weight wf on the mesh
func (p *Poly) project(in, out *array.Array, opts ExecOptions, wf []float64) error {
	kind, err := p.checkKind(opts.Kind)
	if err != nil {
		return err
	}
	so := make([]complex128, p.n)
	var tmp []complex128
	if wf != nil {
		tmp = make([]complex128, len(wf))
	}
	eachLine(in, out, p.axis, func(src, dst []complex128) {
		if err != nil {
			return
		}
		if wf != nil {
			for j, v := range src {
				tmp[j] = v * complex(wf[j], 0)
			}
			src = tmp
		}
		err = p.orthScalar(kind, src, so)
		p.applyStencil(false, so, dst)
	})
	return err
}

func (p *Poly) forward(in, out *array.Array, opts ExecOptions) error {
	if err := p.project(in, out, opts, p.wf); err != nil {
		return err
	}
	if p.bc != nil {
		if err := p.boundary.AddMassRHS(out); err != nil {
			return err
		}
	}
	ni := p.Dim()
	re, im := mat.NewVecDense(ni, nil), mat.NewVecDense(ni, nil)
	var xr, xi mat.VecDense
	var err error
	inPlaceLines(out, p.axis, func(line []complex128) {
		for i := 0; i < ni; i++ {
			re.SetVec(i, real(line[i]))
			im.SetVec(i, imag(line[i]))
		}
		if e := p.chol.SolveVecTo(&xr, re); e != nil && err == nil {
			err = e
		}
		if e := p.chol.SolveVecTo(&xi, im); e != nil && err == nil {
			err = e
		}
		for i := 0; i < ni; i++ {
			line[i] = complex(xr.AtVec(i), xi.AtVec(i))
		}
	})
	if err != nil {
		return fmt.Errorf("mass solve: %w", err)
	}
	if p.bc != nil {
		if err := p.boundary.SetBoundaryDofs(out, false); err != nil {
			return err
		}
	}
	p.applyDealias(out)
	return nil
}

// applyDealias zeroes the top third of the interior modes
func (p *Poly) applyDealias(u *array.Array) {
	if !p.direct || p.IsPadded() {
		return
	}
	lo, hi := 2*p.n/3, p.Dim()
	inPlaceLines(u, p.axis, func(line []complex128) {
		for k := lo; k < hi; k++ {
			line[k] = 0
		}
	})
}

func (p *Poly) backward(in, out *array.Array, opts ExecOptions) error {
	if p.direct && !p.IsPadded() {
		p.applyDealias(in)
	}
	if opts.Mesh.Kind != MeshQuadrature {
		return p.backwardOnMesh(in, out, opts.Mesh)
	}
	kind, err := p.checkKind(opts.Kind)
	if err != nil {
		return err
	}
	o := make([]complex128, p.n)
	eachLine(in, out, p.axis, func(src, dst []complex128) {
		if err == nil {
			p.applyStencil(true, src, o)
			err = p.orthEval(kind, o, dst)
		}
	})
	return err
}

// backwardOnMesh evaluates the expansion at uniform points or at the
// quadrature points of another basis
func (p *Poly) backwardOnMesh(in, out *array.Array, m Mesh) error {
	var x []float64
	switch m.Kind {
	case MeshUniform:
		x = p.Points(MeshUniform)
	case MeshBasis:
		x = p.MapReferenceDomain(m.Bases[0].Mesh(MeshQuadrature))
	}
	if len(x) != out.Shape[p.axis] {
		return fmt.Errorf("%w: mesh of %d points for %d outputs",
			utils.ErrShapeMismatch, len(x), out.Shape[p.axis])
	}
	t := p.trialAt(x)
	raw := t.RawMatrix()
	eachLine(in, out, p.axis, func(src, dst []complex128) {
		for j := range dst {
			r := raw.Data[j*raw.Stride : j*raw.Stride+p.n]
			var acc complex128
			for k, c := range src {
				acc += c * complex(r[k], 0)
			}
			dst[j] = acc
		}
	})
	return nil
}

// SubtractBCMass moves the boundary-dof mass to the right hand side
func (p *Poly) SubtractBCMass(u *array.Array) {
	nb := p.NumBCs()
	if nb == 0 {
		return
	}
	if p.bcMass == nil {
		p.buildMatrices()
	}
	ni := p.Dim()
	inPlaceLines(u, p.axis, func(line []complex128) {
		for i := 0; i < ni; i++ {
			var acc complex128
			for j := 0; j < nb; j++ {
				acc += complex(p.bcMass.At(i, j), 0) * line[ni+j]
			}
			line[i] -= acc
		}
	})
}

func (p *Poly) clone() *Poly {
	c := &Poly{fam: p.fam, n: p.n, domain: p.domain, pf: p.pf, direct: p.direct, axis: p.axis,
		weight: p.weight, bc: p.bc}
	// the stencil depends only on family, size and condition keys
	if p.stencil != nil {
		c.stencil = mat.DenseCopyOf(p.stencil)
	}
	if p.bc != nil {
		c.boundary = &staticBoundary{b: c}
	}
	return c
}

func (p *Poly) GetUnplanned() Basis { return p.clone() }

func (p *Poly) GetDealiased(pf float64, direct bool) Basis {
	c := p.clone()
	c.pf, c.direct = pf, direct
	return c
}

func (p *Poly) GetRefined(n int) (Basis, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: refine %s to %d points", utils.ErrConfiguration, p, n)
	}
	c := &Poly{fam: p.fam, n: n, domain: p.domain, pf: p.pf, direct: p.direct, axis: p.axis}
	if err := c.setBC(p.bc); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Poly) GetOrthogonal() Basis {
	return &Poly{fam: p.fam, n: p.n, domain: p.domain, pf: p.pf, direct: p.direct, axis: p.axis}
}

// GetTestspace returns the Galerkin test space ("G", the basis itself) or
// the Petrov-Galerkin one ("PG", the orthogonal family)
func (p *Poly) GetTestspace(kind string) Basis {
	if kind == "PG" {
		return p.GetOrthogonal()
	}
	return p.clone()
}

func (p *Poly) GetHomogeneous() Basis {
	c := p.clone()
	if p.bc != nil {
		c.bc = p.bc.Homogeneous()
	}
	return c
}

func (p *Poly) WithBC(bc *BoundaryConditions) (Basis, error) {
	c := &Poly{fam: p.fam, n: p.n, domain: p.domain, pf: p.pf, direct: p.direct, axis: p.axis}
	if err := c.setBC(bc); err != nil {
		return nil, err
	}
	return c, nil
}
