package basis

import (
	"fmt"
	"math/cmplx"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/symbolic"
	"github.com/notargets/spectral/utils"
)

const (
	adaptiveStart = 16
	adaptiveMax   = 1 << 14
)

// GetAdaptive sizes b by fitting fun, an expression in at most one
// coordinate. N doubles until the highest modes of the orthogonal
// expansion fall below max(abstol, reltol*max|c|); the result keeps the
// modes up to the last one above that tolerance. Bases with N > 0 are
// returned unchanged.
func GetAdaptive(b Basis, fun symbolic.Expr, reltol, abstol float64) (Basis, error) {
	if !Adaptive(b) {
		return b, nil
	}
	syms := fun.FreeSymbols()
	if len(syms) > 1 {
		return nil, fmt.Errorf("%w: adaptive fit of %s needs one coordinate, has %v",
			utils.ErrConfiguration, fun, syms)
	}
	for n := adaptiveStart; n <= adaptiveMax; n *= 2 {
		r, err := b.GetOrthogonal().GetRefined(n)
		if err != nil {
			return nil, err
		}
		trial := r.GetDealiased(1, false)
		c, err := fit(trial, fun, syms)
		if err != nil {
			return nil, err
		}
		keep, ok := converged(trial, c, reltol, abstol)
		if !ok {
			continue
		}
		nb := b.NumBCs()
		if keep < nb+2 {
			keep = nb + 2
		}
		return b.GetRefined(keep)
	}
	return nil, fmt.Errorf("%w: %s did not converge below N=%d", utils.ErrUnimplementedPath, fun, adaptiveMax)
}

// fit returns the 1D orthogonal coefficients of fun on b's mesh
func fit(b Basis, fun symbolic.Expr, syms []string) ([]complex128, error) {
	m := b.PhysicalSize()
	if err := b.Plan(array.Shape{m}, []int{0}, realOrComplex(b)); err != nil {
		return nil, err
	}
	in := b.Forward().Input()
	for j, x := range b.Mesh(MeshQuadrature) {
		v := symbolic.Vars{}
		if len(syms) == 1 {
			v[syms[0]] = x
		}
		in.Data[j] = complex(fun.Eval(v), 0)
	}
	if err := b.Forward().Execute(ExecOptions{}); err != nil {
		return nil, err
	}
	return append([]complex128(nil), b.Forward().Output().Data...), nil
}

func realOrComplex(b Basis) array.DType {
	if b.IsC2C() {
		return array.Complex128
	}
	return array.Float64
}

// converged reports whether the two highest modes are below tolerance and
// the number of points needed to keep every mode above it
func converged(b Basis, c []complex128, reltol, abstol float64) (int, bool) {
	top := 0.0
	for _, v := range c {
		top = max(top, cmplx.Abs(v))
	}
	tol := max(abstol, reltol*top)
	if f, ok := b.(*Fourier); ok {
		kmax, nmax := 0, 0
		for i, v := range c {
			k := f.wavenumber(i)
			if k < 0 {
				k = -k
			}
			nmax = max(nmax, k)
			if cmplx.Abs(v) > tol {
				kmax = max(kmax, k)
			}
		}
		tail := 0.0
		for i, v := range c {
			if k := f.wavenumber(i); k >= nmax-1 || -k >= nmax-1 {
				tail = max(tail, cmplx.Abs(v))
			}
		}
		return 2*kmax + 1, tail <= tol
	}
	n := len(c)
	if max(cmplx.Abs(c[n-1]), cmplx.Abs(c[n-2])) > tol {
		return 0, false
	}
	last := 0
	for k, v := range c {
		if cmplx.Abs(v) > tol {
			last = k
		}
	}
	return last + 1, true
}
