package basis

import (
	"math"

	"github.com/notargets/spectral/config"
	"gonum.org/v1/gonum/mat"
)

// family is an orthogonal polynomial family on [-1, 1]
type family interface {
	name() Family
	// quadrature returns m ascending points and weights
	quadrature(m int) (x, w []float64)
	// eval fills p[k] = P_k(x) for k < len(p)
	eval(x float64, p []float64)
	// boundaryDerivative is d^m P_k / dx^m at the side's endpoint
	boundaryDerivative(k, m int, side Side) float64
	kinds() []config.Kind
}

// vandermonde is the len(x) by n matrix V[i][k] = P_k(x_i)
func vandermonde(f family, x []float64, n int) *mat.Dense {
	v := mat.NewDense(len(x), n, nil)
	row := make([]float64, n)
	for i, xi := range x {
		f.eval(xi, row)
		v.SetRow(i, row)
	}
	return v
}

func sideSign(k, m int, side Side) float64 {
	if side == Right || (k+m)%2 == 0 {
		return 1
	}
	return -1
}

type chebyshev struct{}

func (chebyshev) name() Family { return config.Chebyshev }

func (chebyshev) quadrature(m int) ([]float64, []float64) { return chebyshevGL(m) }

func (chebyshev) eval(x float64, p []float64) {
	for k := range p {
		switch k {
		case 0:
			p[0] = 1
		case 1:
			p[1] = x
		default:
			p[k] = 2*x*p[k-1] - p[k-2]
		}
	}
}

// T_k^(m)(1) = prod_{j<m} (k^2 - j^2)/(2j + 1)
func (chebyshev) boundaryDerivative(k, m int, side Side) float64 {
	v := 1.0
	for j := 0; j < m; j++ {
		v *= float64(k*k-j*j) / float64(2*j+1)
	}
	return sideSign(k, m, side) * v
}

func (chebyshev) kinds() []config.Kind {
	return []config.Kind{config.KindFast, config.KindRecursive, config.KindVandermonde}
}

type legendre struct{}

func (legendre) name() Family { return config.Legendre }

func (legendre) quadrature(m int) ([]float64, []float64) { return legendreGL(m) }

func (legendre) eval(x float64, p []float64) {
	for k := range p {
		switch k {
		case 0:
			p[0] = 1
		case 1:
			p[1] = x
		default:
			kk := float64(k - 1)
			p[k] = ((2*kk+1)*x*p[k-1] - kk*p[k-2]) / (kk + 1)
		}
	}
}

// P_k^(m)(1) = (k+m)!/((k-m)! 2^m m!)
func (legendre) boundaryDerivative(k, m int, side Side) float64 {
	v := 1.0
	for j := 0; j < m; j++ {
		v *= float64((k-j)*(k+j+1)) / float64(2*(j+1))
	}
	return sideSign(k, m, side) * v
}

func (legendre) kinds() []config.Kind {
	return []config.Kind{config.KindRecursive, config.KindVandermonde}
}

// jacobi is the orthonormal Jacobi family P^(alpha,beta)
type jacobi struct {
	alpha, beta float64
}

func (jacobi) name() Family { return config.Jacobi }

func (j jacobi) quadrature(m int) ([]float64, []float64) { return jacobiGauss(j.alpha, j.beta, m) }

func (j jacobi) eval(x float64, p []float64) {
	xs := []float64{x}
	for k := range p {
		p[k] = jacobiP(xs, j.alpha, j.beta, k)[0]
	}
}

// d/dx P_n^(a,b) = sqrt(n(n+a+b+1)) P_{n-1}^(a+1,b+1) for the orthonormal
// family, applied m times
func (j jacobi) boundaryDerivative(k, m int, side Side) float64 {
	if k < m {
		return 0
	}
	x := []float64{1}
	if side == Left {
		x[0] = -1
	}
	if m == 1 {
		return gradJacobiP(x, j.alpha, j.beta, k)[0]
	}
	c := 1.0
	for i := 0; i < m; i++ {
		n := float64(k - i)
		c *= math.Sqrt(n * (n + j.alpha + j.beta + 2*float64(i) + 1))
	}
	return c * jacobiP(x, j.alpha+float64(m), j.beta+float64(m), k-m)[0]
}

func (jacobi) kinds() []config.Kind { return []config.Kind{config.KindVandermonde} }
