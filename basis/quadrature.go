package basis

import (
	"math"

	"github.com/notargets/gocfd/DG1D"
	"github.com/notargets/gocfd/utils"
	"gonum.org/v1/gonum/mat"
)

// chebyshevGL returns the m Chebyshev Gauss-Lobatto points in ascending
// order, x_j = -cos(pi j/(m-1)), with Chebyshev-weight quadrature weights
func chebyshevGL(m int) (x, w []float64) {
	x, w = make([]float64, m), make([]float64, m)
	if m == 1 {
		return []float64{0}, []float64{math.Pi}
	}
	for j := 0; j < m; j++ {
		x[j] = -math.Cos(math.Pi * float64(j) / float64(m-1))
		w[j] = math.Pi / float64(m-1)
	}
	w[0] /= 2
	w[m-1] /= 2
	return x, w
}

// legendreGL returns the m Legendre Gauss-Lobatto points and weights. The
// interior points are the Gauss points of P^(1,1)_{m-3}.
func legendreGL(m int) (x, w []float64) {
	switch m {
	case 1:
		return []float64{0}, []float64{2}
	case 2:
		return []float64{-1, 1}, []float64{1, 1}
	}
	x = make([]float64, m)
	x[0], x[m-1] = -1, 1
	xint, _ := jacobiGQ(1, 1, m-3)
	copy(x[1:m-1], xint)
	w = make([]float64, m)
	n := float64(m - 1)
	for j, xj := range x {
		p := legendreP(xj, m-1)
		w[j] = 2 / (n * (n + 1) * p * p)
	}
	return x, w
}

// legendreP evaluates P_n(x) by the three-term recurrence
func legendreP(x float64, n int) float64 {
	p0, p1 := 1.0, x
	if n == 0 {
		return p0
	}
	for k := 1; k < n; k++ {
		p0, p1 = p1, (float64(2*k+1)*x*p1-float64(k)*p0)/float64(k+1)
	}
	return p1
}

// jacobiGQ computes the n+1 Gauss points and weights of P^(alpha,beta) by
// Golub-Welsch: eigenvalues of the symmetric tridiagonal Jacobi matrix,
// weights from the first eigenvector components
func jacobiGQ(alpha, beta float64, n int) (x, w []float64) {
	if n == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2)}, []float64{gamma0(alpha, beta)}
	}
	h1 := make([]float64, n+1)
	for i := range h1 {
		h1[i] = 2*float64(i) + alpha + beta
	}
	d0 := make([]float64, n+1)
	fac := beta*beta - alpha*alpha
	for i, h := range h1 {
		d0[i] = fac / (h * (h + 2))
	}
	if alpha+beta < 1e-15 {
		d0[0] = 0
	}
	d1 := make([]float64, n)
	for i := 0; i < n; i++ {
		ip1, h := float64(i+1), h1[i]
		d1[i] = 2 / (h + 2) * math.Sqrt(ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(h+1)/(h+3))
	}
	jj := mat.NewSymDense(n+1, nil)
	for i := 0; i <= n; i++ {
		jj.SetSym(i, i, d0[i])
		if i < n {
			jj.SetSym(i, i+1, d1[i])
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(jj, true) {
		panic("basis: Jacobi matrix eigendecomposition failed")
	}
	x = eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	g0 := gamma0(alpha, beta)
	w = make([]float64, n+1)
	for i := range w {
		v := vecs.At(0, i)
		w[i] = v * v * g0
	}
	return x, w
}

// gamma0 is the integral of the Jacobi weight over [-1, 1]
func gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1
	return math.Gamma(alpha+1) * math.Gamma(beta+1) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

// jacobiGauss returns the m Gauss-Jacobi points and weights
func jacobiGauss(alpha, beta float64, m int) (x, w []float64) {
	return jacobiGQ(alpha, beta, m-1)
}

// jacobiP evaluates the orthonormal Jacobi polynomial of degree n at x
func jacobiP(x []float64, alpha, beta float64, n int) []float64 {
	return DG1D.JacobiP(utils.NewVector(len(x), x), alpha, beta, n)
}

// gradJacobiP evaluates the derivative of the orthonormal Jacobi polynomial
func gradJacobiP(x []float64, alpha, beta float64, n int) []float64 {
	return DG1D.GradJacobiP(utils.NewVector(len(x), x), alpha, beta, n)
}

func linspace(a, b float64, m int) []float64 {
	x := make([]float64, m)
	if m == 1 {
		x[0] = (a + b) / 2
		return x
	}
	for i := range x {
		x[i] = a + (b-a)*float64(i)/float64(m-1)
	}
	return x
}
