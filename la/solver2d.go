// Package la holds the dense solvers used by tensor product spaces whose
// forward transform couples two axes.
package la

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/spectral/utils"
)

// Solver2D solves the separable system A X B = R for X, where A and B are
// symmetric positive definite mass blocks of the two axes.
type Solver2D struct {
	a, b   mat.Cholesky
	n0, n1 int
}

// NewSolver2D factors a (rows of X) and b (columns of X)
func NewSolver2D(a, b mat.Symmetric) (*Solver2D, error) {
	s := &Solver2D{n0: a.SymmetricDim(), n1: b.SymmetricDim()}
	if !s.a.Factorize(a) {
		return nil, fmt.Errorf("%w: first-axis mass block is not positive definite", utils.ErrConfiguration)
	}
	if !s.b.Factorize(b) {
		return nil, fmt.Errorf("%w: second-axis mass block is not positive definite", utils.ErrConfiguration)
	}
	return s, nil
}

// Dims returns the shape of X
func (s *Solver2D) Dims() (int, int) { return s.n0, s.n1 }

// Solve returns X with A X B = r
func (s *Solver2D) Solve(r mat.Matrix) (*mat.Dense, error) {
	if m, n := r.Dims(); m != s.n0 || n != s.n1 {
		return nil, fmt.Errorf("%w: right hand side %dx%d for a %dx%d system",
			utils.ErrShapeMismatch, m, n, s.n0, s.n1)
	}
	var y, xt mat.Dense
	if err := s.a.SolveTo(&y, r); err != nil {
		return nil, fmt.Errorf("first-axis solve: %w", err)
	}
	// X B = Y is B X^T = Y^T since B is symmetric
	if err := s.b.SolveTo(&xt, y.T()); err != nil {
		return nil, fmt.Errorf("second-axis solve: %w", err)
	}
	return mat.DenseCopyOf(xt.T()), nil
}

// SolveComplex solves the real and imaginary parts of a complex right hand
// side independently
func (s *Solver2D) SolveComplex(re, im mat.Matrix) (*mat.Dense, *mat.Dense, error) {
	xr, err := s.Solve(re)
	if err != nil {
		return nil, nil, err
	}
	xi, err := s.Solve(im)
	if err != nil {
		return nil, nil, err
	}
	return xr, xi, nil
}

// Leading returns the symmetric part of the leading n by n block of m
func Leading(m mat.Matrix, n int) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s
}
