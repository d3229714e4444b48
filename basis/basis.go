// Package basis implements the 1D function spaces a tensor product space is
// built from: Fourier (real-to-complex and complex-to-complex), and the
// Chebyshev, Legendre and Jacobi polynomial families with optional
// boundary-condition stencils.
//
// A basis is planned for one axis of a local array shape. Planning creates
// three transforms that share buffers: Forward and ScalarProduct read the
// physical array and write the spectral one, Backward does the reverse.
package basis

import (
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/config"
)

// Family is an alias for the configuration family name
type Family = config.Family

// MeshKind selects the points a backward transform evaluates on
type MeshKind uint8

const (
	MeshQuadrature MeshKind = iota
	MeshUniform
	MeshBasis // the quadrature points of another basis
)

// Mesh is the backward-transform mesh option. For MeshBasis, Bases holds
// one basis per axis of the space the mesh was taken from.
type Mesh struct {
	Kind  MeshKind
	Bases []Basis
}

// ForAxis narrows a space-level mesh option to one axis
func (m Mesh) ForAxis(axis int) Mesh {
	if m.Kind != MeshBasis {
		return Mesh{Kind: m.Kind}
	}
	return Mesh{Kind: MeshBasis, Bases: []Basis{m.Bases[axis]}}
}

// ExecOptions are the per-call options of a local transform
type ExecOptions struct {
	Kind config.Kind
	Mesh Mesh
}

// Boundary supplies boundary-dof values to a composite basis during
// forward transforms
type Boundary interface {
	// SetBoundaryDofs writes boundary values into the trailing NumBCs slots
	// along the basis axis. final selects values for the fully transformed
	// (spectral) layout instead of the intermediate one.
	SetBoundaryDofs(u *array.Array, final bool) error
	// AddMassRHS sets the boundary dofs of u and moves their mass
	// contribution to the right hand side of the interior rows
	AddMassRHS(u *array.Array) error
	HasNonhomogeneousBCs() bool
}

// Basis is a planned or unplanned 1D function space
type Basis interface {
	Family() Family
	String() string

	// N is the number of quadrature points (unpadded)
	N() int
	// Dim is the number of unknowns: N minus boundary dofs
	Dim() int
	PaddingFactor() float64
	DealiasDirect() bool
	Domain() [2]float64
	ReferenceDomain() [2]float64
	// DomainFactor is reference length over true length
	DomainFactor() float64
	Axis() int
	SetAxis(axis int)

	// PhysicalSize is the number of (padded) quadrature points
	PhysicalSize() int
	// SpectralSize is the length of forward output along the axis
	SpectralSize() int
	// Slice is the index range of the unknowns in spectral space
	Slice() array.Range

	Plan(shape array.Shape, axes []int, dt array.DType) error
	Planned() bool
	Forward() *Transform
	Backward() *Transform
	ScalarProduct() *Transform

	// Points returns reference-domain points (padded count)
	Points(kind MeshKind) []float64
	// Mesh returns true-domain points (padded count)
	Mesh(kind MeshKind) []float64
	MapReferenceDomain(x []float64) []float64
	MapTrueDomain(x []float64) []float64
	// EvaluateBasisAll returns the len(x) by N matrix of trial functions
	// at reference points x
	EvaluateBasisAll(x []float64) *mat.CDense
	Wavenumbers(scaled, eliminateHighest bool) []float64
	// MaskNyquist returns a spectral-length mask with zero at the Nyquist
	// mode, or nil when there is none
	MaskNyquist() []float64

	IsOrthogonal() bool
	IsPadded() bool
	IsR2C() bool
	IsC2C() bool
	BC() *BoundaryConditions
	BoundaryCondition() string
	NumBCs() int
	HasNonhomogeneousBCs() bool
	SetBoundary(b Boundary)
	Boundary() Boundary

	// TrialMass is the N by N discrete Gram matrix of all trial functions
	// with boundary functions in the trailing slots, taken under the
	// basis weight when one is set
	TrialMass() *mat.Dense
	// Stencil is the N by N matrix expressing each trial function in the
	// orthogonal family (identity for orthogonal bases)
	Stencil() *mat.Dense
	// SubtractBCMass subtracts the boundary-dof mass contribution from the
	// interior rows of every line of u along the axis
	SubtractBCMass(u *array.Array)

	GetUnplanned() Basis
	GetDealiased(pf float64, direct bool) Basis
	// GetRefined fails when n points cannot carry the boundary conditions
	GetRefined(n int) (Basis, error)
	GetOrthogonal() Basis
	GetTestspace(kind string) Basis
	GetHomogeneous() Basis
	// WithBC returns an unplanned copy using bc
	WithBC(bc *BoundaryConditions) (Basis, error)
}

// Adaptive reports whether b is a placeholder to be sized by GetAdaptive
func Adaptive(b Basis) bool { return b.N() == 0 }

// mapDomain maps x from interval from to interval to
func mapDomain(x []float64, from, to [2]float64) []float64 {
	out := make([]float64, len(x))
	if from == to {
		copy(out, x)
		return out
	}
	f := (to[1] - to[0]) / (from[1] - from[0])
	for i, v := range x {
		out[i] = to[0] + (v-from[0])*f
	}
	return out
}
