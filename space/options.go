package space

import (
	"github.com/hashicorp/go-hclog"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/coordinates"
	"github.com/notargets/spectral/pencil"
)

// Option configures New
type Option func(*settings)

type settings struct {
	axes       [][]int
	dtype      array.DType
	dtypeSet   bool
	slab       bool
	collapse   bool
	fromPencil *pencil.Pencil
	subcomm    pencil.Subcomm
	coors      *coordinates.System
	inplace    bool
	logger     hclog.Logger
}

// WithAxes sets the transform order as axis groups. The last group is
// transformed first by Forward; the axes of one group are transformed by a
// single local call.
func WithAxes(groups ...[]int) Option {
	return func(s *settings) {
		s.axes = make([][]int, len(groups))
		for i, g := range groups {
			s.axes[i] = append([]int(nil), g...)
		}
	}
}

// WithAxisOrder sets the transform order with one axis per group
func WithAxisOrder(axes ...int) Option {
	return func(s *settings) {
		s.axes = make([][]int, len(axes))
		for i, a := range axes {
			s.axes[i] = []int{a}
		}
	}
}

// WithDType sets the physical-space dtype instead of inferring it
func WithDType(dt array.DType) Option {
	return func(s *settings) { s.dtype, s.dtypeSet = dt, true }
}

// WithSlab distributes a single axis over all ranks
func WithSlab() Option {
	return func(s *settings) { s.slab = true }
}

// WithCollapseFourier fuses neighbouring undistributed Fourier axes into
// one complex transform. Ignored when any basis is padded.
func WithCollapseFourier() Option {
	return func(s *settings) { s.collapse = true }
}

// WithBackwardFromPencil plans from the spectral layout p outward, so the
// spectral distribution matches the space p was taken from
func WithBackwardFromPencil(p *pencil.Pencil) Option {
	return func(s *settings) { s.fromPencil = p }
}

// WithSubcomm uses an existing per-axis decomposition instead of building
// one from the communicator
func WithSubcomm(sub pencil.Subcomm) Option {
	return func(s *settings) { s.subcomm = sub }
}

// WithCoordinates maps the space to a curvilinear coordinate system
func WithCoordinates(c *coordinates.System) Option {
	return func(s *settings) { s.coors = c }
}

// WithModifyInplace plans the given bases instead of unplanned copies
func WithModifyInplace() Option {
	return func(s *settings) { s.inplace = true }
}

func WithLogger(l hclog.Logger) Option {
	return func(s *settings) { s.logger = l }
}
