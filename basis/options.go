package basis

import (
	"fmt"

	"github.com/notargets/spectral/config"
	"github.com/notargets/spectral/utils"
)

// Option configures a basis at construction
type Option func(*settings)

type settings struct {
	domain    *[2]float64
	padding   float64
	direct    bool
	bc        *BoundaryConditions
}

func defaultSettings() settings { return settings{padding: 1} }

// WithDomain sets the true domain [a, b]
func WithDomain(a, b float64) Option {
	return func(s *settings) { s.domain = &[2]float64{a, b} }
}

// WithPadding sets the padding factor used for dealiasing
func WithPadding(pf float64) Option {
	return func(s *settings) { s.padding = pf }
}

// WithDealiasDirect truncates the highest third of the modes when the
// padding factor is one
func WithDealiasDirect() Option {
	return func(s *settings) { s.direct = true }
}

// WithBC makes a polynomial basis a boundary-condition stencil basis
func WithBC(bc *BoundaryConditions) Option {
	return func(s *settings) { s.bc = bc }
}

func (s settings) validate(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative size %d", utils.ErrConfiguration, n)
	}
	if s.padding < 1 {
		return fmt.Errorf("%w: padding factor %g below one", utils.ErrConfiguration, s.padding)
	}
	if s.domain != nil && s.domain[1] <= s.domain[0] {
		return fmt.Errorf("%w: empty domain %v", utils.ErrConfiguration, *s.domain)
	}
	return nil
}

// physical is floor(n*pf)
func physical(n int, pf float64) int {
	return int(float64(n)*pf + 1e-9)
}

// resolveKind falls back to the process configuration for an unset kind
func resolveKind(f Family, k config.Kind) config.Kind {
	if k != config.KindDefault {
		return k
	}
	return config.Current().Transforms.Resolve(f, nil)
}
