package space

import (
	"fmt"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/basis"
	"github.com/notargets/spectral/config"
	"github.com/notargets/spectral/utils"
)

// Convolver forms the spectral coefficients of a pointwise product of two
// padded Fourier expansions. The product is transformed forward on the
// full padded grid, so no mode of it is truncated.
type Convolver struct {
	padded *TensorProductSpace
	target *TensorProductSpace
}

// NewConvolver prepares products over padded, a space of Fourier bases
func NewConvolver(padded *TensorProductSpace) (*Convolver, error) {
	if padded.empty {
		return nil, fmt.Errorf("%w: convolution over an empty space", utils.ErrConfiguration)
	}
	bases := make([]basis.Basis, len(padded.bases))
	for i, b := range padded.bases {
		if b.Family() != config.Fourier {
			return nil, fmt.Errorf("%w: convolution needs Fourier bases, axis %d is %s",
				utils.ErrUnimplementedPath, i, b)
		}
		dt := array.Complex128
		if b.IsR2C() {
			dt = array.Float64
		}
		d := b.Domain()
		f, err := basis.NewFourier(b.PhysicalSize(), dt, basis.WithDomain(d[0], d[1]))
		if err != nil {
			return nil, err
		}
		bases[i] = f
	}
	target, err := New(padded.comm, bases,
		WithAxes(padded.axes...),
		WithSubcomm(padded.phys.Subcomm),
		WithDType(padded.DType(false)),
		WithCoordinates(padded.coors),
		WithLogger(padded.logger))
	if err != nil {
		return nil, fmt.Errorf("convolution space: %w", err)
	}
	if !target.phys.Subshape.Equal(padded.phys.Subshape) {
		return nil, fmt.Errorf("%w: product layout %v differs from padded layout %v",
			utils.ErrShapeMismatch, target.phys.Subshape, padded.phys.Subshape)
	}
	return &Convolver{padded: padded, target: target}, nil
}

// Space is the unpadded space on the padded grid that holds products
func (c *Convolver) Space() *TensorProductSpace { return c.target }

// Call returns the coefficients of the product of a and b, coefficient
// arrays of the padded space, in the layout of Space
func (c *Convolver) Call(a, b, ab *array.Array) (*array.Array, error) {
	bwd := c.padded.backward
	ua, err := bwd.Call(a, nil)
	if err != nil {
		return nil, err
	}
	ua = ua.Clone()
	ub, err := bwd.Call(b, nil)
	if err != nil {
		return nil, err
	}
	if err := ua.MulBroadcast(ub); err != nil {
		return nil, err
	}
	return c.target.forward.Call(ua, ab)
}
