package symbolic

import (
	"fmt"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/utils"
)

// Lambdify evaluates e at every index of shape. Each free symbol is looked
// up first in fixed and then in mesh, whose arrays broadcast to shape.
func Lambdify(e Expr, mesh map[string]*array.Array, fixed Vars, shape array.Shape) (*array.Array, error) {
	out := array.Zeros(shape, array.Float64)
	if v, ok := Constant(e); ok {
		out.Fill(complex(v, 0))
		return out, nil
	}
	type src struct {
		name string
		arr  *array.Array
	}
	var srcs []src
	vars := Vars{}
	for k, v := range fixed {
		vars[k] = v
	}
	for _, s := range e.FreeSymbols() {
		if _, ok := fixed[s]; ok {
			continue
		}
		m, ok := mesh[s]
		if !ok {
			return nil, fmt.Errorf("%w: no value for symbol %q in %s", utils.ErrConfiguration, s, e)
		}
		b, err := array.BroadcastTo(m, shape)
		if err != nil {
			return nil, fmt.Errorf("symbol %q: %w", s, err)
		}
		srcs = append(srcs, src{s, b})
	}
	for i := range out.Data {
		for _, s := range srcs {
			vars[s.name] = real(s.arr.Data[i])
		}
		out.Data[i] = complex(e.Eval(vars), 0)
	}
	return out, nil
}
