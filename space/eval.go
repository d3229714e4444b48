package space

import (
	"fmt"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/basis"
	"github.com/notargets/spectral/utils"
)

// Evaluation methods for Eval. All three give the same values.
const (
	EvalPointwise   = iota // basis rows built per point, least memory
	EvalPrecomputed        // basis rows for all points built up front
	EvalContract           // axis-by-axis contraction of the coefficients
)

// Eval evaluates the expansion with local coefficients coeffs at points,
// given as one row of true-domain coordinates per axis. Every rank must
// call Eval with the same number of points: the partial sums of all ranks
// are combined with an all-reduce. out, when given, must hold one value per
// point.
func (t *TensorProductSpace) Eval(points [][]float64, coeffs, out *array.Array, method int) (*array.Array, error) {
	nd := len(t.bases)
	if nd > 3 {
		return nil, fmt.Errorf("%w: eval in %d dimensions", utils.ErrConfiguration, nd)
	}
	if len(points) != nd {
		return nil, fmt.Errorf("%w: %d coordinate rows for %d axes", utils.ErrShapeMismatch, len(points), nd)
	}
	np := len(points[0])
	for _, row := range points {
		if len(row) != np {
			return nil, fmt.Errorf("%w: ragged point coordinates", utils.ErrShapeMismatch)
		}
	}
	if !coeffs.Shape.Equal(t.Shape(true)) {
		return nil, fmt.Errorf("%w: coefficients %v for local shape %v", utils.ErrShapeMismatch, coeffs.Shape, t.Shape(true))
	}
	dt := t.DType(false)
	if out == nil {
		out = array.Zeros(array.Shape{np}, dt)
	} else if out.Size() != np {
		return nil, fmt.Errorf("%w: %d outputs for %d points", utils.ErrShapeMismatch, out.Size(), np)
	} else {
		out.Fill(0)
	}
	if method < EvalPointwise || method > EvalContract {
		return nil, fmt.Errorf("%w: eval method %d", utils.ErrConfiguration, method)
	}
	if len(t.NonperiodicAxes()) > 1 {
		method = EvalPrecomputed
	}
	ref := make([][]float64, nd)
	for d, b := range t.bases {
		ref[d] = b.MapReferenceDomain(points[d])
	}
	switch {
	case coeffs.Size() == 0:
		// nothing held locally; still join the reduction
	case method == EvalPointwise:
		rows := make([][]complex128, nd)
		for i := 0; i < np; i++ {
			for d := range t.bases {
				rows[d] = t.evalRows(d, []float64{ref[d][i]})[0]
			}
			out.Data[i] = sumTensor(coeffs, rows)
		}
	default:
		all := make([][][]complex128, nd)
		for d := range t.bases {
			all[d] = t.evalRows(d, ref[d])
		}
		// forward transform order: last group first
		flat := flatten(t.axes)
		order := make([]int, 0, nd)
		for i := len(flat) - 1; i >= 0; i-- {
			order = append(order, flat[i])
		}
		rows := make([][]complex128, nd)
		for i := 0; i < np; i++ {
			for d := range t.bases {
				rows[d] = all[d][i]
			}
			if method == EvalContract {
				out.Data[i] = contract(coeffs, rows, order)
			} else {
				out.Data[i] = sumTensor(coeffs, rows)
			}
		}
	}
	t.comm.AllreduceSum(out.Data)
	if dt == array.Float64 {
		out.Real()
	}
	return out, nil
}

// evalRows returns, per reference point, the trial functions of axis d on
// this rank's spectral slice. The positive modes of a real Fourier axis
// count twice, standing in for their conjugates.
func (t *TensorProductSpace) evalRows(d int, x []float64) [][]complex128 {
	b := t.bases[d]
	sl := t.LocalSlice(true)[d]
	v := b.EvaluateBasisAll(x)
	w := conjWeights(b, sl)
	rows := make([][]complex128, len(x))
	for i := range x {
		r := make([]complex128, sl.Len())
		for k := range r {
			r[k] = v.At(i, sl.Start+k) * complex(w[k], 0)
		}
		rows[i] = r
	}
	return rows
}

func conjWeights(b basis.Basis, sl array.Range) []float64 {
	w := make([]float64, sl.Len())
	for k := range w {
		w[k] = 1
	}
	if !b.IsR2C() {
		return w
	}
	m := b.SpectralSize()
	last := m
	if b.N()%2 == 0 {
		last = m - 1
	}
	for k := max(sl.Start, 1); k < min(last, sl.Stop); k++ {
		w[k-sl.Start] = 2
	}
	return w
}

// sumTensor is the full sum of c times the outer product of rows
func sumTensor(c *array.Array, rows [][]complex128) complex128 {
	var acc complex128
	o := array.NewOdometer(c.Shape)
	for k := 0; !o.Done(); o.Next() {
		p := c.Data[k]
		for d, i := range o.Index() {
			p *= rows[d][i]
		}
		acc += p
		k++
	}
	return acc
}

// contract reduces c one axis at a time in order
func contract(c *array.Array, rows [][]complex128, order []int) complex128 {
	work := c
	for _, ax := range order {
		next := array.Zeros(work.Shape.With(ax, 1), array.Complex128)
		off, stride := work.Lines(ax)
		dst, _ := next.Lines(ax)
		r := rows[ax]
		for l, o := range off {
			var acc complex128
			for k, w := range r {
				acc += work.Data[o+k*stride] * w
			}
			next.Data[dst[l]] = acc
		}
		work = next
	}
	return work.Data[0]
}
