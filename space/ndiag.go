package space

import (
	"fmt"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/utils"
)

// Selector picks either one index or a range along an axis
type Selector struct {
	Range array.Range
	Index int
	Point bool
}

func (s Selector) Len() int {
	if s.Point {
		return 1
	}
	return s.Range.Len()
}

func (s Selector) String() string {
	if s.Point {
		return fmt.Sprint(s.Index)
	}
	return fmt.Sprintf("%d:%d", s.Range.Start, s.Range.Stop)
}

// NdiagCumDofs is the cumulative count of unknowns coupled by the
// non-diagonal axes, one entry per component plus a leading zero
func (t *TensorProductSpace) NdiagCumDofs() []int {
	n := 1
	dims := t.Dims()
	for _, ax := range t.NondiagonalAxes() {
		n *= dims[ax]
	}
	return []int{0, n}
}

// NdiagSlices returns, per component, the component index followed by the
// unknowns' range on every non-diagonal axis and the index j[k] on the
// k-th diagonal axis
func (t *TensorProductSpace) NdiagSlices(j []int) ([][]Selector, error) {
	diag := t.DiagonalAxes()
	if len(j) != len(diag) {
		return nil, fmt.Errorf("%w: %d indices for %d diagonal axes", utils.ErrConfiguration, len(j), len(diag))
	}
	row := make([]Selector, 0, len(t.bases)+1)
	row = append(row, Selector{Index: 0, Point: true})
	for _, r := range t.Slice() {
		row = append(row, Selector{Range: r})
	}
	for k, ax := range diag {
		row[ax+1] = Selector{Index: j[k], Point: true}
	}
	return [][]Selector{row}, nil
}

// NdiagSlicesAndDims pairs NdiagSlices with the cumulative sizes of the
// selected blocks
func (t *TensorProductSpace) NdiagSlicesAndDims(j []int) ([][]Selector, []int, error) {
	sl, err := t.NdiagSlices(j)
	if err != nil {
		return nil, nil, err
	}
	return sl, cumulativeSizes(sl), nil
}

func cumulativeSizes(sl [][]Selector) []int {
	dims := make([]int, 1, len(sl)+1)
	for _, row := range sl {
		n := 1
		for _, s := range row[1:] {
			n *= s.Len()
		}
		dims = append(dims, dims[len(dims)-1]+n)
	}
	return dims
}
