package space

import (
	"fmt"
	"math"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/notargets/spectral/basis"
	"github.com/notargets/spectral/config"
	"github.com/notargets/spectral/pencil"
	"github.com/notargets/spectral/utils"
)

// normalizeAxes validates the axis groups of an ndim space. Negative axes
// count from the end. A nil plan is one singleton group per axis in
// ascending order.
func normalizeAxes(groups [][]int, ndim int) ([][]int, error) {
	if groups == nil {
		out := make([][]int, ndim)
		for i := range out {
			out[i] = []int{i}
		}
		return out, nil
	}
	var result *multierror.Error
	out := make([][]int, len(groups))
	seen := make(map[int]int)
	for i, g := range groups {
		if len(g) == 0 || len(g) > ndim {
			result = multierror.Append(result, fmt.Errorf("group %d has %d axes", i, len(g)))
			continue
		}
		ng := make([]int, len(g))
		for j, a := range g {
			if a < 0 {
				a += ndim
			}
			if a < 0 || a >= ndim {
				result = multierror.Append(result, fmt.Errorf("group %d: axis %d outside [0, %d)", i, g[j], ndim))
			}
			ng[j] = a
			seen[a]++
		}
		if !sort.IntsAreSorted(ng) {
			result = multierror.Append(result, fmt.Errorf("group %d: axes %v not ascending", i, g))
		}
		for j := 1; j < len(ng); j++ {
			if ng[j] == ng[j-1] {
				result = multierror.Append(result, fmt.Errorf("group %d: axis %d repeated", i, ng[j]))
			}
		}
		out[i] = ng
	}
	for a := 0; a < ndim; a++ {
		switch n := seen[a]; {
		case n == 0:
			result = multierror.Append(result, fmt.Errorf("axis %d is never transformed", a))
		case n > 1:
			result = multierror.Append(result, fmt.Errorf("axis %d is transformed %d times", a, n))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: axes %v: %v", utils.ErrConfiguration, groups, err)
	}
	return out, nil
}

// flatten lists the axes of groups in plan order
func flatten(groups [][]int) []int {
	var out []int
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// anyPadded reports whether some basis has a padding factor other than one
func anyPadded(bases []basis.Basis) bool {
	for _, b := range bases {
		if math.Abs(b.PaddingFactor()-1) > 1e-6 {
			return true
		}
	}
	return false
}

// collapseFourier merges neighbouring groups of undistributed Fourier axes,
// scanning backward from the first-transformed group. A merge that would
// break ascending order inside the group starts a new group instead.
func collapseFourier(groups [][]int, bases []basis.Basis, sub pencil.Subcomm) [][]int {
	fourier := func(ax int) bool {
		return bases[ax].Family() == config.Fourier && sub[ax].Size() == 1
	}
	last := groups[len(groups)-1]
	out := [][]int{append([]int(nil), last...)}
	prev := fourier(last[len(last)-1])
	for i := len(groups) - 2; i >= 0; i-- {
		ax := groups[i][len(groups[i])-1]
		if prev && fourier(ax) && ax < out[0][0] {
			out[0] = append([]int{ax}, out[0]...)
		} else {
			out = append([][]int{append([]int(nil), groups[i]...)}, out...)
		}
		prev = fourier(ax)
	}
	return out
}
