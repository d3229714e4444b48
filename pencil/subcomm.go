// Package pencil decomposes a global n-d index space over a Cartesian grid
// of ranks. A Pencil keeps one axis whole on every rank; a Transfer moves
// data between two pencils aligned in different axes.
package pencil

import (
	"fmt"
	"sort"

	"github.com/notargets/spectral/mpi"
	"github.com/notargets/spectral/utils"
)

// Subcomm is one sub-communicator per axis of a Cartesian process grid.
// Ranks sharing all grid coordinates but the one of axis i form Subcomm[i].
type Subcomm []*mpi.Comm

// Sizes returns the process-grid extent of every axis
func (s Subcomm) Sizes() []int {
	out := make([]int, len(s))
	for i, c := range s {
		out[i] = c.Size()
	}
	return out
}

// DimsCreate fills the zero entries of dims so that the product equals size
// and the free entries are as balanced as possible, largest first. Non-zero
// entries are kept.
func DimsCreate(size int, dims []int) ([]int, error) {
	out := append([]int(nil), dims...)
	fixed := 1
	var free []int
	for i, d := range out {
		switch {
		case d < 0:
			return nil, fmt.Errorf("%w: negative process grid extent %v", utils.ErrCommunicator, dims)
		case d == 0:
			free = append(free, i)
		default:
			fixed *= d
		}
	}
	if size%fixed != 0 {
		return nil, fmt.Errorf("%w: %d ranks do not fit grid %v", utils.ErrCommunicator, size, dims)
	}
	rest := size / fixed
	if len(free) == 0 {
		if rest != 1 {
			return nil, fmt.Errorf("%w: grid %v holds %d ranks, have %d",
				utils.ErrCommunicator, dims, fixed, size)
		}
		return out, nil
	}
	vals := make([]int, len(free))
	for i := range vals {
		vals[i] = 1
	}
	// largest prime factors first, each onto the currently smallest slot
	factors := primeFactors(rest)
	for i := len(factors) - 1; i >= 0; i-- {
		small := 0
		for j := range vals {
			if vals[j] < vals[small] {
				small = j
			}
		}
		vals[small] *= factors[i]
	}
	sort.Sort(sort.Reverse(sort.IntSlice(vals)))
	for i, ax := range free {
		out[ax] = vals[i]
	}
	return out, nil
}

func primeFactors(n int) []int {
	var f []int
	for p := 2; p*p <= n; p++ {
		for n%p == 0 {
			f = append(f, p)
			n /= p
		}
	}
	if n > 1 {
		f = append(f, n)
	}
	return f
}

// NewSubcomm builds the Cartesian process grid of comm with extents dims
// (zeros are filled by DimsCreate) and splits it into one communicator per
// axis. Collective over comm.
func NewSubcomm(comm *mpi.Comm, dims []int) (Subcomm, error) {
	grid, err := DimsCreate(comm.Size(), dims)
	if err != nil {
		return nil, err
	}
	coords := gridCoords(comm.Rank(), grid)
	sub := make(Subcomm, len(grid))
	for axis := range grid {
		color, stride := 0, 1
		for i := len(grid) - 1; i >= 0; i-- {
			if i == axis {
				continue
			}
			color += coords[i] * stride
			stride *= grid[i]
		}
		sub[axis] = comm.Split(color, coords[axis])
	}
	comm.Logger().Debug("process grid", "dims", grid, "coords", coords)
	return sub, nil
}

// gridCoords is the row-major coordinate of rank in grid
func gridCoords(rank int, grid []int) []int {
	c := make([]int, len(grid))
	for i := len(grid) - 1; i >= 0; i-- {
		c[i] = rank % grid[i]
		rank /= grid[i]
	}
	return c
}
