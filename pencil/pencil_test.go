package pencil

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/mpi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockDist(t *testing.T) {
	var sizes, starts []int
	for r := 0; r < 3; r++ {
		n, s := BlockDist(8, 3, r)
		sizes = append(sizes, n)
		starts = append(starts, s)
	}
	assert.Equal(t, []int{3, 3, 2}, sizes)
	assert.Equal(t, []int{0, 3, 6}, starts)
}

func TestDimsCreate(t *testing.T) {
	cases := []struct {
		size int
		in   []int
		want []int
	}{
		{4, []int{0, 0, 1}, []int{2, 2, 1}},
		{6, []int{0, 0}, []int{3, 2}},
		{12, []int{0, 1, 0}, []int{4, 1, 3}},
		{1, []int{0, 0, 1}, []int{1, 1, 1}},
		{8, []int{2, 0, 0}, []int{2, 2, 2}},
	}
	for _, c := range cases {
		got, err := DimsCreate(c.size, c.in)
		require.NoError(t, err)
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("DimsCreate(%d, %v) (-want +got):\n%s", c.size, c.in, diff)
		}
	}
	_, err := DimsCreate(5, []int{2, 0})
	assert.Error(t, err)
	_, err = DimsCreate(4, []int{1, 1})
	assert.Error(t, err)
}

func globalValue(idx []int) complex128 {
	return complex(float64(100*idx[0]+10*idx[1]+idx[2]), float64(idx[0]))
}

func fillFromGlobal(p *Pencil) *array.Array {
	a := array.Zeros(p.Subshape, array.Complex128)
	o := array.NewOdometer(p.Subshape)
	g := make([]int, len(p.Shape))
	for k := 0; !o.Done(); o.Next() {
		for i, j := range o.Index() {
			g[i] = p.Substart[i] + j
		}
		a.Data[k] = globalValue(g)
		k++
	}
	return a
}

func TestTransferRoundTrip(t *testing.T) {
	for _, size := range []int{1, 2, 4} {
		err := mpi.Run(size, func(c *mpi.Comm) error {
			sub, err := NewSubcomm(c, []int{0, 0, 1})
			if err != nil {
				return err
			}
			shape := array.Shape{6, 5, 3}
			a := New(sub, shape, 2)
			b := a.Pencil(1)
			if b.Subshape[1] != 5 {
				return fmt.Errorf("pencil b not whole along axis 1: %v", b)
			}
			tr, err := a.Transfer(b, array.Complex128)
			if err != nil {
				return err
			}
			src := fillFromGlobal(a)
			dst := array.Zeros(b.Subshape, array.Complex128)
			if err = tr.Forward(src, dst); err != nil {
				return err
			}
			if d := array.MaxAbsDiff(dst, fillFromGlobal(b)); d != 0 {
				return fmt.Errorf("rank %d: forward differs by %v", c.Rank(), d)
			}
			back := array.Zeros(a.Subshape, array.Complex128)
			if err = tr.Backward(dst, back); err != nil {
				return err
			}
			if d := array.MaxAbsDiff(back, src); d != 0 {
				return fmt.Errorf("rank %d: backward differs by %v", c.Rank(), d)
			}
			// the third alignment goes through b
			z := b.Pencil(0)
			tr2, err := b.Transfer(z, array.Complex128)
			if err != nil {
				return err
			}
			dz := array.Zeros(z.Subshape, array.Complex128)
			if err = tr2.Forward(dst, dz); err != nil {
				return err
			}
			if d := array.MaxAbsDiff(dz, fillFromGlobal(z)); d != 0 {
				return fmt.Errorf("rank %d: second forward differs by %v", c.Rank(), d)
			}
			return nil
		})
		require.NoError(t, err, "size %d", size)
	}
}

func TestPencilRequiresLocalAxis(t *testing.T) {
	err := mpi.Run(2, func(c *mpi.Comm) error {
		sub, err := NewSubcomm(c, []int{0, 1})
		if err != nil {
			return err
		}
		assert.Panics(t, func() { New(sub, array.Shape{4, 4}, 0) })
		p := New(sub, array.Shape{4, 4}, 1)
		assert.Equal(t, 2, p.Subshape[0])
		return nil
	})
	require.NoError(t, err)
}
