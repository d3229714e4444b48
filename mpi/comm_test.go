package mpi

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/spectral/utils"
)

func TestSelf(t *testing.T) {
	c := Self()
	assert.Equal(t, 0, c.Rank())
	assert.Equal(t, 1, c.Size())
	buf := []complex128{1, 2}
	c.AllreduceSum(buf)
	assert.Equal(t, []complex128{1, 2}, buf)
	got := c.Alltoallv([][]complex128{{3, 4}})
	assert.Equal(t, [][]complex128{{3, 4}}, got)
}

func TestAllreduceAndAlltoallv(t *testing.T) {
	const size = 4
	err := Run(size, func(c *Comm) error {
		buf := []complex128{complex(float64(c.Rank()), 1)}
		c.AllreduceSum(buf)
		if buf[0] != complex(6, 4) {
			return fmt.Errorf("rank %d: allreduce got %v", c.Rank(), buf[0])
		}
		send := make([][]complex128, size)
		for d := range send {
			send[d] = []complex128{complex(float64(10*c.Rank()+d), 0)}
		}
		recv := c.Alltoallv(send)
		for s, blk := range recv {
			if want := complex(float64(10*s+c.Rank()), 0); blk[0] != want {
				return fmt.Errorf("rank %d from %d: got %v want %v", c.Rank(), s, blk[0], want)
			}
		}
		c.Barrier()
		return nil
	})
	require.NoError(t, err)
}

func TestSplit(t *testing.T) {
	const size = 6
	var mu sync.Mutex
	sizes := map[int]int{}
	err := Run(size, func(c *Comm) error {
		// two rows of three, reversed key order inside each row
		sub := c.Split(c.Rank()/3, -c.Rank())
		mu.Lock()
		sizes[c.Rank()] = sub.Size()
		mu.Unlock()
		if want := 2 - c.Rank()%3; sub.Rank() != want {
			return fmt.Errorf("rank %d: sub rank %d want %d", c.Rank(), sub.Rank(), want)
		}
		buf := []complex128{1}
		sub.AllreduceSum(buf)
		if buf[0] != 3 {
			return fmt.Errorf("rank %d: sub allreduce %v", c.Rank(), buf[0])
		}
		if none := c.Split(-1, 0); none != nil {
			return errors.New("negative color must give nil")
		}
		return nil
	})
	require.NoError(t, err)
	for r := 0; r < size; r++ {
		assert.Equal(t, 3, sizes[r])
	}
}

func TestRunReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(3, func(c *Comm) error {
		if c.Rank() == 1 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Error(t, Run(0, func(*Comm) error { return nil }))
}

func TestFailedRankAbortsCollectives(t *testing.T) {
	boom := errors.New("boom")
	var mu sync.Mutex
	var passed int
	done := make(chan error, 1)
	go func() {
		done <- Run(4, func(c *Comm) error {
			if c.Rank() == 2 {
				return boom
			}
			// the peers wait on rank 2 inside a split and a barrier
			sub := c.Split(0, c.Rank())
			sub.Barrier()
			mu.Lock()
			passed++
			mu.Unlock()
			return nil
		})
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, utils.ErrCommunicator)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after a rank failed")
	}
	assert.Zero(t, passed)
}
