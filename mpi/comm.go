// Package mpi provides an in-process message passing communicator. Ranks
// are goroutines started by Run; collectives are blocking and must be
// called in the same order by every rank of a communicator. A rank that
// skips or reorders a collective leaves the others blocked, unless it
// fails: Run then aborts the collectives of every other rank.
package mpi

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/notargets/spectral/utils"
	"golang.org/x/sync/errgroup"
)

const pairDepth = 16

// group is the shared state of one communicator: a channel per ordered
// pair of ranks. done is closed when the world is aborted.
type group struct {
	size  int
	pairs [][]chan any // pairs[src][dst]
	done  <-chan struct{}
}

// aborted unwinds a rank blocked in a collective once a peer has failed
type aborted struct{}

func newGroup(size int, done <-chan struct{}) *group {
	g := &group{size: size, pairs: make([][]chan any, size), done: done}
	for s := range g.pairs {
		g.pairs[s] = make([]chan any, size)
		for d := range g.pairs[s] {
			g.pairs[s][d] = make(chan any, pairDepth)
		}
	}
	return g
}

// Comm is one rank's handle on a communicator
type Comm struct {
	g      *group
	rank   int
	logger hclog.Logger
}

// Option configures Run
type Option func(*runOptions)

type runOptions struct {
	logger hclog.Logger
}

// WithLogger attaches a logger to every rank
func WithLogger(l hclog.Logger) Option {
	return func(o *runOptions) { o.logger = l }
}

// Self returns a communicator containing only the caller
func Self() *Comm {
	return &Comm{g: newGroup(1, nil), logger: hclog.NewNullLogger()}
}

// Run starts size ranks sharing one world communicator and waits for all
// of them. The first non-nil error is returned. Once a rank fails, every
// collective still pending or entered later on any rank, sub-communicators
// included, unwinds that rank with ErrCommunicator.
func Run(size int, fn func(c *Comm) error, opts ...Option) error {
	if size < 1 {
		return fmt.Errorf("%w: world size %d", utils.ErrCommunicator, size)
	}
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := utils.OrNull(o.logger)
	eg, ctx := errgroup.WithContext(context.Background())
	g := newGroup(size, ctx.Done())
	for r := 0; r < size; r++ {
		c := &Comm{g: g, rank: r, logger: logger.With("rank", r)}
		eg.Go(func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					if _, ok := v.(aborted); !ok {
						panic(v)
					}
					err = fmt.Errorf("%w: rank %d aborted by a failed peer", utils.ErrCommunicator, c.rank)
				}
				c.logger.Trace("rank finished", "error", err)
			}()
			c.logger.Trace("rank started")
			return fn(c)
		})
	}
	return eg.Wait()
}

func (c *Comm) Rank() int { return c.rank }
func (c *Comm) Size() int { return c.g.size }

// Logger returns the rank's logger
func (c *Comm) Logger() hclog.Logger { return c.logger }

func (c *Comm) send(dst int, v any) {
	select {
	case c.g.pairs[c.rank][dst] <- v:
	case <-c.g.done:
		panic(aborted{})
	}
}

func (c *Comm) recv(src int) any {
	select {
	case v := <-c.g.pairs[src][c.rank]:
		return v
	case <-c.g.done:
		panic(aborted{})
	}
}

// Allgather returns every rank's v indexed by rank
func (c *Comm) Allgather(v any) []any {
	for d := 0; d < c.g.size; d++ {
		c.send(d, v)
	}
	out := make([]any, c.g.size)
	for s := 0; s < c.g.size; s++ {
		out[s] = c.recv(s)
	}
	return out
}

// Barrier blocks until every rank has entered it
func (c *Comm) Barrier() {
	c.Allgather(nil)
}

// Bcast returns root's v on every rank
func (c *Comm) Bcast(root int, v any) any {
	if c.rank == root {
		for d := 0; d < c.g.size; d++ {
			if d != root {
				c.send(d, v)
			}
		}
		return v
	}
	return c.recv(root)
}

// AllreduceSum replaces buf with the elementwise sum over ranks. Every rank
// adds in rank order so results are bitwise identical everywhere.
func (c *Comm) AllreduceSum(buf []complex128) {
	if c.g.size == 1 {
		return
	}
	mine := make([]complex128, len(buf))
	copy(mine, buf)
	all := c.Allgather(mine)
	for i := range buf {
		buf[i] = 0
	}
	for _, part := range all {
		p := part.([]complex128)
		if len(p) != len(buf) {
			panic(fmt.Sprintf("mpi: allreduce length %d != %d", len(p), len(buf)))
		}
		for i, v := range p {
			buf[i] += v
		}
	}
}

// Alltoallv sends send[d] to rank d and returns the blocks received, indexed
// by source rank
func (c *Comm) Alltoallv(send [][]complex128) [][]complex128 {
	if len(send) != c.g.size {
		panic(fmt.Sprintf("mpi: alltoallv needs %d blocks, got %d", c.g.size, len(send)))
	}
	for d := 0; d < c.g.size; d++ {
		c.send(d, send[d])
	}
	recv := make([][]complex128, c.g.size)
	for s := 0; s < c.g.size; s++ {
		recv[s] = c.recv(s).([]complex128)
	}
	return recv
}

type splitKey struct {
	color, key int
}

// Split partitions the communicator by color, ordering each new group by
// key then parent rank. A negative color yields nil. Collective.
func (c *Comm) Split(color, key int) *Comm {
	all := c.Allgather(splitKey{color, key})
	var members []int
	for r, v := range all {
		if color >= 0 && v.(splitKey).color == color {
			members = append(members, r)
		}
	}
	if color < 0 {
		return nil
	}
	sort.SliceStable(members, func(i, j int) bool {
		return all[members[i]].(splitKey).key < all[members[j]].(splitKey).key
	})
	leader := members[0]
	for _, m := range members {
		if m < leader {
			leader = m
		}
	}
	var g *group
	if c.rank == leader {
		g = newGroup(len(members), c.g.done)
		for _, m := range members {
			if m != leader {
				c.send(m, g)
			}
		}
	} else {
		g = c.recv(leader).(*group)
	}
	newRank := 0
	for i, m := range members {
		if m == c.rank {
			newRank = i
		}
	}
	return &Comm{g: g, rank: newRank, logger: c.logger}
}
