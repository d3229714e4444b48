package pencil

import (
	"fmt"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/mpi"
	"github.com/notargets/spectral/utils"
)

// PickPlace is the exchange plan with one peer: the block of the local
// array to pick and send, and the block of the receiving array to place
// the peer's data into
type PickPlace struct {
	Peer  int
	Pick  array.Block
	Place array.Block
}

// Transfer redistributes between pencil A (whole along A.Axis) and pencil B
// (whole along B.Axis). Both share the communicator that distributes B.Axis
// in A.
type Transfer struct {
	A, B    *Pencil
	DType   array.DType
	comm    *mpi.Comm
	forward []PickPlace // A -> B
}

// Transfer plans the all-to-all exchange from p to q
func (p *Pencil) Transfer(q *Pencil, dt array.DType) (*Transfer, error) {
	if !p.Shape.Equal(q.Shape) {
		return nil, fmt.Errorf("%w: transfer between shapes %v and %v",
			utils.ErrShapeMismatch, p.Shape, q.Shape)
	}
	a, b := p.Axis, q.Axis
	if a == b {
		return nil, fmt.Errorf("%w: pencils both aligned in axis %d", utils.ErrConfiguration, a)
	}
	comm := p.Subcomm[b]
	if q.Subcomm[a] != comm {
		return nil, fmt.Errorf("%w: pencils %v and %v are not siblings", utils.ErrConfiguration, p, q)
	}
	t := &Transfer{A: p, B: q, DType: dt, comm: comm}
	np, me := comm.Size(), comm.Rank()
	for peer := 0; peer < np; peer++ {
		pick := array.Block{Start: make([]int, len(p.Shape)), Count: p.Subshape.Clone()}
		place := array.Block{Start: make([]int, len(q.Shape)), Count: q.Subshape.Clone()}
		// A sends the part of its whole axis a that peer owns in B
		n, s := BlockDist(p.Shape[a], np, peer)
		pick.Start[a], pick.Count[a] = s, n
		// B receives peer's part of axis b into its whole axis b
		n, s = BlockDist(q.Shape[b], np, peer)
		place.Start[b], place.Count[b] = s, n
		t.forward = append(t.forward, PickPlace{Peer: peer, Pick: pick, Place: place})
	}
	if err := t.verify(me); err != nil {
		return nil, fmt.Errorf("transfer %v -> %v: %w", p, q, err)
	}
	return t, nil
}

// verify checks that every plan lies inside its array and that the picks
// and places each cover their local array exactly once
func (t *Transfer) verify(me int) error {
	picked, placed := 0, 0
	for _, pp := range t.forward {
		if err := inside(pp.Pick, t.A.Subshape); err != nil {
			return fmt.Errorf("pick for peer %d: %w", pp.Peer, err)
		}
		if err := inside(pp.Place, t.B.Subshape); err != nil {
			return fmt.Errorf("place from peer %d: %w", pp.Peer, err)
		}
		picked += pp.Pick.Count.Size()
		placed += pp.Place.Count.Size()
	}
	if picked != t.A.Subshape.Size() {
		return fmt.Errorf("%w: rank %d picks %d of %d values",
			utils.ErrCommunicator, me, picked, t.A.Subshape.Size())
	}
	if placed != t.B.Subshape.Size() {
		return fmt.Errorf("%w: rank %d places %d of %d values",
			utils.ErrCommunicator, me, placed, t.B.Subshape.Size())
	}
	return nil
}

func inside(b array.Block, shape array.Shape) error {
	for i := range shape {
		if b.Start[i] < 0 || b.Count[i] < 0 || b.Start[i]+b.Count[i] > shape[i] {
			return fmt.Errorf("%w: block %v+%v outside %v", utils.ErrCommunicator, b.Start, b.Count, shape)
		}
	}
	return nil
}

func (t *Transfer) check(src, dst *array.Array, from, to *Pencil) error {
	if !src.Shape.Equal(from.Subshape) || !dst.Shape.Equal(to.Subshape) {
		return fmt.Errorf("%w: transfer %v -> %v with pencils %v -> %v",
			utils.ErrShapeMismatch, src.Shape, dst.Shape, from.Subshape, to.Subshape)
	}
	return nil
}

// Forward moves src laid out as A into dst laid out as B. Collective.
func (t *Transfer) Forward(src, dst *array.Array) error {
	if err := t.check(src, dst, t.A, t.B); err != nil {
		return err
	}
	send := make([][]complex128, len(t.forward))
	for _, pp := range t.forward {
		send[pp.Peer] = src.Pack(pp.Pick)
	}
	recv := t.comm.Alltoallv(send)
	for _, pp := range t.forward {
		dst.Unpack(pp.Place, recv[pp.Peer])
	}
	t.comm.Logger().Trace("transfer forward", "from", t.A.Axis, "to", t.B.Axis)
	return nil
}

// Backward moves src laid out as B into dst laid out as A. Collective.
func (t *Transfer) Backward(src, dst *array.Array) error {
	if err := t.check(src, dst, t.B, t.A); err != nil {
		return err
	}
	send := make([][]complex128, len(t.forward))
	for _, pp := range t.forward {
		send[pp.Peer] = src.Pack(pp.Place)
	}
	recv := t.comm.Alltoallv(send)
	for _, pp := range t.forward {
		dst.Unpack(pp.Pick, recv[pp.Peer])
	}
	t.comm.Logger().Trace("transfer backward", "from", t.B.Axis, "to", t.A.Axis)
	return nil
}
