package array

import (
	"fmt"

	"github.com/notargets/spectral/utils"
)

// Lines returns the flat offset of the first element of every 1D line
// along axis, and the stride between consecutive elements of a line
func (a *Array) Lines(axis int) (offsets []int, stride int) {
	strides := a.Shape.Strides()
	stride = strides[axis]
	n := a.Shape[axis]
	if n == 0 || a.Size() == 0 {
		return nil, stride
	}
	count := a.Size() / n
	offsets = make([]int, 0, count)
	outer := a.Size() / (n * stride)
	for o := 0; o < outer; o++ {
		base := o * n * stride
		for i := 0; i < stride; i++ {
			offsets = append(offsets, base+i)
		}
	}
	return offsets, stride
}

// GetLine copies len(dst) elements starting at off with stride into dst
func (a *Array) GetLine(off, stride int, dst []complex128) {
	for i := range dst {
		dst[i] = a.Data[off+i*stride]
	}
}

// PutLine writes src into the line starting at off
func (a *Array) PutLine(off, stride int, src []complex128) {
	if a.DType == Float64 {
		for i, v := range src {
			a.Data[off+i*stride] = complex(real(v), 0)
		}
		return
	}
	for i, v := range src {
		a.Data[off+i*stride] = v
	}
}

// Odometer walks every index tuple of a shape in row-major order
type Odometer struct {
	shape Shape
	idx   []int
	done  bool
}

func NewOdometer(shape Shape) *Odometer {
	return &Odometer{shape: shape, idx: make([]int, len(shape)), done: shape.Size() == 0}
}

// Index returns the current tuple; it is reused between calls
func (o *Odometer) Index() []int { return o.idx }

func (o *Odometer) Done() bool { return o.done }

func (o *Odometer) Next() {
	for i := len(o.idx) - 1; i >= 0; i-- {
		o.idx[i]++
		if o.idx[i] < o.shape[i] {
			return
		}
		o.idx[i] = 0
	}
	o.done = true
}

// broadcastIndex maps an index of shape dst onto a (possibly size-1) src axis
func broadcastOffset(src *Array, idx []int) int {
	off, stride := 0, 1
	for i := len(src.Shape) - 1; i >= 0; i-- {
		j := idx[i]
		if src.Shape[i] == 1 {
			j = 0
		}
		off += j * stride
		stride *= src.Shape[i]
	}
	return off
}

// Broadcastable reports whether src can stretch to shape
func Broadcastable(src, shape Shape) bool {
	if len(src) != len(shape) {
		return false
	}
	for i := range src {
		if src[i] != shape[i] && src[i] != 1 {
			return false
		}
	}
	return true
}

// BroadcastTo returns a new array of shape with src stretched over its
// size-1 axes
func BroadcastTo(src *Array, shape Shape) (*Array, error) {
	if !Broadcastable(src.Shape, shape) {
		return nil, fmt.Errorf("%w: broadcast %v to %v", utils.ErrShapeMismatch, src.Shape, shape)
	}
	out := Zeros(shape, src.DType)
	o := NewOdometer(shape)
	for k := 0; !o.Done(); o.Next() {
		out.Data[k] = src.Data[broadcastOffset(src, o.Index())]
		k++
	}
	return out, nil
}

// MulBroadcast multiplies a elementwise by f, which may be size 1 along
// any axis
func (a *Array) MulBroadcast(f *Array) error {
	if f.Shape.Equal(a.Shape) {
		for i := range a.Data {
			a.Data[i] *= f.Data[i]
		}
	} else {
		if !Broadcastable(f.Shape, a.Shape) {
			return fmt.Errorf("%w: multiply %v by %v", utils.ErrShapeMismatch, a.Shape, f.Shape)
		}
		o := NewOdometer(a.Shape)
		for k := 0; !o.Done(); o.Next() {
			a.Data[k] *= f.Data[broadcastOffset(f, o.Index())]
			k++
		}
	}
	if a.DType == Float64 && f.DType == Complex128 {
		a.Real()
	}
	return nil
}

// GetAlongAxis copies the hyperplane axis=index into a new array whose
// axis has length 1
func (a *Array) GetAlongAxis(axis, index int) *Array {
	out := Zeros(a.Shape.With(axis, 1), a.DType)
	o := NewOdometer(out.Shape)
	full := make([]int, len(a.Shape))
	for k := 0; !o.Done(); o.Next() {
		copy(full, o.Index())
		full[axis] = index
		out.Data[k] = a.Data[a.Index(full...)]
		k++
	}
	return out
}

// SetAlongAxis assigns src to the hyperplane axis=index. src has length 1
// along axis and broadcasts over other size-1 axes.
func (a *Array) SetAlongAxis(axis, index int, src *Array) error {
	plane := a.Shape.With(axis, 1)
	if !Broadcastable(src.Shape, plane) {
		return fmt.Errorf("%w: set %v into plane %v", utils.ErrShapeMismatch, src.Shape, plane)
	}
	o := NewOdometer(plane)
	full := make([]int, len(a.Shape))
	real64 := a.DType == Float64
	for ; !o.Done(); o.Next() {
		copy(full, o.Index())
		full[axis] = index
		v := src.Data[broadcastOffset(src, o.Index())]
		if real64 {
			v = complex(real(v), 0)
		}
		a.Data[a.Index(full...)] = v
	}
	return nil
}

// FillAlongAxis sets the hyperplane axis=index to v
func (a *Array) FillAlongAxis(axis, index int, v complex128) {
	s := Zeros(Shape(ones(len(a.Shape))), a.DType)
	s.Data[0] = v
	// an all-ones source broadcasts over every plane
	if err := a.SetAlongAxis(axis, index, s); err != nil {
		panic(err)
	}
}

func ones(n int) []int {
	o := make([]int, n)
	for i := range o {
		o[i] = 1
	}
	return o
}

// Block is a rectangular region: Start offsets and extents per axis
type Block struct {
	Start []int
	Count Shape
}

// Pack gathers the block of a into a new flat buffer in row-major order
func (a *Array) Pack(b Block) []complex128 {
	buf := make([]complex128, 0, b.Count.Size())
	o := NewOdometer(b.Count)
	full := make([]int, len(a.Shape))
	for ; !o.Done(); o.Next() {
		for i, j := range o.Index() {
			full[i] = b.Start[i] + j
		}
		buf = append(buf, a.Data[a.Index(full...)])
	}
	return buf
}

// Unpack scatters buf into the block of a
func (a *Array) Unpack(b Block, buf []complex128) {
	if len(buf) != b.Count.Size() {
		panic(fmt.Sprintf("array: unpack %d values into block %v", len(buf), b.Count))
	}
	o := NewOdometer(b.Count)
	full := make([]int, len(a.Shape))
	for k := 0; !o.Done(); o.Next() {
		for i, j := range o.Index() {
			full[i] = b.Start[i] + j
		}
		a.Data[a.Index(full...)] = buf[k]
		k++
	}
}

// SubArray copies the region given by one range per axis
func (a *Array) SubArray(r []Range) *Array {
	b := Block{Start: make([]int, len(r)), Count: make(Shape, len(r))}
	for i, ri := range r {
		b.Start[i] = ri.Start
		b.Count[i] = ri.Len()
	}
	out := Zeros(b.Count, a.DType)
	copy(out.Data, a.Pack(b))
	return out
}

// SetSubArray writes src into the region starting at r[i].Start
func (a *Array) SetSubArray(r []Range, src *Array) {
	b := Block{Start: make([]int, len(r)), Count: make(Shape, len(r))}
	for i, ri := range r {
		b.Start[i] = ri.Start
		b.Count[i] = ri.Len()
	}
	a.Unpack(b, src.Data)
}
