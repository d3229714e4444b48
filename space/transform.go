package space

import (
	"fmt"

	"github.com/notargets/spectral/array"
	"github.com/notargets/spectral/basis"
	"github.com/notargets/spectral/config"
	"github.com/notargets/spectral/pencil"
	"github.com/notargets/spectral/utils"
)

// move is one redistribution between consecutive local transforms
type move struct {
	t        *pencil.Transfer
	backward bool
}

func (m move) run(src, dst *array.Array) error {
	if m.backward {
		return m.t.Backward(src, dst)
	}
	return m.t.Forward(src, dst)
}

// Transform is one of the three pipelines of a space: local basis
// transforms with a redistribution between each consecutive pair.
// Calls are not reentrant.
type Transform struct {
	dir     basis.Direction
	space   *TensorProductSpace
	steps   []*basis.Transform
	moves   []move
	in, out *pencil.Pencil
}

func newTransform(dir basis.Direction, s *TensorProductSpace, steps []*basis.Transform, moves []move,
	in, out *pencil.Pencil) *Transform {
	if len(steps) != len(moves)+1 {
		panic(fmt.Sprintf("space: %d local transforms with %d transfers", len(steps), len(moves)))
	}
	return &Transform{dir: dir, space: s, steps: steps, moves: moves, in: in, out: out}
}

// CallOption adjusts a single pipeline call
type CallOption func(*callOptions)

type callOptions struct {
	kinds config.KindOverrides
	mesh  basis.Mesh
}

// WithKind overrides the implementation variant per family for this call
func WithKind(k config.KindOverrides) CallOption {
	return func(o *callOptions) { o.kinds = k }
}

// WithMesh selects the points a backward call evaluates on
func WithMesh(kind basis.MeshKind) CallOption {
	return func(o *callOptions) { o.mesh = basis.Mesh{Kind: kind} }
}

// WithMeshSpace evaluates a backward call on the quadrature points of s,
// which must have the same physical shape
func WithMeshSpace(s *TensorProductSpace) CallOption {
	return func(o *callOptions) { o.mesh = basis.Mesh{Kind: basis.MeshBasis, Bases: s.bases} }
}

func (tr *Transform) Direction() basis.Direction { return tr.dir }

// Input is the pipeline's internal input buffer
func (tr *Transform) Input() *array.Array {
	if len(tr.steps) == 0 {
		return nil
	}
	return tr.steps[0].Input()
}

// Output is the pipeline's internal output buffer
func (tr *Transform) Output() *array.Array {
	if len(tr.steps) == 0 {
		return nil
	}
	return tr.steps[len(tr.steps)-1].Output()
}

// Steps is the number of local transforms
func (tr *Transform) Steps() int { return len(tr.steps) }

// Transfers is the number of redistributions
func (tr *Transform) Transfers() int { return len(tr.moves) }

// InputPencil and OutputPencil are the layouts of Input and Output
func (tr *Transform) InputPencil() *pencil.Pencil  { return tr.in }
func (tr *Transform) OutputPencil() *pencil.Pencil { return tr.out }

// Call runs the pipeline. A non-nil in is copied into the input buffer;
// otherwise the buffer's current contents are transformed. With a nil out
// the internal output buffer is returned, and is overwritten by the next
// call.
func (tr *Transform) Call(in, out *array.Array, opts ...CallOption) (*array.Array, error) {
	if tr == nil || len(tr.steps) == 0 {
		return nil, fmt.Errorf("%w: space has no transform pipeline", utils.ErrConfiguration)
	}
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	s := tr.space
	if tr.dir == basis.ForwardDir && s.forwardErr != nil {
		return nil, s.forwardErr
	}
	if in != nil {
		if err := tr.Input().CopyFrom(in); err != nil {
			return nil, fmt.Errorf("%s input: %w", tr.dir, err)
		}
	}
	// Forward carries the metric in the basis mass weights
	if tr.dir == basis.ScalarDir {
		if err := s.measure(tr.Input()); err != nil {
			return nil, err
		}
	}
	var err error
	if tr.dir == basis.ForwardDir && len(s.NonhomogeneousAxes()) > 1 {
		err = s.coupledForward(tr, o)
	} else {
		err = tr.run(len(tr.steps), o)
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		return tr.Output(), nil
	}
	if err := out.CopyFrom(tr.Output()); err != nil {
		return nil, fmt.Errorf("%s output: %w", tr.dir, err)
	}
	return out, nil
}

// run executes the first n local transforms. With n < Steps the chain stops
// after redistributing into the input of step n.
func (tr *Transform) run(n int, o callOptions) error {
	for i := 0; i < n && i < len(tr.steps); i++ {
		if err := tr.exec(i, o); err != nil {
			return err
		}
		if i < len(tr.moves) && (i < n-1 || n < len(tr.steps)) {
			if err := tr.moves[i].run(tr.steps[i].Output(), tr.steps[i+1].Input()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (tr *Transform) exec(i int, o callOptions) error {
	st := tr.steps[i]
	b := st.Basis()
	return st.Execute(basis.ExecOptions{
		Kind: tr.space.kinds.Resolve(b.Family(), o.kinds),
		Mesh: o.mesh.ForAxis(b.Axis()),
	})
}

// stepOf is the position of the local transform along axis
func (tr *Transform) stepOf(axis int) int {
	for i, st := range tr.steps {
		if st.Basis().Axis() == axis {
			return i
		}
	}
	return -1
}

// VectorTransform broadcasts a pipeline call over the leaves of a
// composite space
type VectorTransform struct {
	dir    basis.Direction
	leaves []*Transform
}

func (v *VectorTransform) Direction() basis.Direction { return v.dir }

// Components returns the per-leaf pipelines
func (v *VectorTransform) Components() []*Transform { return append([]*Transform(nil), v.leaves...) }

// Call transforms every component of in into out. Both are indexed by
// leaf. With a nil out every component is copied out of the shared leaf
// buffers. meshes, when given, holds one option list per leaf that is
// appended to opts for that leaf.
func (v *VectorTransform) Call(in, out []*array.Array, meshes [][]CallOption, opts ...CallOption) ([]*array.Array, error) {
	n := len(v.leaves)
	if in != nil && len(in) != n {
		return nil, fmt.Errorf("%w: %d input components for %d leaves", utils.ErrShapeMismatch, len(in), n)
	}
	if out != nil && len(out) != n {
		return nil, fmt.Errorf("%w: %d output components for %d leaves", utils.ErrShapeMismatch, len(out), n)
	}
	if meshes != nil && len(meshes) != n {
		return nil, fmt.Errorf("%w: %d meshes for %d leaves", utils.ErrConfiguration, len(meshes), n)
	}
	res := make([]*array.Array, n)
	for i, tr := range v.leaves {
		var src, dst *array.Array
		if in != nil {
			src = in[i]
		}
		if out != nil {
			dst = out[i]
		}
		o := opts
		if meshes != nil {
			o = append(append([]CallOption(nil), opts...), meshes[i]...)
		}
		r, err := tr.Call(src, dst, o...)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		if dst == nil {
			r = r.Clone()
		}
		res[i] = r
	}
	return res, nil
}
