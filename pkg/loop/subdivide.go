package loop

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
)

// Unbounded disables the triangle budget.
const Unbounded = 0

// trianglesPerVisit is the budget charge for each triangle that receives its
// edge points: it will be replaced by four children.
const trianglesPerVisit = 4

// Options controls a subdivision run.
type Options struct {
	// Iterations is the number of subdivision passes. Zero returns the
	// input unchanged.
	Iterations int
	// MaxTriangles caps the running count of generated triangles across all
	// passes. Unbounded (zero) disables the cap.
	MaxTriangles int
	// OnlySplit splits every triangle into four without moving anything:
	// edge points are plain midpoints and original vertices keep their
	// exact values.
	OnlySplit bool
	// LoopUV applies the Loop edge weights to the "uv" channel. When false
	// texture coordinates are interpolated linearly.
	LoopUV bool
	// ModifyNormal is reserved and currently has no effect.
	ModifyNormal bool
}

// DefaultOptions returns one unbounded smoothing pass.
func DefaultOptions() Options {
	return Options{Iterations: 1, MaxTriangles: Unbounded}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.Iterations < 0 {
		return invalid(CodeBadOption, "", "iterations must be non-negative, got %d", o.Iterations)
	}
	if o.MaxTriangles < 0 {
		return invalid(CodeBadOption, "", "maxTriangles must be positive or unbounded, got %d", o.MaxTriangles)
	}
	return nil
}

func (o Options) budgeted() bool {
	return o.MaxTriangles != Unbounded
}

// Subdivider runs Loop subdivision with its own valence weight cache.
// A Subdivider may be shared between goroutines; each call owns all of its
// working state.
type Subdivider struct {
	betas *BetaCache
}

// New returns a Subdivider with a private weight cache.
func New() *Subdivider {
	return &Subdivider{betas: NewBetaCache()}
}

// NewWithCache returns a Subdivider that memoizes weights in c.
func NewWithCache(c *BetaCache) *Subdivider {
	if c == nil {
		c = NewBetaCache()
	}
	return &Subdivider{betas: c}
}

var defaultSubdivider = NewWithCache(sharedBetas)

// Subdivide refines a triangle-soup mesh with the process-wide weight cache.
// See (*Subdivider).Subdivide.
func Subdivide(position Attribute, aux *Attributes, opts Options) (Attribute, *Attributes, error) {
	return defaultSubdivider.Subdivide(context.Background(), position, aux, opts)
}

// Subdivide refines the mesh described by position and the parallel
// auxiliary attributes. Inputs are not modified. The context is consulted
// between passes only.
func (s *Subdivider) Subdivide(ctx context.Context, position Attribute, aux *Attributes, opts Options) (pos Attribute, out *Attributes, err error) {
	if err := validateInputs(position, aux, opts); err != nil {
		return Attribute{}, nil, err
	}
	if opts.ModifyNormal {
		klog.V(2).Infof("loop: modifyNormal requested; option is reserved and ignored")
	}

	defer func() {
		if r := recover(); r != nil {
			pos, out, err = Attribute{}, nil, mismatchError(r)
		}
	}()

	klog.V(2).Infof("loop: subdividing %d triangles (%s)", position.Count()/3, opts)

	r := &run{
		opts:     opts,
		betas:    s.betas,
		position: position.Clone(),
		aux:      make([]channel, 0, aux.Len()),
	}
	aux.Each(func(name string, a Attribute) {
		r.aux = append(r.aux, channel{name: name, attr: a.Clone()})
	})

	for i := 0; i < opts.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return Attribute{}, nil, errors.Wrapf(err, "loop: cancelled before pass %d", i+1)
		}
		if err := r.pass(i); err != nil {
			return Attribute{}, nil, errors.Wrapf(err, "loop: pass %d", i+1)
		}
		if r.overBudget() {
			klog.V(1).Infof("loop: triangle budget %d exceeded after pass %d (count %d)",
				opts.MaxTriangles, i+1, r.charged)
			break
		}
	}

	out = NewAttributes()
	for _, c := range r.aux {
		out.Set(c.name, c.attr)
	}
	return r.position, out, nil
}

// mismatchError converts a value recovered from vertex arithmetic into an
// error. Anything other than a *DimensionMismatchError is re-raised.
func mismatchError(r interface{}) error {
	if r == nil {
		return nil
	}
	dm, ok := r.(*DimensionMismatchError)
	if !ok {
		panic(r)
	}
	return errors.Wrap(dm, "loop: subdivide")
}

func validateInputs(position Attribute, aux *Attributes, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if err := position.Validate(PositionAttribute); err != nil {
		return err
	}
	if position.ItemSize > MaxKeyDims {
		return invalid(CodeBadItemSize, PositionAttribute,
			"position item size %d exceeds %d", position.ItemSize, MaxKeyDims)
	}
	var err error
	aux.Each(func(name string, a Attribute) {
		if err != nil {
			return
		}
		if verr := a.Validate(name); verr != nil {
			err = verr
			return
		}
		if a.Count() != position.Count() {
			err = invalid(CodeCountMismatch, name,
				"attribute has %d vertices, position has %d", a.Count(), position.Count())
		}
	})
	return err
}

// channel is one auxiliary attribute being refined.
type channel struct {
	name string
	attr Attribute
}

// run carries the state of one Subdivide call. Only the evolving buffers and
// the running triangle count survive from one pass to the next.
type run struct {
	opts     Options
	betas    *BetaCache
	position Attribute
	aux      []channel
	charged  int
}

func (r *run) overBudget() bool {
	return r.opts.budgeted() && r.charged > r.opts.MaxTriangles
}

// pass performs one Extract → edge points → reposition → emit cycle.
func (r *run) pass(iter int) error {
	mesh, err := Extract(r.position)
	if err != nil {
		return err
	}

	posPoints := newEdgePoints(mesh, r.position, smoothChannel(PositionAttribute, r.opts), true)
	visited := 0
	for _, t := range mesh.Triangles() {
		posPoints.visit(t)
		visited++
		r.charged += trianglesPerVisit
		if r.overBudget() {
			break
		}
	}

	auxPoints := make([]*edgePoints, len(r.aux))
	for i, c := range r.aux {
		ep := newEdgePoints(mesh, c.attr, smoothChannel(c.name, r.opts), false)
		for _, t := range mesh.Triangles()[:visited] {
			ep.visit(t)
		}
		auxPoints[i] = ep
	}

	emitted := emittable(mesh, posPoints)
	if len(emitted) < mesh.TriangleCount() {
		klog.V(1).Infof("loop: pass %d dropped %d of %d triangles at budget cutoff",
			iter+1, mesh.TriangleCount()-len(emitted), mesh.TriangleCount())
	}

	r.position = r.emit(mesh, emitted, r.position, posPoints)
	for i := range r.aux {
		r.aux[i].attr = r.emit(mesh, emitted, r.aux[i].attr, auxPoints[i])
	}

	klog.V(2).Infof("loop: pass %d: %d triangles in, %d visited, %d out, running count %d",
		iter+1, mesh.TriangleCount(), visited, len(emitted)*4, r.charged)
	return nil
}

// emittable returns the indices of triangles whose three edge points exist.
func emittable(m *Mesh, ep *edgePoints) []int {
	out := make([]int, 0, m.TriangleCount())
	for i, t := range m.Triangles() {
		if ep.get(t.Edges[0]) == nil || ep.get(t.Edges[1]) == nil || ep.get(t.Edges[2]) == nil {
			continue
		}
		out = append(out, i)
	}
	return out
}

// emit writes the four children of every emitted triangle for one channel:
// (v0, ep0, ep2), (ep0, v1, ep1), (ep0, ep1, ep2), (ep1, v2, ep2).
func (r *run) emit(m *Mesh, emitted []int, attr Attribute, ep *edgePoints) Attribute {
	size := attr.ItemSize
	buf := make([]float64, 0, len(emitted)*12*size)
	rp := &repositioner{mesh: m, attr: attr, betas: r.betas}

	corner := func(slot int) Vertex {
		if r.opts.OnlySplit {
			return attr.At(slot)
		}
		return rp.vertex(slot)
	}

	tris := m.Triangles()
	for _, ti := range emitted {
		t := tris[ti]
		v0 := corner(m.edges[t.Edges[0]].Start)
		v1 := corner(m.edges[t.Edges[1]].Start)
		v2 := corner(m.edges[t.Edges[2]].Start)
		ep0, ep1, ep2 := ep.get(t.Edges[0]), ep.get(t.Edges[1]), ep.get(t.Edges[2])

		for _, v := range [12]Vertex{
			v0, ep0, ep2,
			ep0, v1, ep1,
			ep0, ep1, ep2,
			ep1, v2, ep2,
		} {
			if len(v) != size {
				panic(&DimensionMismatchError{Want: size, Got: len(v)})
			}
			buf = append(buf, v...)
		}
	}
	return Attribute{Array: buf, ItemSize: size}
}

// String renders options the way they are logged.
func (o Options) String() string {
	limit := "unbounded"
	if o.budgeted() {
		limit = fmt.Sprint(o.MaxTriangles)
	}
	return fmt.Sprintf("iterations=%d maxTriangles=%s onlySplit=%t loopUv=%t modifyNormal=%t",
		o.Iterations, limit, o.OnlySplit, o.LoopUV, o.ModifyNormal)
}
