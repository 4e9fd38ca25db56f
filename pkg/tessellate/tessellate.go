// Package tessellate walks a recipe graph and produces triangle meshes
// using a geometry kernel, running Loop subdivision where the recipe asks for
// it. One mesh is produced per primitive.
package tessellate

import (
	"context"
	"math"

	"github.com/chazu/loopmesh/pkg/graph"
	"github.com/chazu/loopmesh/pkg/kernel"
	"github.com/chazu/loopmesh/pkg/loop"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"github.com/ungerik/go3d/float64/vec3"
)

// transformStack accumulates spatial transforms during graph traversal.
type transformStack struct {
	translations []graph.Vec3
	rotations    []graph.Vec3
}

func newTransformStack() *transformStack {
	return &transformStack{}
}

func (ts *transformStack) push(translation, rotation graph.Vec3) {
	ts.translations = append(ts.translations, translation)
	ts.rotations = append(ts.rotations, rotation)
}

func (ts *transformStack) pop() {
	if len(ts.translations) > 0 {
		ts.translations = ts.translations[:len(ts.translations)-1]
	}
	if len(ts.rotations) > 0 {
		ts.rotations = ts.rotations[:len(ts.rotations)-1]
	}
}

// accumulatedTranslation returns the sum of all translations on the stack.
func (ts *transformStack) accumulatedTranslation() graph.Vec3 {
	var sum graph.Vec3
	for _, t := range ts.translations {
		sum = sum.Add(t)
	}
	return sum
}

// accumulatedRotation returns the sum of all rotations on the stack.
func (ts *transformStack) accumulatedRotation() graph.Vec3 {
	var sum graph.Vec3
	for _, r := range ts.rotations {
		sum = sum.Add(r)
	}
	return sum
}

// Tessellator turns recipe graphs into meshes.
type Tessellator struct {
	kernel     kernel.Kernel
	subdivider *loop.Subdivider
}

// New returns a Tessellator using k for primitives and a private Loop weight
// cache for subdivision.
func New(k kernel.Kernel) *Tessellator {
	return &Tessellator{kernel: k, subdivider: loop.New()}
}

// NewWithSubdivider returns a Tessellator sharing an existing subdivider.
func NewWithSubdivider(k kernel.Kernel, s *loop.Subdivider) *Tessellator {
	return &Tessellator{kernel: k, subdivider: s}
}

// Tessellate walks g with kernel k. See (*Tessellator).Tessellate.
func Tessellate(g *graph.Graph, k kernel.Kernel) ([]*kernel.Mesh, error) {
	return New(k).Tessellate(context.Background(), g)
}

// Tessellate walks the graph and produces one triangle mesh per primitive.
// The graph is never mutated. ctx is consulted before every subdivision.
func (t *Tessellator) Tessellate(ctx context.Context, g *graph.Graph) ([]*kernel.Mesh, error) {
	if g == nil {
		return nil, nil
	}

	var meshes []*kernel.Mesh
	ts := newTransformStack()

	for _, rootID := range g.Roots {
		root := g.Get(rootID)
		if root == nil {
			continue
		}
		collected, err := t.walkNode(ctx, g, root, ts, "")
		if err != nil {
			return nil, errors.Wrapf(err, "tessellate: walking root %s", rootID.Short())
		}
		meshes = append(meshes, collected...)
	}

	return meshes, nil
}

// walkNode collects the meshes beneath n. part is the name of the nearest
// named ancestor and labels unnamed primitives.
func (t *Tessellator) walkNode(ctx context.Context, g *graph.Graph, n *graph.Node, ts *transformStack, part string) ([]*kernel.Mesh, error) {
	if n.Name != "" {
		part = n.Name
	}
	switch n.Kind {
	case graph.NodePrimitive:
		return t.handlePrimitive(n, ts, part)
	case graph.NodeTransform:
		return t.handleTransform(ctx, g, n, ts, part)
	case graph.NodeSubdivide:
		return t.handleSubdivide(ctx, g, n, ts, part)
	case graph.NodeGroup:
		return t.walkChildren(ctx, g, n, ts, part)
	default:
		return nil, errors.Errorf("unknown node kind: %v", n.Kind)
	}
}

func (t *Tessellator) walkChildren(ctx context.Context, g *graph.Graph, n *graph.Node, ts *transformStack, part string) ([]*kernel.Mesh, error) {
	var meshes []*kernel.Mesh
	for _, child := range g.Children(n) {
		collected, err := t.walkNode(ctx, g, child, ts, part)
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, collected...)
	}
	return meshes, nil
}

// handlePrimitive creates geometry for a primitive node. Kernel solids are
// transformed by the kernel; literal soup is transformed here.
func (t *Tessellator) handlePrimitive(n *graph.Node, ts *transformStack, part string) ([]*kernel.Mesh, error) {
	rot := ts.accumulatedRotation()
	trans := ts.accumulatedTranslation()

	var mesh *kernel.Mesh
	switch data := n.Data.(type) {
	case graph.SoupData:
		mesh = soupMesh(data)
		transformSoup(mesh, rot, trans)

	default:
		var solid kernel.Solid
		switch data := data.(type) {
		case graph.BoxData:
			solid = t.kernel.Box(data.Size.X, data.Size.Y, data.Size.Z)
		case graph.SphereData:
			solid = t.kernel.Sphere(data.Radius)
		case graph.CylinderData:
			solid = t.kernel.Cylinder(data.Height, data.Radius)
		default:
			return nil, errors.Errorf("primitive node %s has unsupported data type %T", n.ID.Short(), n.Data)
		}

		// Rotation first, then translation.
		if !rot.IsZero() {
			solid = t.kernel.Rotate(solid, rot.X, rot.Y, rot.Z)
		}
		if !trans.IsZero() {
			solid = t.kernel.Translate(solid, trans.X, trans.Y, trans.Z)
		}

		var err error
		mesh, err = t.kernel.ToMesh(solid)
		if err != nil {
			return nil, errors.Wrapf(err, "tessellate: ToMesh failed for node %s", n.ID.Short())
		}
	}

	mesh.PartName = part
	if part == "" {
		mesh.PartName = n.ID.Short()
	}

	return []*kernel.Mesh{mesh}, nil
}

// handleTransform pushes the transform, recurses into children, then pops.
func (t *Tessellator) handleTransform(ctx context.Context, g *graph.Graph, n *graph.Node, ts *transformStack, part string) ([]*kernel.Mesh, error) {
	td, ok := n.Data.(graph.TransformData)
	if !ok {
		return nil, errors.Errorf("transform node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}

	var translation, rotation graph.Vec3
	if td.Translation != nil {
		translation = *td.Translation
	}
	if td.Rotation != nil {
		rotation = *td.Rotation
	}

	ts.push(translation, rotation)
	defer ts.pop()
	return t.walkChildren(ctx, g, n, ts, part)
}

// handleSubdivide refines every mesh produced beneath the node.
func (t *Tessellator) handleSubdivide(ctx context.Context, g *graph.Graph, n *graph.Node, ts *transformStack, part string) ([]*kernel.Mesh, error) {
	sd, ok := n.Data.(graph.SubdivideData)
	if !ok {
		return nil, errors.Errorf("subdivide node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}

	meshes, err := t.walkChildren(ctx, g, n, ts, part)
	if err != nil {
		return nil, err
	}

	opts := LoopOptions(sd)
	for i, m := range meshes {
		refined, err := t.Refine(ctx, m, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "tessellate: subdivide node %s, part %q", n.ID.Short(), m.PartName)
		}
		meshes[i] = refined
	}
	return meshes, nil
}

// LoopOptions converts recipe subdivision data into loop options.
func LoopOptions(sd graph.SubdivideData) loop.Options {
	return loop.Options{
		Iterations:   sd.Iterations,
		MaxTriangles: sd.MaxTriangles,
		OnlySplit:    sd.OnlySplit,
		LoopUV:       sd.LoopUV,
		ModifyNormal: sd.ModifyNormal,
	}
}

// Refine runs Loop subdivision over a mesh. Indexed meshes are converted to
// soup first. Normals are renormalized after refinement.
func (t *Tessellator) Refine(ctx context.Context, m *kernel.Mesh, opts loop.Options) (*kernel.Mesh, error) {
	soup := m
	if !m.IsSoup() {
		soup = m.ToSoup()
	}

	position, aux := ToAttributes(soup)
	pos, out, err := t.subdivider.Subdivide(ctx, position, aux, opts)
	if err != nil {
		return nil, err
	}

	refined := FromAttributes(pos, out)
	refined.PartName = m.PartName
	klog.V(1).Infof("tessellate: part %q refined %d -> %d triangles",
		m.PartName, soup.TriangleCount(), refined.TriangleCount())
	return refined, nil
}

// ToAttributes converts a soup mesh into loop buffers. Normals and UVs are
// carried as the "normal" and "uv" channels when their lengths match the
// vertex count.
func ToAttributes(m *kernel.Mesh) (loop.Attribute, *loop.Attributes) {
	position := loop.Attribute{Array: widen(m.Vertices), ItemSize: 3}
	aux := loop.NewAttributes()
	if len(m.Normals) > 0 && len(m.Normals) == len(m.Vertices) {
		aux.Set(loop.NormalAttribute, loop.Attribute{Array: widen(m.Normals), ItemSize: 3})
	}
	if len(m.UVs) > 0 && len(m.UVs) == m.VertexCount()*2 {
		aux.Set(loop.UVAttribute, loop.Attribute{Array: widen(m.UVs), ItemSize: 2})
	}
	return position, aux
}

// FromAttributes converts loop buffers back into a soup mesh.
func FromAttributes(position loop.Attribute, aux *loop.Attributes) *kernel.Mesh {
	m := &kernel.Mesh{Vertices: narrow(position.Array)}
	if normals, ok := aux.Get(loop.NormalAttribute); ok {
		m.Normals = narrow(normals.Array)
		normalize(m.Normals)
	}
	if uvs, ok := aux.Get(loop.UVAttribute); ok {
		m.UVs = narrow(uvs.Array)
	}
	return m
}

func soupMesh(d graph.SoupData) *kernel.Mesh {
	m := &kernel.Mesh{
		Vertices: narrow(d.Positions),
		Normals:  narrow(d.Normals),
		UVs:      narrow(d.UVs),
	}
	if len(m.Normals) == 0 {
		m.RecomputeFlatNormals()
	}
	return m
}

// transformSoup applies an Euler rotation (degrees, same convention as the
// kernel) then a translation to positions, and the rotation to normals.
func transformSoup(m *kernel.Mesh, rot, trans graph.Vec3) {
	if rot.IsZero() && trans.IsZero() {
		return
	}
	r := sdf.RotateZ(radians(rot.Z)).Mul(sdf.RotateY(radians(rot.Y))).Mul(sdf.RotateX(radians(rot.X)))
	full := sdf.Translate3d(v3.Vec{X: trans.X, Y: trans.Y, Z: trans.Z}).Mul(r)

	apply := func(buf []float32, mat sdf.M44) {
		for i := 0; i+3 <= len(buf); i += 3 {
			p := mat.MulPosition(v3.Vec{X: float64(buf[i]), Y: float64(buf[i+1]), Z: float64(buf[i+2])})
			buf[i], buf[i+1], buf[i+2] = float32(p.X), float32(p.Y), float32(p.Z)
		}
	}
	apply(m.Vertices, full)
	if !rot.IsZero() {
		apply(m.Normals, r)
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func widen(in []float32) []float64 {
	if len(in) == 0 {
		return nil
	}
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func narrow(in []float64) []float32 {
	if len(in) == 0 {
		return nil
	}
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// normalize rescales each xyz triple to unit length, leaving zero vectors.
func normalize(buf []float32) {
	for i := 0; i+3 <= len(buf); i += 3 {
		n := vec3.T{float64(buf[i]), float64(buf[i+1]), float64(buf[i+2])}
		if n.LengthSqr() == 0 {
			continue
		}
		n.Normalize()
		buf[i], buf[i+1], buf[i+2] = float32(n[0]), float32(n[1]), float32(n[2])
	}
}
