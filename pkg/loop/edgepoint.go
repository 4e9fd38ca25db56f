package loop

const (
	edgeWeight     = 3.0 / 8.0
	oppositeWeight = 1.0 / 8.0
)

// edgePoints holds the point inserted on each directed edge of a mesh for a
// single channel. A nil entry means the edge was never visited.
type edgePoints struct {
	mesh   *Mesh
	attr   Attribute
	smooth bool
	// share lets a directed edge reuse the point already computed for its
	// pair. Only valid where both sides read the same values.
	share  bool
	points []Vertex
}

func newEdgePoints(m *Mesh, attr Attribute, smooth, share bool) *edgePoints {
	return &edgePoints{
		mesh:   m,
		attr:   attr,
		smooth: smooth,
		share:  share,
		points: make([]Vertex, m.EdgeCount()),
	}
}

// smoothChannel reports whether the Loop edge weights apply to the named
// channel under opts.
func smoothChannel(name string, opts Options) bool {
	if opts.OnlySplit {
		return false
	}
	if name == UVAttribute && !opts.LoopUV {
		return false
	}
	return true
}

// visit computes the three edge points of triangle t.
func (ep *edgePoints) visit(t Triangle) {
	for _, h := range t.Edges {
		ep.compute(h)
	}
}

func (ep *edgePoints) compute(h EdgeHandle) Vertex {
	if p := ep.points[h]; p != nil {
		return p
	}
	e := ep.mesh.edges[h]
	if ep.share && e.Pair != NoEdge {
		if p := ep.points[e.Pair]; p != nil {
			ep.points[h] = p
			return p
		}
	}
	p := edgePoint(ep.mesh, e, ep.attr, ep.smooth)
	ep.points[h] = p
	return p
}

// get returns the point for h, or nil if the edge was not visited.
func (ep *edgePoints) get(h EdgeHandle) Vertex {
	return ep.points[h]
}

// edgePoint evaluates the insertion rule for one edge: interior edges under
// smoothing get 3/8·(start+end) + 1/8·(opposite+pairOpposite); everything
// else gets the plain midpoint.
func edgePoint(m *Mesh, e Edge, attr Attribute, smooth bool) Vertex {
	sum := attr.At(e.Start).Add(attr.At(e.End))
	if !smooth || e.Pair == NoEdge {
		return sum.Scale(0.5)
	}
	pair := m.edges[e.Pair]
	out := sum.Scale(edgeWeight)
	out.AddScaled(attr.At(e.Opposite).Add(attr.At(pair.Opposite)), oppositeWeight)
	return out
}
