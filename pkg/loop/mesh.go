package loop

// EdgeHandle addresses an edge in a Mesh's edge arena.
type EdgeHandle int32

// NoEdge marks a missing pair.
const NoEdge EdgeHandle = -1

// EdgeKey identifies a directed edge by the identities of its endpoints.
type EdgeKey struct {
	From, To Key
}

// Reverse returns the key of the opposite-direction edge.
func (k EdgeKey) Reverse() EdgeKey {
	return EdgeKey{From: k.To, To: k.From}
}

// Edge is a directed edge of one triangle. Start, End and Opposite are
// vertex slots in the soup buffer; Opposite is the triangle corner that is
// not on the edge.
type Edge struct {
	Key      EdgeKey
	Start    int
	End      int
	Opposite int
	Pair     EdgeHandle
}

// Triangle holds its edges in the order v0→v1, v1→v2, v2→v0.
type Triangle struct {
	Edges [3]EdgeHandle
}

// Mesh is the topology rebuilt from a position buffer for one pass.
type Mesh struct {
	edges     []Edge
	index     map[EdgeKey]EdgeHandle
	triangles []Triangle
	keys      []Key
	neighbors map[Key][]int
	distinct  map[Key][]int
}

// Extract rebuilds triangles, directed edges and adjacency from a position
// buffer. Every three consecutive vertex slots form one triangle.
func Extract(position Attribute) (*Mesh, error) {
	if err := position.Validate(PositionAttribute); err != nil {
		return nil, err
	}
	if position.ItemSize > MaxKeyDims {
		return nil, invalid(CodeBadItemSize, PositionAttribute,
			"position item size %d exceeds %d", position.ItemSize, MaxKeyDims)
	}

	count := position.Count()
	m := &Mesh{
		edges:     make([]Edge, 0, count),
		index:     make(map[EdgeKey]EdgeHandle, count),
		triangles: make([]Triangle, 0, count/3),
		keys:      make([]Key, count),
		neighbors: make(map[Key][]int, count/2),
		distinct:  make(map[Key][]int),
	}
	for i := 0; i < count; i++ {
		m.keys[i] = KeyOf(position.At(i))
	}

	for i := 0; i < count; i += 3 {
		var t Triangle
		t.Edges[0] = m.addEdge(i, i+1, i+2)
		t.Edges[1] = m.addEdge(i+1, i+2, i)
		t.Edges[2] = m.addEdge(i+2, i, i+1)

		m.addNeighbors(m.keys[i], i+1, i+2)
		m.addNeighbors(m.keys[i+1], i, i+2)
		m.addNeighbors(m.keys[i+2], i, i+1)

		m.triangles = append(m.triangles, t)
	}
	return m, nil
}

// addEdge registers a directed edge and links it with its reverse if that
// has already been seen. Pairing goes through handles so both sides stay
// consistent.
func (m *Mesh) addEdge(start, end, opposite int) EdgeHandle {
	key := EdgeKey{From: m.keys[start], To: m.keys[end]}
	h := EdgeHandle(len(m.edges))
	m.edges = append(m.edges, Edge{
		Key:      key,
		Start:    start,
		End:      end,
		Opposite: opposite,
		Pair:     NoEdge,
	})

	// A collapsed edge would find itself as its own reverse.
	if key.From != key.To {
		if p, ok := m.index[key.Reverse()]; ok {
			m.edges[h].Pair = p
			m.edges[p].Pair = h
		}
	}
	m.index[key] = h
	return h
}

func (m *Mesh) addNeighbors(k Key, slots ...int) {
	m.neighbors[k] = append(m.neighbors[k], slots...)
}

// Triangles returns the triangles in buffer order.
func (m *Mesh) Triangles() []Triangle {
	return m.triangles
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.triangles)
}

// EdgeCount returns the number of directed edges.
func (m *Mesh) EdgeCount() int {
	return len(m.edges)
}

// Edge returns the edge addressed by h.
func (m *Mesh) Edge(h EdgeHandle) Edge {
	return m.edges[h]
}

// Lookup returns the handle registered for key.
func (m *Mesh) Lookup(key EdgeKey) (EdgeHandle, bool) {
	h, ok := m.index[key]
	return h, ok
}

// Pair returns the reverse-direction counterpart of h.
func (m *Mesh) Pair(h EdgeHandle) (Edge, bool) {
	p := m.edges[h].Pair
	if p == NoEdge {
		return Edge{}, false
	}
	return m.edges[p], true
}

// IsBoundary reports whether h belongs to only one triangle.
func (m *Mesh) IsBoundary(h EdgeHandle) bool {
	return m.edges[h].Pair == NoEdge
}

// SlotKey returns the identity of the vertex in the given slot.
func (m *Mesh) SlotKey(slot int) Key {
	return m.keys[slot]
}

// Neighbors returns one slot per distinct vertex adjacent to the vertex in
// slot. The slot kept for each neighbor is the first one recorded, so
// auxiliary channels read a stable representative. The result is cached per
// identity and must not be modified.
func (m *Mesh) Neighbors(slot int) []int {
	k := m.keys[slot]
	if d, ok := m.distinct[k]; ok {
		return d
	}
	raw := m.neighbors[k]
	seen := make(map[Key]struct{}, len(raw))
	d := make([]int, 0, len(raw)/2+1)
	for _, s := range raw {
		nk := m.keys[s]
		if _, dup := seen[nk]; dup {
			continue
		}
		seen[nk] = struct{}{}
		d = append(d, s)
	}
	m.distinct[k] = d
	return d
}

// Valence returns the number of distinct vertices adjacent to slot.
func (m *Mesh) Valence(slot int) int {
	return len(m.Neighbors(slot))
}
