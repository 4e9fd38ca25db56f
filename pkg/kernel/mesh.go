package kernel

import (
	"github.com/chewxy/math32"
	"github.com/ungerik/go3d/float64/vec3"
)

// Mesh is a triangle mesh in flat buffers.
// Vertices and Normals hold 3 floats per vertex, UVs 2 floats per vertex.
// Indices holds 3 uint32s per triangle; a mesh without indices is triangle
// soup, where every three consecutive vertices form one triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	UVs      []float32 `json:"uvs"`      // [u0,v0, u1,v1, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName string    `json:"partName"` // which recipe node this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	if m.IsSoup() {
		return m.VertexCount() / 3
	}
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// IsSoup reports whether the mesh is non-indexed.
func (m *Mesh) IsSoup() bool {
	return len(m.Indices) == 0
}

// ToSoup returns a non-indexed copy of the mesh: each index is expanded to
// its own vertex. Normals and UVs are carried along when present. A mesh
// that is already soup is copied as is.
func (m *Mesh) ToSoup() *Mesh {
	out := &Mesh{PartName: m.PartName}
	if m.IsSoup() {
		out.Vertices = append([]float32(nil), m.Vertices...)
		out.Normals = append([]float32(nil), m.Normals...)
		out.UVs = append([]float32(nil), m.UVs...)
		return out
	}

	hasNormals := len(m.Normals) == len(m.Vertices)
	hasUVs := len(m.UVs) == m.VertexCount()*2 && len(m.UVs) > 0

	out.Vertices = make([]float32, 0, len(m.Indices)*3)
	if hasNormals {
		out.Normals = make([]float32, 0, len(m.Indices)*3)
	}
	if hasUVs {
		out.UVs = make([]float32, 0, len(m.Indices)*2)
	}
	for _, idx := range m.Indices {
		i := int(idx)
		out.Vertices = append(out.Vertices, m.Vertices[i*3:i*3+3]...)
		if hasNormals {
			out.Normals = append(out.Normals, m.Normals[i*3:i*3+3]...)
		}
		if hasUVs {
			out.UVs = append(out.UVs, m.UVs[i*2:i*2+2]...)
		}
	}
	return out
}

// RecomputeFlatNormals replaces the normals of a soup mesh with per-face
// normals. Degenerate faces get a zero normal.
func (m *Mesh) RecomputeFlatNormals() {
	if !m.IsSoup() {
		return
	}
	m.Normals = make([]float32, len(m.Vertices))
	for t := 0; t+9 <= len(m.Vertices); t += 9 {
		n := FaceNormal(m.Vertices[t : t+9])
		for j := 0; j < 3; j++ {
			m.Normals[t+j*3] = float32(n[0])
			m.Normals[t+j*3+1] = float32(n[1])
			m.Normals[t+j*3+2] = float32(n[2])
		}
	}
}

// FaceNormal returns the unit normal of the counter-clockwise triangle held
// in tri as three consecutive xyz positions. Degenerate triangles yield the
// zero vector.
func FaceNormal(tri []float32) vec3.T {
	var p [3]vec3.T
	for c := range p {
		p[c] = vec3.T{float64(tri[c*3]), float64(tri[c*3+1]), float64(tri[c*3+2])}
	}
	p[1].Sub(&p[0])
	p[2].Sub(&p[0])
	n := vec3.Cross(&p[1], &p[2])
	if n.LengthSqr() > 0 {
		n.Normalize()
	}
	return n
}

// Bounds returns the axis-aligned bounding box of the vertices.
func (m *Mesh) Bounds() (min, max [3]float32) {
	if m.IsEmpty() {
		return min, max
	}
	copy(min[:], m.Vertices[0:3])
	copy(max[:], m.Vertices[0:3])
	for i := 3; i+3 <= len(m.Vertices); i += 3 {
		for j := 0; j < 3; j++ {
			min[j] = math32.Min(min[j], m.Vertices[i+j])
			max[j] = math32.Max(max[j], m.Vertices[i+j])
		}
	}
	return min, max
}
