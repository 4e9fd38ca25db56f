package manifold

import "github.com/ungerik/go3d/float64/vec3"

// DefaultSegments is the circular segment count used by New.
const DefaultSegments = 48

// vertexNormals averages the area-weighted face normals incident on each
// vertex of an indexed mesh. Vertices with no incident area keep a zero
// normal.
func vertexNormals(vertices []float32, indices []uint32) []float32 {
	at := func(idx uint32) vec3.T {
		i := int(idx) * 3
		return vec3.T{float64(vertices[i]), float64(vertices[i+1]), float64(vertices[i+2])}
	}

	sums := make([]vec3.T, len(vertices)/3)
	for t := 0; t+2 < len(indices); t += 3 {
		tri := indices[t : t+3]
		p0, e1, e2 := at(tri[0]), at(tri[1]), at(tri[2])
		e1.Sub(&p0)
		e2.Sub(&p0)
		n := vec3.Cross(&e1, &e2)
		for _, idx := range tri {
			sums[idx].Add(&n)
		}
	}

	normals := make([]float32, len(vertices))
	for i := range sums {
		n := &sums[i]
		if n.LengthSqr() > 1e-24 {
			n.Normalize()
		}
		normals[i*3] = float32(n[0])
		normals[i*3+1] = float32(n[1])
		normals[i*3+2] = float32(n[2])
	}
	return normals
}
