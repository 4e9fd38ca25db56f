package graph

import "fmt"

// Vec3 is a 3D vector in recipe units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale returns v * k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{v.X * k, v.Y * k, v.Z * k}
}

// IsZero reports whether all components are zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// BoxData is an axis-aligned box with its minimum corner at the origin.
type BoxData struct {
	Size Vec3 `json:"size"`
}

func (BoxData) nodeData() {}

// SphereData is a sphere centered at the origin.
type SphereData struct {
	Radius float64 `json:"radius"`
}

func (SphereData) nodeData() {}

// CylinderData is a Z-aligned cylinder centered at the origin.
type CylinderData struct {
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`
}

func (CylinderData) nodeData() {}

// SoupData is literal triangle soup: Positions holds 9 floats per triangle,
// Normals (optional) the same shape and UVs (optional) 6 floats per
// triangle.
type SoupData struct {
	Positions []float64 `json:"positions"`
	Normals   []float64 `json:"normals,omitempty"`
	UVs       []float64 `json:"uvs,omitempty"`
}

func (SoupData) nodeData() {}

// TriangleCount returns the number of triangles in the soup.
func (d SoupData) TriangleCount() int {
	return len(d.Positions) / 9
}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData represents a spatial transformation applied to a child node.
// Created by the (place ...) form.
type TransformData struct {
	Translation *Vec3 `json:"translation,omitempty"`
	Rotation    *Vec3 `json:"rotation,omitempty"` // Euler angles in degrees
}

func (TransformData) nodeData() {}

// ---------------------------------------------------------------------------
// Subdivide
// ---------------------------------------------------------------------------

// MaxSubdivideIterations bounds the iteration count a recipe may request.
// Each iteration multiplies the triangle count by four.
const MaxSubdivideIterations = 8

// SubdivideData carries Loop subdivision options for everything beneath the
// node. MaxTriangles of zero means no budget.
type SubdivideData struct {
	Iterations   int  `json:"iterations"`
	MaxTriangles int  `json:"max_triangles,omitempty"`
	OnlySplit    bool `json:"only_split,omitempty"`
	LoopUV       bool `json:"loop_uv,omitempty"`
	ModifyNormal bool `json:"modify_normal,omitempty"`
}

func (SubdivideData) nodeData() {}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// GroupData represents a logical grouping. Created by (defmesh ...) and
// (group ...).
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}
