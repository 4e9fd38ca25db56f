// Package graph defines the mesh recipe graph produced by the DSL.
// The graph is an immutable DAG of primitives, transforms, subdivision
// steps and groups; tessellation walks it from the roots.
package graph
