// Package loop implements Loop subdivision for triangle soup.
//
// A mesh arrives as a flat position buffer plus optional parallel attribute
// buffers (normals, texture coordinates, ...). Each pass rebuilds directed
// edges and vertex adjacency from the position buffer, inserts a point on
// every edge, repositions the original vertices by a valence-weighted
// neighbor average, and replaces each triangle with four children. Every
// attribute is refined with the same rules on its own buffer, using the
// topology derived from positions.
package loop
