package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// NodeID is a content-addressed identifier derived from a node's path in the
// recipe (e.g. "defmesh/pebble").
type NodeID string

// ZeroID is the empty NodeID.
const ZeroID NodeID = ""

// NewNodeID hashes path into a NodeID.
func NewNodeID(path string) NodeID {
	sum := sha256.Sum256([]byte(path))
	return NodeID(hex.EncodeToString(sum[:]))
}

// IsZero reports whether id is unset.
func (id NodeID) IsZero() bool {
	return id == ZeroID
}

// Short returns the first 6 bytes of the id in hex, for messages.
func (id NodeID) Short() string {
	if len(id) <= 12 {
		return string(id)
	}
	return string(id[:12])
}

// NodeKind enumerates the types of nodes in the recipe graph.
type NodeKind int

const (
	NodePrimitive NodeKind = iota // box, sphere, cylinder or raw soup
	NodeTransform                 // spatial transformation (place)
	NodeSubdivide                 // Loop subdivision of everything beneath
	NodeGroup                     // logical grouping (defmesh, group)
)

func (k NodeKind) String() string {
	switch k {
	case NodePrimitive:
		return "primitive"
	case NodeTransform:
		return "transform"
	case NodeSubdivide:
		return "subdivide"
	case NodeGroup:
		return "group"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is the fundamental element of the recipe graph.
type Node struct {
	ID       NodeID   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Children []NodeID `json:"children,omitempty"`
	Data     NodeData `json:"data"`
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}
