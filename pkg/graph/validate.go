package graph

import (
	"fmt"
	"sort"
)

// ValidationSeverity indicates whether a validation finding blocks evaluation
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks evaluation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// Validation codes.
const (
	CodeCycle         = "CYCLE"
	CodeMissingRef    = "MISSING_REF"
	CodeDuplicateName = "DUPLICATE_NAME"
	CodeOrphan        = "ORPHAN"
	CodeKindMismatch  = "KIND_MISMATCH"
	CodeBadDimension  = "BAD_DIMENSION"
	CodeBadSoup       = "BAD_SOUP"
	CodeBadSubdivide  = "BAD_SUBDIVIDE"
)

// ValidationError describes a single validation finding.
type ValidationError struct {
	Code     string             // machine-readable category
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: node %s: %s", e.Severity, e.Code, e.NodeID.Short(), e.Message)
}

// HasErrors reports whether any finding in errs blocks evaluation.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs all structural and parameter checks on the graph and returns
// the findings. An empty slice means the graph is valid. Validate never
// mutates the graph.
func Validate(g *Graph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateNames(g)...)
	errs = append(errs, validateRoots(g)...)
	errs = append(errs, validateKinds(g)...)
	errs = append(errs, validatePrimitives(g)...)
	errs = append(errs, validateSubdivide(g)...)
	return errs
}

// sortedIDs returns node IDs in a stable order so findings are reproducible.
func sortedIDs(g *Graph) []NodeID {
	ids := make([]NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// validateDAG checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
func validateDAG(g *Graph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				Code:     CodeCycle,
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id.Short()),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray

		node, ok := g.Nodes[id]
		if !ok {
			// Dangling reference; handled by validateReferences.
			color[id] = black
			return false
		}

		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}

		color[id] = black
		return false
	}

	for _, id := range sortedIDs(g) {
		if color[id] == white {
			if visit(id) {
				// One cycle error is sufficient.
				break
			}
		}
	}

	return errs
}

// validateReferences checks that every child ID points to an existing node.
func validateReferences(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range sortedIDs(g) {
		node := g.Nodes[id]
		for _, childID := range node.Children {
			if _, ok := g.Nodes[childID]; !ok {
				errs = append(errs, ValidationError{
					Code:     CodeMissingRef,
					NodeID:   node.ID,
					Message:  fmt.Sprintf("child reference %s does not exist", childID.Short()),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateNames checks that every NameIndex entry exists and that no two
// nodes share a name.
func validateNames(g *Graph) []ValidationError {
	var errs []ValidationError

	names := make([]string, 0, len(g.NameIndex))
	for name := range g.NameIndex {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id := g.NameIndex[name]
		if _, ok := g.Nodes[id]; !ok {
			errs = append(errs, ValidationError{
				Code:     CodeMissingRef,
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, id.Short()),
				Severity: SeverityError,
			})
		}
	}

	seen := make(map[string]int)
	for _, id := range sortedIDs(g) {
		if n := g.Nodes[id]; n.Name != "" {
			seen[n.Name]++
		}
	}
	dups := make([]string, 0)
	for name, count := range seen {
		if count > 1 {
			dups = append(dups, name)
		}
	}
	sort.Strings(dups)
	for _, name := range dups {
		errs = append(errs, ValidationError{
			Code:     CodeDuplicateName,
			Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes", name, seen[name]),
			Severity: SeverityError,
		})
	}

	return errs
}

// validateRoots checks that every root exists and warns about nodes
// unreachable from any root.
func validateRoots(g *Graph) []ValidationError {
	var errs []ValidationError

	for _, rid := range g.Roots {
		if _, ok := g.Nodes[rid]; !ok {
			errs = append(errs, ValidationError{
				Code:     CodeMissingRef,
				Message:  fmt.Sprintf("root reference %s does not exist", rid.Short()),
				Severity: SeverityError,
			})
		}
	}

	if len(g.Nodes) == 0 {
		return errs
	}

	reachable := make(map[NodeID]bool)
	queue := make([]NodeID, 0, len(g.Roots))
	for _, rid := range g.Roots {
		if _, ok := g.Nodes[rid]; ok && !reachable[rid] {
			reachable[rid] = true
			queue = append(queue, rid)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Nodes[current]
		if node == nil {
			continue
		}
		for _, childID := range node.Children {
			if !reachable[childID] {
				reachable[childID] = true
				queue = append(queue, childID)
			}
		}
	}

	for _, id := range sortedIDs(g) {
		if reachable[id] {
			continue
		}
		name := g.Nodes[id].Name
		if name == "" {
			name = id.Short()
		}
		errs = append(errs, ValidationError{
			Code:     CodeOrphan,
			NodeID:   id,
			Message:  fmt.Sprintf("node %q is not reachable from any root (orphan)", name),
			Severity: SeverityWarning,
		})
	}

	return errs
}

// validateKinds checks that each node's payload matches its kind.
func validateKinds(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range sortedIDs(g) {
		n := g.Nodes[id]
		ok := false
		switch n.Data.(type) {
		case BoxData, SphereData, CylinderData, SoupData:
			ok = n.Kind == NodePrimitive
		case TransformData:
			ok = n.Kind == NodeTransform
		case SubdivideData:
			ok = n.Kind == NodeSubdivide
		case GroupData:
			ok = n.Kind == NodeGroup
		}
		if !ok {
			errs = append(errs, ValidationError{
				Code:     CodeKindMismatch,
				NodeID:   id,
				Message:  fmt.Sprintf("%s node carries %T", n.Kind, n.Data),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validatePrimitives checks primitive dimensions and soup buffer shapes.
func validatePrimitives(g *Graph) []ValidationError {
	var errs []ValidationError
	bad := func(id NodeID, code, format string, args ...interface{}) {
		errs = append(errs, ValidationError{
			Code:     code,
			NodeID:   id,
			Message:  fmt.Sprintf(format, args...),
			Severity: SeverityError,
		})
	}

	for _, id := range sortedIDs(g) {
		switch d := g.Nodes[id].Data.(type) {
		case BoxData:
			if d.Size.X <= 0 || d.Size.Y <= 0 || d.Size.Z <= 0 {
				bad(id, CodeBadDimension, "box size %s must be positive on every axis", d.Size)
			}
		case SphereData:
			if d.Radius <= 0 {
				bad(id, CodeBadDimension, "sphere radius %g must be positive", d.Radius)
			}
		case CylinderData:
			if d.Height <= 0 || d.Radius <= 0 {
				bad(id, CodeBadDimension, "cylinder height %g and radius %g must be positive", d.Height, d.Radius)
			}
		case SoupData:
			if len(d.Positions) == 0 {
				bad(id, CodeBadSoup, "soup has no positions")
				continue
			}
			if len(d.Positions)%9 != 0 {
				bad(id, CodeBadSoup, "soup positions length %d is not a multiple of 9", len(d.Positions))
				continue
			}
			verts := len(d.Positions) / 3
			if len(d.Normals) != 0 && len(d.Normals) != verts*3 {
				bad(id, CodeBadSoup, "soup normals length %d, want %d", len(d.Normals), verts*3)
			}
			if len(d.UVs) != 0 && len(d.UVs) != verts*2 {
				bad(id, CodeBadSoup, "soup uvs length %d, want %d", len(d.UVs), verts*2)
			}
		}
	}
	return errs
}

// validateSubdivide checks subdivision option ranges and that each
// subdivide node has something to refine.
func validateSubdivide(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range sortedIDs(g) {
		n := g.Nodes[id]
		d, ok := n.Data.(SubdivideData)
		if !ok {
			continue
		}
		if d.Iterations < 0 || d.Iterations > MaxSubdivideIterations {
			errs = append(errs, ValidationError{
				Code:     CodeBadSubdivide,
				NodeID:   id,
				Message:  fmt.Sprintf("iterations %d out of range [0, %d]", d.Iterations, MaxSubdivideIterations),
				Severity: SeverityError,
			})
		}
		if d.MaxTriangles < 0 {
			errs = append(errs, ValidationError{
				Code:     CodeBadSubdivide,
				NodeID:   id,
				Message:  fmt.Sprintf("max-triangles %d must not be negative", d.MaxTriangles),
				Severity: SeverityError,
			})
		}
		if len(n.Children) == 0 {
			errs = append(errs, ValidationError{
				Code:     CodeBadSubdivide,
				NodeID:   id,
				Message:  "subdivide has no children",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}
