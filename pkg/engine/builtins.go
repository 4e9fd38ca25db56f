package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/loopmesh/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	name string // human-readable name for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(noderef %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a graph.Vec3.
type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// unknownKeywords reports keywords outside allowed, so typos such as
// :iteration fail loudly instead of being ignored.
func (a kwArgs) unknownKeywords(fn string, allowed ...string) error {
	for k := range a.kw {
		found := false
		for _, want := range allowed {
			if k == want {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: unknown keyword :%s", fn, k)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts a whole number from a Sexp.
func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == float64(int(v.Val)) {
			return int(v.Val), nil
		}
		return 0, fmt.Errorf("expected whole number, got %g", v.Val)
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toBool extracts a boolean from a Sexp. A bare trailing keyword (nil value)
// counts as true, so (subdivide x :only-split) works.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toNodeRef extracts a NodeID from a sexpNodeRef.
func toNodeRef(s zygo.Sexp) (graph.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return graph.ZeroID, fmt.Errorf("expected mesh expression, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toFloats flattens a list of numbers.
func toFloats(s zygo.Sexp) ([]float64, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, err := toFloat64(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// toChildren extracts node references from positional arguments.
func toChildren(fn string, args []zygo.Sexp) ([]graph.NodeID, error) {
	children := make([]graph.NodeID, 0, len(args))
	for i, arg := range args {
		id, err := toNodeRef(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: child %d: %w", fn, i+1, err)
		}
		children = append(children, id)
	}
	return children, nil
}

// ---------------------------------------------------------------------------
// Node ID generation
// ---------------------------------------------------------------------------

// builder populates one graph during one evaluation. Anonymous node IDs come
// from a per-evaluation counter so identical sources yield identical graphs.
type builder struct {
	g       *graph.Graph
	counter uint64
}

func (b *builder) anonID(kind string) graph.NodeID {
	b.counter++
	return graph.NewNodeID(fmt.Sprintf("%s/_anon_%d", kind, b.counter))
}

func (b *builder) add(kind graph.NodeKind, id graph.NodeID, name string, children []graph.NodeID, data graph.NodeData) *sexpNodeRef {
	b.g.AddNode(&graph.Node{
		ID:       id,
		Kind:     kind,
		Name:     name,
		Children: children,
		Data:     data,
	})
	return &sexpNodeRef{id: id, name: name}
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all recipe builtins into a zygomys environment.
// The builtins populate g during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, g *graph.Graph) {
	b := &builder{g: g}

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: graph.Vec3{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (box 10 20 30) or (box :size (vec3 10 20 30))
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeywords("box", "size"); err != nil {
			return zygo.SexpNull, err
		}

		var bd graph.BoxData
		switch {
		case pa.kw["size"] != nil:
			v, err := toVec3(pa.kw["size"])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
			}
			bd.Size = v
		case len(pa.positional) == 3:
			var dims [3]float64
			for i, arg := range pa.positional {
				f, err := toFloat64(arg)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("box: dimension %d: %w", i+1, err)
				}
				dims[i] = f
			}
			bd.Size = graph.Vec3{X: dims[0], Y: dims[1], Z: dims[2]}
		default:
			return zygo.SexpNull, fmt.Errorf("box requires three dimensions or :size")
		}

		return b.add(graph.NodePrimitive, b.anonID("box"), "", nil, bd), nil
	})

	// -----------------------------------------------------------------------
	// (sphere 5) or (sphere :radius 5)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeywords("sphere", "radius"); err != nil {
			return zygo.SexpNull, err
		}

		v, ok := pa.kw["radius"]
		if !ok {
			if len(pa.positional) != 1 {
				return zygo.SexpNull, fmt.Errorf("sphere requires a radius")
			}
			v = pa.positional[0]
		}
		r, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
		}

		return b.add(graph.NodePrimitive, b.anonID("sphere"), "", nil, graph.SphereData{Radius: r}), nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :height 10 :radius 2)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeywords("cylinder", "height", "radius"); err != nil {
			return zygo.SexpNull, err
		}

		var cd graph.CylinderData
		if v, ok := pa.kw["height"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
			}
			cd.Height = f
		}
		if v, ok := pa.kw["radius"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
			}
			cd.Radius = f
		}

		return b.add(graph.NodePrimitive, b.anonID("cylinder"), "", nil, cd), nil
	})

	// -----------------------------------------------------------------------
	// (triangles :positions (list 0 0 0  1 0 0  0 1 0)
	//            :normals (list ...) :uv (list 0 0  1 0  0 1))
	// -----------------------------------------------------------------------
	env.AddFunction("triangles", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeywords("triangles", "positions", "normals", "uv"); err != nil {
			return zygo.SexpNull, err
		}

		var sd graph.SoupData
		v, ok := pa.kw["positions"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("triangles requires :positions")
		}
		pos, err := toFloats(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("triangles: positions: %w", err)
		}
		sd.Positions = pos

		if v, ok := pa.kw["normals"]; ok {
			n, err := toFloats(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("triangles: normals: %w", err)
			}
			sd.Normals = n
		}
		if v, ok := pa.kw["uv"]; ok {
			uv, err := toFloats(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("triangles: uv: %w", err)
			}
			sd.UVs = uv
		}

		return b.add(graph.NodePrimitive, b.anonID("triangles"), "", nil, sd), nil
	})

	// -----------------------------------------------------------------------
	// (place (sphere 2) :at (vec3 0 0 10) :rotate (vec3 0 0 45))
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeywords("place", "at", "rotate"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("place requires a mesh expression as first argument")
		}
		children, err := toChildren("place", pa.positional)
		if err != nil {
			return zygo.SexpNull, err
		}

		td := graph.TransformData{}
		if v, ok := pa.kw["at"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: at: %w", err)
			}
			td.Translation = &vec
		}
		if v, ok := pa.kw["rotate"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: rotate: %w", err)
			}
			td.Rotation = &vec
		}

		return b.add(graph.NodeTransform, b.anonID("place"), "", children, td), nil
	})

	// -----------------------------------------------------------------------
	// (subdivide (box 1 1 1) :iterations 2 :max-triangles 5000
	//            :only-split false :loop-uv true :modify-normal false)
	// -----------------------------------------------------------------------
	env.AddFunction("subdivide", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeywords("subdivide",
			"iterations", "max-triangles", "only-split", "loop-uv", "modify-normal"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("subdivide requires at least one mesh expression")
		}
		children, err := toChildren("subdivide", pa.positional)
		if err != nil {
			return zygo.SexpNull, err
		}

		sd := graph.SubdivideData{Iterations: 1}
		if v, ok := pa.kw["iterations"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("subdivide: iterations: %w", err)
			}
			sd.Iterations = n
		}
		if v, ok := pa.kw["max-triangles"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("subdivide: max-triangles: %w", err)
			}
			sd.MaxTriangles = n
		}
		flags := []struct {
			kw  string
			dst *bool
		}{
			{"only-split", &sd.OnlySplit},
			{"loop-uv", &sd.LoopUV},
			{"modify-normal", &sd.ModifyNormal},
		}
		for _, f := range flags {
			v, ok := pa.kw[f.kw]
			if !ok {
				continue
			}
			on, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("subdivide: %s: %w", f.kw, err)
			}
			*f.dst = on
		}

		return b.add(graph.NodeSubdivide, b.anonID("subdivide"), "", children, sd), nil
	})

	// -----------------------------------------------------------------------
	// (group (box 1 1 1) (sphere 2))
	// -----------------------------------------------------------------------
	env.AddFunction("group", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		children, err := toChildren("group", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.add(graph.NodeGroup, b.anonID("group"), "", children, graph.GroupData{}), nil
	})

	// -----------------------------------------------------------------------
	// (defmesh "name" (subdivide ...) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("defmesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("defmesh requires a name argument")
		}

		meshName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defmesh: name: %w", err)
		}
		if meshName == "" {
			return zygo.SexpNull, fmt.Errorf("defmesh: name must not be empty")
		}
		if g.Lookup(meshName) != nil {
			return zygo.SexpNull, fmt.Errorf("defmesh: %q already defined", meshName)
		}

		children, err := toChildren("defmesh", args[1:])
		if err != nil {
			return zygo.SexpNull, err
		}

		ref := b.add(graph.NodeGroup, graph.NewNodeID("defmesh/"+meshName), meshName, children,
			graph.GroupData{Description: meshName})
		g.AddRoot(ref.id)
		return ref, nil
	})

	// -----------------------------------------------------------------------
	// (mesh "name")
	// -----------------------------------------------------------------------
	env.AddFunction("mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("mesh requires a name argument")
		}

		meshName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh: name: %w", err)
		}

		n := g.Lookup(meshName)
		if n == nil {
			return zygo.SexpNull, fmt.Errorf("mesh: no mesh named %q", meshName)
		}

		return &sexpNodeRef{id: n.ID, name: meshName}, nil
	})
}
