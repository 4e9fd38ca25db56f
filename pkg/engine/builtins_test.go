package engine

import (
	"strings"
	"testing"

	"github.com/chazu/loopmesh/pkg/graph"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(sphere :radius 5)`,
			expect: `(sphere "__kw_radius" 5)`,
		},
		{
			name:   "multiple keywords",
			input:  `(cylinder :height 10 :radius 2)`,
			expect: `(cylinder "__kw_height" 10 "__kw_radius" 2)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(def smooth-rock (sphere 2))`,
			expect: `(def smooth_rock (sphere 2))`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:max-triangles`,
			expect: `"__kw_max-triangles"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// mustEval evaluates source and fails the test on any error.
func mustEval(t *testing.T, source string) *graph.Graph {
	t.Helper()
	g, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	return g
}

// mustFail evaluates source and returns the eval errors, failing the test if
// there are none or if evaluation failed fatally.
func mustFail(t *testing.T, source string) []EvalError {
	t.Helper()
	g, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if g != nil {
		t.Fatal("expected nil graph on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error")
	}
	return evalErrs
}

// nodesOfKind returns every node of the given kind.
func nodesOfKind(g *graph.Graph, kind graph.NodeKind) []*graph.Node {
	var out []*graph.Node
	for _, n := range g.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// only returns the single node of the given kind.
func only(t *testing.T, g *graph.Graph, kind graph.NodeKind) *graph.Node {
	t.Helper()
	nodes := nodesOfKind(g, kind)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 %s node, got %d", kind, len(nodes))
	}
	return nodes[0]
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

func TestBoxForms(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"positional", `(defmesh "b" (box 10 20 30))`},
		{"size keyword", `(defmesh "b" (box :size (vec3 10 20 30)))`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustEval(t, tt.source)
			bd, ok := only(t, g, graph.NodePrimitive).Data.(graph.BoxData)
			if !ok {
				t.Fatal("expected BoxData")
			}
			if bd.Size != (graph.Vec3{X: 10, Y: 20, Z: 30}) {
				t.Errorf("size = %v, want (10, 20, 30)", bd.Size)
			}
		})
	}
}

func TestBoxRequiresDimensions(t *testing.T) {
	errs := mustFail(t, `(box 1 2)`)
	if !strings.Contains(errs[0].Message, "box requires") {
		t.Errorf("unexpected message %q", errs[0].Message)
	}
}

func TestSphereAndCylinder(t *testing.T) {
	g := mustEval(t, `
(defmesh "pair"
  (sphere 2.5)
  (sphere :radius 4)
  (cylinder :height 10 :radius 1.5))
`)
	var radii []float64
	var cyl *graph.CylinderData
	for _, n := range nodesOfKind(g, graph.NodePrimitive) {
		switch d := n.Data.(type) {
		case graph.SphereData:
			radii = append(radii, d.Radius)
		case graph.CylinderData:
			cyl = &d
		}
	}
	if len(radii) != 2 {
		t.Fatalf("expected 2 spheres, got %d", len(radii))
	}
	if radii[0]+radii[1] != 6.5 {
		t.Errorf("sphere radii = %v, want 2.5 and 4", radii)
	}
	if cyl == nil || cyl.Height != 10 || cyl.Radius != 1.5 {
		t.Errorf("cylinder = %+v, want height 10 radius 1.5", cyl)
	}
}

func TestTriangles(t *testing.T) {
	g := mustEval(t, `
(defmesh "tri"
  (triangles :positions (list 0 0 0  1 0 0  0 1 0)
             :uv [0 0  1 0  0 1]))
`)
	sd, ok := only(t, g, graph.NodePrimitive).Data.(graph.SoupData)
	if !ok {
		t.Fatal("expected SoupData")
	}
	if len(sd.Positions) != 9 || sd.Positions[3] != 1 || sd.Positions[7] != 1 {
		t.Errorf("positions = %v", sd.Positions)
	}
	if len(sd.UVs) != 6 || sd.UVs[2] != 1 {
		t.Errorf("uvs = %v", sd.UVs)
	}
	if sd.Normals != nil {
		t.Errorf("normals should be absent, got %v", sd.Normals)
	}
}

func TestTrianglesErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"missing positions", `(triangles :uv (list 0 0))`, "requires :positions"},
		{"non-number", `(triangles :positions (list 0 "x" 0))`, "element 1"},
		{"not a list", `(triangles :positions 3)`, "expected list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := mustFail(t, tt.source)
			if !strings.Contains(errs[0].Message, tt.want) {
				t.Errorf("message %q does not contain %q", errs[0].Message, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Place
// ---------------------------------------------------------------------------

func TestPlace(t *testing.T) {
	g := mustEval(t, `
(defmesh "moved"
  (place (sphere 1) :at (vec3 10.5 20.3 30.7) :rotate (vec3 0 0 45)))
`)
	n := only(t, g, graph.NodeTransform)
	td := n.Data.(graph.TransformData)
	if td.Translation == nil || *td.Translation != (graph.Vec3{X: 10.5, Y: 20.3, Z: 30.7}) {
		t.Errorf("translation = %v", td.Translation)
	}
	if td.Rotation == nil || td.Rotation.Z != 45 {
		t.Errorf("rotation = %v", td.Rotation)
	}
	if len(n.Children) != 1 || g.Get(n.Children[0]).Kind != graph.NodePrimitive {
		t.Errorf("place should wrap the sphere, children = %v", n.Children)
	}
}

func TestPlaceBadVector(t *testing.T) {
	errs := mustFail(t, `(place (sphere 1) :at 5)`)
	if !strings.Contains(errs[0].Message, "expected vec3") {
		t.Errorf("unexpected message %q", errs[0].Message)
	}
}

func TestVec3Arity(t *testing.T) {
	mustFail(t, `(vec3 1 2)`)
}

// ---------------------------------------------------------------------------
// Subdivide
// ---------------------------------------------------------------------------

func TestSubdivideDefaults(t *testing.T) {
	g := mustEval(t, `(defmesh "s" (subdivide (box 1 1 1)))`)
	sd := only(t, g, graph.NodeSubdivide).Data.(graph.SubdivideData)
	want := graph.SubdivideData{Iterations: 1}
	if sd != want {
		t.Errorf("defaults = %+v, want %+v", sd, want)
	}
}

func TestSubdivideOptions(t *testing.T) {
	g := mustEval(t, `
(defmesh "s"
  (subdivide (box 1 1 1) (sphere 1)
    :iterations 3 :max-triangles 5000
    :loop-uv true :modify-normal false :only-split))
`)
	n := only(t, g, graph.NodeSubdivide)
	sd := n.Data.(graph.SubdivideData)
	want := graph.SubdivideData{
		Iterations:   3,
		MaxTriangles: 5000,
		OnlySplit:    true,
		LoopUV:       true,
		ModifyNormal: false,
	}
	if sd != want {
		t.Errorf("options = %+v, want %+v", sd, want)
	}
	if len(n.Children) != 2 {
		t.Errorf("expected 2 children, got %d", len(n.Children))
	}
}

func TestSubdivideErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"no child", `(subdivide :iterations 2)`, "at least one mesh"},
		{"typo keyword", `(subdivide (box 1 1 1) :iteration 2)`, "unknown keyword :iteration"},
		{"fractional iterations", `(subdivide (box 1 1 1) :iterations 1.5)`, "whole number"},
		{"bad flag", `(subdivide (box 1 1 1) :loop-uv 1)`, "expected true or false"},
		{"non-mesh child", `(subdivide 42)`, "child 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := mustFail(t, tt.source)
			if !strings.Contains(errs[0].Message, tt.want) {
				t.Errorf("message %q does not contain %q", errs[0].Message, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Grouping and naming
// ---------------------------------------------------------------------------

func TestDefmesh(t *testing.T) {
	g := mustEval(t, `
(defmesh "scene"
  (group (box 1 1 1) (sphere 1))
  (cylinder :height 2 :radius 1))
`)
	scene := g.Lookup("scene")
	if scene == nil {
		t.Fatal("expected node named 'scene'")
	}
	if scene.Kind != graph.NodeGroup {
		t.Errorf("expected NodeGroup, got %s", scene.Kind)
	}
	if len(g.Roots) != 1 || g.Roots[0] != scene.ID {
		t.Errorf("roots = %v, want only scene", g.Roots)
	}
	if len(scene.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(scene.Children))
	}
	if g.Get(scene.Children[0]).Kind != graph.NodeGroup {
		t.Errorf("first child should be the group")
	}
	// scene + group + box + sphere + cylinder
	if g.NodeCount() != 5 {
		t.Errorf("expected 5 nodes, got %d", g.NodeCount())
	}
}

func TestDefmeshDuplicate(t *testing.T) {
	errs := mustFail(t, `
(defmesh "twin" (box 1 1 1))
(defmesh "twin" (sphere 1))
`)
	if !strings.Contains(errs[0].Message, "already defined") {
		t.Errorf("unexpected message %q", errs[0].Message)
	}
}

func TestMeshLookup(t *testing.T) {
	g := mustEval(t, `
(defmesh "rock" (sphere 3))
(defmesh "pile" (place (mesh "rock") :at (vec3 5 0 0)))
`)
	rock := g.MustLookup("rock")
	place := only(t, g, graph.NodeTransform)
	if place.Children[0] != rock.ID {
		t.Errorf("place should reference rock")
	}
}

func TestMeshLookupError(t *testing.T) {
	errs := mustFail(t, `(mesh "nonexistent")`)
	if !strings.Contains(errs[0].Message, "no mesh named") {
		t.Errorf("unexpected message %q", errs[0].Message)
	}
}

// ---------------------------------------------------------------------------
// Variables, determinism and validation
// ---------------------------------------------------------------------------

func TestVariableReference(t *testing.T) {
	g := mustEval(t, `
(def r 3)
(def smooth-rock (subdivide (sphere r) :iterations 2))
(defmesh "pebble" smooth-rock)
`)
	sphere := only(t, g, graph.NodePrimitive)
	if sphere.Data.(graph.SphereData).Radius != 3 {
		t.Errorf("expected radius=3 (from variable), got %v", sphere.Data)
	}
	if only(t, g, graph.NodeSubdivide).Data.(graph.SubdivideData).Iterations != 2 {
		t.Error("expected iterations=2")
	}
}

func TestDeterministicIDs(t *testing.T) {
	source := `(defmesh "a" (subdivide (place (box 1 2 3) :at (vec3 1 0 0))))`
	g1 := mustEval(t, source)
	g2 := mustEval(t, source)

	if g1.NodeCount() != g2.NodeCount() {
		t.Fatalf("node counts differ: %d vs %d", g1.NodeCount(), g2.NodeCount())
	}
	for id := range g1.Nodes {
		if g2.Get(id) == nil {
			t.Errorf("node %s missing from second evaluation", id.Short())
		}
	}
}

func TestFullRecipeValidates(t *testing.T) {
	g := mustEval(t, `
;; a smoothed stool: seat plus three legs, refined twice
(def leg (cylinder :height 20 :radius 1.5))

(defmesh "stool"
  (subdivide
    (place (box 30 30 3) :at (vec3 -15 -15 20))
    (place leg :at (vec3 -10 -10 10))
    (place leg :at (vec3 10 -10 10))
    (place leg :at (vec3 0 10 10))
    :iterations 2 :max-triangles 200000 :loop-uv true))

(defmesh "patch"
  (triangles :positions (list 0 0 0  1 0 0  0 1 0  1 0 0  1 1 0  0 1 0)
             :uv (list 0 0  1 0  0 1  1 0  1 1  0 1)))
`)
	if len(g.Roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(g.Roots))
	}
	if errs := graph.Validate(g); len(errs) != 0 {
		t.Fatalf("expected clean validation, got %v", errs)
	}
}

// ---------------------------------------------------------------------------
// Regressions
// ---------------------------------------------------------------------------

func TestEmptySourceStillWorks(t *testing.T) {
	g := mustEval(t, "")
	if g.NodeCount() != 0 {
		t.Errorf("expected empty graph, got %d nodes", g.NodeCount())
	}
}

func TestArithmeticStillWorks(t *testing.T) {
	mustEval(t, "(+ 1 2)")
}
