package main

import (
	"context"

	"github.com/plan-systems/klog"

	"github.com/chazu/loopmesh/pkg/engine"
	"github.com/chazu/loopmesh/pkg/graph"
	"github.com/chazu/loopmesh/pkg/kernel"
	"github.com/chazu/loopmesh/pkg/kernel/sdfx"
	"github.com/chazu/loopmesh/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App runs mesh recipes through the full pipeline.
type App struct {
	engine      *engine.Engine
	kernel      kernel.Kernel
	tessellator *tessellate.Tessellator
}

// MeshData is the JSON-serializable mesh format written by the binary.
// Meshes are triangle soup, so Indices is usually empty.
type MeshData struct {
	Vertices  []float32  `json:"vertices"`
	Normals   []float32  `json:"normals"`
	UVs       []float32  `json:"uvs,omitempty"`
	Indices   []uint32   `json:"indices,omitempty"`
	Triangles int        `json:"triangles"`
	Min       [3]float32 `json:"min"`
	Max       [3]float32 `json:"max"`
	PartName  string     `json:"partName"`
	Color     string     `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error or validation finding.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// EvalResult is the full result of one evaluation.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// NewApp creates a new App with an engine and the default sdfx kernel.
func NewApp() *App {
	return NewAppWithKernel(sdfx.New())
}

// NewAppWithKernel creates an App that builds primitives with k.
func NewAppWithKernel(k kernel.Kernel) *App {
	return &App{
		engine:      engine.NewEngine(),
		kernel:      k,
		tessellator: tessellate.New(k),
	}
}

// Evaluate takes recipe source and returns mesh data + errors.
func (a *App) Evaluate(source string) EvalResult {
	return a.EvaluateContext(context.Background(), source)
}

// EvaluateContext is Evaluate with a context that bounds tessellation and
// subdivision.
func (a *App) EvaluateContext(ctx context.Context, source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	// Step 1: Evaluate the recipe source into a mesh graph.
	g, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		klog.Warningf("evaluate fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	// Step 2: Validate. Errors block tessellation, warnings are reported.
	findings := graph.Validate(g)
	for _, f := range findings {
		d := EvalErrorData{Code: f.Code, Message: f.Message}
		if f.Severity == graph.SeverityError {
			result.Errors = append(result.Errors, d)
		} else {
			result.Warnings = append(result.Warnings, d)
		}
	}
	if graph.HasErrors(findings) {
		return result
	}

	// Step 3: Tessellate and subdivide.
	meshes, err := a.tessellator.Tessellate(ctx, g)
	if err != nil {
		klog.Warningf("tessellate error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "tessellation failed: " + err.Error(),
		})
		return result
	}

	for i, m := range meshes {
		min, max := m.Bounds()
		result.Meshes = append(result.Meshes, MeshData{
			Vertices:  m.Vertices,
			Normals:   m.Normals,
			UVs:       m.UVs,
			Indices:   m.Indices,
			Triangles: m.TriangleCount(),
			Min:       min,
			Max:       max,
			PartName:  m.PartName,
			Color:     colorPalette[i%len(colorPalette)],
		})
	}

	klog.V(1).Infof("evaluated %d nodes into %d meshes", g.NodeCount(), len(result.Meshes))
	return result
}

// TriangleCount sums the triangles over every mesh in the result.
func (r EvalResult) TriangleCount() int {
	n := 0
	for _, m := range r.Meshes {
		n += m.Triangles
	}
	return n
}
