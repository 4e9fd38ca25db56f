package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/plan-systems/klog"

	"github.com/chazu/loopmesh/pkg/kernel"
	"github.com/chazu/loopmesh/pkg/kernel/manifold"
	"github.com/chazu/loopmesh/pkg/kernel/sdfx"
)

const usage = `usage: loopmesh [flags] recipe.lisp

Evaluates a mesh recipe, tessellates and subdivides it, and writes the
resulting meshes as JSON.

`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("loopmesh", flag.ContinueOnError)
	fset.SetOutput(stderr)
	klog.InitFlags(fset)
	fset.Set("logtostderr", "true")
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          false,
	})
	defer klog.Flush()

	out := fset.String("out", "", "write JSON to this path instead of stdout")
	kernelName := fset.String("kernel", "sdfx", "geometry kernel for primitives: sdfx or manifold")
	segments := fset.Int("segments", manifold.DefaultSegments, "circular segments for the manifold kernel")
	cells := fset.Int("cells", sdfx.DefaultMeshCells, "marching-cubes cells along the longest axis of each primitive")
	summary := fset.Bool("summary", false, "print a per-mesh triangle summary instead of JSON")
	fset.Usage = func() {
		fmt.Fprint(stderr, usage)
		fset.PrintDefaults()
	}

	if err := fset.Parse(args); err != nil {
		return 2
	}
	if fset.NArg() != 1 {
		fset.Usage()
		return 2
	}

	source, err := os.ReadFile(fset.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "loopmesh: %v\n", err)
		return 1
	}

	k, err := newKernel(*kernelName, *cells, *segments)
	if err != nil {
		fmt.Fprintf(stderr, "loopmesh: %v\n", err)
		return 2
	}

	app := NewAppWithKernel(k)
	result := app.Evaluate(string(source))

	for _, w := range result.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", formatFinding(w))
	}
	for _, e := range result.Errors {
		fmt.Fprintf(stderr, "error: %s\n", formatFinding(e))
	}

	if *summary {
		writeSummary(stdout, result)
	} else if err := writeJSON(*out, stdout, result); err != nil {
		fmt.Fprintf(stderr, "loopmesh: %v\n", err)
		return 1
	}

	if len(result.Errors) > 0 {
		return 1
	}
	return 0
}

// newKernel picks the geometry kernel by name.
func newKernel(name string, cells, segments int) (kernel.Kernel, error) {
	switch name {
	case "sdfx":
		return sdfx.NewWithCells(cells), nil
	case "manifold":
		return manifold.NewWithSegments(segments)
	default:
		return nil, errors.Errorf("unknown kernel %q", name)
	}
}

func formatFinding(e EvalErrorData) string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}

// writeSummary prints one line per mesh with its triangle count and bounds,
// then the total.
func writeSummary(w io.Writer, r EvalResult) {
	for _, m := range r.Meshes {
		fmt.Fprintf(w, "%-24s %8d triangles  min %s  max %s\n",
			m.PartName, m.Triangles, formatPoint(m.Min), formatPoint(m.Max))
	}
	fmt.Fprintf(w, "%-24s %8d triangles\n", "total", r.TriangleCount())
}

func formatPoint(p [3]float32) string {
	return fmt.Sprintf("%g,%g,%g", p[0], p[1], p[2])
}

func writeJSON(path string, stdout io.Writer, r EvalResult) error {
	if path == "" {
		return encodeResult(stdout, r)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating output")
	}
	return encodeAndClose(f, r)
}

// encodeAndClose writes r to wc and closes it. A failed close is reported
// even when the encode succeeded.
func encodeAndClose(wc io.WriteCloser, r EvalResult) error {
	if err := encodeResult(wc, r); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return errors.Wrap(err, "closing output")
	}
	return nil
}

func encodeResult(w io.Writer, r EvalResult) error {
	if err := json.NewEncoder(w).Encode(r); err != nil {
		return errors.Wrap(err, "encoding result")
	}
	return nil
}
