//go:build !manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library. When the "manifold" build tag is not set, this stub
// package is compiled instead, returning an error from New().
//
// Build with: go build -tags=manifold
package manifold

import (
	"github.com/pkg/errors"

	"github.com/chazu/loopmesh/pkg/kernel"
)

// ErrUnavailable is returned by the constructors when the package was built
// without the manifold tag.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// New returns ErrUnavailable.
func New() (kernel.Kernel, error) {
	return NewWithSegments(DefaultSegments)
}

// NewWithSegments returns ErrUnavailable.
func NewWithSegments(segments int) (kernel.Kernel, error) {
	return nil, ErrUnavailable
}
