// Package cpu implements the forward-only inference kernels on the CPU.
//
// Kernels panic on shape errors: callers validate shapes when weights are
// loaded and when batches are assembled, so a mismatch here is a bug.
package cpu

import (
	"github.com/born-ml/selfpu/internal/parallel"
)

// Backend runs kernels on the host CPU.
type Backend struct {
	par parallel.Config
}

// Option configures a Backend.
type Option func(*Backend)

// WithParallel overrides the parallel execution config.
func WithParallel(cfg parallel.Config) Option {
	return func(b *Backend) {
		b.par = cfg
	}
}

// New creates a CPU backend using every available core.
func New(opts ...Option) *Backend {
	b := &Backend{par: parallel.DefaultConfig()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "CPU"
}
