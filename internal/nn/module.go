// Package nn implements the inference-only neural network modules used to
// restore Self-PU classifiers from a state dictionary.
//
// Parameter and buffer names follow the PyTorch convention (l1.weight,
// b1.running_mean, ...) so a state dictionary exported from training loads
// without renaming.
package nn

import (
	"github.com/born-ml/selfpu/internal/tensor"
)

// Backend is the set of kernels the modules need.
type Backend interface {
	Linear(x, weight, bias *tensor.Tensor) *tensor.Tensor
	Conv2D(input, kernel, bias *tensor.Tensor, stride, padding int) *tensor.Tensor
	BatchNorm(x, mean, variance, gamma, beta *tensor.Tensor, eps float32) *tensor.Tensor
	ReLU(x *tensor.Tensor) *tensor.Tensor
}

// Module is the base interface for all neural network components.
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// StateDict returns every parameter and buffer keyed by its local name.
	// The returned tensors are the module's own storage: loading writes into them.
	StateDict() map[string]*tensor.Tensor
}
