package nn

import (
	"fmt"

	"github.com/born-ml/selfpu/internal/tensor"
)

// Linear is a fully connected layer: y = x @ W.T + b.
type Linear struct {
	weight  *tensor.Tensor // [out_features, in_features]
	bias    *tensor.Tensor // [out_features] or nil
	backend Backend
}

// NewLinear creates a zero-initialized Linear layer; weights come from a state dict.
func NewLinear(in, out int, useBias bool, backend Backend) *Linear {
	l := &Linear{
		weight:  tensor.Zeros(tensor.Shape{out, in}),
		backend: backend,
	}
	if useBias {
		l.bias = tensor.Zeros(tensor.Shape{out})
	}
	return l
}

// Forward expects [batch, in_features].
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	return l.backend.Linear(input, l.weight, l.bias)
}

// StateDict returns weight and, when present, bias.
func (l *Linear) StateDict() map[string]*tensor.Tensor {
	sd := map[string]*tensor.Tensor{"weight": l.weight}
	if l.bias != nil {
		sd["bias"] = l.bias
	}
	return sd
}

func (l *Linear) String() string {
	s := l.weight.Shape()
	return fmt.Sprintf("Linear(in=%d, out=%d, bias=%t)", s[1], s[0], l.bias != nil)
}

// Conv2D is a 2D convolutional layer.
//
// Weight shape: [out_channels, in_channels, kernel, kernel]
type Conv2D struct {
	weight  *tensor.Tensor
	bias    *tensor.Tensor
	stride  int
	padding int
	backend Backend
}

// NewConv2D creates a square-kernel convolution.
func NewConv2D(in, out, kernel, stride, padding int, useBias bool, backend Backend) *Conv2D {
	c := &Conv2D{
		weight:  tensor.Zeros(tensor.Shape{out, in, kernel, kernel}),
		stride:  stride,
		padding: padding,
		backend: backend,
	}
	if useBias {
		c.bias = tensor.Zeros(tensor.Shape{out})
	}
	return c
}

// Forward expects [batch, in_channels, height, width].
func (c *Conv2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	return c.backend.Conv2D(input, c.weight, c.bias, c.stride, c.padding)
}

// StateDict returns weight and, when present, bias.
func (c *Conv2D) StateDict() map[string]*tensor.Tensor {
	sd := map[string]*tensor.Tensor{"weight": c.weight}
	if c.bias != nil {
		sd["bias"] = c.bias
	}
	return sd
}

func (c *Conv2D) String() string {
	s := c.weight.Shape()
	return fmt.Sprintf("Conv2D(in=%d, out=%d, kernel=%d, stride=%d, padding=%d)", s[1], s[0], s[2], c.stride, c.padding)
}

// BatchNorm normalizes with running statistics; it covers both BatchNorm1d
// ([N, C] input) and BatchNorm2d ([N, C, H, W] input).
type BatchNorm struct {
	runningMean *tensor.Tensor
	runningVar  *tensor.Tensor
	weight      *tensor.Tensor
	bias        *tensor.Tensor
	eps         float32
	backend     Backend
}

// DefaultBatchNormEps matches the training framework's default.
const DefaultBatchNormEps = 1e-5

// NewBatchNorm creates an affine batch norm over numFeatures channels.
// Running variance starts at one so an unloaded layer is the identity.
func NewBatchNorm(numFeatures int, backend Backend) *BatchNorm {
	bn := &BatchNorm{
		runningMean: tensor.Zeros(tensor.Shape{numFeatures}),
		runningVar:  tensor.Zeros(tensor.Shape{numFeatures}),
		weight:      tensor.Zeros(tensor.Shape{numFeatures}),
		bias:        tensor.Zeros(tensor.Shape{numFeatures}),
		eps:         DefaultBatchNormEps,
		backend:     backend,
	}
	for i := range numFeatures {
		bn.runningVar.Data()[i] = 1
		bn.weight.Data()[i] = 1
	}
	return bn
}

// Forward applies y = (x - mean) / sqrt(var + eps) * weight + bias.
func (bn *BatchNorm) Forward(input *tensor.Tensor) *tensor.Tensor {
	return bn.backend.BatchNorm(input, bn.runningMean, bn.runningVar, bn.weight, bn.bias, bn.eps)
}

// StateDict returns the affine parameters and the running statistics.
func (bn *BatchNorm) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"weight":       bn.weight,
		"bias":         bn.bias,
		"running_mean": bn.runningMean,
		"running_var":  bn.runningVar,
	}
}

func (bn *BatchNorm) String() string {
	return fmt.Sprintf("BatchNorm(features=%d, eps=%g)", bn.weight.Shape()[0], bn.eps)
}

// ReLU activation.
type ReLU struct {
	backend Backend
}

// NewReLU creates a ReLU activation.
func NewReLU(backend Backend) *ReLU {
	return &ReLU{backend: backend}
}

// Forward returns max(0, x).
func (r *ReLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	return r.backend.ReLU(input)
}

// StateDict is empty.
func (r *ReLU) StateDict() map[string]*tensor.Tensor { return nil }

func (r *ReLU) String() string { return "ReLU()" }

// Flatten collapses every axis after the batch axis.
type Flatten struct{}

// Forward reshapes [N, ...] to [N, prod(...)].
func (Flatten) Forward(input *tensor.Tensor) *tensor.Tensor {
	out, err := input.Reshape(input.Shape()[0], -1)
	if err != nil {
		panic(fmt.Sprintf("flatten: %v", err))
	}
	return out
}

// StateDict is empty.
func (Flatten) StateDict() map[string]*tensor.Tensor { return nil }

func (Flatten) String() string { return "Flatten()" }
