// Package model defines the fixed Self-PU classifier architectures and
// restores them from checkpoints.
//
// Both networks emit a single logit per sample; its sign is the prediction.
package model

import (
	"fmt"

	"github.com/born-ml/selfpu/internal/checkpoint"
	"github.com/born-ml/selfpu/internal/dataset"
	"github.com/born-ml/selfpu/internal/nn"
	"github.com/born-ml/selfpu/internal/tensor"
)

// Classifier is a restored binary classifier.
type Classifier struct {
	Arch  string
	net   *nn.Sequential
	input tensor.Shape // per-sample input shape
}

// Forward returns one logit per sample as a [batch] tensor.
func (c *Classifier) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	shape := x.Shape()
	if len(shape) < 1 || !tensor.Shape(shape[1:]).Equal(c.input) {
		return nil, fmt.Errorf("%s: input shape %v, want [N %v]", c.Arch, shape, c.input)
	}
	out := c.net.Forward(x)
	return out.Reshape(-1)
}

// StateDict exposes the network parameters for loading.
func (c *Classifier) StateDict() map[string]*tensor.Tensor {
	return c.net.StateDict()
}

// InputShape returns the per-sample input shape.
func (c *Classifier) InputShape() tensor.Shape {
	return c.input
}

// NumParameters counts parameters and running statistics.
func (c *Classifier) NumParameters() int {
	return nn.NumParameters(c.net)
}

func (c *Classifier) String() string {
	return c.Arch + " " + c.net.String()
}

// ForDataset builds the architecture trained on the named dataset.
func ForDataset(name string, backend nn.Backend) (*Classifier, error) {
	switch name {
	case dataset.MNISTName:
		return NewMLP(28*28, backend), nil
	case dataset.CIFARName:
		return NewCNN(backend), nil
	default:
		return nil, fmt.Errorf("%w: %q", dataset.ErrUnknownDataset, name)
	}
}

// Restore copies the checkpoint's state dict into c.
func (c *Classifier) Restore(ckpt *checkpoint.Checkpoint) error {
	if err := nn.LoadStateDict(c, ckpt.StateDict); err != nil {
		return fmt.Errorf("restore %s from %s: %w", c.Arch, ckpt.Path, err)
	}
	return nil
}
