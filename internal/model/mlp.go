package model

import (
	"fmt"

	"github.com/born-ml/selfpu/internal/nn"
	"github.com/born-ml/selfpu/internal/tensor"
)

const mlpHidden = 300

// NewMLP builds the MNIST multilayer perceptron:
//
//	[N, 1, dim] -> flatten
//	l1..l4: Linear(300, no bias) -> BatchNorm1d b1..b4 -> ReLU
//	l5:     Linear(300 -> 1)
func NewMLP(dim int, backend nn.Backend) *Classifier {
	layers := []nn.Layer{nn.Anon(nn.Flatten{})}
	in := dim
	for i := 1; i <= 4; i++ {
		layers = append(layers,
			nn.Named(fmt.Sprintf("l%d", i), nn.NewLinear(in, mlpHidden, false, backend)),
			nn.Named(fmt.Sprintf("b%d", i), nn.NewBatchNorm(mlpHidden, backend)),
			nn.Anon(nn.NewReLU(backend)),
		)
		in = mlpHidden
	}
	layers = append(layers, nn.Named("l5", nn.NewLinear(mlpHidden, 1, true, backend)))

	return &Classifier{
		Arch:  "MultiLayerPerceptron",
		net:   nn.NewSequential(layers...),
		input: tensor.Shape{1, dim},
	}
}
