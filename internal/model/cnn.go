package model

import (
	"fmt"

	"github.com/born-ml/selfpu/internal/nn"
	"github.com/born-ml/selfpu/internal/tensor"
)

// convSpec is one conv -> batch norm -> ReLU block of the CIFAR network.
type convSpec struct {
	out     int
	kernel  int
	stride  int
	padding int
}

// cnnBlocks: two stride-2 convolutions reduce 32x32 to 8x8, the last 1x1 conv
// projects to 10 channels, giving 640 features.
var cnnBlocks = []convSpec{
	{96, 3, 1, 1},
	{96, 3, 1, 1},
	{96, 3, 2, 1},
	{192, 3, 1, 1},
	{192, 3, 1, 1},
	{192, 3, 2, 1},
	{192, 3, 1, 1},
	{192, 1, 1, 0},
	{10, 1, 1, 0},
}

const cnnHidden = 1000

// NewCNN builds the CIFAR-10 convolutional network:
//
//	conv1..conv9 -> BatchNorm2d b1..b9 -> ReLU
//	flatten (10*8*8) -> fc1 1000 -> ReLU -> fc2 1000 -> ReLU -> fc3 1
func NewCNN(backend nn.Backend) *Classifier {
	var layers []nn.Layer
	in, side := 3, 32
	for i, b := range cnnBlocks {
		n := i + 1
		layers = append(layers,
			nn.Named(fmt.Sprintf("conv%d", n), nn.NewConv2D(in, b.out, b.kernel, b.stride, b.padding, true, backend)),
			nn.Named(fmt.Sprintf("b%d", n), nn.NewBatchNorm(b.out, backend)),
			nn.Anon(nn.NewReLU(backend)),
		)
		in = b.out
		side = (side+2*b.padding-b.kernel)/b.stride + 1
	}
	features := in * side * side

	layers = append(layers,
		nn.Anon(nn.Flatten{}),
		nn.Named("fc1", nn.NewLinear(features, cnnHidden, true, backend)),
		nn.Anon(nn.NewReLU(backend)),
		nn.Named("fc2", nn.NewLinear(cnnHidden, cnnHidden, true, backend)),
		nn.Anon(nn.NewReLU(backend)),
		nn.Named("fc3", nn.NewLinear(cnnHidden, 1, true, backend)),
	)

	return &Classifier{
		Arch:  "CNN",
		net:   nn.NewSequential(layers...),
		input: tensor.Shape{3, 32, 32},
	}
}
