package cpu

import (
	"fmt"

	"github.com/born-ml/selfpu/internal/parallel"
	"github.com/born-ml/selfpu/internal/tensor"
)

// Linear computes y = x @ W.T + b.
//
//	x: [N, in]
//	W: [out, in]
//	b: [out] or nil
//	y: [N, out]
func (cpu *Backend) Linear(x, weight, bias *tensor.Tensor) *tensor.Tensor {
	xs, ws := x.Shape(), weight.Shape()
	if len(xs) != 2 || len(ws) != 2 {
		panic(fmt.Sprintf("linear: expected 2D input and weight, got %v and %v", xs, ws))
	}
	n, in := xs[0], xs[1]
	out := ws[0]
	if ws[1] != in {
		panic(fmt.Sprintf("linear: input features %d != weight features %d", in, ws[1]))
	}
	if bias != nil && !bias.Shape().Equal(tensor.Shape{out}) {
		panic(fmt.Sprintf("linear: bias shape %v, want [%d]", bias.Shape(), out))
	}

	y := tensor.Zeros(tensor.Shape{n, out})
	xd, wd, yd := x.Data(), weight.Data(), y.Data()
	var bd []float32
	if bias != nil {
		bd = bias.Data()
	}

	// Both operands are walked row-wise: W is stored [out, in], so W.T needs no copy.
	parallel.For(n*out, func(idx int) {
		i, j := idx/out, idx%out
		xr := xd[i*in : (i+1)*in]
		wr := wd[j*in : (j+1)*in]
		sum := float32(0)
		for k, v := range xr {
			sum += v * wr[k]
		}
		if bd != nil {
			sum += bd[j]
		}
		yd[idx] = sum
	}, cpu.par)

	return y
}
