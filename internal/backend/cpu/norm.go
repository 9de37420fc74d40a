package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/selfpu/internal/parallel"
	"github.com/born-ml/selfpu/internal/tensor"
)

// BatchNorm applies inference-mode batch normalization using running statistics:
//
//	y = (x - mean) / sqrt(var + eps) * gamma + beta
//
// x is [N, C] or [N, C, H, W]; mean, var, gamma and beta are [C]. gamma and beta
// may be nil (affine=false).
func (cpu *Backend) BatchNorm(x, mean, variance, gamma, beta *tensor.Tensor, eps float32) *tensor.Tensor {
	shape := x.Shape()
	if len(shape) != 2 && len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm: expected 2D or 4D input, got %dD", len(shape)))
	}
	N, C := shape[0], shape[1]
	spatial := 1
	if len(shape) == 4 {
		spatial = shape[2] * shape[3]
	}
	for name, p := range map[string]*tensor.Tensor{"running_mean": mean, "running_var": variance, "weight": gamma, "bias": beta} {
		if p != nil && !p.Shape().Equal(tensor.Shape{C}) {
			panic(fmt.Sprintf("batchnorm: %s shape %v, want [%d]", name, p.Shape(), C))
		}
	}

	// Fold the statistics into a per-channel scale and shift once.
	scale := make([]float32, C)
	shift := make([]float32, C)
	for c := 0; c < C; c++ {
		s := float32(1 / math.Sqrt(float64(variance.Data()[c]+eps)))
		if gamma != nil {
			s *= gamma.Data()[c]
		}
		scale[c] = s
		shift[c] = -mean.Data()[c] * s
		if beta != nil {
			shift[c] += beta.Data()[c]
		}
	}

	y := tensor.Zeros(shape)
	xd, yd := x.Data(), y.Data()
	parallel.ForBatch(N, C, func(n, c int) {
		off := (n*C + c) * spatial
		s, b := scale[c], shift[c]
		for i := off; i < off+spatial; i++ {
			yd[i] = xd[i]*s + b
		}
	}, cpu.par)
	return y
}
