package cpu

import "github.com/born-ml/selfpu/internal/tensor"

// ReLU returns max(0, x) elementwise.
func (cpu *Backend) ReLU(x *tensor.Tensor) *tensor.Tensor {
	y := tensor.Zeros(x.Shape())
	yd := y.Data()
	for i, v := range x.Data() {
		if v > 0 {
			yd[i] = v
		}
	}
	return y
}

// Sign returns -1, 0 or +1 per element, matching torch.sign.
func (cpu *Backend) Sign(x *tensor.Tensor) []int {
	out := make([]int, x.NumElements())
	for i, v := range x.Data() {
		switch {
		case v > 0:
			out[i] = 1
		case v < 0:
			out[i] = -1
		}
	}
	return out
}
