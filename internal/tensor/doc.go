// Package tensor provides the dense float32 tensor used by the inference kernels.
//
// Tensors are row-major and always own their backing slice. There is no autograd:
// evaluation only ever runs forward passes.
package tensor
