package cpu

import (
	"fmt"

	"github.com/born-ml/selfpu/internal/parallel"
	"github.com/born-ml/selfpu/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
//	out_h = (H + 2*padding - K_h) / stride + 1
//
// bias may be nil.
func (cpu *Backend) Conv2D(input, kernel, bias *tensor.Tensor, stride, padding int) *tensor.Tensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d / padding %d", stride, padding))
	}

	N, CIn, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	COut, KH, KW := kernelShape[0], kernelShape[2], kernelShape[3]

	if CIn != kernelShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", CIn, kernelShape[1]))
	}
	if bias != nil && !bias.Shape().Equal(tensor.Shape{COut}) {
		panic(fmt.Sprintf("conv2d: bias shape %v, want [%d]", bias.Shape(), COut))
	}

	HOut := (H+2*padding-KH)/stride + 1
	WOut := (W+2*padding-KW)/stride + 1
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", HOut, WOut))
	}

	output := tensor.Zeros(tensor.Shape{N, COut, HOut, WOut})
	inputData := input.Data()
	kernelData := kernel.Data()
	outputData := output.Data()
	var biasData []float32
	if bias != nil {
		biasData = bias.Data()
	}

	colWidth := CIn * KH * KW
	plane := HOut * WOut
	colBuf := make([]float32, plane*colWidth)

	for n := 0; n < N; n++ {
		sample := inputData[n*CIn*H*W : (n+1)*CIn*H*W]
		im2col(colBuf, sample, CIn, H, W, KH, KW, HOut, WOut, stride, padding)

		// Each output channel writes a disjoint plane of the output.
		dst := outputData[n*COut*plane : (n+1)*COut*plane]
		parallel.For(COut, func(c int) {
			kr := kernelData[c*colWidth : (c+1)*colWidth]
			out := dst[c*plane : (c+1)*plane]
			b := float32(0)
			if biasData != nil {
				b = biasData[c]
			}
			for p := 0; p < plane; p++ {
				col := colBuf[p*colWidth : (p+1)*colWidth]
				sum := b
				for k, v := range kr {
					sum += v * col[k]
				}
				out[p] = sum
			}
		}, cpu.par)
	}

	return output
}

// im2col unrolls one sample [C, H, W] into rows of [H_out * W_out, C * K_h * K_w].
// Positions falling in the padding read as zero.
func im2col(colBuf, sample []float32, C, H, W, KH, KW, HOut, WOut, stride, padding int) {
	colWidth := C * KH * KW
	row := 0
	for outH := 0; outH < HOut; outH++ {
		for outW := 0; outW < WOut; outW++ {
			hStart := outH*stride - padding
			wStart := outW*stride - padding
			bufIdx := row * colWidth

			for c := 0; c < C; c++ {
				for kh := 0; kh < KH; kh++ {
					h := hStart + kh
					for kw := 0; kw < KW; kw++ {
						w := wStart + kw
						if h >= 0 && h < H && w >= 0 && w < W {
							colBuf[bufIdx] = sample[c*H*W+h*W+w]
						} else {
							colBuf[bufIdx] = 0
						}
						bufIdx++
					}
				}
			}
			row++
		}
	}
}
