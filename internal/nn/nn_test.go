package nn

import (
	"errors"
	"slices"
	"testing"

	"github.com/born-ml/selfpu/internal/backend/cpu"
	"github.com/born-ml/selfpu/internal/tensor"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTensor(t *testing.T, data []float32, shape ...int) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(shape))
	require.NoError(t, err)
	return x
}

func newTinyNet(backend Backend) *Sequential {
	return NewSequential(
		Anon(Flatten{}),
		Named("l1", NewLinear(4, 2, false, backend)),
		Named("b1", NewBatchNorm(2, backend)),
		Anon(NewReLU(backend)),
		Named("l2", NewLinear(2, 1, true, backend)),
	)
}

func TestSequential_StateDictKeys(t *testing.T) {
	net := newTinyNet(cpu.New())

	var keys []string
	for k := range net.StateDict() {
		keys = append(keys, k)
	}
	want := []string{
		"b1.bias", "b1.running_mean", "b1.running_var", "b1.weight",
		"l1.weight", "l2.bias", "l2.weight",
	}
	slices.Sort(keys)
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("state dict keys mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, net.Len())
}

func TestSequential_UnnamedParametersUseIndex(t *testing.T) {
	net := NewSequential(Anon(NewLinear(2, 2, true, cpu.New())))
	sd := net.StateDict()
	assert.Contains(t, sd, "0.weight")
	assert.Contains(t, sd, "0.bias")
}

func TestLoadStateDict_Forward(t *testing.T) {
	net := newTinyNet(cpu.New())

	sd := map[string]*tensor.Tensor{
		"l1.weight":       mustTensor(t, []float32{1, 1, 0, 0, 0, 0, 1, -1}, 2, 4),
		"b1.weight":       mustTensor(t, []float32{1, 1}, 2),
		"b1.bias":         mustTensor(t, []float32{0, 0}, 2),
		"b1.running_mean": mustTensor(t, []float32{0, 0}, 2),
		"b1.running_var":  mustTensor(t, []float32{1, 1}, 2),
		"l2.weight":       mustTensor(t, []float32{1, -1}, 1, 2),
		"l2.bias":         mustTensor(t, []float32{0.5}, 1),
	}
	require.NoError(t, LoadStateDict(net, sd))

	// Input [N=2, 1, 4] is flattened to [2, 4].
	x := mustTensor(t, []float32{
		1, 2, 3, 1,
		0, 0, 1, 4,
	}, 2, 1, 4)
	y := net.Forward(x)
	require.Equal(t, tensor.Shape{2, 1}, y.Shape())

	// Row 0: l1 -> [3, 2], relu -> [3, 2], l2 -> 3-2+0.5 = 1.5.
	// Row 1: l1 -> [0, -3], relu -> [0, 0], l2 -> 0.5.
	assert.InDelta(t, 1.5, y.Data()[0], 1e-4)
	assert.InDelta(t, 0.5, y.Data()[1], 1e-4)

	// Loading copies: mutating the source afterwards has no effect.
	sd["l2.bias"].Data()[0] = 100
	assert.InDelta(t, 0.5, net.Forward(x).Data()[1], 1e-4)
}

func TestLoadStateDict_Strict(t *testing.T) {
	net := NewSequential(
		Named("l1", NewLinear(3, 2, true, cpu.New())),
	)
	sd := map[string]*tensor.Tensor{
		"l1.weight": tensor.Zeros(tensor.Shape{2, 4}),
		"l9.weight": tensor.Zeros(tensor.Shape{1}),
	}

	err := LoadStateDict(net, sd)
	require.Error(t, err)

	var serr *StateDictError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, []string{"l1.bias"}, serr.Missing)
	assert.Equal(t, []string{"l9.weight"}, serr.Unexpected)
	require.Len(t, serr.Mismatched, 1)
	assert.Contains(t, serr.Mismatched[0], "l1.weight")
	assert.Contains(t, err.Error(), "missing keys: l1.bias")

	// Nothing was written on failure.
	for _, v := range net.StateDict()["l1.weight"].Data() {
		assert.Zero(t, v)
	}
}

func TestNewBatchNorm_IsIdentity(t *testing.T) {
	bn := NewBatchNorm(3, cpu.New())
	x := mustTensor(t, []float32{1, -2, 3}, 1, 3)
	y := bn.Forward(x)
	for i, v := range x.Data() {
		assert.InDelta(t, v, y.Data()[i], 1e-4)
	}
}

func TestConv2DLayer(t *testing.T) {
	conv := NewConv2D(1, 1, 3, 1, 1, true, cpu.New())
	sd := conv.StateDict()
	sd["weight"].Data()[4] = 2 // center tap
	sd["bias"].Data()[0] = 1

	x := mustTensor(t, []float32{1, 2, 3, 4}, 1, 1, 2, 2)
	y := conv.Forward(x)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, y.Shape())
	assert.Equal(t, []float32{3, 5, 7, 9}, y.Data())
	assert.Equal(t, "Conv2D(in=1, out=1, kernel=3, stride=1, padding=1)", conv.String())
}

func TestNumParameters(t *testing.T) {
	net := newTinyNet(cpu.New())
	// l1: 8, b1: 4*2, l2: 2+1
	assert.Equal(t, 19, NumParameters(net))
}

func TestSequential_String(t *testing.T) {
	net := newTinyNet(cpu.New())
	s := net.String()
	assert.Contains(t, s, "l1: Linear(in=4, out=2, bias=false)")
	assert.Contains(t, s, "ReLU()")
}
