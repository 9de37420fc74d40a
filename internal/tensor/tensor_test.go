package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElements(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		want  int
	}{
		{"scalar", Shape{}, 1},
		{"vector", Shape{5}, 5},
		{"matrix", Shape{3, 4}, 12},
		{"image batch", Shape{2, 3, 32, 32}, 6144},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.shape.NumElements())
		})
	}
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 784}.Validate())
	require.Error(t, Shape{1, 0}.Validate())
	require.Error(t, Shape{-1}.Validate())
}

func TestShape_Prepend(t *testing.T) {
	s := Shape{3, 32, 32}
	got := s.Prepend(8)
	assert.Equal(t, Shape{8, 3, 32, 32}, got)
	assert.Equal(t, Shape{3, 32, 32}, s, "original must not change")
}

func TestFromSlice(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5, 6}
	x, err := FromSlice(src, Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, x.Shape())

	src[0] = 100
	assert.Equal(t, float32(1), x.Data()[0], "FromSlice must copy")

	_, err = FromSlice(src, Shape{4, 2})
	assert.Error(t, err)
}

func TestWrap_SharesData(t *testing.T) {
	src := []float32{1, 2, 3}
	x, err := Wrap(src, Shape{3})
	require.NoError(t, err)
	src[1] = 7
	assert.Equal(t, float32(7), x.Data()[1])
}

func TestReshape(t *testing.T) {
	x := Zeros(Shape{2, 1, 784})

	flat, err := x.Reshape(2, -1)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 784}, flat.Shape())

	flat.Data()[0] = 3
	assert.Equal(t, float32(3), x.Data()[0], "reshape is a view")

	_, err = x.Reshape(3, -1)
	assert.Error(t, err)
	_, err = x.Reshape(-1, -1)
	assert.Error(t, err)
	_, err = x.Reshape(2, 100)
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	x, err := FromSlice([]float32{1, 2}, Shape{2})
	require.NoError(t, err)
	y := x.Clone()
	y.Data()[0] = 9
	assert.Equal(t, float32(1), x.Data()[0])
}
