package tensor

import "fmt"

// Tensor is a dense, row-major float32 tensor.
//
// Example:
//
//	t := tensor.Zeros(tensor.Shape{2, 3})
//	t.Data()[0] = 1
//	flat, err := t.Reshape(6)
type Tensor struct {
	shape Shape
	data  []float32
}

// Zeros creates a zero-filled tensor. It panics on an invalid shape.
func Zeros(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float32, shape.NumElements()),
	}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := &Tensor{
		shape: shape.Clone(),
		data:  make([]float32, len(data)),
	}
	copy(t.data, data)
	return t, nil
}

// Wrap creates a tensor that takes ownership of data without copying.
func Wrap(data []float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	return &Tensor{shape: shape.Clone(), data: data}, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the backing slice. Writes are visible to the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Reshape returns a view with a new shape sharing the same data.
// A single -1 dimension is inferred from the others.
func (t *Tensor) Reshape(dims ...int) (*Tensor, error) {
	shape := Shape(dims).Clone()
	infer := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if infer >= 0 {
				return nil, fmt.Errorf("reshape %v: only one dimension can be inferred", dims)
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known <= 0 || len(t.data)%known != 0 {
			return nil, fmt.Errorf("reshape %v -> %v: cannot infer dimension", t.shape, dims)
		}
		shape[infer] = len(t.data) / known
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("reshape %v -> %v: %w", t.shape, dims, err)
	}
	if shape.NumElements() != len(t.data) {
		return nil, fmt.Errorf("reshape %v -> %v: element count mismatch", t.shape, dims)
	}
	return &Tensor{shape: shape, data: t.data}, nil
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data}
}

// String returns a short description, not the data.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v)", t.shape)
}
