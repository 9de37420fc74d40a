package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/born-ml/selfpu/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDataset yields samples whose single input value is the index.
type fakeDataset struct {
	n       int
	failAt  int
	decoded atomic.Int64
}

func newFakeDataset(n int) *fakeDataset {
	return &fakeDataset{n: n, failAt: -1}
}

func (f *fakeDataset) Name() string             { return "fake" }
func (f *fakeDataset) Len() int                 { return f.n }
func (f *fakeDataset) InputShape() tensor.Shape { return tensor.Shape{1, 2} }

func (f *fakeDataset) Sample(i int) (Sample, error) {
	if i == f.failAt {
		return Sample{}, fmt.Errorf("sample %d is corrupt", i)
	}
	f.decoded.Add(1)
	y := 1
	if i%3 == 0 {
		y = -1
	}
	return Sample{ID: i, Class: i % 10, Label: y, Truth: y, Input: []float32{float32(i), -float32(i)}}, nil
}

func collect(t *testing.T, l *Loader) []Batch {
	t.Helper()
	var out []Batch
	require.NoError(t, l.Run(context.Background(), func(b Batch) error {
		out = append(out, b)
		return nil
	}))
	return out
}

func TestLoader_Order(t *testing.T) {
	for _, workers := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			ds := newFakeDataset(23)
			l, err := NewLoader(ds, WithBatchSize(5), WithWorkers(workers))
			require.NoError(t, err)
			assert.Equal(t, 5, l.NumBatches())

			batches := collect(t, l)
			require.Len(t, batches, 5)

			next := 0
			for i, b := range batches {
				assert.Equal(t, i, b.Index)
				if i < 4 {
					assert.Equal(t, tensor.Shape{5, 1, 2}, b.Inputs.Shape())
				} else {
					assert.Equal(t, tensor.Shape{3, 1, 2}, b.Inputs.Shape(), "last batch is partial")
				}
				for j, id := range b.IDs {
					assert.Equal(t, next, id)
					assert.Equal(t, float32(id), b.Inputs.Data()[2*j])
					assert.Equal(t, id%10, b.Class[j])
					next++
				}
			}
			assert.Equal(t, 23, next)
		})
	}
}

func TestLoader_DefaultBatchSizeIsOne(t *testing.T) {
	l, err := NewLoader(newFakeDataset(3))
	require.NoError(t, err)
	batches := collect(t, l)
	require.Len(t, batches, 3)
	assert.Equal(t, 1, batches[0].Size())
}

func TestLoader_Empty(t *testing.T) {
	l, err := NewLoader(newFakeDataset(0), WithWorkers(2))
	require.NoError(t, err)
	assert.Empty(t, collect(t, l))
}

func TestLoader_InvalidOptions(t *testing.T) {
	_, err := NewLoader(newFakeDataset(1), WithBatchSize(0))
	assert.Error(t, err)
	_, err = NewLoader(newFakeDataset(1), WithWorkers(-1))
	assert.Error(t, err)
}

func TestLoader_DecodeError(t *testing.T) {
	for _, workers := range []int{0, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			ds := newFakeDataset(50)
			ds.failAt = 17
			l, err := NewLoader(ds, WithBatchSize(4), WithWorkers(workers))
			require.NoError(t, err)

			err = l.Run(context.Background(), func(Batch) error { return nil })
			assert.ErrorContains(t, err, "sample 17 is corrupt")
		})
	}
}

func TestLoader_ConsumerError(t *testing.T) {
	stop := errors.New("stop")
	for _, workers := range []int{0, 2} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			l, err := NewLoader(newFakeDataset(100), WithWorkers(workers))
			require.NoError(t, err)

			seen := 0
			err = l.Run(context.Background(), func(b Batch) error {
				seen++
				if b.Index == 9 {
					return stop
				}
				return nil
			})
			assert.ErrorIs(t, err, stop)
			assert.Equal(t, 10, seen)
		})
	}
}

func TestLoader_PrefetchBound(t *testing.T) {
	ds := newFakeDataset(100)
	l, err := NewLoader(ds, WithWorkers(4), WithPrefetch(3))
	require.NoError(t, err)

	err = l.Run(context.Background(), func(b Batch) error {
		// Decoded samples can run at most prefetch batches ahead of the consumer.
		assert.LessOrEqual(t, ds.decoded.Load(), int64(b.Index+1+3))
		return nil
	})
	require.NoError(t, err)
}

func TestLoader_Cancel(t *testing.T) {
	for _, workers := range []int{0, 2} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			l, err := NewLoader(newFakeDataset(1000), WithWorkers(workers))
			require.NoError(t, err)

			err = l.Run(ctx, func(b Batch) error {
				if b.Index == 5 {
					cancel()
				}
				return nil
			})
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}
