package dataset

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/born-ml/selfpu/internal/tensor"
)

// Batch is a group of consecutive samples stacked along a leading batch axis.
type Batch struct {
	Index  int            // batch number, starting at 0
	Inputs *tensor.Tensor // [size, InputShape...]
	Truth  []int
	IDs    []int
	Class  []int
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int {
	return len(b.IDs)
}

// Loader iterates a dataset in order, in batches.
//
// With zero workers batches are decoded inline. Otherwise a pool of workers
// decodes ahead of the consumer, holding at most prefetch batches in flight;
// batches are still delivered in order.
type Loader struct {
	ds        Dataset
	batchSize int
	workers   int
	prefetch  int
	logger    *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithBatchSize sets the number of samples per batch (default 1).
func WithBatchSize(n int) LoaderOption {
	return func(l *Loader) {
		l.batchSize = n
	}
}

// WithWorkers sets the number of decoding goroutines (default 0).
func WithWorkers(n int) LoaderOption {
	return func(l *Loader) {
		l.workers = n
	}
}

// WithPrefetch bounds the number of decoded batches waiting for the consumer.
// Defaults to twice the worker count.
func WithPrefetch(n int) LoaderOption {
	return func(l *Loader) {
		l.prefetch = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader over ds.
func NewLoader(ds Dataset, opts ...LoaderOption) (*Loader, error) {
	l := &Loader{
		ds:        ds,
		batchSize: 1,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0 (got %d)", l.batchSize)
	}
	if l.workers < 0 {
		return nil, fmt.Errorf("workers must be >= 0 (got %d)", l.workers)
	}
	if l.prefetch <= 0 {
		l.prefetch = 2 * l.workers
	}
	return l, nil
}

// NumBatches returns ceil(Len / batchSize); the last batch may be smaller.
func (l *Loader) NumBatches() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() Dataset {
	return l.ds
}

// Run calls fn with every batch in order. It stops at the first error from fn
// or from decoding, or when ctx is cancelled.
func (l *Loader) Run(ctx context.Context, fn func(Batch) error) error {
	n := l.NumBatches()
	l.logger.Debug("loader starting",
		zap.String("dataset", l.ds.Name()),
		zap.Int("samples", l.ds.Len()),
		zap.Int("batches", n),
		zap.Int("workers", l.workers))

	if l.workers == 0 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := l.build(i)
			if err != nil {
				return err
			}
			if err := fn(b); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(l.prefetch))
	jobs := make(chan int)
	// One buffered slot per batch: workers never block on delivery.
	slots := make([]chan Batch, n)
	for i := range slots {
		slots[i] = make(chan Batch, 1)
	}

	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < n; i++ {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < l.workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				b, err := l.build(i)
				if err != nil {
					return err
				}
				slots[i] <- b
			}
			return nil
		})
	}

	g.Go(func() error {
		for i := 0; i < n; i++ {
			select {
			case b := <-slots[i]:
				sem.Release(1)
				if err := fn(b); err != nil {
					return err
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	return g.Wait()
}

// build decodes batch i.
func (l *Loader) build(i int) (Batch, error) {
	start := i * l.batchSize
	end := min(start+l.batchSize, l.ds.Len())
	size := end - start

	sampleShape := l.ds.InputShape()
	per := sampleShape.NumElements()
	data := make([]float32, size*per)
	b := Batch{
		Index: i,
		Truth: make([]int, size),
		IDs:   make([]int, size),
		Class: make([]int, size),
	}

	for j := 0; j < size; j++ {
		s, err := l.ds.Sample(start + j)
		if err != nil {
			return Batch{}, fmt.Errorf("batch %d: %w", i, err)
		}
		if len(s.Input) != per {
			return Batch{}, fmt.Errorf("batch %d: sample %d has %d values, want %d", i, s.ID, len(s.Input), per)
		}
		copy(data[j*per:(j+1)*per], s.Input)
		b.Truth[j] = s.Truth
		b.IDs[j] = s.ID
		b.Class[j] = s.Class
	}

	inputs, err := tensor.Wrap(data, sampleShape.Prepend(size))
	if err != nil {
		return Batch{}, fmt.Errorf("batch %d: %w", i, err)
	}
	b.Inputs = inputs
	return b, nil
}
