package eval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/born-ml/selfpu/internal/backend/cpu"
	"github.com/born-ml/selfpu/internal/dataset"
	"github.com/born-ml/selfpu/internal/model"
	"github.com/born-ml/selfpu/internal/tensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// logitDataset stores one logit per sample as its input.
type logitDataset struct {
	logits []float32
	truth  []int
	class  []int // optional source class per sample
	shape  tensor.Shape
}

func (d *logitDataset) Name() string             { return "logits" }
func (d *logitDataset) Len() int                 { return len(d.truth) }
func (d *logitDataset) InputShape() tensor.Shape { return d.shape }

func (d *logitDataset) Sample(i int) (dataset.Sample, error) {
	in := make([]float32, d.shape.NumElements())
	in[0] = d.logits[i]
	s := dataset.Sample{ID: i, Label: d.truth[i], Truth: d.truth[i], Input: in}
	if d.class != nil {
		s.Class = d.class[i]
	}
	return s, nil
}

// identity returns the first input value of each sample as its logit.
type identity struct{}

func (identity) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	n := x.Shape()[0]
	per := x.NumElements() / n
	out := make([]float32, n)
	for i := range out {
		out[i] = x.Data()[i*per]
	}
	return tensor.FromSlice(out, tensor.Shape{n})
}

type failing struct{ err error }

func (f failing) Forward(*tensor.Tensor) (*tensor.Tensor, error) { return nil, f.err }

func newLoader(t *testing.T, ds dataset.Dataset, opts ...dataset.LoaderOption) *dataset.Loader {
	t.Helper()
	l, err := dataset.NewLoader(ds, opts...)
	require.NoError(t, err)
	return l
}

func TestRun_WeightedMeters(t *testing.T) {
	ds := &logitDataset{
		logits: []float32{2, -3, -1, 0},
		truth:  []int{1, -1, 1, 1},
		shape:  tensor.Shape{1},
	}
	ev := New(identity{}, cpu.New())
	rep, err := ev.Run(context.Background(), newLoader(t, ds, dataset.WithBatchSize(2)))
	require.NoError(t, err)

	// batch 0 is fully correct; batch 1 is all positive and all wrong (sign(0) = 0).
	assert.Equal(t, 2, rep.Batches)
	assert.Equal(t, 4, rep.Samples)
	assert.InDelta(t, 50.0, rep.PACC.Avg, 1e-9)
	assert.InDelta(t, 50.0, rep.NACC.Avg, 1e-9)
	assert.InDelta(t, 50.0, rep.PNACC.Avg, 1e-9)
	assert.Equal(t, 0.0, rep.NACC.Val, "empty negative class reports 0")
	assert.Equal(t, 4, rep.PNACC.Count)

	assert.Equal(t, 1, rep.Confusion.TruePositive)
	assert.Equal(t, 2, rep.Confusion.FalseNegative)
	assert.Equal(t, 1, rep.Confusion.TrueNegative)
	assert.Equal(t, 0, rep.Confusion.FalsePositive)
	assert.InDelta(t, 100.0/3, rep.Confusion.PositiveAccuracy(), 1e-9)
	assert.InDelta(t, 100.0, rep.Confusion.NegativeAccuracy(), 1e-9)

	assert.Equal(t, "Test: \tPACC 0.000 (50.000)\tNACC 0.000 (50.000)\tPNACC 0.000 (50.000)", rep.Summary())
	assert.Contains(t, rep.Exact(), "PACC 33.333\tNACC 100.000\tPNACC 50.000")
}

func TestRun_PerClassTally(t *testing.T) {
	ds := &logitDataset{
		logits: []float32{1, -1, -1, 1, 1},
		truth:  []int{1, 1, -1, -1, 1},
		class:  []int{0, 0, 3, 3, 8},
		shape:  tensor.Shape{1},
	}
	core, logs := observer.New(zapcore.DebugLevel)
	rep, err := New(identity{}, cpu.New(), WithLogger(zap.New(core))).
		Run(context.Background(), newLoader(t, ds, dataset.WithBatchSize(2)))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 3, 8}, rep.Classes())
	assert.Equal(t, ClassTally{Correct: 1, Total: 2}, *rep.PerClass[0])
	assert.Equal(t, ClassTally{Correct: 1, Total: 2}, *rep.PerClass[3])
	assert.Equal(t, 100.0, rep.PerClass[8].Accuracy())
	assert.Equal(t, 50.0, rep.PerClass[0].Accuracy())
	assert.Equal(t, 0.0, ClassTally{}.Accuracy())

	entries := logs.FilterMessage("class accuracy").All()
	require.Len(t, entries, 3)
	assert.Equal(t, int64(8), entries[2].ContextMap()["class"])
}

func TestRun_WorkersMatchInline(t *testing.T) {
	ds := &logitDataset{shape: tensor.Shape{1}}
	for i := range 37 {
		v := float32(i%5) - 2
		ds.logits = append(ds.logits, v)
		if i%2 == 0 {
			ds.truth = append(ds.truth, 1)
		} else {
			ds.truth = append(ds.truth, -1)
		}
	}

	inline, err := New(identity{}, cpu.New()).Run(context.Background(), newLoader(t, ds, dataset.WithBatchSize(4)))
	require.NoError(t, err)
	pooled, err := New(identity{}, cpu.New()).Run(context.Background(),
		newLoader(t, ds, dataset.WithBatchSize(4), dataset.WithWorkers(3)))
	require.NoError(t, err)

	assert.Equal(t, inline.PNACC.Avg, pooled.PNACC.Avg)
	assert.Equal(t, inline.PACC.Avg, pooled.PACC.Avg)
	assert.Equal(t, inline.Confusion, pooled.Confusion)
	assert.Equal(t, inline.PerClass, pooled.PerClass)
	assert.Equal(t, 37, pooled.Samples)
}

func TestRun_ModelError(t *testing.T) {
	ds := &logitDataset{logits: []float32{1}, truth: []int{1}, shape: tensor.Shape{1}}
	boom := errors.New("boom")
	_, err := New(failing{err: boom}, cpu.New()).Run(context.Background(), newLoader(t, ds))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "batch 0")
}

func TestRun_Canceled(t *testing.T) {
	ds := &logitDataset{logits: make([]float32, 8), truth: make([]int, 8), shape: tensor.Shape{1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(identity{}, cpu.New()).Run(ctx, newLoader(t, ds, dataset.WithWorkers(2)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ProgressLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ds := &logitDataset{logits: make([]float32, 5), truth: []int{1, 1, 1, 1, 1}, shape: tensor.Shape{1}}

	ev := New(identity{}, cpu.New(), WithLogger(zap.New(core)), WithPrintFreq(2))
	clock := time.Unix(0, 0)
	ev.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	rep, err := ev.Run(context.Background(), newLoader(t, ds))
	require.NoError(t, err)

	entries := logs.FilterMessage("test progress").All()
	require.Len(t, entries, 3, "batches 0, 2 and 4")
	assert.Equal(t, int64(4), entries[2].ContextMap()["batch"])
	assert.Equal(t, int64(5), entries[0].ContextMap()["batches"])
	assert.Greater(t, rep.Elapsed, time.Duration(0))
	assert.Greater(t, rep.BatchTime.Avg, 0.0)
}

func TestRun_RestoredMLP(t *testing.T) {
	backend := cpu.New()
	clf := model.NewMLP(4, backend)
	// Zero weights leave only the output bias, so every sample predicts +1.
	clf.StateDict()["l5.bias"].Data()[0] = 1

	ds := &logitDataset{
		logits: []float32{0.5, 0.1, 0.9, 0.3},
		truth:  []int{1, -1, 1, -1},
		shape:  tensor.Shape{1, 4},
	}
	rep, err := New(clf, backend).Run(context.Background(), newLoader(t, ds, dataset.WithBatchSize(4)))
	require.NoError(t, err)

	assert.Equal(t, 100.0, rep.PACC.Avg)
	assert.Equal(t, 0.0, rep.NACC.Avg)
	assert.Equal(t, 50.0, rep.PNACC.Avg)
	assert.Equal(t, 2, rep.Confusion.FalsePositive)
}
