// Package eval runs a restored classifier over a held-out split and
// aggregates the positive/negative accuracy split.
package eval

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/born-ml/selfpu/internal/dataset"
	"github.com/born-ml/selfpu/internal/metrics"
	"github.com/born-ml/selfpu/internal/tensor"
)

// Model produces one logit per sample.
type Model interface {
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
}

// Signer turns logits into {-1, 0, +1} predictions.
type Signer interface {
	Sign(x *tensor.Tensor) []int
}

// Report is the outcome of a full pass over the loader.
type Report struct {
	PACC  metrics.Meter // positive accuracy, weighted by batch size
	NACC  metrics.Meter // negative accuracy, weighted by batch size
	PNACC metrics.Meter // overall accuracy, weighted by batch size

	BatchTime metrics.Meter // seconds per batch
	DataTime  metrics.Meter // seconds waiting for the loader

	Confusion metrics.Confusion
	// PerClass tallies correct predictions by source class (digit or CIFAR category).
	PerClass map[int]*ClassTally
	Samples  int
	Batches  int
	Elapsed  time.Duration
}

// ClassTally counts predictions for one source class.
type ClassTally struct {
	Correct int
	Total   int
}

// Accuracy is the percentage of correct predictions, 0 for an empty tally.
func (t ClassTally) Accuracy() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total) * 100
}

// Classes returns the source classes seen, in ascending order.
func (r *Report) Classes() []int {
	classes := make([]int, 0, len(r.PerClass))
	for c := range r.PerClass {
		classes = append(classes, c)
	}
	slices.Sort(classes)
	return classes
}

func (r *Report) tally(pred, truth, class []int) {
	for i, c := range class {
		t, ok := r.PerClass[c]
		if !ok {
			t = &ClassTally{}
			r.PerClass[c] = t
		}
		t.Total++
		if pred[i] == truth[i] {
			t.Correct++
		}
	}
}

// Summary renders the accuracy line printed at the end of a run.
func (r *Report) Summary() string {
	return fmt.Sprintf("Test: \tPACC %s\tNACC %s\tPNACC %s", r.PACC, r.NACC, r.PNACC)
}

// Exact renders per-class accuracy computed from the confusion counts.
func (r *Report) Exact() string {
	c := r.Confusion
	return fmt.Sprintf("Exact: \tPACC %.3f\tNACC %.3f\tPNACC %.3f\t(%s)",
		c.PositiveAccuracy(), c.NegativeAccuracy(), c.Accuracy(), c)
}

// Evaluator holds the collaborators of a validation pass.
type Evaluator struct {
	model     Model
	signer    Signer
	logger    *zap.Logger
	printFreq int
	now       func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the progress logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPrintFreq logs progress every n batches. Zero disables progress lines.
func WithPrintFreq(n int) Option {
	return func(e *Evaluator) {
		e.printFreq = n
	}
}

// New returns an Evaluator for model.
func New(model Model, signer Signer, opts ...Option) *Evaluator {
	e := &Evaluator{
		model:  model,
		signer: signer,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run evaluates every batch produced by loader, in order.
func (e *Evaluator) Run(ctx context.Context, loader *dataset.Loader) (*Report, error) {
	rep := &Report{PerClass: make(map[int]*ClassTally)}
	start := e.now()
	end := start
	total := loader.NumBatches()

	err := loader.Run(ctx, func(b dataset.Batch) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.DataTime.Update(e.now().Sub(end).Seconds(), 1)

		out, err := e.model.Forward(b.Inputs)
		if err != nil {
			return fmt.Errorf("batch %d: %w", b.Index, err)
		}
		pred := e.signer.Sign(out)
		if len(pred) != b.Size() {
			return fmt.Errorf("batch %d: %d predictions for %d samples", b.Index, len(pred), b.Size())
		}

		acc := metrics.Accuracy(pred, b.Truth)
		n := b.Size()
		rep.PACC.Update(acc.Positive, n)
		rep.NACC.Update(acc.Negative, n)
		rep.PNACC.Update(acc.Overall, n)
		rep.Confusion.Add(pred, b.Truth)
		rep.tally(pred, b.Truth, b.Class)
		rep.Samples += n
		rep.Batches++

		now := e.now()
		rep.BatchTime.Update(now.Sub(end).Seconds(), 1)
		end = now

		if e.printFreq > 0 && b.Index%e.printFreq == 0 {
			e.logger.Info("test progress",
				zap.Int("batch", b.Index),
				zap.Int("batches", total),
				zap.String("time", rep.BatchTime.String()),
				zap.String("data", rep.DataTime.String()),
				zap.String("pacc", rep.PACC.String()),
				zap.String("nacc", rep.NACC.String()),
				zap.String("pnacc", rep.PNACC.String()),
			)
		}
		return nil
	})
	rep.Elapsed = e.now().Sub(start)
	if err != nil {
		return rep, fmt.Errorf("evaluate: %w", err)
	}

	e.logger.Debug("evaluation finished",
		zap.Int("samples", rep.Samples),
		zap.Int("batches", rep.Batches),
		zap.Duration("elapsed", rep.Elapsed),
		zap.Stringer("confusion", rep.Confusion),
	)
	for _, c := range rep.Classes() {
		t := rep.PerClass[c]
		e.logger.Debug("class accuracy",
			zap.Int("class", c),
			zap.Int("correct", t.Correct),
			zap.Int("total", t.Total),
			zap.Float64("acc", t.Accuracy()),
		)
	}
	return rep, nil
}
