// Command selfpu-eval measures a trained Self-PU classifier on the MNIST or
// CIFAR-10 test split and prints its positive, negative and overall accuracy.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/selfpu/internal/backend/cpu"
	"github.com/born-ml/selfpu/internal/checkpoint"
	"github.com/born-ml/selfpu/internal/config"
	"github.com/born-ml/selfpu/internal/dataset"
	"github.com/born-ml/selfpu/internal/eval"
	"github.com/born-ml/selfpu/internal/logging"
	"github.com/born-ml/selfpu/internal/model"
)

const rule = "====================================="

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(os.Stdout, logging.New)
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// newRootCmd wires flags to an evaluation run. Results go to out; logs go
// wherever newLogger sends them.
func newRootCmd(out io.Writer, newLogger func(verbose bool) (*zap.Logger, error)) *cobra.Command {
	var (
		configPath string
		o          config.Overrides
		seed       int64
		gpu        int
		workers    int
		name       string
		datapath   string
		modelPath  string
		batchSize  int
		maxSamples int
		printFreq  int
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:          "selfpu-eval",
		Short:        "Evaluate a Self-PU binary classifier on a held-out split",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("seed") {
				o.Seed = &seed
			}
			if flags.Changed("gpu") {
				o.GPU = &gpu
			}
			if flags.Changed("workers") {
				o.Workers = &workers
			}
			if flags.Changed("dataset") {
				o.Dataset = &name
			}
			if flags.Changed("datapath") {
				o.DataPath = &datapath
			}
			if flags.Changed("model") {
				o.Model = &modelPath
			}
			if flags.Changed("batch-size") {
				o.BatchSize = &batchSize
			}
			if flags.Changed("max-samples") {
				o.MaxSamples = &maxSamples
			}
			if flags.Changed("print-freq") {
				o.PrintFreq = &printFreq
			}
			if flags.Changed("verbose") {
				o.Verbose = &verbose
			}

			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			cfg.ApplyOverrides(o)
			fmt.Fprintln(out, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg.Verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return run(cmd.Context(), cfg, out, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file; flags override its values")
	f.Int64Var(&seed, "seed", 0, "seed for --max-samples subsetting")
	f.IntVar(&gpu, "gpu", 0, "GPU id to use (evaluation runs on CPU)")
	f.IntVarP(&workers, "workers", "j", 4, "data loading workers")
	f.StringVar(&name, "dataset", "mnist", "dataset: mnist or cifar")
	f.StringVar(&datapath, "datapath", "", "directory holding the test split")
	f.StringVar(&modelPath, "model", "", "safetensors checkpoint to evaluate (required)")
	f.IntVar(&batchSize, "batch-size", 1, "samples per batch")
	f.IntVar(&maxSamples, "max-samples", 0, "evaluate a random subset of this size (0 = all)")
	f.IntVar(&printFreq, "print-freq", 0, "log progress every N batches (0 = never)")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	if cfg.GPU != nil {
		logger.Warn("no GPU backend available, evaluating on CPU", zap.Int("gpu", *cfg.GPU))
	}

	ds, err := dataset.Open(cfg.Dataset, cfg.DataPath)
	if err != nil {
		return err
	}
	if cfg.MaxSamples > 0 {
		var seed uint64
		if cfg.Seed != nil {
			seed = uint64(*cfg.Seed)
		}
		ds = dataset.RandomSubset(ds, cfg.MaxSamples, seed)
	}
	logger.Info("dataset ready",
		zap.String("dataset", ds.Name()),
		zap.Int("samples", ds.Len()),
		zap.Stringer("input", ds.InputShape()))

	loader, err := dataset.NewLoader(ds,
		dataset.WithBatchSize(cfg.BatchSize),
		dataset.WithWorkers(cfg.Workers),
		dataset.WithLogger(logger))
	if err != nil {
		return err
	}

	backend := cpu.New()
	clf, err := model.ForDataset(cfg.Dataset, backend)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Evaluation mode!")

	ckpt, err := checkpoint.Load(cfg.Model)
	if err != nil {
		return err
	}
	if err := clf.Restore(ckpt); err != nil {
		return err
	}
	logger.Info("model restored",
		zap.String("arch", clf.Arch),
		zap.String("checkpoint", ckpt.Path),
		zap.Int("parameters", clf.NumParameters()),
		zap.String("metadata", formatMetadata(ckpt.Metadata)),
		zap.Strings("skipped", ckpt.Skipped))

	ev := eval.New(clf, backend,
		eval.WithLogger(logger),
		eval.WithPrintFreq(cfg.PrintFreq))
	rep, err := ev.Run(ctx, loader)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, rep.Summary())
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, rep.Exact())
	logger.Info("evaluation complete",
		zap.Int("samples", rep.Samples),
		zap.Duration("elapsed", rep.Elapsed),
		zap.Float64("pnacc", rep.PNACC.Avg))
	return nil
}

func formatMetadata(md map[string]string) string {
	if len(md) == 0 {
		return ""
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + md[k]
	}
	return strings.Join(parts, ",")
}
