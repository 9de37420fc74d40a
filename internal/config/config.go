// Package config holds the evaluation settings: a YAML file, overridden by
// command line flags, then validated.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoModel is returned when no checkpoint path is configured.
var ErrNoModel = errors.New("please specify a model file")

// Config captures the runtime knobs for an evaluation run.
type Config struct {
	Seed       *int64 `yaml:"seed"`
	GPU        *int   `yaml:"gpu"`
	Workers    int    `yaml:"workers"`
	Dataset    string `yaml:"dataset"`
	DataPath   string `yaml:"datapath"`
	Model      string `yaml:"model"`
	BatchSize  int    `yaml:"batch_size"`
	MaxSamples int    `yaml:"max_samples"`
	PrintFreq  int    `yaml:"print_freq"`
	Verbose    bool   `yaml:"verbose"`
}

// Default returns the settings used when neither a file nor a flag sets a value.
func Default() *Config {
	return &Config{
		Workers:   4,
		Dataset:   "mnist",
		BatchSize: 1,
	}
}

// Load reads a YAML config file on top of Default. Unknown keys are an error.
func Load(path string) (*Config, error) {
	//nolint:gosec // G304: config path is user input by design.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML from r on top of Default.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Overrides captures CLI supplied values. Nil fields were not set on the
// command line and leave the config untouched.
type Overrides struct {
	Seed       *int64
	GPU        *int
	Workers    *int
	Dataset    *string
	DataPath   *string
	Model      *string
	BatchSize  *int
	MaxSamples *int
	PrintFreq  *int
	Verbose    *bool
}

// ApplyOverrides updates c with every override that was set, then
// lowercases the dataset name so the run header shows the name in use.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Seed != nil {
		c.Seed = o.Seed
	}
	if o.GPU != nil {
		c.GPU = o.GPU
	}
	if o.Workers != nil {
		c.Workers = *o.Workers
	}
	if o.Dataset != nil {
		c.Dataset = *o.Dataset
	}
	if o.DataPath != nil {
		c.DataPath = *o.DataPath
	}
	if o.Model != nil {
		c.Model = *o.Model
	}
	if o.BatchSize != nil {
		c.BatchSize = *o.BatchSize
	}
	if o.MaxSamples != nil {
		c.MaxSamples = *o.MaxSamples
	}
	if o.PrintFreq != nil {
		c.PrintFreq = *o.PrintFreq
	}
	if o.Verbose != nil {
		c.Verbose = *o.Verbose
	}
	c.Dataset = strings.ToLower(c.Dataset)
}

// Validate verifies the config is runnable and normalizes the dataset name.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Model == "" {
		return ErrNoModel
	}
	c.Dataset = strings.ToLower(c.Dataset)
	if c.Dataset != "mnist" && c.Dataset != "cifar" {
		return fmt.Errorf("dataset must be mnist or cifar (got %q)", c.Dataset)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0 (got %d)", c.Workers)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.MaxSamples < 0 {
		return fmt.Errorf("max_samples must be >= 0 (got %d)", c.MaxSamples)
	}
	if c.PrintFreq < 0 {
		return fmt.Errorf("print_freq must be >= 0 (got %d)", c.PrintFreq)
	}
	if c.GPU != nil && *c.GPU < 0 {
		return fmt.Errorf("gpu must be >= 0 (got %d)", *c.GPU)
	}
	return nil
}

// String renders the settings like an argument namespace, for the run header.
func (c *Config) String() string {
	return fmt.Sprintf("Namespace(batch_size=%d, datapath=%q, dataset=%q, gpu=%s, max_samples=%d, model=%q, print_freq=%d, seed=%s, workers=%d)",
		c.BatchSize, c.DataPath, c.Dataset, optional(c.GPU), c.MaxSamples, c.Model, c.PrintFreq, optional(c.Seed), c.Workers)
}

func optional[T int | int64](v *T) string {
	if v == nil {
		return "None"
	}
	return fmt.Sprint(*v)
}
