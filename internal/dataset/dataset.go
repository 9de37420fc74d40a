// Package dataset loads the held-out splits used to evaluate Self-PU
// classifiers and binarizes their labels.
package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/selfpu/internal/tensor"
)

// ErrUnknownDataset is returned for a dataset name other than mnist or cifar.
var ErrUnknownDataset = errors.New("unknown dataset")

// Supported dataset names.
const (
	MNISTName = "mnist"
	CIFARName = "cifar"
)

// Sample is one evaluation example.
type Sample struct {
	ID    int       // index in the split
	Class int       // source class, 0..9
	Label int       // observed binary label (+1 / -1)
	Truth int       // true binary label (+1 / -1)
	Input []float32 // normalized pixels, laid out as InputShape
}

// Dataset is a random-access split.
type Dataset interface {
	Name() string
	Len() int
	// InputShape is the per-sample shape, without the batch axis.
	InputShape() tensor.Shape
	// Sample decodes example i. It must be safe for concurrent use.
	Sample(i int) (Sample, error)
}

// Open loads the test split of the named dataset from root.
func Open(name, root string) (Dataset, error) {
	switch strings.ToLower(name) {
	case MNISTName:
		return LoadMNIST(root)
	case CIFARName:
		return LoadCIFAR10(root)
	default:
		return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownDataset, name, MNISTName, CIFARName)
	}
}

func checkIndex(ds Dataset, i int) error {
	if i < 0 || i >= ds.Len() {
		return fmt.Errorf("%s: index %d out of range [0, %d)", ds.Name(), i, ds.Len())
	}
	return nil
}
