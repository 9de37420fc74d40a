package dataset

import (
	"math/rand/v2"
	"sort"

	"github.com/born-ml/selfpu/internal/tensor"
)

// Subset is a fixed selection of samples from a parent dataset.
// Sample IDs keep their position in the parent.
type Subset struct {
	parent  Dataset
	indices []int
}

// RandomSubset draws n distinct samples using seed. The selection keeps the
// parent's order, so evaluation stays unshuffled. n <= 0 or n >= Len returns
// the parent unchanged.
func RandomSubset(ds Dataset, n int, seed uint64) Dataset {
	if n <= 0 || n >= ds.Len() {
		return ds
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	indices := r.Perm(ds.Len())[:n]
	sort.Ints(indices)
	return &Subset{parent: ds, indices: indices}
}

// Name returns the parent's name.
func (s *Subset) Name() string { return s.parent.Name() }

// Len returns the number of selected samples.
func (s *Subset) Len() int { return len(s.indices) }

// InputShape returns the parent's input shape.
func (s *Subset) InputShape() tensor.Shape { return s.parent.InputShape() }

// Sample returns the i-th selected sample.
func (s *Subset) Sample(i int) (Sample, error) {
	if err := checkIndex(s, i); err != nil {
		return Sample{}, err
	}
	return s.parent.Sample(s.indices[i])
}

// Indices returns the selected parent indices.
func (s *Subset) Indices() []int {
	return s.indices
}
