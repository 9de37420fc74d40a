package checkpoint

import (
	"fmt"
	"strings"

	"github.com/born-ml/selfpu/internal/tensor"
)

// Prefixes stripped from tensor names. A training checkpoint nests the weights
// under its "state_dict" entry and data-parallel wrappers add "module.".
var stripPrefixes = []string{"state_dict.", "module."}

// Checkpoint is a loaded model state dictionary.
type Checkpoint struct {
	Path      string
	Metadata  map[string]string
	StateDict map[string]*tensor.Tensor
	// Skipped lists bookkeeping entries that were ignored, e.g. num_batches_tracked.
	Skipped []string
}

// NormalizeKey strips wrapper prefixes from a state dict key.
func NormalizeKey(name string) string {
	for changed := true; changed; {
		changed = false
		for _, p := range stripPrefixes {
			if strings.HasPrefix(name, p) {
				name = strings.TrimPrefix(name, p)
				changed = true
			}
		}
	}
	return name
}

func isBookkeeping(name string) bool {
	return strings.HasSuffix(name, ".num_batches_tracked") || name == "num_batches_tracked"
}

// Load reads every tensor of a safetensors checkpoint into a state dict.
func Load(path string) (*Checkpoint, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	ckpt, err := FromReader(r)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	ckpt.Path = path
	return ckpt, nil
}

// FromReader converts all tensors of r, normalizing their names.
func FromReader(r *Reader) (*Checkpoint, error) {
	ckpt := &Checkpoint{
		Metadata:  r.Metadata(),
		StateDict: make(map[string]*tensor.Tensor),
	}
	for _, name := range r.TensorNames() {
		key := NormalizeKey(name)
		if isBookkeeping(key) {
			ckpt.Skipped = append(ckpt.Skipped, name)
			continue
		}
		if _, dup := ckpt.StateDict[key]; dup {
			return nil, fmt.Errorf("tensor %s: duplicate key %s after prefix stripping", name, key)
		}
		t, err := r.LoadTensor(name)
		if err != nil {
			return nil, err
		}
		ckpt.StateDict[key] = t
	}
	return ckpt, nil
}
