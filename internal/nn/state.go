package nn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/selfpu/internal/tensor"
)

// StateDictError reports every problem found while loading a state dict.
type StateDictError struct {
	Missing    []string // expected by the model, absent from the state dict
	Unexpected []string // present in the state dict, unknown to the model
	Mismatched []string // present in both with different shapes
}

// Error implements the error interface.
func (e *StateDictError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing keys: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected keys: "+strings.Join(e.Unexpected, ", "))
	}
	if len(e.Mismatched) > 0 {
		parts = append(parts, "shape mismatch: "+strings.Join(e.Mismatched, ", "))
	}
	return "load state dict: " + strings.Join(parts, "; ")
}

// LoadStateDict copies tensors into the module's parameters and buffers.
//
// Loading is strict: every key must match by name and shape, otherwise nothing is
// written and a *StateDictError lists the offenders.
func LoadStateDict(m Module, sd map[string]*tensor.Tensor) error {
	own := m.StateDict()
	serr := &StateDictError{}

	for name, dst := range own {
		src, ok := sd[name]
		if !ok {
			serr.Missing = append(serr.Missing, name)
			continue
		}
		if !src.Shape().Equal(dst.Shape()) {
			serr.Mismatched = append(serr.Mismatched,
				fmt.Sprintf("%s (checkpoint %v, model %v)", name, src.Shape(), dst.Shape()))
		}
	}
	for name := range sd {
		if _, ok := own[name]; !ok {
			serr.Unexpected = append(serr.Unexpected, name)
		}
	}

	if len(serr.Missing)+len(serr.Unexpected)+len(serr.Mismatched) > 0 {
		sort.Strings(serr.Missing)
		sort.Strings(serr.Unexpected)
		sort.Strings(serr.Mismatched)
		return serr
	}

	for name, dst := range own {
		copy(dst.Data(), sd[name].Data())
	}
	return nil
}

// NumParameters counts the elements of every tensor in the state dict,
// running statistics included.
func NumParameters(m Module) int {
	total := 0
	for _, t := range m.StateDict() {
		total += t.NumElements()
	}
	return total
}
