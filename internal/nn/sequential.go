package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/selfpu/internal/tensor"
)

// Layer is a module with the attribute name it had in the trained model.
// Parameterless layers may use an empty name.
type Layer struct {
	Name   string
	Module Module
}

// Named pairs a module with its state dict prefix.
func Named(name string, m Module) Layer {
	return Layer{Name: name, Module: m}
}

// Anon wraps a parameterless module.
func Anon(m Module) Layer {
	return Layer{Module: m}
}

// Sequential chains layers; each output feeds the next layer.
type Sequential struct {
	layers []Layer
}

// NewSequential creates a Sequential container.
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{layers: layers}
}

// Forward applies all layers in order.
func (s *Sequential) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := input
	for _, l := range s.layers {
		output = l.Module.Forward(output)
	}
	return output
}

// StateDict merges child state dicts under "<name>." prefixes.
func (s *Sequential) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	for i, l := range s.layers {
		child := l.Module.StateDict()
		if len(child) == 0 {
			continue
		}
		prefix := l.Name
		if prefix == "" {
			prefix = fmt.Sprint(i)
		}
		for k, v := range child {
			sd[prefix+"."+k] = v
		}
	}
	return sd
}

// Len returns the number of layers.
func (s *Sequential) Len() int {
	return len(s.layers)
}

func (s *Sequential) String() string {
	var b strings.Builder
	b.WriteString("Sequential(\n")
	for _, l := range s.layers {
		b.WriteString("  ")
		if l.Name != "" {
			b.WriteString(l.Name)
			b.WriteString(": ")
		}
		fmt.Fprint(&b, l.Module)
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}
