package checkpoint

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/selfpu/internal/tensor"
)

// Write encodes float32 tensors and metadata in safetensors format.
// Tensors are laid out in name order so the output is deterministic.
//
// The evaluator only reads checkpoints. Write and Save produce the files it
// reads: test fixtures, and state dicts exported from a restored Classifier.
func Write(w io.Writer, tensors map[string]*tensor.Tensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	hdr := make(map[string]any, len(tensors)+1)
	if len(metadata) > 0 {
		hdr["__metadata__"] = metadata
	}
	var offset int64
	for _, name := range names {
		t := tensors[name]
		size := int64(t.NumElements() * 4)
		hdr[name] = TensorInfo{
			DType:       F32,
			Shape:       []int(t.Shape()),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	// Pad the header to 8 bytes so tensor data stays aligned.
	for len(headerJSON)%8 != 0 {
		headerJSON = append(headerJSON, ' ')
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := bw.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	var buf [4]byte
	for _, name := range names {
		for _, v := range tensors[name].Data() {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			if _, err := bw.Write(buf[:]); err != nil {
				return fmt.Errorf("failed to write tensor %s: %w", name, err)
			}
		}
	}
	return bw.Flush()
}

// Save writes a safetensors file at path. A file written by Save loads back
// through Load with identical tensors.
func Save(path string, tensors map[string]*tensor.Tensor, metadata map[string]string) (err error) {
	//nolint:gosec // G304: output path is user input by design.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, tensors, metadata)
}
