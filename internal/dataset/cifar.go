package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/born-ml/selfpu/internal/tensor"
)

// CIFAR-10 binary record layout: 1 label byte followed by 3072 pixel bytes,
// channel-major (1024 red, 1024 green, 1024 blue).
const (
	cifarChannels   = 3
	cifarSide       = 32
	cifarPlane      = cifarSide * cifarSide
	cifarImageBytes = cifarChannels * cifarPlane
	cifarRecord     = 1 + cifarImageBytes
)

// Per-channel normalization applied after scaling pixels to [0, 1].
var (
	cifarMean = [cifarChannels]float32{0.485, 0.456, 0.406}
	cifarStd  = [cifarChannels]float32{0.229, 0.224, 0.225}
)

// CIFAR10 is the CIFAR-10 test batch with vehicle/animal binary labels.
type CIFAR10 struct {
	records []byte
	n       int
}

// LoadCIFAR10 reads test_batch.bin from root or root/cifar-10-batches-bin.
func LoadCIFAR10(root string) (*CIFAR10, error) {
	f, path, err := openFirst(
		filepath.Join(root, "test_batch.bin"),
		filepath.Join(root, "cifar-10-batches-bin", "test_batch.bin"),
	)
	if err != nil {
		return nil, fmt.Errorf("cifar: %w", err)
	}
	defer f.Close()

	ds, err := readCIFAR10(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("cifar %s: %w", path, err)
	}
	return ds, nil
}

func readCIFAR10(r io.Reader) (*CIFAR10, error) {
	records, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty batch file")
	}
	if len(records)%cifarRecord != 0 {
		return nil, fmt.Errorf("size %d is not a multiple of the %d-byte record", len(records), cifarRecord)
	}
	n := len(records) / cifarRecord
	for i := 0; i < n; i++ {
		if l := records[i*cifarRecord]; l > 9 {
			return nil, fmt.Errorf("label out of range [0, 9] at %d: %d", i, l)
		}
	}
	return &CIFAR10{records: records, n: n}, nil
}

// Name returns "cifar".
func (c *CIFAR10) Name() string { return CIFARName }

// Len returns the number of images.
func (c *CIFAR10) Len() int { return c.n }

// InputShape returns [3, 32, 32].
func (c *CIFAR10) InputShape() tensor.Shape {
	return tensor.Shape{cifarChannels, cifarSide, cifarSide}
}

// Sample decodes and normalizes image i.
func (c *CIFAR10) Sample(i int) (Sample, error) {
	if err := checkIndex(c, i); err != nil {
		return Sample{}, err
	}
	rec := c.records[i*cifarRecord : (i+1)*cifarRecord]
	class := int(rec[0])
	pixels := rec[1:]

	input := make([]float32, cifarImageBytes)
	for ch := 0; ch < cifarChannels; ch++ {
		mean, std := cifarMean[ch], cifarStd[ch]
		plane := pixels[ch*cifarPlane : (ch+1)*cifarPlane]
		out := input[ch*cifarPlane : (ch+1)*cifarPlane]
		for j, p := range plane {
			out[j] = (float32(p)/255 - mean) / std
		}
	}
	y := BinarizeCIFAR(class)
	return Sample{ID: i, Class: class, Label: y, Truth: y, Input: input}, nil
}
