package dataset

import (
	"bufio"
	"fmt"
	"path/filepath"

	"github.com/born-ml/selfpu/internal/tensor"
)

// MNIST is the 10,000-image MNIST test split with even/odd binary labels.
//
// Images are kept as bytes and normalized to [0, 1] when a sample is decoded.
// The input shape is [1, rows*cols]: one flattened channel.
type MNIST struct {
	pixels []byte
	labels []byte
	size   int // pixels per image
}

// mnistFiles lists the accepted spellings of the test split file names.
func mnistFiles(root, kind string) []string {
	base := []string{
		"t10k-" + kind + "-idx%d-ubyte",
		"t10k-" + kind + ".idx%d-ubyte",
	}
	dim := 1
	if kind == "images" {
		dim = 3
	}
	var out []string
	for _, b := range base {
		name := fmt.Sprintf(b, dim)
		out = append(out,
			filepath.Join(root, name),
			filepath.Join(root, name+".gz"),
			filepath.Join(root, "MNIST", "raw", name),
			filepath.Join(root, "MNIST", "raw", name+".gz"),
		)
	}
	return out
}

// LoadMNIST reads t10k-images-idx3-ubyte and t10k-labels-idx1-ubyte (optionally
// gzipped, optionally under MNIST/raw/) from root.
func LoadMNIST(root string) (*MNIST, error) {
	imgFile, imgPath, err := openFirst(mnistFiles(root, "images")...)
	if err != nil {
		return nil, fmt.Errorf("mnist images: %w", err)
	}
	defer imgFile.Close()
	pixels, count, rows, cols, err := readIDXImages(bufio.NewReader(imgFile))
	if err != nil {
		return nil, fmt.Errorf("mnist images %s: %w", imgPath, err)
	}

	lblFile, lblPath, err := openFirst(mnistFiles(root, "labels")...)
	if err != nil {
		return nil, fmt.Errorf("mnist labels: %w", err)
	}
	defer lblFile.Close()
	labels, err := readIDXLabels(bufio.NewReader(lblFile))
	if err != nil {
		return nil, fmt.Errorf("mnist labels %s: %w", lblPath, err)
	}

	if count != len(labels) {
		return nil, fmt.Errorf("mnist: image count (%d) != label count (%d)", count, len(labels))
	}
	for i, l := range labels {
		if l > 9 {
			return nil, fmt.Errorf("mnist: label out of range [0, 9] at %d: %d", i, l)
		}
	}

	return &MNIST{pixels: pixels, labels: labels, size: rows * cols}, nil
}

// Name returns "mnist".
func (m *MNIST) Name() string { return MNISTName }

// Len returns the number of images.
func (m *MNIST) Len() int { return len(m.labels) }

// InputShape returns [1, rows*cols].
func (m *MNIST) InputShape() tensor.Shape { return tensor.Shape{1, m.size} }

// Sample decodes image i.
func (m *MNIST) Sample(i int) (Sample, error) {
	if err := checkIndex(m, i); err != nil {
		return Sample{}, err
	}
	raw := m.pixels[i*m.size : (i+1)*m.size]
	input := make([]float32, m.size)
	for j, p := range raw {
		input[j] = float32(p) / 255
	}
	class := int(m.labels[i])
	y := BinarizeMNIST(class)
	return Sample{ID: i, Class: class, Label: y, Truth: y, Input: input}, nil
}
