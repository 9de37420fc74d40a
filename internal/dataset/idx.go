package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/bits"
	"os"
)

// IDX magic numbers.
const (
	idxImagesMagic = 2051 // 0x00000803
	idxLabelsMagic = 2049 // 0x00000801
)

// maxIDXBytes bounds the payload a header may declare. The MNIST training
// images are about 47 MB.
const maxIDXBytes = 1 << 30

// readIDXImages reads an image file in IDX format.
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255), row-major
//
// All images are returned in one contiguous buffer.
func readIDXImages(r io.Reader) (pixels []byte, count, rows, cols int, err error) {
	var hdr [4]uint32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("failed to read header: %w", err)
	}
	if hdr[0] != idxImagesMagic {
		return nil, 0, 0, 0, fmt.Errorf("invalid magic number: got %d, want %d", hdr[0], idxImagesMagic)
	}
	count, rows, cols = int(hdr[1]), int(hdr[2]), int(hdr[3])
	if rows == 0 || cols == 0 {
		return nil, 0, 0, 0, fmt.Errorf("invalid image size %dx%d", rows, cols)
	}

	pixels, err = readPayload(r, hdr[1], hdr[2], hdr[3])
	if err != nil {
		return nil, 0, 0, 0, fmt.Errorf("failed to read %d images of %dx%d: %w", count, rows, cols, err)
	}
	return pixels, count, rows, cols, nil
}

// readIDXLabels reads a label file in IDX format.
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes (0-9)
func readIDXLabels(r io.Reader) ([]byte, error) {
	var hdr [2]uint32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if hdr[0] != idxLabelsMagic {
		return nil, fmt.Errorf("invalid magic number: got %d, want %d", hdr[0], idxLabelsMagic)
	}

	labels, err := readPayload(r, hdr[1])
	if err != nil {
		return nil, fmt.Errorf("failed to read %d labels: %w", hdr[1], err)
	}
	return labels, nil
}

// readPayload reads the prod(dims) bytes that follow a header. The buffer
// grows with the data actually read, so a corrupt header cannot force a huge
// allocation.
func readPayload(r io.Reader, dims ...uint32) ([]byte, error) {
	n := uint64(1)
	for _, d := range dims {
		hi, lo := bits.Mul64(n, uint64(d))
		if hi != 0 || lo > maxIDXBytes {
			return nil, fmt.Errorf("header dimensions %v declare more than %d bytes", dims, maxIDXBytes)
		}
		n = lo
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) != n {
		return nil, fmt.Errorf("truncated: got %d of %d bytes: %w", len(data), n, io.ErrUnexpectedEOF)
	}
	return data, nil
}

// openFirst opens the first candidate that exists. Names ending in .gz are
// decompressed transparently.
func openFirst(candidates ...string) (io.ReadCloser, string, error) {
	for _, path := range candidates {
		//nolint:gosec // G304: dataset paths are user input by design.
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		if len(path) > 3 && path[len(path)-3:] == ".gz" {
			zr, err := gzip.NewReader(bufio.NewReader(f))
			if err != nil {
				_ = f.Close()
				return nil, "", fmt.Errorf("%s: %w", path, err)
			}
			return &gzipFile{Reader: zr, f: f}, path, nil
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("none of %v found: %w", candidates, fs.ErrNotExist)
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return zerr
}
