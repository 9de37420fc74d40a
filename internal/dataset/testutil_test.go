package dataset

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeIDX writes an MNIST-style image and label pair into dir.
func writeIDX(t *testing.T, dir string, images [][]byte, rows, cols int, labels []byte, gz bool) {
	t.Helper()

	var img bytes.Buffer
	require.NoError(t, binary.Write(&img, binary.BigEndian, []uint32{idxImagesMagic, uint32(len(images)), uint32(rows), uint32(cols)}))
	for _, im := range images {
		img.Write(im)
	}
	var lbl bytes.Buffer
	require.NoError(t, binary.Write(&lbl, binary.BigEndian, []uint32{idxLabelsMagic, uint32(len(labels))}))
	lbl.Write(labels)

	writeFile(t, filepath.Join(dir, "t10k-images-idx3-ubyte"), img.Bytes(), gz)
	writeFile(t, filepath.Join(dir, "t10k-labels-idx1-ubyte"), lbl.Bytes(), gz)
}

func writeFile(t *testing.T, path string, data []byte, gz bool) {
	t.Helper()
	if gz {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		data = buf.Bytes()
		path += ".gz"
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// cifarRecord builds one binary CIFAR-10 record with every pixel of channel c set to px[c].
func cifarRecordBytes(class byte, px [3]byte) []byte {
	rec := make([]byte, cifarRecord)
	rec[0] = class
	for c := 0; c < 3; c++ {
		for j := 0; j < cifarPlane; j++ {
			rec[1+c*cifarPlane+j] = px[c]
		}
	}
	return rec
}
