// Package checkpoint reads model state dictionaries stored as safetensors.
//
// SafeTensors format:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw bytes]
package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/selfpu/internal/tensor"
)

// maxHeaderSize guards against reading garbage as a header length.
const maxHeaderSize = 100 * 1024 * 1024

// Errors returned while parsing a checkpoint.
var (
	ErrHeaderTooLarge   = errors.New("safetensors header exceeds maximum size")
	ErrTensorNotFound   = errors.New("tensor not found")
	ErrUnsupportedDType = errors.New("unsupported dtype")
	ErrOutOfBounds      = errors.New("tensor extends beyond data section")
)

// DType is a safetensors element type.
type DType string

// Supported dtypes.
const (
	F16  DType = "F16"
	BF16 DType = "BF16"
	F32  DType = "F32"
	F64  DType = "F64"
	I32  DType = "I32"
	I64  DType = "I64"
	U8   DType = "U8"
	Bool DType = "BOOL"
)

// Size returns the byte width of one element, or 0 if unknown.
func (d DType) Size() int {
	switch d {
	case U8, Bool:
		return 1
	case F16, BF16:
		return 2
	case F32, I32:
		return 4
	case F64, I64:
		return 8
	default:
		return 0
	}
}

// TensorInfo describes a tensor in the header.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end) relative to the data section
}

type header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

// UnmarshalJSON splits __metadata__ from the tensor entries.
func (h *header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]TensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// Reader reads tensors from a safetensors file.
type Reader struct {
	r          io.ReaderAt
	closer     io.Closer
	header     header
	dataOffset int64
	dataSize   int64
}

// Open opens a safetensors file.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: the checkpoint path is user input by design.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat checkpoint: %w", err)
	}
	r, err := NewReader(f, st.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader parses the header of a safetensors stream of the given size.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	var sizeBuf [8]byte
	if _, err := ra.ReadAt(sizeBuf[:], 0); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	headerSize := binary.LittleEndian.Uint64(sizeBuf[:])
	if headerSize > maxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	if int64(8+headerSize) > size { //nolint:gosec // G115: bounded by maxHeaderSize above.
		return nil, fmt.Errorf("header size %d exceeds file size %d", headerSize, size)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := ra.ReadAt(headerBytes, 8); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var h header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	dataOffset := int64(8 + headerSize) //nolint:gosec // G115: bounded by maxHeaderSize above.
	r := &Reader{
		r:          ra,
		header:     h,
		dataOffset: dataOffset,
		dataSize:   size - dataOffset,
	}
	for name, info := range h.Tensors {
		if err := r.validate(name, info); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Reader) validate(name string, info TensorInfo) error {
	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end < start {
		return fmt.Errorf("tensor %s: invalid data offsets [%d, %d]", name, start, end)
	}
	if end > r.dataSize {
		return fmt.Errorf("tensor %s: %w", name, ErrOutOfBounds)
	}
	if sz := info.DType.Size(); sz > 0 {
		if want := int64(tensor.Shape(info.Shape).NumElements() * sz); want != end-start {
			return fmt.Errorf("tensor %s: shape %v needs %d bytes, offsets span %d", name, info.Shape, want, end-start)
		}
	}
	return nil
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Metadata returns the __metadata__ map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns the tensor names in sorted order.
func (r *Reader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TensorInfo returns information about a specific tensor.
func (r *Reader) TensorInfo(name string) (TensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return info, nil
}

// ReadTensorData reads the raw bytes of a tensor.
func (r *Reader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data := make([]byte, info.DataOffsets[1]-info.DataOffsets[0])
	if _, err := r.r.ReadAt(data, r.dataOffset+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
	}
	return data, nil
}

// LoadTensor reads a tensor and converts it to float32.
// Floating point and integer dtypes are converted; BOOL and U8 are rejected.
func (r *Reader) LoadTensor(name string) (*tensor.Tensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	raw, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}
	values, err := decode(info.DType, raw)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	shape := tensor.Shape(info.Shape)
	if len(shape) == 0 {
		shape = tensor.Shape{1}
	}
	return tensor.Wrap(values, shape)
}

func decode(dtype DType, raw []byte) ([]float32, error) {
	sz := dtype.Size()
	if sz == 0 || dtype == U8 || dtype == Bool {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, dtype)
	}
	out := make([]float32, len(raw)/sz)
	le := binary.LittleEndian
	for i := range out {
		b := raw[i*sz : (i+1)*sz]
		switch dtype {
		case F32:
			out[i] = math.Float32frombits(le.Uint32(b))
		case F64:
			out[i] = float32(math.Float64frombits(le.Uint64(b)))
		case F16:
			out[i] = halfToFloat32(le.Uint16(b))
		case BF16:
			out[i] = math.Float32frombits(uint32(le.Uint16(b)) << 16)
		case I32:
			out[i] = float32(int32(le.Uint32(b))) //nolint:gosec // G115: reinterpreting two's complement bits.
		case I64:
			out[i] = float32(int64(le.Uint64(b))) //nolint:gosec // G115: reinterpreting two's complement bits.
		}
	}
	return out, nil
}

// halfToFloat32 converts an IEEE 754 binary16 value.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff

	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// Subnormal: renormalize.
		e := uint32(127 - 15 + 1)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x3ff
		return math.Float32frombits(sign | e<<23 | frac<<13)
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
	}
}
