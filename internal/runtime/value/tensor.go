package value

import (
	"fmt"
	"math"
	"slices"
)

// Tensor is a dense n-dimensional array with a fixed element type.
//
// The backing data is stored in row-major order. Constructors validate that
// the element count implied by the shape matches the length of the provided
// data, so a Tensor always satisfies len(data) == ElementCount(shape).
type Tensor struct {
	dtype ElementType
	shape []int64

	f32  []float32
	f64  []float64
	i32  []int32
	i64  []int64
	u8   []byte
	bits []bool
	strs []string
}

// ElementCount returns the number of elements implied by a shape.
// Any negative dimension yields zero, matching the behavior expected from
// symbolic (unresolved) dimensions. A shape whose element product does not
// fit in an int yields -1; no constructor accepts such a shape.
func ElementCount(shape []int64) int {
	for _, dim := range shape {
		if dim < 0 {
			return 0
		}
	}
	count := int64(1)
	for _, dim := range shape {
		if dim != 0 && count > math.MaxInt64/dim {
			return -1
		}
		count *= dim
	}
	if count > math.MaxInt {
		return -1
	}
	return int(count)
}

// NewTensor allocates a zero-filled tensor of the given element type and shape.
func NewTensor(dtype ElementType, shape []int64) (*Tensor, error) {
	count := ElementCount(shape)
	if count < 0 {
		return nil, fmt.Errorf("shape %v is too large to allocate", shape)
	}
	t := &Tensor{dtype: dtype, shape: slices.Clone(shape)}
	switch dtype {
	case Float32:
		t.f32 = make([]float32, count)
	case Float64:
		t.f64 = make([]float64, count)
	case Int32:
		t.i32 = make([]int32, count)
	case Int64:
		t.i64 = make([]int64, count)
	case Uint8:
		t.u8 = make([]byte, count)
	case Bool:
		t.bits = make([]bool, count)
	case StringType:
		t.strs = make([]string, count)
	default:
		return nil, fmt.Errorf("cannot allocate tensor with element type %s", dtype)
	}
	return t, nil
}

func checkSize(shape []int64, length int) error {
	count := ElementCount(shape)
	if count < 0 {
		return fmt.Errorf("shape %v is too large to represent", shape)
	}
	if count != length {
		return fmt.Errorf("shape %v implies %d elements but %d were provided", shape, count, length)
	}
	return nil
}

// FromFloat32s creates a float32 tensor backed by the provided slice.
// The data is not copied; callers must not mutate it afterwards.
func FromFloat32s(shape []int64, data []float32) (*Tensor, error) {
	if err := checkSize(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{dtype: Float32, shape: slices.Clone(shape), f32: data}, nil
}

// FromFloat64s creates a float64 tensor backed by the provided slice.
func FromFloat64s(shape []int64, data []float64) (*Tensor, error) {
	if err := checkSize(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{dtype: Float64, shape: slices.Clone(shape), f64: data}, nil
}

// FromInt32s creates an int32 tensor backed by the provided slice.
func FromInt32s(shape []int64, data []int32) (*Tensor, error) {
	if err := checkSize(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{dtype: Int32, shape: slices.Clone(shape), i32: data}, nil
}

// FromInt64s creates an int64 tensor backed by the provided slice.
func FromInt64s(shape []int64, data []int64) (*Tensor, error) {
	if err := checkSize(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{dtype: Int64, shape: slices.Clone(shape), i64: data}, nil
}

// FromBytes creates a uint8 tensor backed by the provided slice.
func FromBytes(shape []int64, data []byte) (*Tensor, error) {
	if err := checkSize(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{dtype: Uint8, shape: slices.Clone(shape), u8: data}, nil
}

// FromBools creates a bool tensor backed by the provided slice.
func FromBools(shape []int64, data []bool) (*Tensor, error) {
	if err := checkSize(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{dtype: Bool, shape: slices.Clone(shape), bits: data}, nil
}

// FromStrings creates a string tensor backed by the provided slice.
func FromStrings(shape []int64, data []string) (*Tensor, error) {
	if err := checkSize(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{dtype: StringType, shape: slices.Clone(shape), strs: data}, nil
}

// FromRGBA creates a uint8 tensor of shape [1, height, width, 4] from a raw
// RGBA pixel buffer. The buffer length must equal width*height*4.
func FromRGBA(pix []byte, width, height int) (*Tensor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}
	// width*height*4 must not overflow, or the length check below would
	// accept a buffer far smaller than the shape claims.
	if height > math.MaxInt/4/width {
		return nil, fmt.Errorf("image dimensions %dx%d are too large", width, height)
	}
	if expected := width * height * 4; len(pix) != expected {
		return nil, fmt.Errorf("pixel buffer has %d bytes but %dx%d RGBA requires %d", len(pix), width, height, expected)
	}
	return FromBytes([]int64{1, int64(height), int64(width), 4}, pix)
}

// Dtype returns the element type of the tensor.
func (t *Tensor) Dtype() ElementType {
	return t.dtype
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int64 {
	return slices.Clone(t.shape)
}

// Len returns the number of elements in the tensor.
func (t *Tensor) Len() int {
	return ElementCount(t.shape)
}

// Float32s returns the backing float32 data, or an error when the tensor
// holds a different element type.
func (t *Tensor) Float32s() ([]float32, error) {
	if t.dtype != Float32 {
		return nil, fmt.Errorf("cannot extract float32 data from %s tensor", t.dtype)
	}
	return t.f32, nil
}

// Float64s returns the backing float64 data.
func (t *Tensor) Float64s() ([]float64, error) {
	if t.dtype != Float64 {
		return nil, fmt.Errorf("cannot extract float64 data from %s tensor", t.dtype)
	}
	return t.f64, nil
}

// Int32s returns the backing int32 data.
func (t *Tensor) Int32s() ([]int32, error) {
	if t.dtype != Int32 {
		return nil, fmt.Errorf("cannot extract int32 data from %s tensor", t.dtype)
	}
	return t.i32, nil
}

// Int64s returns the backing int64 data.
func (t *Tensor) Int64s() ([]int64, error) {
	if t.dtype != Int64 {
		return nil, fmt.Errorf("cannot extract int64 data from %s tensor", t.dtype)
	}
	return t.i64, nil
}

// Bytes returns the backing uint8 data.
func (t *Tensor) Bytes() ([]byte, error) {
	if t.dtype != Uint8 {
		return nil, fmt.Errorf("cannot extract uint8 data from %s tensor", t.dtype)
	}
	return t.u8, nil
}

// Bools returns the backing bool data.
func (t *Tensor) Bools() ([]bool, error) {
	if t.dtype != Bool {
		return nil, fmt.Errorf("cannot extract bool data from %s tensor", t.dtype)
	}
	return t.bits, nil
}

// Strings returns the backing string data.
func (t *Tensor) Strings() ([]string, error) {
	if t.dtype != StringType {
		return nil, fmt.Errorf("cannot extract string data from %s tensor", t.dtype)
	}
	return t.strs, nil
}

// offset computes the row-major offset for the given indices, validating
// rank and bounds against the shape.
func (t *Tensor) offset(idx []int) (int, error) {
	if len(idx) != len(t.shape) {
		return 0, fmt.Errorf("got %d indices for rank %d tensor", len(idx), len(t.shape))
	}
	offset := 0
	for i, index := range idx {
		dim := int(t.shape[i])
		if index < 0 || index >= dim {
			return 0, fmt.Errorf("index %d out of range for dimension %d of size %d", index, i, dim)
		}
		offset = offset*dim + index
	}
	return offset, nil
}

// At returns the element at the given indices. The concrete type matches the
// tensor's element type (float32, float64, int32, int64, byte, bool, string).
func (t *Tensor) At(idx ...int) (any, error) {
	offset, err := t.offset(idx)
	if err != nil {
		return nil, err
	}
	switch t.dtype {
	case Float32:
		return t.f32[offset], nil
	case Float64:
		return t.f64[offset], nil
	case Int32:
		return t.i32[offset], nil
	case Int64:
		return t.i64[offset], nil
	case Uint8:
		return t.u8[offset], nil
	case Bool:
		return t.bits[offset], nil
	case StringType:
		return t.strs[offset], nil
	default:
		return nil, fmt.Errorf("cannot index tensor with element type %s", t.dtype)
	}
}

// SetAt stores v at the given indices. The value's concrete type must match
// the tensor's element type exactly.
func (t *Tensor) SetAt(v any, idx ...int) error {
	offset, err := t.offset(idx)
	if err != nil {
		return err
	}
	switch element := v.(type) {
	case float32:
		if t.dtype != Float32 {
			return t.storeMismatch(v)
		}
		t.f32[offset] = element
	case float64:
		if t.dtype != Float64 {
			return t.storeMismatch(v)
		}
		t.f64[offset] = element
	case int32:
		if t.dtype != Int32 {
			return t.storeMismatch(v)
		}
		t.i32[offset] = element
	case int64:
		if t.dtype != Int64 {
			return t.storeMismatch(v)
		}
		t.i64[offset] = element
	case byte:
		if t.dtype != Uint8 {
			return t.storeMismatch(v)
		}
		t.u8[offset] = element
	case bool:
		if t.dtype != Bool {
			return t.storeMismatch(v)
		}
		t.bits[offset] = element
	case string:
		if t.dtype != StringType {
			return t.storeMismatch(v)
		}
		t.strs[offset] = element
	default:
		return t.storeMismatch(v)
	}
	return nil
}

func (t *Tensor) storeMismatch(v any) error {
	return fmt.Errorf("cannot store %T in %s tensor", v, t.dtype)
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	clone := &Tensor{dtype: t.dtype, shape: slices.Clone(t.shape)}
	clone.f32 = slices.Clone(t.f32)
	clone.f64 = slices.Clone(t.f64)
	clone.i32 = slices.Clone(t.i32)
	clone.i64 = slices.Clone(t.i64)
	clone.u8 = slices.Clone(t.u8)
	clone.bits = slices.Clone(t.bits)
	clone.strs = slices.Clone(t.strs)
	return clone
}

// String renders the tensor's type and shape, e.g. "Tensor<float32>[1 3 224 224]".
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor<%s>%v", t.dtype, t.shape)
}
