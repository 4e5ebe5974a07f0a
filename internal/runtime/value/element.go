package value

import "fmt"

// ElementType identifies the scalar type of a tensor's elements.
type ElementType int

const (
	// Float32 is a 32-bit IEEE 754 floating point element.
	Float32 ElementType = iota + 1
	// Float64 is a 64-bit IEEE 754 floating point element.
	Float64
	// Int32 is a signed 32-bit integer element.
	Int32
	// Int64 is a signed 64-bit integer element.
	Int64
	// Uint8 is an unsigned 8-bit integer element, used for raw pixel data.
	Uint8
	// Bool is a boolean element.
	Bool
	// StringType is a variable-length UTF-8 string element.
	StringType
)

// String returns the canonical lowercase name of the element type.
func (t ElementType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case StringType:
		return "string"
	default:
		return fmt.Sprintf("ElementType(%d)", int(t))
	}
}

// ParseElementType converts a canonical name back to an ElementType.
func ParseElementType(name string) (ElementType, error) {
	switch name {
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	case "int32":
		return Int32, nil
	case "int64":
		return Int64, nil
	case "uint8":
		return Uint8, nil
	case "bool":
		return Bool, nil
	case "string":
		return StringType, nil
	default:
		return 0, fmt.Errorf("unknown element type %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler so element types serialize
// as their canonical names in model descriptors.
func (t ElementType) MarshalText() ([]byte, error) {
	if _, err := ParseElementType(t.String()); err != nil {
		return nil, fmt.Errorf("cannot marshal invalid element type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ElementType) UnmarshalText(text []byte) error {
	parsed, err := ParseElementType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
