package value

import "fmt"

// Dyn is a type-erased tensor value. It carries the same data as a Tensor
// but hides the element type, mirroring how session outputs are returned
// before the caller commits to a concrete type.
type Dyn struct {
	tensor *Tensor
}

// Erase wraps a tensor into a type-erased value.
func Erase(t *Tensor) Dyn {
	return Dyn{tensor: t}
}

// Dtype returns the element type of the underlying tensor.
func (d Dyn) Dtype() ElementType {
	return d.tensor.dtype
}

// Shape returns a copy of the underlying tensor's shape.
func (d Dyn) Shape() []int64 {
	return d.tensor.Shape()
}

// Downcast returns the underlying tensor when its element type matches the
// requested one. Downcasting to a mismatched type fails; this is the only
// way a Dyn yields its tensor, so a successful downcast is always type-safe.
func (d Dyn) Downcast(dtype ElementType) (*Tensor, error) {
	if d.tensor == nil {
		return nil, fmt.Errorf("cannot downcast empty value")
	}
	if d.tensor.dtype != dtype {
		return nil, fmt.Errorf("cannot downcast %s tensor to %s", d.tensor.dtype, dtype)
	}
	return d.tensor, nil
}
