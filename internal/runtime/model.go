package runtime

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jo-hoe/goinfer/internal/runtime/metadata"
	"github.com/jo-hoe/goinfer/internal/runtime/value"
)

// ModelSource identifies where a model comes from: a file path or an
// in-memory byte slice. Exactly one of the two is set.
type ModelSource struct {
	Path string
	Data []byte
}

// FileSource references a model on disk.
func FileSource(path string) ModelSource {
	return ModelSource{Path: path}
}

// BytesSource references an in-memory model.
func BytesSource(data []byte) ModelSource {
	return ModelSource{Data: data}
}

// TensorSpec describes one named input or output of a model. A dimension of
// -1 is symbolic and matches any size at run time.
type TensorSpec struct {
	Name  string            `json:"name"`
	Dtype value.ElementType `json:"dtype"`
	Shape []int64           `json:"shape"`
}

// ModelDescriptor is the parsed form of a model file. It carries the model's
// signature (named, typed inputs and outputs), its metadata, and free-form
// parameters interpreted by the executing backend.
type ModelDescriptor struct {
	Schema   int            `json:"schema"`
	Metadata metadata.Model `json:"metadata"`
	Inputs   []TensorSpec   `json:"inputs"`
	Outputs  []TensorSpec   `json:"outputs"`
	Params   map[string]any `json:"params,omitempty"`
}

// descriptorSchemaVersion is the highest descriptor schema this build
// understands.
const descriptorSchemaVersion = 1

// ParseModelDescriptor parses and validates a model descriptor.
func ParseModelDescriptor(data []byte) (*ModelDescriptor, error) {
	var descriptor ModelDescriptor
	if err := json.Unmarshal(data, &descriptor); err != nil {
		return nil, Errorf(CodeInvalidModel, "failed to parse model descriptor: %w", err)
	}
	if descriptor.Schema > descriptorSchemaVersion {
		return nil, Errorf(CodeInvalidModel, "model descriptor schema %d is newer than supported schema %d", descriptor.Schema, descriptorSchemaVersion)
	}
	if descriptor.Metadata.Name == "" {
		return nil, NewError(CodeInvalidModel, "model descriptor has no name")
	}
	if err := validateSpecs("input", descriptor.Inputs); err != nil {
		return nil, err
	}
	if err := validateSpecs("output", descriptor.Outputs); err != nil {
		return nil, err
	}
	return &descriptor, nil
}

func validateSpecs(kind string, specs []TensorSpec) error {
	if len(specs) == 0 {
		return Errorf(CodeInvalidModel, "model descriptor declares no %ss", kind)
	}
	seen := make(map[string]bool)
	for i, spec := range specs {
		if spec.Name == "" {
			return Errorf(CodeInvalidModel, "%s at index %d has empty name", kind, i)
		}
		if seen[spec.Name] {
			return Errorf(CodeInvalidModel, "duplicate %s name: %s", kind, spec.Name)
		}
		seen[spec.Name] = true
	}
	return nil
}

// LoadDescriptor resolves a ModelSource into a parsed descriptor.
func LoadDescriptor(src ModelSource) (*ModelDescriptor, error) {
	data := src.Data
	if src.Path != "" {
		fileData, err := os.ReadFile(src.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, Errorf(CodeNoSuchFile, "model file not found: %w", err)
			}
			return nil, Errorf(CodeFail, "failed to read model file %s: %w", src.Path, err)
		}
		data = fileData
	}
	if len(data) == 0 {
		return nil, NewError(CodeInvalidModel, "model source is empty")
	}
	return ParseModelDescriptor(data)
}

// Input returns the input spec with the given name.
func (d *ModelDescriptor) Input(name string) (TensorSpec, bool) {
	for _, spec := range d.Inputs {
		if spec.Name == name {
			return spec, true
		}
	}
	return TensorSpec{}, false
}

// ValidateInputs checks a set of named tensors against the descriptor's
// input signature: every declared input must be present with the declared
// element type and a shape compatible with the declared one (symbolic -1
// dimensions match anything), and no unknown names may be supplied.
func (d *ModelDescriptor) ValidateInputs(inputs map[string]*value.Tensor) error {
	for name := range inputs {
		if _, ok := d.Input(name); !ok {
			return Errorf(CodeInvalidArgument, "model %s has no input named %q", d.Metadata.Name, name)
		}
	}
	for _, spec := range d.Inputs {
		tensor, ok := inputs[spec.Name]
		if !ok {
			return Errorf(CodeInvalidArgument, "missing input %q for model %s", spec.Name, d.Metadata.Name)
		}
		if tensor.Dtype() != spec.Dtype {
			return Errorf(CodeInvalidArgument, "input %q expects %s but got %s", spec.Name, spec.Dtype, tensor.Dtype())
		}
		if err := shapeMatches(spec.Shape, tensor.Shape()); err != nil {
			return Errorf(CodeInvalidArgument, "input %q: %w", spec.Name, err)
		}
	}
	return nil
}

func shapeMatches(declared, actual []int64) error {
	if len(declared) != len(actual) {
		return fmt.Errorf("expected rank %d shape %v but got %v", len(declared), declared, actual)
	}
	for i, dim := range declared {
		if dim >= 0 && dim != actual[i] {
			return fmt.Errorf("dimension %d expects %d but got %d (declared %v, actual %v)", i, dim, actual[i], declared, actual)
		}
	}
	return nil
}
