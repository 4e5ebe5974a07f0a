package remote

import (
	"github.com/jo-hoe/goinfer/internal/runtime"
	"github.com/jo-hoe/goinfer/internal/runtime/value"
)

// tensorPayload is the JSON wire form of a tensor. Exactly one data field is
// populated, matching Dtype. Byte data travels base64-encoded via the
// standard []byte JSON encoding.
type tensorPayload struct {
	Dtype value.ElementType `json:"dtype"`
	Shape []int64           `json:"shape"`

	F32   []float32 `json:"f32,omitempty"`
	F64   []float64 `json:"f64,omitempty"`
	I32   []int32   `json:"i32,omitempty"`
	I64   []int64   `json:"i64,omitempty"`
	U8    []byte    `json:"u8,omitempty"`
	Bools []bool    `json:"bool,omitempty"`
	Strs  []string  `json:"str,omitempty"`
}

type providerPayload struct {
	Name    string            `json:"name"`
	Options map[string]string `json:"options,omitempty"`
}

type optionsPayload struct {
	OptimizationLevel int               `json:"optimizationLevel"`
	IntraThreads      int               `json:"intraThreads,omitempty"`
	Providers         []providerPayload `json:"providers,omitempty"`
}

type predictRequest struct {
	Model   string                   `json:"model"`
	Options optionsPayload           `json:"options"`
	Inputs  map[string]tensorPayload `json:"inputs"`
}

type predictResponse struct {
	Outputs map[string]tensorPayload `json:"outputs"`
	Error   string                   `json:"error,omitempty"`
}

func encodeTensor(t *value.Tensor) (tensorPayload, error) {
	payload := tensorPayload{Dtype: t.Dtype(), Shape: t.Shape()}
	var err error
	switch t.Dtype() {
	case value.Float32:
		payload.F32, err = t.Float32s()
	case value.Float64:
		payload.F64, err = t.Float64s()
	case value.Int32:
		payload.I32, err = t.Int32s()
	case value.Int64:
		payload.I64, err = t.Int64s()
	case value.Uint8:
		payload.U8, err = t.Bytes()
	case value.Bool:
		payload.Bools, err = t.Bools()
	case value.StringType:
		payload.Strs, err = t.Strings()
	default:
		return tensorPayload{}, runtime.Errorf(runtime.CodeInvalidArgument, "cannot encode tensor with element type %s", t.Dtype())
	}
	if err != nil {
		return tensorPayload{}, err
	}
	return payload, nil
}

func decodeTensor(payload tensorPayload) (*value.Tensor, error) {
	var (
		tensor *value.Tensor
		err    error
	)
	switch payload.Dtype {
	case value.Float32:
		tensor, err = value.FromFloat32s(payload.Shape, payload.F32)
	case value.Float64:
		tensor, err = value.FromFloat64s(payload.Shape, payload.F64)
	case value.Int32:
		tensor, err = value.FromInt32s(payload.Shape, payload.I32)
	case value.Int64:
		tensor, err = value.FromInt64s(payload.Shape, payload.I64)
	case value.Uint8:
		tensor, err = value.FromBytes(payload.Shape, payload.U8)
	case value.Bool:
		tensor, err = value.FromBools(payload.Shape, payload.Bools)
	case value.StringType:
		tensor, err = value.FromStrings(payload.Shape, payload.Strs)
	default:
		return nil, runtime.Errorf(runtime.CodeEngineError, "response tensor has unknown element type %q", payload.Dtype)
	}
	if err != nil {
		return nil, runtime.Errorf(runtime.CodeEngineError, "response tensor is malformed: %w", err)
	}
	return tensor, nil
}

func encodeOptions(opts runtime.SessionOptions) optionsPayload {
	payload := optionsPayload{
		OptimizationLevel: int(opts.OptimizationLevel),
		IntraThreads:      opts.IntraThreads,
	}
	for _, providerConfig := range opts.Providers {
		provider := providerPayload{Name: providerConfig.Name}
		if len(providerConfig.Options) > 0 {
			provider.Options = make(map[string]string, len(providerConfig.Options))
			for _, option := range providerConfig.Options {
				provider.Options[option.Key] = option.Value
			}
		}
		payload.Providers = append(payload.Providers, provider)
	}
	return payload
}
