// Package inprocess implements the alternative pure-Go backend. It evaluates
// detection models with classical computer vision primitives instead of
// delegating to a remote service, so builds tagged `inprocess` work without
// network access.
package inprocess

import (
	"context"
	"time"

	"github.com/jo-hoe/goinfer/internal/runtime"
	"github.com/jo-hoe/goinfer/internal/runtime/metadata"
	"github.com/jo-hoe/goinfer/internal/runtime/value"
	"github.com/jo-hoe/goinfer/internal/telemetry"
)

// Backend evaluates sessions in-process.
type Backend struct{}

// New creates the in-process backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string {
	return "inprocess"
}

func (b *Backend) Available() error {
	return nil
}

// OpenSession loads the descriptor and resolves evaluator parameters from its
// params block.
func (b *Backend) OpenSession(_ context.Context, src runtime.ModelSource, _ runtime.SessionOptions) (runtime.Session, error) {
	descriptor, err := runtime.LoadDescriptor(src)
	if err != nil {
		return nil, err
	}

	imageInput, ok := findImageInput(descriptor)
	if !ok {
		return nil, runtime.Errorf(runtime.CodeInvalidModel, "model %s declares no uint8 image input the in-process backend can evaluate", descriptor.Metadata.Name)
	}

	return &session{
		descriptor: descriptor,
		imageInput: imageInput,
		params:     resolveParams(descriptor.Params),
	}, nil
}

// findImageInput returns the name of the first rank-4 uint8 input, the
// [batch, height, width, channels] image the evaluator consumes.
func findImageInput(descriptor *runtime.ModelDescriptor) (string, bool) {
	for _, spec := range descriptor.Inputs {
		if spec.Dtype == value.Uint8 && len(spec.Shape) == 4 {
			return spec.Name, true
		}
	}
	return "", false
}

func resolveParams(params map[string]any) evalParams {
	resolved := defaultEvalParams()
	if v, ok := floatParam(params, "edgeThreshold"); ok {
		resolved.edgeThreshold = v
	}
	if v, ok := floatParam(params, "minArea"); ok {
		resolved.minArea = int(v)
	}
	if v, ok := floatParam(params, "minScore"); ok {
		resolved.minScore = v
	}
	if v, ok := floatParam(params, "maxDetections"); ok {
		resolved.maxDetections = int(v)
	}
	return resolved
}

// floatParam reads a numeric descriptor param. JSON numbers always decode to
// float64 inside map[string]any.
func floatParam(params map[string]any, key string) (float64, bool) {
	raw, ok := params[key]
	if !ok {
		return 0, false
	}
	number, ok := raw.(float64)
	return number, ok
}

type session struct {
	descriptor *runtime.ModelDescriptor
	imageInput string
	params     evalParams
}

func (s *session) Run(ctx context.Context, inputs map[string]*value.Tensor) (map[string]*value.Tensor, error) {
	if err := s.descriptor.ValidateInputs(inputs); err != nil {
		return nil, err
	}

	image := inputs[s.imageInput]
	shape := image.Shape()
	if shape[0] != 1 {
		return nil, runtime.Errorf(runtime.CodeInvalidArgument, "input %q must have batch size 1, got %d", s.imageInput, shape[0])
	}
	if shape[3] != 4 {
		return nil, runtime.Errorf(runtime.CodeInvalidArgument, "input %q must have 4 channels (RGBA), got %d", s.imageInput, shape[3])
	}
	height := int(shape[1])
	width := int(shape[2])

	pix, err := image.Bytes()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	boxes, err := detectBoxes(ctx, pix, width, height, s.params)
	if err != nil {
		return nil, err
	}

	outputs := make(map[string]*value.Tensor, len(s.descriptor.Outputs))
	for _, spec := range s.descriptor.Outputs {
		tensor, buildErr := buildOutput(spec, boxes)
		if buildErr != nil {
			return nil, buildErr
		}
		outputs[spec.Name] = tensor
	}

	telemetry.Logger("backend.inprocess").Debug("evaluation completed",
		"model", s.descriptor.Metadata.Name,
		"duration", time.Since(start),
		"detections", len(boxes))
	return outputs, nil
}

// buildOutput materializes one declared output from the detected boxes. The
// evaluator knows three output names: boxes, scores and labels.
func buildOutput(spec runtime.TensorSpec, boxes []box) (*value.Tensor, error) {
	n := int64(len(boxes))
	switch spec.Name {
	case "boxes":
		data := make([]float32, 0, len(boxes)*4)
		for _, b := range boxes {
			data = append(data, float32(b.x1), float32(b.y1), float32(b.x2), float32(b.y2))
		}
		return value.FromFloat32s([]int64{1, n, 4}, data)
	case "scores":
		data := make([]float32, 0, len(boxes))
		for _, b := range boxes {
			data = append(data, float32(b.score))
		}
		return value.FromFloat32s([]int64{1, n}, data)
	case "labels":
		// The evaluator is single class; every detection is label 0.
		return value.FromInt64s([]int64{1, n}, make([]int64, len(boxes)))
	default:
		return nil, runtime.Errorf(runtime.CodeNotImplemented, "in-process backend cannot produce output %q", spec.Name)
	}
}

func (s *session) Descriptor() *runtime.ModelDescriptor {
	return s.descriptor
}

func (s *session) Metadata() *metadata.Model {
	return &s.descriptor.Metadata
}

func (s *session) Close() error {
	return nil
}
