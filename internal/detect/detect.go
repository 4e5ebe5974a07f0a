// Package detect runs object detection on images through an inference
// session and turns raw model outputs into usable results: thresholded,
// deduplicated bounding boxes with scores and named colors.
package detect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/jo-hoe/goinfer/internal/runtime"
	"github.com/jo-hoe/goinfer/internal/runtime/value"
	"github.com/jo-hoe/goinfer/internal/telemetry"
)

// Box is an axis-aligned bounding box in pixel coordinates of the original
// image.
type Box struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// Detection is one detected object.
type Detection struct {
	Box   Box     `json:"box"`
	Score float32 `json:"score"`
	Label int64   `json:"label"`

	// Color is the human-readable name of the dominant color inside the
	// box, Hex its exact value.
	Color string `json:"color,omitempty"`
	Hex   string `json:"hex,omitempty"`
}

// Options tune postprocessing. Zero values select the defaults; negative
// values disable the corresponding step.
type Options struct {
	// ScoreThreshold drops detections scored below it. Default 0.5,
	// negative keeps every detection.
	ScoreThreshold float32

	// IoUThreshold is the overlap above which a lower-scored detection is
	// suppressed. Default 0.45, negative disables suppression.
	IoUThreshold float64

	// MaxResults caps the number of returned detections. Default 20,
	// negative disables the cap.
	MaxResults int

	// MaxSide downscales larger images before inference so runtime stays
	// bounded. Default 640, negative disables resizing.
	MaxSide int
}

func (o Options) withDefaults() Options {
	if o.ScoreThreshold == 0 {
		o.ScoreThreshold = 0.5
	}
	if o.IoUThreshold == 0 {
		o.IoUThreshold = 0.45
	}
	if o.MaxResults == 0 {
		o.MaxResults = 20
	}
	if o.MaxSide == 0 {
		o.MaxSide = 640
	}
	return o
}

// Detector wraps an inference session with image preparation and result
// postprocessing. It is safe for concurrent use when the session is.
type Detector struct {
	session    runtime.Session
	imageInput string
	options    Options
}

// New creates a detector for a session whose model takes a rank-4 uint8
// image input and produces boxes/scores (and optionally labels) outputs.
func New(session runtime.Session, options Options) (*Detector, error) {
	imageInput := ""
	for _, spec := range session.Descriptor().Inputs {
		if spec.Dtype == value.Uint8 && len(spec.Shape) == 4 {
			imageInput = spec.Name
			break
		}
	}
	if imageInput == "" {
		return nil, runtime.Errorf(runtime.CodeInvalidModel, "model %s has no rank-4 uint8 image input", session.Metadata().Name)
	}
	return &Detector{
		session:    session,
		imageInput: imageInput,
		options:    options.withDefaults(),
	}, nil
}

// DetectRGBA is the raw-buffer entry point used by the browser demo: one
// RGBA pixel buffer, its dimensions, one detection pass. The buffer length
// must be exactly width*height*4.
func (d *Detector) DetectRGBA(ctx context.Context, pix []byte, width, height int) ([]Detection, error) {
	if width <= 0 || height <= 0 {
		return nil, runtime.Errorf(runtime.CodeInvalidArgument, "invalid image dimensions %dx%d", width, height)
	}
	// Guard the multiplication: wrapped dimensions would pass the length
	// check with a buffer far smaller than the claimed image.
	if height > math.MaxInt/4/width {
		return nil, runtime.Errorf(runtime.CodeInvalidArgument, "image dimensions %dx%d are too large", width, height)
	}
	if expected := width * height * 4; len(pix) != expected {
		return nil, runtime.Errorf(runtime.CodeInvalidArgument, "pixel buffer has %d bytes but %dx%d RGBA requires %d", len(pix), width, height, expected)
	}
	return d.run(ctx, pix, width, height, 1, 1)
}

// Detect runs detection on a decoded image, downscaling it first when it
// exceeds the configured maximum side length. Boxes are reported in the
// coordinates of the original image.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	originalWidth := img.Bounds().Dx()
	originalHeight := img.Bounds().Dy()
	if originalWidth == 0 || originalHeight == 0 {
		return nil, runtime.Errorf(runtime.CodeInvalidArgument, "image is empty")
	}

	if d.options.MaxSide > 0 && (originalWidth > d.options.MaxSide || originalHeight > d.options.MaxSide) {
		img = imaging.Fit(img, d.options.MaxSide, d.options.MaxSide, imaging.Lanczos)
	}
	prepared := imaging.Clone(img)
	width := prepared.Bounds().Dx()
	height := prepared.Bounds().Dy()

	scaleX := float32(originalWidth) / float32(width)
	scaleY := float32(originalHeight) / float32(height)
	return d.run(ctx, prepared.Pix, width, height, scaleX, scaleY)
}

// DetectBytes decodes encoded image data and runs detection on it. SVG input
// is rasterized first.
func (d *Detector) DetectBytes(ctx context.Context, data []byte) ([]Detection, error) {
	if isSVG(data) {
		rendered, err := NormalizePNG(data)
		if err != nil {
			return nil, err
		}
		data = rendered
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, runtime.Errorf(runtime.CodeInvalidArgument, "failed to decode image: %w", err)
	}
	return d.Detect(ctx, img)
}

func (d *Detector) run(ctx context.Context, pix []byte, width, height int, scaleX, scaleY float32) ([]Detection, error) {
	tensor, err := value.FromRGBA(pix, width, height)
	if err != nil {
		return nil, runtime.Errorf(runtime.CodeInvalidArgument, "%w", err)
	}

	outputs, err := d.session.Run(ctx, map[string]*value.Tensor{d.imageInput: tensor})
	if err != nil {
		return nil, err
	}

	detections, err := d.postprocess(outputs, pix, width, height)
	if err != nil {
		return nil, err
	}

	// Map boxes back to original image coordinates after color sampling,
	// which happens on the resized buffer.
	for i := range detections {
		detections[i].Box.X1 *= scaleX
		detections[i].Box.X2 *= scaleX
		detections[i].Box.Y1 *= scaleY
		detections[i].Box.Y2 *= scaleY
	}

	telemetry.Logger("detect").Debug("detection completed",
		"model", d.session.Metadata().Name,
		"width", width,
		"height", height,
		"detections", len(detections))
	return detections, nil
}

func (d *Detector) postprocess(outputs map[string]*value.Tensor, pix []byte, width, height int) ([]Detection, error) {
	boxes, scores, labels, err := extractOutputs(outputs)
	if err != nil {
		return nil, err
	}

	detections := make([]Detection, 0, len(scores))
	for i, score := range scores {
		if score < d.options.ScoreThreshold {
			continue
		}
		detection := Detection{
			Box:   Box{X1: boxes[i*4], Y1: boxes[i*4+1], X2: boxes[i*4+2], Y2: boxes[i*4+3]},
			Score: score,
		}
		if labels != nil {
			detection.Label = labels[i]
		}
		r, g, b := dominantColor(pix, width, height, detection.Box)
		detection.Color = colorName(r, g, b)
		detection.Hex = hexColor(r, g, b)
		detections = append(detections, detection)
	}

	if d.options.IoUThreshold >= 0 {
		detections = suppress(detections, d.options.IoUThreshold)
	}
	if d.options.MaxResults > 0 && len(detections) > d.options.MaxResults {
		detections = detections[:d.options.MaxResults]
	}
	return detections, nil
}

// extractOutputs pulls the boxes, scores and optional labels tensors out of
// a model's outputs and checks they are consistent.
func extractOutputs(outputs map[string]*value.Tensor) (boxes []float32, scores []float32, labels []int64, err error) {
	boxesTensor, ok := outputs["boxes"]
	if !ok {
		return nil, nil, nil, runtime.NewError(runtime.CodeInvalidModel, "model produced no boxes output")
	}
	scoresTensor, ok := outputs["scores"]
	if !ok {
		return nil, nil, nil, runtime.NewError(runtime.CodeInvalidModel, "model produced no scores output")
	}

	if boxes, err = boxesTensor.Float32s(); err != nil {
		return nil, nil, nil, fmt.Errorf("boxes output: %w", err)
	}
	if scores, err = scoresTensor.Float32s(); err != nil {
		return nil, nil, nil, fmt.Errorf("scores output: %w", err)
	}
	if len(boxes) != len(scores)*4 {
		return nil, nil, nil, runtime.Errorf(runtime.CodeEngineError, "model produced %d box values for %d scores", len(boxes), len(scores))
	}

	if labelsTensor, ok := outputs["labels"]; ok {
		if labels, err = labelsTensor.Int64s(); err != nil {
			return nil, nil, nil, fmt.Errorf("labels output: %w", err)
		}
		if len(labels) != len(scores) {
			return nil, nil, nil, runtime.Errorf(runtime.CodeEngineError, "model produced %d labels for %d scores", len(labels), len(scores))
		}
	}
	return boxes, scores, labels, nil
}
