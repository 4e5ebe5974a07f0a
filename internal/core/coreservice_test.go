package core

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/jo-hoe/goinfer/internal/runtime"
)

const coreTestModel = `{
	"schema": 1,
	"metadata": {"name": "rect-detector"},
	"inputs": [{"name": "image", "dtype": "uint8", "shape": [1, -1, -1, 4]}],
	"outputs": [
		{"name": "boxes", "dtype": "float32", "shape": [1, -1, 4]},
		{"name": "scores", "dtype": "float32", "shape": [1, -1]},
		{"name": "labels", "dtype": "int64", "shape": [1, -1]}
	],
	"params": {"minArea": 200, "minScore": 0.4}
}`

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "detector.json")
	if err := os.WriteFile(path, []byte(coreTestModel), 0o600); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}
	return path
}

// rectanglePNG renders a white 100x100 canvas with a black rectangle outline
// and encodes it as PNG.
func rectanglePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	black := color.NRGBA{A: 0xff}
	for x := 20; x <= 70; x++ {
		img.SetNRGBA(x, 30, black)
		img.SetNRGBA(x, 80, black)
	}
	for y := 30; y <= 80; y++ {
		img.SetNRGBA(20, y, black)
		img.SetNRGBA(70, y, black)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode error: %v", err)
	}
	return buf.Bytes()
}

func TestCoreService_EndToEnd(t *testing.T) {
	redis := miniredis.RunT(t)
	config := &ServiceConfig{
		Port:      8080,
		ModelPath: writeModel(t),
		Backend:   "inprocess",
		Database:  DatabaseConfig{Type: "sqlite", ConnectionString: ":memory:"},
		Cache:     CacheConfig{Address: redis.Addr(), TTL: time.Minute},
		Detector:  DetectorConfig{ScoreThreshold: 0.4},
		Labels:    []LabelConfig{{ID: 0, Name: "object"}},
	}

	service, err := NewCoreService(context.Background(), config)
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	defer func() { _ = service.Close() }()

	if service.ModelName() != "rect-detector" {
		t.Errorf("model name = %q", service.ModelName())
	}

	record, err := service.ClassifyAndStore(context.Background(), "rect.png", rectanglePNG(t))
	if err != nil {
		t.Fatalf("ClassifyAndStore error: %v", err)
	}
	if len(record.Detections) == 0 {
		t.Fatalf("expected at least one detection")
	}
	if service.LabelName(record.Detections[0].Label) != "object" {
		t.Errorf("label name = %q", service.LabelName(record.Detections[0].Label))
	}

	// The second classification of identical content is served from cache
	// and still persists a new record.
	second, err := service.ClassifyAndStore(context.Background(), "rect-again.png", rectanglePNG(t))
	if err != nil {
		t.Fatalf("second ClassifyAndStore error: %v", err)
	}
	if second.ID == record.ID {
		t.Errorf("second record reused id %s", record.ID)
	}
	if len(redis.Keys()) == 0 {
		t.Errorf("cache holds no keys after classification")
	}

	records, err := service.Records()
	if err != nil {
		t.Fatalf("Records error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}

	payload, err := service.Image(record.ID)
	if err != nil {
		t.Fatalf("Image error: %v", err)
	}
	if _, err = png.Decode(bytes.NewReader(payload)); err != nil {
		t.Errorf("stored image does not decode as PNG: %v", err)
	}

	if err = service.Delete(record.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err = service.Image(record.ID); err == nil {
		t.Errorf("expected error for deleted image")
	}
}

func TestCoreService_ClassifyValidatesBuffer(t *testing.T) {
	config := &ServiceConfig{
		Port:      8080,
		ModelPath: writeModel(t),
		Backend:   "inprocess",
		Database:  DatabaseConfig{Type: "sqlite", ConnectionString: ":memory:"},
	}
	service, err := NewCoreService(context.Background(), config)
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	defer func() { _ = service.Close() }()

	_, err = service.Classify(context.Background(), make([]byte, 10), 4, 4)
	if runtime.CodeOf(err) != runtime.CodeInvalidArgument {
		t.Errorf("CodeOf = %v, want CodeInvalidArgument", runtime.CodeOf(err))
	}

	// Dimensions whose product wraps around must not slip past the buffer
	// length check.
	_, err = service.Classify(context.Background(), make([]byte, 4), 1, math.MaxInt/4+1)
	if runtime.CodeOf(err) != runtime.CodeInvalidArgument {
		t.Errorf("CodeOf = %v, want CodeInvalidArgument for overflowing dimensions", runtime.CodeOf(err))
	}

	detections, err := service.Classify(context.Background(), make([]byte, 4*4*4), 4, 4)
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if len(detections) != 0 {
		t.Errorf("expected no detections on a tiny black image, got %d", len(detections))
	}
}

func TestCoreService_UnknownBackend(t *testing.T) {
	config := &ServiceConfig{
		Port:      8080,
		ModelPath: writeModel(t),
		Backend:   "cuda",
		Database:  DatabaseConfig{Type: "sqlite", ConnectionString: ":memory:"},
	}
	if _, err := NewCoreService(context.Background(), config); err == nil {
		t.Errorf("expected error for unknown backend")
	}
}

func TestLabelName_FallsBackToNumber(t *testing.T) {
	service := &CoreService{labels: map[int64]string{1: "car"}}
	if service.LabelName(1) != "car" {
		t.Errorf("LabelName(1) = %q", service.LabelName(1))
	}
	if service.LabelName(7) != "7" {
		t.Errorf("LabelName(7) = %q", service.LabelName(7))
	}
}
