package detect

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode error: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizePNG_PassesThroughPNG(t *testing.T) {
	data := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 4, 4)))

	out, err := NormalizePNG(data)
	if err != nil {
		t.Fatalf("NormalizePNG error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("PNG input was re-encoded instead of passed through")
	}
}

func TestNormalizePNG_ConvertsJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("jpeg encode error: %v", err)
	}

	out, err := NormalizePNG(buf.Bytes())
	if err != nil {
		t.Fatalf("NormalizePNG error: %v", err)
	}
	if !isPNG(out) {
		t.Fatalf("output is not PNG")
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output does not decode: %v", err)
	}
	if decoded.Bounds().Dx() != 8 || decoded.Bounds().Dy() != 8 {
		t.Errorf("output bounds = %v", decoded.Bounds())
	}
}

func TestNormalizePNG_RendersSVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="32" height="16">
		<rect x="2" y="2" width="28" height="12" fill="blue"/>
	</svg>`)

	out, err := NormalizePNG(svg)
	if err != nil {
		t.Fatalf("NormalizePNG error: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("rendered SVG does not decode: %v", err)
	}
	if decoded.Bounds().Dx() != 32 || decoded.Bounds().Dy() != 16 {
		t.Errorf("rendered bounds = %v, want 32x16", decoded.Bounds())
	}
}

func TestNormalizePNG_Errors(t *testing.T) {
	if _, err := NormalizePNG(nil); err == nil {
		t.Errorf("expected error for empty input")
	}
	if _, err := NormalizePNG([]byte("definitely not an image")); err == nil {
		t.Errorf("expected error for garbage input")
	}
}

func TestSvgSize(t *testing.T) {
	tests := []struct {
		name       string
		svg        string
		wantWidth  int
		wantHeight int
	}{
		{
			name:       "explicit size",
			svg:        `<svg width="100" height="50">`,
			wantWidth:  100,
			wantHeight: 50,
		},
		{
			name:       "pixel units",
			svg:        `<svg width="64px" height="48px">`,
			wantWidth:  64,
			wantHeight: 48,
		},
		{
			name:       "no size falls back",
			svg:        `<svg viewBox="0 0 10 10">`,
			wantWidth:  svgFallbackSize,
			wantHeight: svgFallbackSize,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			width, height := svgSize([]byte(test.svg))
			if width != test.wantWidth || height != test.wantHeight {
				t.Errorf("svgSize = %dx%d, want %dx%d", width, height, test.wantWidth, test.wantHeight)
			}
		})
	}
}
