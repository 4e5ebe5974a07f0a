package detect

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"regexp"
	"strconv"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// pngSignature is the fixed 8-byte prefix of every PNG file.
var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func isPNG(data []byte) bool {
	return len(data) >= 8 && bytes.Equal(data[:8], pngSignature)
}

// isSVG inspects the first few KB of data for an SVG root element.
func isSVG(data []byte) bool {
	n := min(len(data), 4096)
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.Contains(header, []byte("<svg"))
}

// svgFallbackSize is used when an SVG declares no explicit pixel size.
const svgFallbackSize = 512

// NormalizePNG converts arbitrary supported image data to PNG. PNG input is
// returned unchanged; SVG is rasterized; GIF, JPEG, BMP, TIFF and WebP are
// decoded and re-encoded.
func NormalizePNG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image data is empty")
	}
	if isPNG(data) {
		return data, nil
	}
	if isSVG(data) {
		return renderSVG(data)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err = png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image to PNG: %w", err)
	}
	return buf.Bytes(), nil
}

var svgSizeAttr = regexp.MustCompile(`(width|height)\s*=\s*["']?(\d+)`)

// svgSize extracts explicit width/height attributes from the SVG start tag.
func svgSize(data []byte) (width, height int) {
	width, height = svgFallbackSize, svgFallbackSize

	n := min(len(data), 8192)
	header := bytes.ToLower(data[:n])
	start := bytes.Index(header, []byte("<svg"))
	if start < 0 {
		return width, height
	}
	end := bytes.IndexByte(header[start:], '>')
	if end < 0 {
		end = len(header) - start
	}
	tag := header[start : start+end]

	for _, match := range svgSizeAttr.FindAllSubmatch(tag, -1) {
		size, err := strconv.Atoi(string(match[2]))
		if err != nil || size <= 0 {
			continue
		}
		if string(match[1]) == "width" {
			width = size
		} else {
			height = size
		}
	}
	return width, height
}

// renderSVG rasterizes SVG data onto a white canvas and encodes it as PNG.
func renderSVG(data []byte) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	width, height := svgSize(data)
	icon.SetTarget(0, 0, float64(width), float64(height))

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(width, height, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)

	var buf bytes.Buffer
	buf.Grow(width * height)
	if err = png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode rendered SVG as PNG: %w", err)
	}
	return buf.Bytes(), nil
}
