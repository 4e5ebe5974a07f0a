package detect

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// dominantColor returns the most frequent quantized color inside a box of an
// RGBA buffer. Components are quantized to 16 steps so near-identical shades
// group together.
func dominantColor(pix []byte, width, height int, box Box) (r, g, b uint8) {
	x1 := clamp(int(box.X1), 0, width-1)
	y1 := clamp(int(box.Y1), 0, height-1)
	x2 := clamp(int(box.X2), x1+1, width)
	y2 := clamp(int(box.Y2), y1+1, height)

	counts := make(map[[3]uint8]int)
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			offset := (y*width + x) * 4
			key := [3]uint8{
				pix[offset] / 16 * 16,
				pix[offset+1] / 16 * 16,
				pix[offset+2] / 16 * 16,
			}
			counts[key]++
		}
	}

	best := 0
	for key, count := range counts {
		if count > best {
			best = count
			r, g, b = key[0], key[1], key[2]
		}
	}
	return r, g, b
}

// colorName maps an RGB value to a human-readable name using HSL hue ranges.
// Desaturated colors are named by lightness instead.
func colorName(r, g, b uint8) string {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	h, s, l := c.Hsl()

	if l < 0.12 {
		return "black"
	}
	if l > 0.92 {
		return "white"
	}
	if s < 0.15 {
		return "gray"
	}

	switch {
	case h < 15 || h >= 345:
		return "red"
	case h < 45:
		return "orange"
	case h < 70:
		return "yellow"
	case h < 160:
		return "green"
	case h < 200:
		return "cyan"
	case h < 260:
		return "blue"
	case h < 300:
		return "purple"
	default:
		return "pink"
	}
}

// hexColor renders an RGB value as "#RRGGBB".
func hexColor(r, g, b uint8) string {
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
