package inprocess

import (
	"context"
	"math"
	"sort"
)

// evalParams are the tunables of the detection evaluator. They come from the
// model descriptor's params block, with defaults for anything unset.
type evalParams struct {
	// edgeThreshold is the minimum grayscale gradient for a pixel to count
	// as an edge.
	edgeThreshold float64

	// minArea filters out bounding boxes smaller than this many square
	// pixels.
	minArea int

	// minScore filters out shapes whose contour deviates too far from a
	// rectangle perimeter.
	minScore float64

	// maxDetections caps the number of returned boxes.
	maxDetections int
}

func defaultEvalParams() evalParams {
	return evalParams{
		edgeThreshold: 30,
		minArea:       100,
		minScore:      0.5,
		maxDetections: 100,
	}
}

// box is one detected axis-aligned shape in pixel coordinates, scored by how
// closely its contour matches a rectangle perimeter.
type box struct {
	x1, y1, x2, y2 int
	score          float64
}

type point struct {
	x, y int
}

// detectBoxes runs the evaluator over a raw RGBA buffer: grayscale, gradient
// edge detection, contour grouping by flood fill, then bounding box scoring.
// Cancellation is checked between stages, so a cancelled context stops the
// evaluation at the next stage boundary.
func detectBoxes(ctx context.Context, pix []byte, width, height int, params evalParams) ([]box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gray := grayscale(pix, width, height)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	edges := detectEdges(gray, width, height, params.edgeThreshold)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	contours := findContours(edges, width, height)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes := make([]box, 0, len(contours))
	for _, contour := range contours {
		minX, minY := width, height
		maxX, maxY := 0, 0
		for _, p := range contour {
			minX = min(minX, p.x)
			maxX = max(maxX, p.x)
			minY = min(minY, p.y)
			maxY = max(maxY, p.y)
		}

		boxWidth := maxX - minX
		boxHeight := maxY - minY
		if boxWidth*boxHeight < params.minArea {
			continue
		}

		// A perfect rectangle outline has exactly perimeter many contour
		// pixels; score deviation from that.
		perimeter := 2 * (boxWidth + boxHeight)
		score := 1.0 - math.Abs(float64(len(contour)-perimeter))/float64(perimeter)
		if score < params.minScore {
			continue
		}

		boxes = append(boxes, box{x1: minX, y1: minY, x2: maxX, y2: maxY, score: score})
	}

	sort.Slice(boxes, func(i, j int) bool {
		return boxes[i].score > boxes[j].score
	})
	if params.maxDetections > 0 && len(boxes) > params.maxDetections {
		boxes = boxes[:params.maxDetections]
	}
	return boxes, nil
}

// grayscale converts an RGBA buffer to ITU-R BT.601 luminance.
func grayscale(pix []byte, width, height int) []byte {
	gray := make([]byte, width*height)
	parallelRows(height, func(y int) {
		for x := 0; x < width; x++ {
			offset := (y*width + x) * 4
			r := float64(pix[offset])
			g := float64(pix[offset+1])
			b := float64(pix[offset+2])
			gray[y*width+x] = byte(r*0.299 + g*0.587 + b*0.114)
		}
	})
	return gray
}

// detectEdges marks pixels whose horizontal or vertical gradient exceeds the
// threshold. Border pixels are never edges.
func detectEdges(gray []byte, width, height int, threshold float64) []bool {
	edges := make([]bool, width*height)
	parallelRows(height, func(y int) {
		if y == 0 || y == height-1 {
			return
		}
		for x := 1; x < width-1; x++ {
			c := float64(gray[y*width+x])
			dx := math.Abs(c - float64(gray[y*width+x+1]))
			dy := math.Abs(c - float64(gray[(y+1)*width+x]))
			if dx > threshold || dy > threshold {
				edges[y*width+x] = true
			}
		}
	})
	return edges
}

// minContourSize discards tiny connected components as noise.
const minContourSize = 10

// findContours groups 8-connected edge pixels into contours with an
// iterative flood fill.
func findContours(edges []bool, width, height int) [][]point {
	visited := make([]bool, width*height)
	contours := make([][]point, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !edges[y*width+x] || visited[y*width+x] {
				continue
			}
			contour := floodFill(edges, visited, x, y, width, height)
			if len(contour) >= minContourSize {
				contours = append(contours, contour)
			}
		}
	}
	return contours
}

func floodFill(edges, visited []bool, startX, startY, width, height int) []point {
	contour := make([]point, 0)
	stack := []point{{x: startX, y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.x < 0 || p.x >= width || p.y < 0 || p.y >= height {
			continue
		}
		index := p.y*width + p.x
		if visited[index] || !edges[index] {
			continue
		}

		visited[index] = true
		contour = append(contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, point{x: p.x + dx, y: p.y + dy})
			}
		}
	}
	return contour
}
