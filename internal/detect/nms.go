package detect

import "sort"

// iou computes intersection over union of two boxes. Degenerate boxes yield
// zero.
func iou(a, b Box) float64 {
	interX1 := max(a.X1, b.X1)
	interY1 := max(a.Y1, b.Y1)
	interX2 := min(a.X2, b.X2)
	interY2 := min(a.Y2, b.Y2)

	interWidth := float64(interX2 - interX1)
	interHeight := float64(interY2 - interY1)
	if interWidth <= 0 || interHeight <= 0 {
		return 0
	}
	intersection := interWidth * interHeight

	areaA := float64(a.X2-a.X1) * float64(a.Y2-a.Y1)
	areaB := float64(b.X2-b.X1) * float64(b.Y2-b.Y1)
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// suppress applies non-maximum suppression: detections are ordered by score
// and any detection overlapping an already kept one above the IoU threshold
// is dropped.
func suppress(detections []Detection, iouThreshold float64) []Detection {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})

	kept := make([]Detection, 0, len(detections))
	for _, candidate := range detections {
		overlaps := false
		for _, existing := range kept {
			if iou(candidate.Box, existing.Box) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, candidate)
		}
	}
	return kept
}
