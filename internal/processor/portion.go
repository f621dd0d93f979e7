/**
 * Portion Weight Estimator
 *
 * Estimates a physical portion weight from a segmented binary mask using a
 * flat-slab volume model: every connected foreground region is treated as a
 * uniform-height slab, and the heaviest single region is reported. The
 * segmentation may include background noise regions smaller than the food
 * item, so the largest contiguous region is the best single estimate.
 */

package processor

import "image"

// Calibration holds the caller-supplied constants for converting mask pixels
// into grams. No camera calibration is performed; the pixel-to-length ratio
// is taken as given.
type Calibration struct {
	PixelToCmRatio float64 // cm per pixel
	SlabHeightCm   float64 // assumed uniform object height
	DensityGCm3    float64 // assumed density
}

// DefaultCalibration matches the constants the model was tuned with.
var DefaultCalibration = Calibration{
	PixelToCmRatio: 0.1,
	SlabHeightCm:   2,
	DensityGCm3:    0.9,
}

// EstimatePortionWeight returns the weight in grams of the heaviest connected
// foreground region in mask (non-zero pixels are foreground). An all-background
// mask yields 0, which is a valid weight: downstream scaling turns it into an
// all-zero nutrient record, not an error.
func EstimatePortionWeight(mask *image.Gray, cal Calibration) float64 {
	maxWeight := 0.0
	for _, pixelArea := range foregroundRegions(mask) {
		areaCm2 := float64(pixelArea) * cal.PixelToCmRatio * cal.PixelToCmRatio
		volumeCm3 := areaCm2 * cal.SlabHeightCm
		weightG := volumeCm3 * cal.DensityGCm3
		if weightG > maxWeight {
			maxWeight = weightG
		}
	}
	return maxWeight
}

// foregroundRegions returns the pixel area of every maximal 8-connected
// foreground region in the mask.
func foregroundRegions(mask *image.Gray) []int {
	bounds := mask.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	visited := make([]bool, width*height)
	var areas []int

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			if visited[idx] {
				continue
			}
			if mask.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y == 0 {
				visited[idx] = true
				continue
			}
			areas = append(areas, fillRegion(mask, visited, x, y))
		}
	}

	return areas
}

// fillRegion flood-fills one region starting at (x, y) and returns its pixel
// area. Iterative with an explicit stack; label photos can produce regions
// large enough to overflow a recursive fill.
func fillRegion(mask *image.Gray, visited []bool, x, y int) int {
	bounds := mask.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	type point struct{ x, y int }
	stack := []point{{x, y}}
	visited[y*width+x] = true
	area := 0

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		area++

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := p.x+dx, p.y+dy
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				idx := ny*width + nx
				if visited[idx] {
					continue
				}
				if mask.GrayAt(bounds.Min.X+nx, bounds.Min.Y+ny).Y == 0 {
					visited[idx] = true
					continue
				}
				visited[idx] = true
				stack = append(stack, point{nx, ny})
			}
		}
	}

	return area
}
