package processor

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func fillRect(mask *image.Gray, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
}

func TestEstimatePortionWeightEmptyMask(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 50, 50))

	got := EstimatePortionWeight(mask, DefaultCalibration)
	if got != 0 {
		t.Errorf("expected 0 for all-background mask, got %g", got)
	}
}

func TestEstimatePortionWeightSingleRegion(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 50, 50))
	fillRect(mask, 10, 10, 13, 14) // 3x4 = 12 pixels

	// 12 px * (0.1 cm/px)^2 * 2 cm * 0.9 g/cm3 = 0.216 g
	got := EstimatePortionWeight(mask, DefaultCalibration)
	want := 0.216
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %g g, got %g g", want, got)
	}
}

func TestEstimatePortionWeightLargestRegionWins(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 100, 100))
	fillRect(mask, 5, 5, 10, 10)   // 25 pixels of noise
	fillRect(mask, 40, 40, 60, 60) // 400 pixels of food

	// Only the 400-pixel region counts: 400 * 0.01 * 2 * 0.9 = 7.2 g
	got := EstimatePortionWeight(mask, DefaultCalibration)
	want := 7.2
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %g g, got %g g", want, got)
	}
}

func TestEstimatePortionWeightDiagonalConnectivity(t *testing.T) {
	// Diagonal neighbors belong to the same region under 8-connectivity.
	mask := image.NewGray(image.Rect(0, 0, 10, 10))
	mask.SetGray(2, 2, color.Gray{Y: 255})
	mask.SetGray(3, 3, color.Gray{Y: 255})
	mask.SetGray(4, 4, color.Gray{Y: 255})

	regions := foregroundRegions(mask)
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}
	if regions[0] != 3 {
		t.Errorf("expected region area 3, got %d", regions[0])
	}
}

func TestEstimatePortionWeightCustomCalibration(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 20, 20))
	fillRect(mask, 0, 0, 10, 10) // 100 pixels

	cal := Calibration{PixelToCmRatio: 0.2, SlabHeightCm: 1, DensityGCm3: 0.5}

	// 100 * 0.04 * 1 * 0.5 = 2 g
	got := EstimatePortionWeight(mask, cal)
	want := 2.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %g g, got %g g", want, got)
	}
}

func TestForegroundRegionsOffsetBounds(t *testing.T) {
	// Masks produced from sub-images may not start at the origin.
	mask := image.NewGray(image.Rect(5, 5, 15, 15))
	mask.SetGray(7, 7, color.Gray{Y: 255})
	mask.SetGray(8, 7, color.Gray{Y: 255})

	regions := foregroundRegions(mask)
	if len(regions) != 1 || regions[0] != 2 {
		t.Errorf("expected one region of area 2, got %v", regions)
	}
}
