/**
 * Image preprocessing for both scan pipelines
 *
 * Photo pipeline: decode -> classifier tensor (128x128, [0,1]) and
 *                 decode -> grayscale -> inverted binary mask for the
 *                 portion weight estimator.
 * Label pipeline: decode -> grayscale -> binary image for OCR.
 *
 * Thresholding uses a fixed intensity constant, never a dynamically chosen
 * one.
 */

package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// ClassifierInputSize is the fixed spatial dimension the classifier expects.
const ClassifierInputSize = 128

// DecodeImage decodes JPEG/PNG/GIF image bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Grayscale converts an image to 8-bit grayscale.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// ThresholdInv produces the inverted binary mask the portion estimator
// consumes: pixels at or below the threshold (the darker food item against a
// lighter background) become foreground (255), brighter pixels background (0).
func ThresholdInv(gray *image.Gray, threshold uint8) *image.Gray {
	bounds := gray.Bounds()
	mask := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if gray.GrayAt(x, y).Y <= threshold {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return mask
}

// ThresholdBinary produces the straight binary image fed to OCR: pixels above
// the threshold become white, the rest black.
func ThresholdBinary(gray *image.Gray, threshold uint8) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if gray.GrayAt(x, y).Y > threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// ClassifierTensor resizes an image to size x size and normalizes RGB channel
// values to [0, 1], matching the classifier's training preprocessing.
func ClassifierTensor(img image.Image, size int) [][][]float32 {
	resized := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(resized, resized.Rect, img, img.Bounds(), draw.Over, nil)

	tensor := make([][][]float32, size)
	for y := 0; y < size; y++ {
		row := make([][]float32, size)
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			row[x] = []float32{
				float32(r>>8) / 255.0,
				float32(g>>8) / 255.0,
				float32(b>>8) / 255.0,
			}
		}
		tensor[y] = row
	}
	return tensor
}

// EncodePNG serializes a preprocessed image for the OCR engine.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
