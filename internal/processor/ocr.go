/**
 * Label OCR - Tesseract wrapper for the label pipeline
 *
 * The OCR engine is an external collaborator: preprocessed image bytes in,
 * one opaque string of recognized text out. The parser downstream owns all
 * structure recovery, so no correction is attempted here beyond reporting a
 * confidence heuristic.
 */

package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// LabelOCR handles text recognition on preprocessed label images
type LabelOCR struct {
	tesseractPath string
}

// NewLabelOCR creates a new Tesseract-backed OCR engine
func NewLabelOCR(tesseractPath string) *LabelOCR {
	if tesseractPath == "" {
		tesseractPath = "/usr/bin/tesseract"
	}
	return &LabelOCR{tesseractPath: tesseractPath}
}

// OCRResult represents the result of recognizing one label image
type OCRResult struct {
	Text       string
	Confidence float64
	Duration   time.Duration
}

// Recognize performs OCR on preprocessed (grayscale, thresholded) image
// bytes. The returned text may be empty and may contain line breaks and
// artifacts; that is the parser's problem, not an error here.
func (o *LabelOCR) Recognize(ctx context.Context, imageData []byte) (*OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(imageData); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	return &OCRResult{
		Text:       text,
		Confidence: labelTextConfidence(text),
		Duration:   time.Since(startTime),
	}, nil
}

// labelTextConfidence estimates recognition quality from indicators a
// nutrition facts panel should exhibit: digits, unit suffixes, and the
// standard field headings.
func labelTextConfidence(text string) float64 {
	confidence := 0.5 // Base confidence

	hasDigit := strings.ContainsAny(text, "0123456789")
	if hasDigit {
		confidence += 0.1
	}

	lower := strings.ToLower(text)
	for _, marker := range []string{"calories", "serving", "fat", "sodium", "protein"} {
		if strings.Contains(lower, marker) {
			confidence += 0.05
		}
	}

	if strings.Contains(text, "%") {
		confidence += 0.05
	}

	// Cap at reasonable maximum for Tesseract
	if confidence > 0.85 {
		confidence = 0.85
	}

	return confidence
}
