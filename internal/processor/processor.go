/**
 * Scan Processor for the NutriScan worker
 *
 * Orchestrates the two scan pipelines over one output contract:
 * - Photo pipeline: classifier -> portion weight estimate -> nutrition
 *   lookup -> scaled nutrient record
 * - Label pipeline: preprocess -> OCR -> nutrient field parser -> extracted
 *   record
 *
 * The orchestrators are thin; all judgment calls live in the portion
 * estimator, the field parser and the lookup client.
 */

package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/nutriscan/scan-worker/internal/clients"
	apperrors "github.com/nutriscan/scan-worker/internal/errors"
	"github.com/nutriscan/scan-worker/internal/logging"
	"github.com/nutriscan/scan-worker/internal/nutrition"
	"github.com/nutriscan/scan-worker/internal/storage"
)

// ScanProcessorInterface defines the interface for scan processing
type ScanProcessorInterface interface {
	ProcessPhotoScan(ctx context.Context, req *PhotoScanRequest) (*PhotoScanResult, error)
	ProcessLabelScan(ctx context.Context, req *LabelScanRequest) (*LabelScanResult, error)
	UpdateScanStatus(ctx context.Context, scanID, kind, status string, scanErr *apperrors.ScanError) error
}

// ocrEngine is the boundary to the external text recognition collaborator.
type ocrEngine interface {
	Recognize(ctx context.Context, imageData []byte) (*OCRResult, error)
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	ClassifierURL    string
	OpenFoodFactsURL string
	TesseractPath    string
	LookupTimeout    time.Duration
	Calibration      Calibration
	MaskThreshold    uint8
	Store            *storage.ScanStore
}

// PhotoScanRequest represents a food photo scan
type PhotoScanRequest struct {
	ScanID      string
	UserID      string
	ImageData   []byte
	Calibration *Calibration // optional per-scan calibration override
}

// PhotoScanResult represents the photo pipeline output
type PhotoScanResult struct {
	FoodClass        nutrition.FoodClass
	Confidence       float64
	PortionGrams     float64
	Nutrients        nutrition.ScaledRecord
	ProcessingTimeMs int64
}

// LabelScanRequest represents a nutrition label scan
type LabelScanRequest struct {
	ScanID    string
	UserID    string
	ImageData []byte
}

// LabelScanResult represents the label pipeline output
type LabelScanResult struct {
	Text             string
	Confidence       float64
	Fields           nutrition.ExtractedRecord
	MatchedFields    int
	ProcessingTimeMs int64
}

// ScanProcessor handles scan processing
type ScanProcessor struct {
	config        *ProcessorConfig
	store         *storage.ScanStore
	classifier    *clients.ClassifierClient
	lookup        *clients.OpenFoodFactsClient
	ocr           ocrEngine
	calibration   Calibration
	maskThreshold uint8
	logger        *logging.Logger
}

// NewScanProcessor creates a new scan processor
func NewScanProcessor(cfg *ProcessorConfig) (*ScanProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.ClassifierURL == "" {
		return nil, fmt.Errorf("classifier URL is required")
	}

	if cfg.OpenFoodFactsURL == "" {
		return nil, fmt.Errorf("Open Food Facts URL is required")
	}

	logger := logging.NewLogger("Processor")

	calibration := cfg.Calibration
	if calibration == (Calibration{}) {
		calibration = DefaultCalibration
	}

	maskThreshold := cfg.MaskThreshold
	if maskThreshold == 0 {
		maskThreshold = 150
	}

	classifier := clients.NewClassifierClient(cfg.ClassifierURL)

	// Test classifier connection (non-fatal if unavailable)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := classifier.HealthCheck(ctx); err != nil {
		logger.Warn("Classifier health check failed; photo scans will fail until it recovers", "error", err)
	} else {
		logger.Info("Classifier connection verified", "url", cfg.ClassifierURL)
	}

	if cfg.Store == nil {
		logger.Warn("No scan store configured; results will not be persisted")
	}

	return &ScanProcessor{
		config:        cfg,
		store:         cfg.Store,
		classifier:    classifier,
		lookup:        clients.NewOpenFoodFactsClient(cfg.OpenFoodFactsURL, cfg.LookupTimeout),
		ocr:           NewLabelOCR(cfg.TesseractPath),
		calibration:   calibration,
		maskThreshold: maskThreshold,
		logger:        logger,
	}, nil
}

// ProcessPhotoScan runs the photo pipeline: classify the food, estimate the
// portion weight from the segmented mask, and fetch nutrient data scaled to
// that weight.
func (p *ScanProcessor) ProcessPhotoScan(ctx context.Context, req *PhotoScanRequest) (*PhotoScanResult, error) {
	startTime := time.Now()

	if len(req.ImageData) == 0 {
		return nil, apperrors.NewPreconditionError("photo scan requires image data")
	}

	img, err := DecodeImage(req.ImageData)
	if err != nil {
		return nil, apperrors.NewDecodeFailedError(req.ScanID, err)
	}

	class, probability, err := p.classifier.Predict(ctx, ClassifierTensor(img, ClassifierInputSize))
	if err != nil {
		return nil, err
	}
	p.logger.Info("Classified photo", "scanId", req.ScanID, "class", class, "probability", probability)

	calibration := p.calibration
	if req.Calibration != nil {
		calibration = *req.Calibration
	}

	mask := ThresholdInv(Grayscale(img), p.maskThreshold)
	portionGrams := EstimatePortionWeight(mask, calibration)
	if portionGrams == 0 {
		// Valid weight per contract, but worth surfacing: every scaled
		// nutrient will come out zero.
		p.logger.Warn("Portion mask has no foreground regions", "scanId", req.ScanID)
	}

	record, err := p.lookup.Lookup(ctx, class.Query(), portionGrams)
	if err != nil {
		return nil, err
	}

	result := &PhotoScanResult{
		FoodClass:        class,
		Confidence:       probability,
		PortionGrams:     portionGrams,
		Nutrients:        record,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}

	if p.store != nil {
		update := &storage.ScanUpdate{
			ScanID:           req.ScanID,
			UserID:           req.UserID,
			Kind:             "photo",
			Status:           "completed",
			FoodClass:        string(class),
			Confidence:       probability,
			PortionGrams:     portionGrams,
			Nutrients:        record,
			ProcessingTimeMs: result.ProcessingTimeMs,
		}
		if err := p.store.UpdateScanStatus(ctx, update); err != nil {
			return nil, apperrors.NewStorageFailedError(req.ScanID, err)
		}
	}

	p.logger.Info("Photo scan completed", "scanId", req.ScanID,
		"class", class, "portionGrams", fmt.Sprintf("%.2f", portionGrams))
	return result, nil
}

// ProcessLabelScan runs the label pipeline: preprocess the image, recognize
// text, and extract whatever nutrition fields the text contains. Parsing gaps
// are absent fields, never failures.
func (p *ScanProcessor) ProcessLabelScan(ctx context.Context, req *LabelScanRequest) (*LabelScanResult, error) {
	startTime := time.Now()

	if len(req.ImageData) == 0 {
		return nil, apperrors.NewPreconditionError("label scan requires image data")
	}

	img, err := DecodeImage(req.ImageData)
	if err != nil {
		return nil, apperrors.NewDecodeFailedError(req.ScanID, err)
	}

	binary := ThresholdBinary(Grayscale(img), p.maskThreshold)
	imageData, err := EncodePNG(binary)
	if err != nil {
		return nil, apperrors.NewOCRFailedError(req.ScanID, err)
	}

	ocrResult, err := p.ocr.Recognize(ctx, imageData)
	if err != nil {
		return nil, apperrors.NewOCRFailedError(req.ScanID, err)
	}

	fields := ParseLabelText(ocrResult.Text)
	matched := fields.MatchedFields()
	if matched == 0 {
		// A record with every field absent is a valid, if unhelpful, result.
		p.logger.Warn("No nutrition fields recognized on label", "scanId", req.ScanID,
			"textLength", len(ocrResult.Text))
	}

	result := &LabelScanResult{
		Text:             ocrResult.Text,
		Confidence:       ocrResult.Confidence,
		Fields:           fields,
		MatchedFields:    matched,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}

	if p.store != nil {
		update := &storage.ScanUpdate{
			ScanID:           req.ScanID,
			UserID:           req.UserID,
			Kind:             "label",
			Status:           "completed",
			Confidence:       ocrResult.Confidence,
			LabelFields:      fields,
			MatchedFields:    matched,
			ProcessingTimeMs: result.ProcessingTimeMs,
		}
		if err := p.store.UpdateScanStatus(ctx, update); err != nil {
			return nil, apperrors.NewStorageFailedError(req.ScanID, err)
		}
	}

	p.logger.Info("Label scan completed", "scanId", req.ScanID, "matchedFields", matched)
	return result, nil
}

// UpdateScanStatus records a scan lifecycle transition.
func (p *ScanProcessor) UpdateScanStatus(ctx context.Context, scanID, kind, status string, scanErr *apperrors.ScanError) error {
	if p.store == nil {
		return nil
	}

	update := &storage.ScanUpdate{
		ScanID: scanID,
		Kind:   kind,
		Status: status,
	}
	if scanErr != nil {
		update.ErrorCode = string(scanErr.Code)
		update.ErrorMessage = scanErr.Message
	}

	return p.store.UpdateScanStatus(ctx, update)
}
