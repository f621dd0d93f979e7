package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	apperrors "github.com/nutriscan/scan-worker/internal/errors"
	"github.com/nutriscan/scan-worker/internal/processor"
)

type fakeProcessor struct {
	photoReq  *processor.PhotoScanRequest
	labelReq  *processor.LabelScanRequest
	photoErr  error
	labelErr  error
	statuses  []string
	lastError *apperrors.ScanError
}

func (f *fakeProcessor) ProcessPhotoScan(ctx context.Context, req *processor.PhotoScanRequest) (*processor.PhotoScanResult, error) {
	f.photoReq = req
	if f.photoErr != nil {
		return nil, f.photoErr
	}
	return &processor.PhotoScanResult{}, nil
}

func (f *fakeProcessor) ProcessLabelScan(ctx context.Context, req *processor.LabelScanRequest) (*processor.LabelScanResult, error) {
	f.labelReq = req
	if f.labelErr != nil {
		return nil, f.labelErr
	}
	return &processor.LabelScanResult{}, nil
}

func (f *fakeProcessor) UpdateScanStatus(ctx context.Context, scanID, kind, status string, scanErr *apperrors.ScanError) error {
	f.statuses = append(f.statuses, status)
	if scanErr != nil {
		f.lastError = scanErr
	}
	return nil
}

func testConsumer(proc processor.ScanProcessorInterface) *Consumer {
	return &Consumer{
		processor: proc,
		config: &ConsumerConfig{
			RedisURL:    "redis://localhost:6379",
			QueueName:   "nutriscan:scans",
			Concurrency: 1,
			ScanTimeout: time.Second,
		},
	}
}

func mustTask(t *testing.T, taskType string, payload interface{}) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return asynq.NewTask(taskType, body)
}

func TestNewConsumerValidation(t *testing.T) {
	proc := &fakeProcessor{}

	tests := []struct {
		name string
		cfg  *ConsumerConfig
	}{
		{"missing redis URL", &ConsumerConfig{QueueName: "q", Processor: proc}},
		{"missing queue name", &ConsumerConfig{RedisURL: "redis://localhost:6379", Processor: proc}},
		{"missing processor", &ConsumerConfig{RedisURL: "redis://localhost:6379", QueueName: "q"}},
		{"bad redis URL", &ConsumerConfig{RedisURL: "://", QueueName: "q", Processor: proc}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewConsumer(tt.cfg); err == nil {
				t.Error("expected constructor error")
			}
		})
	}
}

func TestHandlePhotoScan(t *testing.T) {
	proc := &fakeProcessor{}
	consumer := testConsumer(proc)

	task := mustTask(t, TaskPhotoScan, &PhotoScanPayload{
		ScanID: "scan-1",
		UserID: "user-1",
		Image:  []byte{1, 2, 3},
	})

	if err := consumer.handlePhotoScan(context.Background(), task); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	if proc.photoReq == nil {
		t.Fatal("processor never invoked")
	}
	if proc.photoReq.ScanID != "scan-1" || proc.photoReq.UserID != "user-1" {
		t.Errorf("request identity = %s/%s", proc.photoReq.ScanID, proc.photoReq.UserID)
	}
	if proc.photoReq.Calibration != nil {
		t.Error("calibration override present without payload overrides")
	}
	if len(proc.statuses) != 1 || proc.statuses[0] != "processing" {
		t.Errorf("statuses = %v, want [processing]", proc.statuses)
	}
}

func TestHandlePhotoScanCalibrationOverride(t *testing.T) {
	proc := &fakeProcessor{}
	consumer := testConsumer(proc)

	ratio := 0.5
	task := mustTask(t, TaskPhotoScan, &PhotoScanPayload{
		ScanID:         "scan-2",
		Image:          []byte{1},
		PixelToCmRatio: &ratio,
	})

	if err := consumer.handlePhotoScan(context.Background(), task); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	cal := proc.photoReq.Calibration
	if cal == nil {
		t.Fatal("calibration override missing")
	}
	if cal.PixelToCmRatio != 0.5 {
		t.Errorf("ratio = %g, want 0.5", cal.PixelToCmRatio)
	}
	// Unset overrides fall back to the defaults.
	if cal.SlabHeightCm != processor.DefaultCalibration.SlabHeightCm {
		t.Errorf("slab height = %g, want default", cal.SlabHeightCm)
	}
	if cal.DensityGCm3 != processor.DefaultCalibration.DensityGCm3 {
		t.Errorf("density = %g, want default", cal.DensityGCm3)
	}
}

func TestHandlePhotoScanAssignsScanID(t *testing.T) {
	proc := &fakeProcessor{}
	consumer := testConsumer(proc)

	task := mustTask(t, TaskPhotoScan, &PhotoScanPayload{Image: []byte{1}})

	if err := consumer.handlePhotoScan(context.Background(), task); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if proc.photoReq.ScanID == "" {
		t.Error("missing scan ID was not assigned")
	}
}

func TestHandleLabelScanFailure(t *testing.T) {
	proc := &fakeProcessor{
		labelErr: apperrors.NewOCRFailedError("scan-3", context.DeadlineExceeded),
	}
	consumer := testConsumer(proc)

	task := mustTask(t, TaskLabelScan, &LabelScanPayload{ScanID: "scan-3", Image: []byte{1}})

	err := consumer.handleLabelScan(context.Background(), task)
	if err == nil {
		t.Fatal("expected handler error for failed scan")
	}

	if len(proc.statuses) != 2 || proc.statuses[1] != "failed" {
		t.Errorf("statuses = %v, want [processing failed]", proc.statuses)
	}
	if proc.lastError == nil || proc.lastError.Code != apperrors.ErrorOCRFailed {
		t.Errorf("recorded error = %v", proc.lastError)
	}
}

func TestHandlePhotoScanMalformedPayload(t *testing.T) {
	proc := &fakeProcessor{}
	consumer := testConsumer(proc)

	task := asynq.NewTask(TaskPhotoScan, []byte("{not json"))
	if err := consumer.handlePhotoScan(context.Background(), task); err == nil {
		t.Error("expected error for malformed payload")
	}
	if proc.photoReq != nil {
		t.Error("processor invoked despite malformed payload")
	}
}
