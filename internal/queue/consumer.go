/**
 * Queue Consumer for the NutriScan worker
 *
 * Consumes photo-scan and label-scan tasks from a Redis-backed Asynq queue.
 * Task handlers are the bounded worker pool for the otherwise synchronous
 * pipelines; the lookup retry/backoff contract is preserved per scan, never
 * amortized across a batch.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	apperrors "github.com/nutriscan/scan-worker/internal/errors"
	"github.com/nutriscan/scan-worker/internal/processor"
)

// Task types routed by the consumer.
const (
	TaskPhotoScan = "scan:photo"
	TaskLabelScan = "scan:label"
)

// PhotoScanPayload is the photo-scan task body. Image bytes travel base64
// encoded inside JSON. Calibration overrides are optional; the worker's
// configured constants apply when they are absent.
type PhotoScanPayload struct {
	ScanID         string   `json:"scanId"`
	UserID         string   `json:"userId"`
	Image          []byte   `json:"image"`
	PixelToCmRatio *float64 `json:"pixelToCmRatio,omitempty"`
	SlabHeightCm   *float64 `json:"slabHeightCm,omitempty"`
	DensityGCm3    *float64 `json:"densityGCm3,omitempty"`
}

// LabelScanPayload is the label-scan task body.
type LabelScanPayload struct {
	ScanID string `json:"scanId"`
	UserID string `json:"userId"`
	Image  []byte `json:"image"`
}

// Consumer handles scan task consumption from the Redis queue
type Consumer struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.ScanProcessorInterface
	status    *StatusTracker
	config    *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Processor   processor.ScanProcessorInterface
	Status      *StatusTracker // optional redis status/event tracking
	ScanTimeout time.Duration  // per-scan processing timeout (default 2 minutes)
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Client for task submission by co-located producers
	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10, // Priority 10 for main queue
				"default":     1,  // Priority 1 for fallback
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, error=%v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:    client,
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		status:    cfg.Status,
		config:    cfg,
	}

	mux.HandleFunc(TaskPhotoScan, consumer.handlePhotoScan)
	mux.HandleFunc(TaskLabelScan, consumer.handleLabelScan)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start() error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			log.Printf("Queue consumer error: %v", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop() error {
	log.Printf("Stopping queue consumer...")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	log.Printf("Queue consumer stopped")
	return nil
}

// EnqueuePhotoScan submits a photo-scan task.
func (c *Consumer) EnqueuePhotoScan(ctx context.Context, payload *PhotoScanPayload) (string, error) {
	return c.enqueue(ctx, TaskPhotoScan, payload.ScanID, payload, func(id string) { payload.ScanID = id })
}

// EnqueueLabelScan submits a label-scan task.
func (c *Consumer) EnqueueLabelScan(ctx context.Context, payload *LabelScanPayload) (string, error) {
	return c.enqueue(ctx, TaskLabelScan, payload.ScanID, payload, func(id string) { payload.ScanID = id })
}

func (c *Consumer) enqueue(ctx context.Context, taskType, scanID string, payload interface{}, setID func(string)) (string, error) {
	if scanID == "" {
		scanID = uuid.New().String()
		setID(scanID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}

	task := asynq.NewTask(taskType, body)
	if _, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.config.QueueName),
		asynq.MaxRetry(3),
		asynq.Timeout(c.scanTimeout()),
	); err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}

	return scanID, nil
}

func (c *Consumer) scanTimeout() time.Duration {
	if c.config.ScanTimeout > 0 {
		return c.config.ScanTimeout
	}
	return 2 * time.Minute
}

// handlePhotoScan processes a photo-scan task
func (c *Consumer) handlePhotoScan(ctx context.Context, task *asynq.Task) error {
	var payload PhotoScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal photo scan payload: %w", err)
	}

	if payload.ScanID == "" {
		payload.ScanID = uuid.New().String()
	}

	req := &processor.PhotoScanRequest{
		ScanID:    payload.ScanID,
		UserID:    payload.UserID,
		ImageData: payload.Image,
	}

	if payload.PixelToCmRatio != nil || payload.SlabHeightCm != nil || payload.DensityGCm3 != nil {
		cal := processor.DefaultCalibration
		if payload.PixelToCmRatio != nil {
			cal.PixelToCmRatio = *payload.PixelToCmRatio
		}
		if payload.SlabHeightCm != nil {
			cal.SlabHeightCm = *payload.SlabHeightCm
		}
		if payload.DensityGCm3 != nil {
			cal.DensityGCm3 = *payload.DensityGCm3
		}
		req.Calibration = &cal
	}

	return c.runScan(ctx, payload.ScanID, "photo", func(scanCtx context.Context) (interface{}, error) {
		return c.processor.ProcessPhotoScan(scanCtx, req)
	})
}

// handleLabelScan processes a label-scan task
func (c *Consumer) handleLabelScan(ctx context.Context, task *asynq.Task) error {
	var payload LabelScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal label scan payload: %w", err)
	}

	if payload.ScanID == "" {
		payload.ScanID = uuid.New().String()
	}

	req := &processor.LabelScanRequest{
		ScanID:    payload.ScanID,
		UserID:    payload.UserID,
		ImageData: payload.Image,
	}

	return c.runScan(ctx, payload.ScanID, "label", func(scanCtx context.Context) (interface{}, error) {
		return c.processor.ProcessLabelScan(scanCtx, req)
	})
}

// runScan wraps one scan with status tracking and a processing timeout.
func (c *Consumer) runScan(ctx context.Context, scanID, kind string, run func(context.Context) (interface{}, error)) error {
	startTime := time.Now()

	log.Printf("[Scan %s] Processing %s scan", scanID, kind)

	if c.status != nil {
		c.status.MarkProcessing(ctx, scanID)
	}
	if err := c.processor.UpdateScanStatus(ctx, scanID, kind, "processing", nil); err != nil {
		log.Printf("[Scan %s] Warning: Failed to update status to processing: %v", scanID, err)
	}

	timeout := c.scanTimeout()
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := run(scanCtx)
	duration := time.Since(startTime)

	if err != nil {
		if scanCtx.Err() == context.DeadlineExceeded {
			err = apperrors.NewProcessingTimeoutError(scanID, timeout, err)
		}

		log.Printf("[Scan %s] Processing failed after %v: %v", scanID, duration, err)

		scanErr, _ := err.(*apperrors.ScanError)
		if updateErr := c.processor.UpdateScanStatus(ctx, scanID, kind, "failed", scanErr); updateErr != nil {
			log.Printf("[Scan %s] Warning: Failed to update status to failed: %v", scanID, updateErr)
		}
		if c.status != nil {
			c.status.MarkFailed(ctx, scanID, err)
		}

		return fmt.Errorf("%s scan failed: %w", kind, err)
	}

	log.Printf("[Scan %s] Processing completed in %v", scanID, duration)

	// The processor persists completed results itself; mirror the outcome
	// into redis for queue-side consumers.
	if c.status != nil {
		c.status.MarkCompleted(ctx, scanID, result)
	}

	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"redisURL":    c.config.RedisURL,
	}
}
