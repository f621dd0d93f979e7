/**
 * Redis Status Tracker for the NutriScan worker
 *
 * Mirrors scan lifecycle into Redis sets and hashes, and publishes lifecycle
 * events on a pub/sub channel for interested consumers. The database row is
 * the durable record; these keys are the fast path for pollers.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nutriscan/scan-worker/internal/logging"
)

// StatusTracker mirrors scan state into Redis
type StatusTracker struct {
	client    *redis.Client
	keyPrefix string
	logger    *logging.Logger
}

// statusEvent is the pub/sub message body.
type statusEvent struct {
	Event     string `json:"event"`
	ScanID    string `json:"scanId"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// NewStatusTracker creates a new Redis-backed status tracker. keyPrefix is
// typically the queue name.
func NewStatusTracker(redisURL, keyPrefix string) (*StatusTracker, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if keyPrefix == "" {
		return nil, fmt.Errorf("key prefix is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &StatusTracker{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logging.NewLogger("StatusTracker"),
	}, nil
}

// MarkProcessing records that a scan entered processing.
func (t *StatusTracker) MarkProcessing(ctx context.Context, scanID string) {
	if err := t.client.SAdd(ctx, t.key("processing"), scanID).Err(); err != nil {
		t.logger.Warn("Failed to mark scan processing", "scanId", scanID, "error", err)
		return
	}
	t.publishEvent(ctx, "scan.processing", scanID, "")
}

// MarkCompleted records a completed scan and stores its result summary.
func (t *StatusTracker) MarkCompleted(ctx context.Context, scanID string, result interface{}) {
	pipe := t.client.Pipeline()
	pipe.SRem(ctx, t.key("processing"), scanID)
	pipe.SAdd(ctx, t.key("completed"), scanID)

	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			pipe.HSet(ctx, t.key("results"), scanID, data)
		} else {
			t.logger.Warn("Failed to marshal scan result", "scanId", scanID, "error", err)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("Failed to mark scan completed", "scanId", scanID, "error", err)
		return
	}
	t.publishEvent(ctx, "scan.completed", scanID, "")
}

// MarkFailed records a failed scan with its error.
func (t *StatusTracker) MarkFailed(ctx context.Context, scanID string, scanErr error) {
	errMsg := ""
	if scanErr != nil {
		errMsg = scanErr.Error()
	}

	pipe := t.client.Pipeline()
	pipe.SRem(ctx, t.key("processing"), scanID)
	pipe.SAdd(ctx, t.key("failed"), scanID)
	pipe.HSet(ctx, t.key("errors"), scanID, errMsg)

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("Failed to mark scan failed", "scanId", scanID, "error", err)
		return
	}
	t.publishEvent(ctx, "scan.failed", scanID, errMsg)
}

// GetResult fetches a completed scan result summary, if present.
func (t *StatusTracker) GetResult(ctx context.Context, scanID string) ([]byte, error) {
	data, err := t.client.HGet(ctx, t.key("results"), scanID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan result: %w", err)
	}
	return data, nil
}

// publishEvent emits a lifecycle event on the events channel. Publish failures
// are logged and swallowed; events are best-effort.
func (t *StatusTracker) publishEvent(ctx context.Context, event, scanID, errMsg string) {
	payload, err := json.Marshal(&statusEvent{
		Event:     event,
		ScanID:    scanID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Error:     errMsg,
	})
	if err != nil {
		return
	}

	if err := t.client.Publish(ctx, t.key("events"), payload).Err(); err != nil {
		t.logger.Warn("Failed to publish event", "event", event, "scanId", scanID, "error", err)
	}
}

func (t *StatusTracker) key(suffix string) string {
	return t.keyPrefix + ":" + suffix
}

// Close closes the Redis connection
func (t *StatusTracker) Close() error {
	return t.client.Close()
}
