/**
 * PostgreSQL Client for the NutriScan worker
 *
 * Persists scan lifecycle and results. One row per scan; status updates are
 * upserts so the worker can create the row even when the producer did not.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/nutriscan/scan-worker/internal/nutrition"
)

// ScanStore handles database operations
type ScanStore struct {
	db *sql.DB
}

// ScanUpdate represents a scan status/result update
type ScanUpdate struct {
	ScanID           string
	UserID           string
	Kind             string // "photo" or "label"
	Status           string // queued | processing | completed | failed
	FoodClass        string
	Confidence       float64
	PortionGrams     float64
	Nutrients        nutrition.ScaledRecord
	LabelFields      nutrition.ExtractedRecord
	MatchedFields    int
	ErrorCode        string
	ErrorMessage     string
	ProcessingTimeMs int64
}

// sanitizeConfidence clamps confidence to [0, 1] and rounds it to 4 decimal
// places so float noise like 0.9632000000000001 never reaches the NUMERIC
// column.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewScanStore creates a new PostgreSQL-backed scan store
func NewScanStore(databaseURL string) (*ScanStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &ScanStore{db: db}, nil
}

// UpdateScanStatus upserts the scan row with the given status and any result
// fields present on the update. Empty strings and zero counters leave the
// stored values untouched.
func (s *ScanStore) UpdateScanStatus(ctx context.Context, update *ScanUpdate) error {
	if update.ScanID == "" {
		return fmt.Errorf("scan ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	sanitizedConfidence := sanitizeConfidence(update.Confidence)

	var nutrientsJSON, labelFieldsJSON []byte
	var err error
	if update.Nutrients != nil {
		if nutrientsJSON, err = json.Marshal(update.Nutrients); err != nil {
			return fmt.Errorf("failed to marshal nutrients: %w", err)
		}
	}
	if update.LabelFields != nil {
		if labelFieldsJSON, err = json.Marshal(update.LabelFields); err != nil {
			return fmt.Errorf("failed to marshal label fields: %w", err)
		}
	}

	query := `
		INSERT INTO nutriscan.scans (
			id, user_id, kind, status,
			food_class, confidence, portion_grams,
			nutrients, label_fields, matched_fields,
			error_code, error_message, processing_time_ms,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE(NULLIF($2, ''), 'anonymous'), COALESCE(NULLIF($3, ''), 'photo'), $4,
			NULLIF($5, ''), NULLIF($6::NUMERIC(5,4), 0), NULLIF($7, 0.0),
			$8::jsonb, $9::jsonb, NULLIF($10, 0),
			NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, 0),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			kind = COALESCE(EXCLUDED.kind, nutriscan.scans.kind),
			user_id = COALESCE(EXCLUDED.user_id, nutriscan.scans.user_id),
			food_class = COALESCE(EXCLUDED.food_class, nutriscan.scans.food_class),
			confidence = COALESCE(EXCLUDED.confidence, nutriscan.scans.confidence),
			portion_grams = COALESCE(EXCLUDED.portion_grams, nutriscan.scans.portion_grams),
			nutrients = COALESCE(EXCLUDED.nutrients, nutriscan.scans.nutrients),
			label_fields = COALESCE(EXCLUDED.label_fields, nutriscan.scans.label_fields),
			matched_fields = COALESCE(EXCLUDED.matched_fields, nutriscan.scans.matched_fields),
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, nutriscan.scans.processing_time_ms),
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = s.db.QueryRowContext(
		ctx,
		query,
		update.ScanID,           // $1
		update.UserID,           // $2
		update.Kind,             // $3
		update.Status,           // $4
		update.FoodClass,        // $5
		sanitizedConfidence,     // $6
		update.PortionGrams,     // $7
		nullableJSON(nutrientsJSON),   // $8
		nullableJSON(labelFieldsJSON), // $9
		update.MatchedFields,    // $10
		update.ErrorCode,        // $11
		update.ErrorMessage,     // $12
		update.ProcessingTimeMs, // $13
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("scan not found: %s", update.ScanID)
	}

	if err != nil {
		return fmt.Errorf("failed to update scan status (scan=%s, status=%s): %w",
			update.ScanID, update.Status, err)
	}

	return nil
}

// nullableJSON turns an empty marshal result into a SQL NULL.
func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return data
}

// GetScanByID retrieves a scan by ID
func (s *ScanStore) GetScanByID(ctx context.Context, scanID string) (map[string]interface{}, error) {
	if scanID == "" {
		return nil, fmt.Errorf("scan ID is required")
	}

	query := `
		SELECT
			id, user_id, kind, status,
			food_class, confidence, portion_grams,
			nutrients, label_fields, matched_fields,
			error_code, error_message, processing_time_ms,
			created_at, updated_at
		FROM nutriscan.scans
		WHERE id = $1::uuid
	`

	var (
		id, userID, kind               string
		status                         sql.NullString
		foodClass                      sql.NullString
		confidence, portionGrams       sql.NullFloat64
		nutrientsJSON, labelFieldsJSON []byte
		matchedFields                  sql.NullInt64
		errorCode, errorMessage        sql.NullString
		processingTimeMs               sql.NullInt64
		createdAt, updatedAt           time.Time
	)

	err := s.db.QueryRowContext(ctx, query, scanID).Scan(
		&id, &userID, &kind, &status,
		&foodClass, &confidence, &portionGrams,
		&nutrientsJSON, &labelFieldsJSON, &matchedFields,
		&errorCode, &errorMessage, &processingTimeMs,
		&createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scan not found: %s", scanID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	result := map[string]interface{}{
		"id":        id,
		"userId":    userID,
		"kind":      kind,
		"status":    status.String,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}

	if foodClass.Valid {
		result["foodClass"] = foodClass.String
	}
	if confidence.Valid {
		result["confidence"] = confidence.Float64
	}
	if portionGrams.Valid {
		result["portionGrams"] = portionGrams.Float64
	}
	if len(nutrientsJSON) > 0 {
		var nutrients nutrition.ScaledRecord
		if err := json.Unmarshal(nutrientsJSON, &nutrients); err != nil {
			return nil, fmt.Errorf("failed to unmarshal nutrients: %w", err)
		}
		result["nutrients"] = nutrients
	}
	if len(labelFieldsJSON) > 0 {
		var fields nutrition.ExtractedRecord
		if err := json.Unmarshal(labelFieldsJSON, &fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal label fields: %w", err)
		}
		result["labelFields"] = fields
	}
	if matchedFields.Valid {
		result["matchedFields"] = matchedFields.Int64
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}

	return result, nil
}

// Ping checks database connectivity
func (s *ScanStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *ScanStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (s *ScanStore) GetStats() sql.DBStats {
	return s.db.Stats()
}
