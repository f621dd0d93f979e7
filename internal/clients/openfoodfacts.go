/**
 * Open Food Facts Client
 *
 * Looks up per-100g nutrient data by free-text food name and rescales it to
 * an estimated portion weight. The first returned product wins; no secondary
 * disambiguation is attempted, which is a recognized precision limitation.
 *
 * Resilience contract: idempotent GET retried up to 5 times with exponential
 * backoff on 429/500/502/503/504 and connection-level failures. Without this
 * a single transient 5xx would be indistinguishable from "no such food".
 */

package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/nutriscan/scan-worker/internal/errors"
	"github.com/nutriscan/scan-worker/internal/logging"
	"github.com/nutriscan/scan-worker/internal/nutrition"
)

const (
	defaultLookupTimeout = 10 * time.Second
	lookupMaxRetries     = 5
	maxBackoff           = 30 * time.Second
)

// retryableStatus lists the HTTP status codes worth retrying.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// offField maps each canonical nutrient key to its per-100g field in the
// Open Food Facts product record.
var offFields = []struct {
	key   string
	field string
}{
	{nutrition.KeyCalories, "energy_100g"},
	{nutrition.KeyFat, "fat_100g"},
	{nutrition.KeyProtein, "proteins_100g"},
	{nutrition.KeyCarbohydrates, "carbohydrates_100g"},
	{nutrition.KeyFiber, "fiber_100g"},
	{nutrition.KeySugars, "sugars_100g"},
	{nutrition.KeySodium, "sodium_100g"},
}

// OpenFoodFactsClient handles communication with the Open Food Facts API
type OpenFoodFactsClient struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	backoffBase time.Duration
	logger      *logging.Logger
}

// searchResponse is the subset of the search API response the worker reads.
type searchResponse struct {
	Count    int `json:"count"`
	Products []struct {
		ProductName string                 `json:"product_name"`
		Nutriments  map[string]interface{} `json:"nutriments"`
	} `json:"products"`
}

// NewOpenFoodFactsClient creates a new lookup client
func NewOpenFoodFactsClient(baseURL string, timeout time.Duration) *OpenFoodFactsClient {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &OpenFoodFactsClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:  lookupMaxRetries,
		backoffBase: time.Second,
		logger:      logging.NewLogger("OpenFoodFacts"),
	}
}

// Lookup queries the nutrition database by food name and returns a scaled
// record for the given portion weight in grams.
//
// Preconditions: both inputs must be present. A missing name or a negative/NaN
// weight is a usage error and performs no network call. A zero weight is
// present and valid: it produces an all-zero record.
func (c *OpenFoodFactsClient) Lookup(ctx context.Context, foodName string, portionGrams float64) (nutrition.ScaledRecord, error) {
	if foodName == "" {
		return nil, apperrors.NewPreconditionError("food name is required for nutrition lookup")
	}
	if portionGrams < 0 || math.IsNaN(portionGrams) {
		return nil, apperrors.NewPreconditionError("portion weight is required for nutrition lookup")
	}

	searchURL := fmt.Sprintf(
		"%s/cgi/search.pl?search_terms=%s&search_simple=1&action=process&json=1",
		c.baseURL, url.QueryEscape(foodName),
	)

	attempts := c.maxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase << uint(attempt-1)
			if delay > maxBackoff {
				delay = maxBackoff
			}
			c.logger.Debug("Retrying lookup", "food", foodName, "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, apperrors.NewLookupFailedError(foodName, attempt, ctx.Err())
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create lookup request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Connection-level failure: retryable
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read lookup response: %w", err)
			continue
		}

		if retryableStatus[resp.StatusCode] {
			lastErr = fmt.Errorf("openfoodfacts returned status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("openfoodfacts API error %d: %s", resp.StatusCode, string(body))
		}

		var sr searchResponse
		if err := json.Unmarshal(body, &sr); err != nil {
			return nil, fmt.Errorf("failed to parse openfoodfacts JSON: %w", err)
		}

		if sr.Count == 0 || len(sr.Products) == 0 {
			return nil, apperrors.NewLookupNotFoundError(foodName)
		}

		// First product match wins
		product := sr.Products[0]
		if len(product.Nutriments) == 0 {
			return nil, apperrors.NewLookupNoDataError(foodName)
		}

		c.logger.Debug("Lookup matched product", "food", foodName, "product", product.ProductName)
		return scaleNutriments(product.Nutriments, portionGrams), nil
	}

	return nil, apperrors.NewLookupFailedError(foodName, attempts, lastErr)
}

// scaleNutriments rescales per-100g values to the portion weight, rounding to
// two decimals. A nutrient absent from the product record defaults to 0, so
// scaling never fails per-field.
func scaleNutriments(nutriments map[string]interface{}, portionGrams float64) nutrition.ScaledRecord {
	scaleFactor := portionGrams / 100

	record := nutrition.NewScaledRecord()
	for _, f := range offFields {
		value := nutrimentValue(nutriments, f.field) * scaleFactor
		if value < 0 {
			value = 0
		}
		record[f.key] = math.Round(value*100) / 100
	}
	return record
}

// nutrimentValue coerces a nutriments map entry to float64. Open Food Facts
// records carry numbers and numeric strings interchangeably.
func nutrimentValue(nutriments map[string]interface{}, field string) float64 {
	v, ok := nutriments[field]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return x
	case string:
		var f float64
		if _, err := fmt.Sscanf(x, "%f", &f); err == nil {
			return f
		}
	}
	return 0
}
