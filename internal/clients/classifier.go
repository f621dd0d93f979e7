/**
 * Classifier Client
 *
 * Calls the food image classifier serving endpoint. The model itself is an
 * external collaborator; the worker only consumes the argmax of its
 * probability vector, mapped onto the closed nutrition.FoodClass enumeration.
 * An out-of-range argmax is a typed UNKNOWN_CLASS condition, not a silent
 * string mismatch.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/nutriscan/scan-worker/internal/errors"
	"github.com/nutriscan/scan-worker/internal/logging"
	"github.com/nutriscan/scan-worker/internal/nutrition"
)

// ClassifierClient handles communication with the model serving endpoint
type ClassifierClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// predictRequest is the TF-Serving style predict payload: one instance of a
// 128x128x3 tensor with channel values normalized to [0, 1].
type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

// predictResponse carries one probability vector per instance.
type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// NewClassifierClient creates a new classifier client
func NewClassifierClient(baseURL string) *ClassifierClient {
	return &ClassifierClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.NewLogger("Classifier"),
	}
}

// HealthCheck verifies the serving endpoint is available
func (c *ClassifierClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models/food", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classifier health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier health check returned status %d", resp.StatusCode)
	}

	return nil
}

// Predict classifies one preprocessed image tensor and returns the predicted
// food class with its probability.
func (c *ClassifierClient) Predict(ctx context.Context, tensor [][][]float32) (nutrition.FoodClass, float64, error) {
	payload, err := json.Marshal(&predictRequest{Instances: [][][][]float32{tensor}})
	if err != nil {
		return "", 0, apperrors.NewClassifyFailedError(fmt.Errorf("failed to marshal predict request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/models/food:predict", bytes.NewReader(payload))
	if err != nil {
		return "", 0, apperrors.NewClassifyFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, apperrors.NewClassifyFailedError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, apperrors.NewClassifyFailedError(fmt.Errorf("failed to read predict response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, apperrors.NewClassifyFailedError(fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(body)))
	}

	var pr predictResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return "", 0, apperrors.NewClassifyFailedError(fmt.Errorf("failed to parse predict response: %w", err))
	}

	if pr.Error != "" {
		return "", 0, apperrors.NewClassifyFailedError(fmt.Errorf("classifier error: %s", pr.Error))
	}

	if len(pr.Predictions) == 0 || len(pr.Predictions[0]) == 0 {
		return "", 0, apperrors.NewClassifyFailedError(fmt.Errorf("classifier returned no predictions"))
	}

	probs := pr.Predictions[0]
	best := argmax(probs)

	class, ok := nutrition.ClassAt(best)
	if !ok {
		return "", 0, apperrors.NewUnknownClassError(fmt.Sprintf("output index %d outside class list (%d classes)", best, len(nutrition.Classes)))
	}

	c.logger.Debug("Prediction", "class", class, "probability", probs[best])
	return class, probs[best], nil
}

func argmax(probs []float64) int {
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best
}
