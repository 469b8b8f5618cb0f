package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fraudguard-ai/fraudguard/internal/model"
	"github.com/fraudguard-ai/fraudguard/internal/service"
)

// predictRequest mirrors the scoring service's transaction input schema.
type predictRequest struct {
	UPIID                      string  `json:"upiId"`
	Mode                       string  `json:"mode"`
	TransactionAmount          float64 `json:"transactionAmount"`
	TransactionAmountDeviation float64 `json:"transactionAmountDeviation"`
	TimeAnomaly                float64 `json:"timeAnomaly"`
	LocationDistance           float64 `json:"locationDistance"`
	MerchantNovelty            float64 `json:"merchantNovelty"`
	TransactionFrequency       float64 `json:"transactionFrequency"`
}

// predictResponse mirrors the scoring service's prediction output.
type predictResponse struct {
	Explanation       *string `json:"explanation"`
	ModelUsed         string  `json:"model_used"`
	RiskScore         float64 `json:"risk_score"`
	FraudCount        int     `json:"fraud_count"`
	Fraud             bool    `json:"fraud"`
	RecurringFraudUPI bool    `json:"recurring_fraud_upi"`
}

// HealthStatus reports the scoring service's self-described readiness.
type HealthStatus struct {
	Status              string `json:"status"`
	FastModelLoaded     bool   `json:"fast_model_loaded"`
	AccurateModelLoaded bool   `json:"accurate_model_loaded"`
}

// HTTPClient talks to the scoring service over HTTP.
type HTTPClient struct {
	httpClient *http.Client
	limiter    *rateLimiter
	baseURL    string
}

var _ service.Scorer = (*HTTPClient)(nil)

// NewHTTPClient creates a scoring client for the given service.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("scoring service URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var limiter *rateLimiter
	if cfg.RequestsPerMinute > 0 {
		limiter = newRateLimiter(cfg.RequestsPerMinute)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: limiter,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Score submits one record and returns the service's verdict, or one of the
// typed failures from client.go.
func (c *HTTPClient) Score(ctx context.Context, record model.TransactionRecord) (model.FraudVerdict, error) {
	if c.limiter != nil {
		if err := c.limiter.wait(ctx); err != nil {
			return model.FraudVerdict{}, err
		}
	}

	reqBody := predictRequest{
		UPIID:                      record.Identity,
		Mode:                       string(record.Mode),
		TransactionAmount:          record.Amount,
		TransactionAmountDeviation: record.AmountDeviation,
		TimeAnomaly:                record.TimeAnomaly,
		LocationDistance:           record.LocationDistance,
		MerchantNovelty:            record.MerchantNovelty,
		TransactionFrequency:       record.TransactionFreq,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return model.FraudVerdict{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(jsonBody))
	if err != nil {
		return model.FraudVerdict{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.FraudVerdict{}, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.FraudVerdict{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return model.FraudVerdict{}, classifyStatusError(resp.StatusCode, body)
	}

	var prediction predictResponse
	if err := json.Unmarshal(body, &prediction); err != nil {
		return model.FraudVerdict{}, fmt.Errorf("failed to parse response: %w", err)
	}

	verdict := model.FraudVerdict{
		IsFraud:          prediction.Fraud,
		RiskScore:        prediction.RiskScore,
		ModelUsed:        prediction.ModelUsed,
		RemoteRecurring:  prediction.RecurringFraudUPI,
		RemoteFraudCount: prediction.FraudCount,
	}
	if prediction.Explanation != nil {
		verdict.Explanation = *prediction.Explanation
	}

	return verdict, nil
}

// Health probes the scoring service's /health endpoint.
func (c *HTTPClient) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatusError(resp.StatusCode, body)
	}

	var status HealthStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}

	return &status, nil
}

// Close stops the rate limiter's refill goroutine, if any.
func (c *HTTPClient) Close() {
	if c.limiter != nil {
		c.limiter.Close()
	}
}

// classifyTransportError maps network-level failures to typed errors.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

// classifyStatusError maps HTTP status codes to typed errors.
func classifyStatusError(statusCode int, body []byte) error {
	switch {
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w (status %d): %s", ErrMalformed, statusCode, string(body))
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return fmt.Errorf("%w (status %d): %s", ErrServiceUnavailable, statusCode, string(body))
	default:
		return fmt.Errorf("scoring service error (status %d): %s", statusCode, string(body))
	}
}
