package modelservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/observability/telemetry"
	"github.com/seu-repo/energy-sentinel/pkg/config"
)

const maxResponseBytes = 4 << 20

// Client talks to the external model service. Every call is a single
// attempt bounded by the configured timeout; there is no retry.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker
	log        *zap.Logger
}

func NewClient(cfg config.ModelServiceConfig, cb config.CircuitBreakerConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		// The client timeout is a backstop; calls also carry a context deadline.
		httpClient: &http.Client{Timeout: timeout + time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		log:        log,
	}

	if cb.Enabled {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "model-service",
			MaxRequests: cb.MaxRequests,
			Interval:    cb.Interval,
			Timeout:     cb.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= cb.FailureThreshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	return c
}

type seriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type trainRequest struct {
	DeviceID        string                 `json:"device_id"`
	Series          []seriesPoint          `json:"series"`
	Algorithm       string                 `json:"algorithm,omitempty"`
	Params          map[string]interface{} `json:"params,omitempty"`
	LookbackSeconds int64                  `json:"lookback_seconds,omitempty"`
}

type trainResponse struct {
	ModelID     string             `json:"model_id"`
	Algorithm   string             `json:"algorithm"`
	SampleCount int                `json:"sample_count"`
	Metrics     map[string]float64 `json:"metrics"`
	TrainedAt   time.Time          `json:"trained_at"`
}

type predictRequest struct {
	Horizon    int     `json:"horizon"`
	Confidence float64 `json:"confidence"`
}

type predictResponse struct {
	Predictions []struct {
		Timestamp time.Time `json:"timestamp"`
		Value     float64   `json:"value"`
		Lower     float64   `json:"lower"`
		Upper     float64   `json:"upper"`
	} `json:"predictions"`
}

type detectRequest struct {
	DeviceID  string        `json:"device_id"`
	Series    []seriesPoint `json:"series"`
	Method    string        `json:"method,omitempty"`
	Threshold float64       `json:"threshold,omitempty"`
}

type detectResponse struct {
	Anomalies []struct {
		Timestamp time.Time `json:"timestamp"`
		Value     float64   `json:"value"`
		Score     float64   `json:"score"`
		IsAnomaly bool      `json:"is_anomaly"`
	} `json:"anomalies"`
}

func toWire(series []domain.SeriesPoint) []seriesPoint {
	out := make([]seriesPoint, len(series))
	for i, p := range series {
		out[i] = seriesPoint{Timestamp: p.Timestamp.UTC(), Value: p.Value}
	}
	return out
}

func (c *Client) Train(ctx context.Context, deviceID string, series []domain.SeriesPoint, opts domain.TrainingOptions) (*domain.TrainingResult, error) {
	req := trainRequest{
		DeviceID:        deviceID,
		Series:          toWire(series),
		Algorithm:       opts.Algorithm,
		Params:          opts.Params,
		LookbackSeconds: int64(opts.Lookback / time.Second),
	}

	var resp trainResponse
	if err := c.do(ctx, "train", http.MethodPost, "/v1/models/train", req, &resp); err != nil {
		return nil, err
	}
	if resp.ModelID == "" {
		return nil, &domain.ServiceError{Operation: "train", Err: errors.New("response has no model_id")}
	}

	trainedAt := resp.TrainedAt
	if trainedAt.IsZero() {
		trainedAt = time.Now().UTC()
	}
	sampleCount := resp.SampleCount
	if sampleCount == 0 {
		sampleCount = len(series)
	}

	return &domain.TrainingResult{
		ModelID:     resp.ModelID,
		DeviceID:    deviceID,
		Algorithm:   resp.Algorithm,
		SampleCount: sampleCount,
		Metrics:     resp.Metrics,
		TrainedAt:   trainedAt,
	}, nil
}

func (c *Client) Predict(ctx context.Context, modelID string, horizon int, confidence float64) ([]domain.PredictionPoint, error) {
	path := "/v1/models/" + url.PathEscape(modelID) + "/predict"

	var resp predictResponse
	if err := c.do(ctx, "predict", http.MethodPost, path, predictRequest{Horizon: horizon, Confidence: confidence}, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.PredictionPoint, len(resp.Predictions))
	for i, p := range resp.Predictions {
		out[i] = domain.PredictionPoint{Timestamp: p.Timestamp, Value: p.Value, Lower: p.Lower, Upper: p.Upper}
	}
	return out, nil
}

func (c *Client) Detect(ctx context.Context, deviceID string, series []domain.SeriesPoint, method string, threshold float64) ([]domain.RemoteAnomaly, error) {
	req := detectRequest{DeviceID: deviceID, Series: toWire(series), Method: method, Threshold: threshold}

	var resp detectResponse
	if err := c.do(ctx, "detect", http.MethodPost, "/v1/anomalies/detect", req, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.RemoteAnomaly, len(resp.Anomalies))
	for i, a := range resp.Anomalies {
		out[i] = domain.RemoteAnomaly{Timestamp: a.Timestamp, Value: a.Value, Score: a.Score, IsAnomaly: a.IsAnomaly}
	}
	return out, nil
}

// Ping checks the service health endpoint. It bypasses the breaker so
// readiness reflects the remote service, not local breaker state.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ServiceError{Operation: "ping", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &domain.ServiceError{Operation: "ping", StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	return nil
}

// rawResponse is a non-5xx reply; 5xx replies are breaker failures.
type rawResponse struct {
	status int
	body   []byte
}

type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.msg)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "modelservice."+op)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.execute(func() (interface{}, error) {
		return c.send(ctx, method, path, in)
	})
	telemetry.ModelServiceLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		return c.fail(op, err)
	}

	resp := raw.(*rawResponse)
	telemetry.ModelServiceRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.status)).Inc()

	if resp.status >= 200 && resp.status < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.body, out); err != nil {
			return &domain.ServiceError{Operation: op, StatusCode: resp.status, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	msg := errorMessage(resp.body, resp.status)
	switch resp.status {
	case http.StatusNotFound:
		if op == "predict" {
			return fmt.Errorf("model service: %s: %w", msg, domain.ErrNoModel)
		}
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("model service: %s: %w", msg, domain.ErrInsufficientData)
	}
	// A 400 means this client sent something the model service refused.
	// The caller's input was already validated, so it is a service failure.
	return &domain.ServiceError{Operation: op, StatusCode: resp.status, Err: errors.New(msg)}
}

func (c *Client) execute(fn func() (interface{}, error)) (interface{}, error) {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

func (c *Client) send(ctx context.Context, method, path string, in interface{}) (*rawResponse, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, &statusError{status: resp.StatusCode, msg: errorMessage(data, resp.StatusCode)}
	}
	return &rawResponse{status: resp.StatusCode, body: data}, nil
}

func (c *Client) fail(op string, err error) error {
	var se *statusError
	switch {
	case errors.As(err, &se):
		telemetry.ModelServiceRequestsTotal.WithLabelValues(op, strconv.Itoa(se.status)).Inc()
		c.log.Warn("Model service returned an error", zap.String("operation", op), zap.Int("status", se.status), zap.String("message", se.msg))
		return &domain.ServiceError{Operation: op, StatusCode: se.status, Err: errors.New(se.msg)}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		telemetry.ModelServiceRequestsTotal.WithLabelValues(op, "breaker_open").Inc()
		return &domain.ServiceError{Operation: op, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		telemetry.ModelServiceRequestsTotal.WithLabelValues(op, "timeout").Inc()
		c.log.Warn("Model service call timed out", zap.String("operation", op), zap.Duration("timeout", c.timeout))
		return &domain.ServiceError{Operation: op, Err: fmt.Errorf("timed out after %s: %w", c.timeout, err)}
	default:
		telemetry.ModelServiceRequestsTotal.WithLabelValues(op, "transport_error").Inc()
		c.log.Warn("Model service call failed", zap.String("operation", op), zap.Error(err))
		return &domain.ServiceError{Operation: op, Err: err}
	}
}

// errorMessage pulls {"error": "..."} or {"message": "..."} out of an
// error body, falling back to the status text.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return http.StatusText(status)
}
