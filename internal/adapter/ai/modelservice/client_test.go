package modelservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/pkg/config"
)

func newTestClient(url string, timeout time.Duration, breaker bool) *Client {
	return NewClient(
		config.ModelServiceConfig{BaseURL: url, APIKey: "secret", Timeout: timeout},
		config.CircuitBreakerConfig{Enabled: breaker, MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 0.5},
		zap.NewNop(),
	)
}

func TestClient_Train(t *testing.T) {
	// Arrange
	var got trainRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/models/train" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("expected API key header, got %q", r.Header.Get("X-API-Key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"model_id":"m-42","algorithm":"prophet","sample_count":3,"metrics":{"mape":0.08},"trained_at":"2024-03-01T12:00:00Z"}`))
	}))
	defer srv.Close()
	c := newTestClient(srv.URL, time.Second, true)
	series := []domain.SeriesPoint{
		{Timestamp: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Value: 1},
		{Timestamp: time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC), Value: 2},
		{Timestamp: time.Date(2024, 2, 1, 2, 0, 0, 0, time.UTC), Value: 3},
	}

	// Act
	res, err := c.Train(context.Background(), "meter-1", series, domain.TrainingOptions{Algorithm: "prophet", Lookback: 24 * time.Hour})

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.ModelID != "m-42" || res.DeviceID != "meter-1" || res.Metrics["mape"] != 0.08 {
		t.Errorf("unexpected result %+v", res)
	}
	if got.DeviceID != "meter-1" || len(got.Series) != 3 || got.LookbackSeconds != 86400 {
		t.Errorf("unexpected request body %+v", got)
	}
}

func TestClient_PredictNoModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/m-1/predict" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()
	c := newTestClient(srv.URL, time.Second, true)

	_, err := c.Predict(context.Background(), "m-1", 24, 0.95)

	if !errors.Is(err, domain.ErrNoModel) {
		t.Errorf("expected ErrNoModel, got %v", err)
	}
}

func TestClient_Predict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Horizon != 2 || req.Confidence != 0.9 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"predictions":[
			{"timestamp":"2024-03-01T13:00:00Z","value":1.2,"lower":1.0,"upper":1.4},
			{"timestamp":"2024-03-01T14:00:00Z","value":1.3,"lower":1.1,"upper":1.5}]}`))
	}))
	defer srv.Close()
	c := newTestClient(srv.URL, time.Second, false)

	points, err := c.Predict(context.Background(), "m-1", 2, 0.9)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(points) != 2 || points[1].Upper != 1.5 {
		t.Errorf("unexpected points %+v", points)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name       string
		status     int
		wantErr    error
		wantStatus int
	}{
		{name: "server error", status: http.StatusInternalServerError, wantErr: domain.ErrServiceUnavailable, wantStatus: 500},
		{name: "bad gateway", status: http.StatusBadGateway, wantErr: domain.ErrServiceUnavailable, wantStatus: 502},
		{name: "not enough data", status: http.StatusUnprocessableEntity, wantErr: domain.ErrInsufficientData},
		{name: "bad request", status: http.StatusBadRequest, wantErr: domain.ErrServiceUnavailable, wantStatus: 400},
		{name: "bad api key", status: http.StatusUnauthorized, wantErr: domain.ErrServiceUnavailable, wantStatus: 401},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()
			c := newTestClient(srv.URL, time.Second, false)

			_, err := c.Detect(context.Background(), "meter-1", nil, "", 3)

			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.wantStatus != 0 {
				var se *domain.ServiceError
				if !errors.As(err, &se) || se.StatusCode != tc.wantStatus {
					t.Errorf("expected ServiceError with status %d, got %v", tc.wantStatus, err)
				}
			}
		})
	}
}

func TestClient_TimeoutIsServiceError(t *testing.T) {
	// Arrange
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)
	c := newTestClient(srv.URL, 50*time.Millisecond, false)

	// Act
	start := time.Now()
	anomalies, err := c.Detect(context.Background(), "meter-1", nil, "", 3)

	// Assert
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected service error on timeout, got %v", err)
	}
	if anomalies != nil {
		t.Errorf("a timeout must not return data, got %+v", anomalies)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected call to be bounded by the timeout, took %v", elapsed)
	}
}

func TestClient_TransportErrorIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	c := newTestClient(url, time.Second, false)

	_, err := c.Train(context.Background(), "meter-1", nil, domain.TrainingOptions{})

	var se *domain.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	// Arrange
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := newTestClient(srv.URL, time.Second, true)

	// Act
	for i := 0; i < 3; i++ {
		_, _ = c.Detect(context.Background(), "meter-1", nil, "", 3)
	}
	_, err := c.Detect(context.Background(), "meter-1", nil, "", 3)

	// Assert
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected service error, got %v", err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("expected breaker to stop the 4th call, server saw %d", n)
	}
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	c := newTestClient(srv.URL, time.Second, true)

	for i := 0; i < 5; i++ {
		_, _ = c.Predict(context.Background(), "m-1", 1, 0.9)
	}

	if n := hits.Load(); n != 5 {
		t.Errorf("expected every call to reach the server, got %d", n)
	}
}

func TestClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := newTestClient(srv.URL+"/", time.Second, true)

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("expected healthy service, got %v", err)
	}
}
