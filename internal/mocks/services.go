package mocks

import (
	"context"
	"io"
	"time"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

// MockOwnershipGate is a mock implementation of OwnershipGate interface
type MockOwnershipGate struct {
	AuthorizeFunc func(ctx context.Context, callerID, deviceID string, perm domain.Permission) (*domain.Device, error)
	ClaimFunc     func(ctx context.Context, callerID, deviceID string) (*domain.Device, error)
}

func (m *MockOwnershipGate) Authorize(ctx context.Context, callerID, deviceID string, perm domain.Permission) (*domain.Device, error) {
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, callerID, deviceID, perm)
	}
	return &domain.Device{ID: deviceID, OwnerID: callerID}, nil
}

func (m *MockOwnershipGate) Claim(ctx context.Context, callerID, deviceID string) (*domain.Device, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, callerID, deviceID)
	}
	return &domain.Device{ID: deviceID, OwnerID: callerID}, nil
}

// MockIngestionService is a mock implementation of IngestionService interface
type MockIngestionService struct {
	IngestFunc        func(ctx context.Context, r io.Reader, callerID string) (*domain.ImportBatchResult, error)
	RecordReadingFunc func(ctx context.Context, callerID string, in ports.ReadingInput) (*domain.ConsumptionRecord, error)
}

func (m *MockIngestionService) Ingest(ctx context.Context, r io.Reader, callerID string) (*domain.ImportBatchResult, error) {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, r, callerID)
	}
	return &domain.ImportBatchResult{}, nil
}

func (m *MockIngestionService) RecordReading(ctx context.Context, callerID string, in ports.ReadingInput) (*domain.ConsumptionRecord, error) {
	if m.RecordReadingFunc != nil {
		return m.RecordReadingFunc(ctx, callerID, in)
	}
	return &domain.ConsumptionRecord{DeviceID: in.DeviceID, UserID: callerID}, nil
}

// MockAnomalyService is a mock implementation of AnomalyService interface
type MockAnomalyService struct {
	DetectAnomaliesFunc func(ctx context.Context, deviceID string, opts ports.DetectionOptions) (*domain.DetectionReport, error)
	ReviewFunc          func(ctx context.Context, reviewerID, recordID string, reviewed bool) (*domain.ConsumptionRecord, error)
	StatsFunc           func(ctx context.Context, callerID, deviceID string, window time.Duration) (*domain.ConsumptionStats, error)
	ListAnomaliesFunc   func(ctx context.Context, callerID, deviceID string, window time.Duration) ([]domain.ConsumptionRecord, error)
}

func (m *MockAnomalyService) DetectAnomalies(ctx context.Context, deviceID string, opts ports.DetectionOptions) (*domain.DetectionReport, error) {
	if m.DetectAnomaliesFunc != nil {
		return m.DetectAnomaliesFunc(ctx, deviceID, opts)
	}
	return &domain.DetectionReport{DeviceID: deviceID, Anomalies: []domain.AnomalyResult{}}, nil
}

func (m *MockAnomalyService) Review(ctx context.Context, reviewerID, recordID string, reviewed bool) (*domain.ConsumptionRecord, error) {
	if m.ReviewFunc != nil {
		return m.ReviewFunc(ctx, reviewerID, recordID, reviewed)
	}
	return nil, domain.ErrNotFound
}

func (m *MockAnomalyService) Stats(ctx context.Context, callerID, deviceID string, window time.Duration) (*domain.ConsumptionStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, callerID, deviceID, window)
	}
	return &domain.ConsumptionStats{DeviceID: deviceID}, nil
}

func (m *MockAnomalyService) ListAnomalies(ctx context.Context, callerID, deviceID string, window time.Duration) ([]domain.ConsumptionRecord, error) {
	if m.ListAnomaliesFunc != nil {
		return m.ListAnomaliesFunc(ctx, callerID, deviceID, window)
	}
	return []domain.ConsumptionRecord{}, nil
}

// MockSweepService is a mock implementation of SweepService interface
type MockSweepService struct {
	SweepAllFunc func(ctx context.Context, deviceIDs []string, concurrencyLimit int) (*domain.SweepResult, error)
}

func (m *MockSweepService) SweepAll(ctx context.Context, deviceIDs []string, concurrencyLimit int) (*domain.SweepResult, error) {
	if m.SweepAllFunc != nil {
		return m.SweepAllFunc(ctx, deviceIDs, concurrencyLimit)
	}
	return &domain.SweepResult{PerDevice: map[string]domain.DeviceSweepResult{}}, nil
}

// MockModelServiceClient is a mock implementation of ModelServiceClient interface
type MockModelServiceClient struct {
	TrainFunc   func(ctx context.Context, deviceID string, series []domain.SeriesPoint, opts domain.TrainingOptions) (*domain.TrainingResult, error)
	PredictFunc func(ctx context.Context, modelID string, horizon int, confidence float64) ([]domain.PredictionPoint, error)
	DetectFunc  func(ctx context.Context, deviceID string, series []domain.SeriesPoint, method string, threshold float64) ([]domain.RemoteAnomaly, error)
	PingFunc    func(ctx context.Context) error
}

func (m *MockModelServiceClient) Train(ctx context.Context, deviceID string, series []domain.SeriesPoint, opts domain.TrainingOptions) (*domain.TrainingResult, error) {
	if m.TrainFunc != nil {
		return m.TrainFunc(ctx, deviceID, series, opts)
	}
	return &domain.TrainingResult{ModelID: "model-" + deviceID, DeviceID: deviceID, SampleCount: len(series)}, nil
}

func (m *MockModelServiceClient) Predict(ctx context.Context, modelID string, horizon int, confidence float64) ([]domain.PredictionPoint, error) {
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, modelID, horizon, confidence)
	}
	return []domain.PredictionPoint{}, nil
}

func (m *MockModelServiceClient) Detect(ctx context.Context, deviceID string, series []domain.SeriesPoint, method string, threshold float64) ([]domain.RemoteAnomaly, error) {
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, deviceID, series, method, threshold)
	}
	return []domain.RemoteAnomaly{}, nil
}

func (m *MockModelServiceClient) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// MockPredictionService is a mock implementation of PredictionService interface
type MockPredictionService struct {
	TrainFunc        func(ctx context.Context, deviceID string, opts domain.TrainingOptions) (*domain.TrainingResult, error)
	PredictFunc      func(ctx context.Context, deviceID string, horizon int, confidence float64) ([]domain.PredictionPoint, error)
	DetectRemoteFunc func(ctx context.Context, deviceID string, recentWindow time.Duration, method string, threshold float64) ([]domain.RemoteAnomaly, error)
}

func (m *MockPredictionService) Train(ctx context.Context, deviceID string, opts domain.TrainingOptions) (*domain.TrainingResult, error) {
	if m.TrainFunc != nil {
		return m.TrainFunc(ctx, deviceID, opts)
	}
	return &domain.TrainingResult{DeviceID: deviceID}, nil
}

func (m *MockPredictionService) Predict(ctx context.Context, deviceID string, horizon int, confidence float64) ([]domain.PredictionPoint, error) {
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, deviceID, horizon, confidence)
	}
	return []domain.PredictionPoint{}, nil
}

func (m *MockPredictionService) DetectRemote(ctx context.Context, deviceID string, recentWindow time.Duration, method string, threshold float64) ([]domain.RemoteAnomaly, error) {
	if m.DetectRemoteFunc != nil {
		return m.DetectRemoteFunc(ctx, deviceID, recentWindow, method, threshold)
	}
	return []domain.RemoteAnomaly{}, nil
}

// MockTokenValidator is a mock implementation of TokenValidator interface
type MockTokenValidator struct {
	ValidateTokenFunc func(ctx context.Context, token string) (*domain.Caller, error)
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*domain.Caller, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, token)
	}
	return &domain.Caller{UserID: "user-1", Role: domain.RoleUser}, nil
}
