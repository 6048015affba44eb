package ports

import (
	"context"
	"io"
	"time"

	"github.com/seu-repo/energy-sentinel/internal/domain"
)

// OwnershipGate decides whether a caller may touch a device's readings.
type OwnershipGate interface {
	// Authorize fails with domain.ErrNotFound or domain.ErrForbidden
	// (domain.ErrDeviceUnowned for unclaimed devices).
	Authorize(ctx context.Context, callerID, deviceID string, perm domain.Permission) (*domain.Device, error)
	// Claim makes callerID the owner of an unowned device.
	Claim(ctx context.Context, callerID, deviceID string) (*domain.Device, error)
}

// ReadingInput is a single reading submitted outside of a CSV batch.
type ReadingInput struct {
	DeviceID  string              `json:"device_id"`
	Timestamp *time.Time          `json:"timestamp,omitempty"`
	Value     *float64            `json:"value"`
	Unit      string              `json:"unit"`
	Cost      *domain.Cost        `json:"cost,omitempty"`
	Source    domain.RecordSource `json:"source,omitempty"`
}

type IngestionService interface {
	Ingest(ctx context.Context, r io.Reader, callerID string) (*domain.ImportBatchResult, error)
	RecordReading(ctx context.Context, callerID string, in ReadingInput) (*domain.ConsumptionRecord, error)
}

// DetectionOptions tune a single detection run. Zero values fall back to
// configured defaults, so a Threshold of 0 means "use the configured
// threshold" and cannot request a zero threshold. Negative values are
// rejected.
type DetectionOptions struct {
	Window    time.Duration `json:"window"`
	Threshold float64       `json:"threshold"`
	Method    string        `json:"method"`
}

type AnomalyService interface {
	DetectAnomalies(ctx context.Context, deviceID string, opts DetectionOptions) (*domain.DetectionReport, error)
	Review(ctx context.Context, reviewerID, recordID string, reviewed bool) (*domain.ConsumptionRecord, error)
	Stats(ctx context.Context, callerID, deviceID string, window time.Duration) (*domain.ConsumptionStats, error)
	ListAnomalies(ctx context.Context, callerID, deviceID string, window time.Duration) ([]domain.ConsumptionRecord, error)
}

type SweepService interface {
	SweepAll(ctx context.Context, deviceIDs []string, concurrencyLimit int) (*domain.SweepResult, error)
}

// ModelServiceClient is the wire contract with the external model service.
type ModelServiceClient interface {
	Train(ctx context.Context, deviceID string, series []domain.SeriesPoint, opts domain.TrainingOptions) (*domain.TrainingResult, error)
	Predict(ctx context.Context, modelID string, horizon int, confidence float64) ([]domain.PredictionPoint, error)
	Detect(ctx context.Context, deviceID string, series []domain.SeriesPoint, method string, threshold float64) ([]domain.RemoteAnomaly, error)
	Ping(ctx context.Context) error
}

type PredictionService interface {
	Train(ctx context.Context, deviceID string, opts domain.TrainingOptions) (*domain.TrainingResult, error)
	Predict(ctx context.Context, deviceID string, horizon int, confidence float64) ([]domain.PredictionPoint, error)
	DetectRemote(ctx context.Context, deviceID string, recentWindow time.Duration, method string, threshold float64) ([]domain.RemoteAnomaly, error)
}

// TokenValidator turns a bearer token into a caller identity.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.Caller, error)
}

// EventPublisher is the slice of the message queue services publish through.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// EventBus is a publisher that can also subscribe to subjects.
type EventBus interface {
	EventPublisher
	Subscribe(subject string, handler func(data []byte) error) error
}
