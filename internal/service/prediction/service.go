package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

// MinTrainingPoints is the smallest history the model service is given.
const MinTrainingPoints = 100

type Config struct {
	DefaultLookback time.Duration
	DefaultWindow   time.Duration
	PredictionTTL   time.Duration
	MaxHorizon      int
}

type Service struct {
	records ports.ConsumptionRepository
	models  ports.ModelRefRepository
	client  ports.ModelServiceClient
	cache   ports.Cache
	cfg     Config
	log     *zap.Logger
	now     func() time.Time
}

func NewService(records ports.ConsumptionRepository, models ports.ModelRefRepository, client ports.ModelServiceClient, cache ports.Cache, cfg Config, log *zap.Logger) *Service {
	if cfg.DefaultLookback <= 0 {
		cfg.DefaultLookback = 90 * 24 * time.Hour
	}
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = 24 * time.Hour
	}
	if cfg.MaxHorizon <= 0 {
		cfg.MaxHorizon = 24 * 14
	}
	return &Service{
		records: records,
		models:  models,
		client:  client,
		cache:   cache,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

func (s *Service) series(ctx context.Context, deviceID string, window time.Duration) ([]domain.SeriesPoint, error) {
	to := s.now().UTC()
	recs, err := s.records.FindByDeviceInRange(ctx, deviceID, to.Add(-window), to)
	if err != nil {
		return nil, fmt.Errorf("load readings for %s: %w", deviceID, err)
	}
	out := make([]domain.SeriesPoint, len(recs))
	for i, r := range recs {
		out[i] = domain.SeriesPoint{Timestamp: r.Timestamp, Value: r.Value}
	}
	return out, nil
}

// Train sends the device history to the model service and records which
// model now belongs to the device.
func (s *Service) Train(ctx context.Context, deviceID string, opts domain.TrainingOptions) (*domain.TrainingResult, error) {
	if opts.Lookback < 0 {
		return nil, domain.NewValidationError("lookback", "must be positive")
	}
	if opts.Lookback == 0 {
		opts.Lookback = s.cfg.DefaultLookback
	}

	to := s.now().UTC()
	n, err := s.records.CountByDevice(ctx, deviceID, to.Add(-opts.Lookback), to)
	if err != nil {
		return nil, fmt.Errorf("count readings for %s: %w", deviceID, err)
	}
	if n < MinTrainingPoints {
		return nil, &domain.InsufficientDataError{DeviceID: deviceID, Have: n, Need: MinTrainingPoints}
	}

	series, err := s.series(ctx, deviceID, opts.Lookback)
	if err != nil {
		return nil, err
	}
	// Readings can be deleted between the count and the load.
	if len(series) < MinTrainingPoints {
		return nil, &domain.InsufficientDataError{DeviceID: deviceID, Have: int64(len(series)), Need: MinTrainingPoints}
	}

	res, err := s.client.Train(ctx, deviceID, series, opts)
	if err != nil {
		s.log.Error("Model training failed", zap.String("device_id", deviceID), zap.Error(err))
		return nil, err
	}

	ref := &domain.ModelRef{
		DeviceID:    deviceID,
		ModelID:     res.ModelID,
		Algorithm:   res.Algorithm,
		SampleCount: res.SampleCount,
		Metrics:     res.Metrics,
		TrainedAt:   res.TrainedAt,
	}
	if err := s.models.Save(ctx, ref); err != nil {
		return nil, fmt.Errorf("record model %s for %s: %w", res.ModelID, deviceID, err)
	}

	s.log.Info("Model trained",
		zap.String("device_id", deviceID),
		zap.String("model_id", res.ModelID),
		zap.Int("samples", res.SampleCount),
	)
	return res, nil
}

// Predict forecasts horizon steps ahead with the device's current model.
// Results are cached per model, horizon and confidence.
func (s *Service) Predict(ctx context.Context, deviceID string, horizon int, confidence float64) ([]domain.PredictionPoint, error) {
	if horizon <= 0 || horizon > s.cfg.MaxHorizon {
		return nil, domain.NewValidationError("horizon", fmt.Sprintf("must be between 1 and %d", s.cfg.MaxHorizon))
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, domain.NewValidationError("confidence", "must be between 0 and 1")
	}

	ref, err := s.models.FindByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load model for %s: %w", deviceID, err)
	}
	if ref == nil {
		return nil, domain.ErrNoModel
	}

	key := fmt.Sprintf("prediction:%s:%s:%d:%g", deviceID, ref.ModelID, horizon, confidence)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var points []domain.PredictionPoint
		if json.Unmarshal([]byte(cached), &points) == nil {
			return points, nil
		}
	} else if !errors.Is(err, ports.ErrCacheMiss) {
		s.log.Warn("Prediction cache read failed", zap.String("device_id", deviceID), zap.Error(err))
	}

	points, err := s.client.Predict(ctx, ref.ModelID, horizon, confidence)
	if err != nil {
		return nil, err
	}

	if s.cfg.PredictionTTL > 0 {
		if err := s.cache.Set(ctx, key, points, s.cfg.PredictionTTL); err != nil {
			s.log.Warn("Prediction cache write failed", zap.String("device_id", deviceID), zap.Error(err))
		}
	}
	return points, nil
}

// DetectRemote has the model service score the device's recent readings.
func (s *Service) DetectRemote(ctx context.Context, deviceID string, recentWindow time.Duration, method string, threshold float64) ([]domain.RemoteAnomaly, error) {
	if recentWindow < 0 {
		return nil, domain.NewValidationError("window", "must be positive")
	}
	if recentWindow == 0 {
		recentWindow = s.cfg.DefaultWindow
	}

	series, err := s.series(ctx, deviceID, recentWindow)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return []domain.RemoteAnomaly{}, nil
	}

	return s.client.Detect(ctx, deviceID, series, method, threshold)
}
