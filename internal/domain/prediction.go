package domain

import "time"

// ModelRef points at the remote model trained for a device.
type ModelRef struct {
	DeviceID    string             `json:"device_id" gorm:"primaryKey;size:64"`
	ModelID     string             `json:"model_id" gorm:"size:128;not null"`
	Algorithm   string             `json:"algorithm" gorm:"size:64"`
	SampleCount int                `json:"sample_count"`
	Metrics     map[string]float64 `json:"metrics,omitempty" gorm:"serializer:json;type:jsonb"`
	TrainedAt   time.Time          `json:"trained_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// TrainingOptions are passed through to the model service.
type TrainingOptions struct {
	Lookback  time.Duration          `json:"lookback"`
	Algorithm string                 `json:"algorithm,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

// TrainingResult is what a successful training run returns.
type TrainingResult struct {
	ModelID     string             `json:"model_id"`
	DeviceID    string             `json:"device_id"`
	Algorithm   string             `json:"algorithm,omitempty"`
	SampleCount int                `json:"sample_count"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	TrainedAt   time.Time          `json:"trained_at"`
}

// PredictionPoint is one forecast value with its confidence band.
type PredictionPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

// RemoteAnomaly is one point scored by the model service.
type RemoteAnomaly struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Score     float64   `json:"score"`
	IsAnomaly bool      `json:"is_anomaly"`
}

// SeriesPoint is the wire shape of a reading sent to the model service.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
