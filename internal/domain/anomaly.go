package domain

import "time"

const (
	MethodZScore = "z-score"
	MethodRemote = "remote"
)

// AnomalyResult is one reading flagged by a detection run.
type AnomalyResult struct {
	RecordID  string    `json:"record_id"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Score     float64   `json:"score"`
	Method    string    `json:"method"`
	Reviewed  bool      `json:"reviewed"`
}

// WriteFailure records a flag that could not be persisted.
type WriteFailure struct {
	RecordID string `json:"record_id"`
	Message  string `json:"message"`
}

// DetectionReport is the outcome of one detection run over one device.
type DetectionReport struct {
	DeviceID      string          `json:"device_id"`
	Method        string          `json:"method"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Threshold     float64         `json:"threshold"`
	SampleCount   int             `json:"sample_count"`
	Mean          float64         `json:"mean"`
	StdDev        float64         `json:"std_dev"`
	Anomalies     []AnomalyResult `json:"anomalies"`
	WriteFailures []WriteFailure  `json:"write_failures,omitempty"`
}

// MergeFlag combines a fresh detector verdict with whatever is already stored.
// A human review (Reviewed=true) is never downgraded, and the first FlaggedAt
// of a still-detected record is kept.
func MergeFlag(existing *AnomalyFlag, score float64, method string, now time.Time) *AnomalyFlag {
	merged := &AnomalyFlag{
		Detected:  true,
		Score:     score,
		Method:    method,
		FlaggedAt: &now,
	}
	if existing == nil {
		return merged
	}
	if existing.Detected && existing.FlaggedAt != nil {
		merged.FlaggedAt = existing.FlaggedAt
	}
	if existing.Reviewed {
		merged.Reviewed = true
		merged.ReviewedAt = existing.ReviewedAt
		merged.ReviewedBy = existing.ReviewedBy
	}
	return merged
}
