package domain

import "time"

// RowError is a single CSV row that was not imported. RowIndex is the
// 1-based data row number; the header is not counted.
type RowError struct {
	RowIndex int    `json:"row_index"`
	Message  string `json:"message"`
}

// ImportBatchResult is the outcome of one CSV ingestion run.
// ImportedCount + len(Errors) == TotalRows.
type ImportBatchResult struct {
	TotalRows     int        `json:"total_rows"`
	ImportedCount int        `json:"imported_count"`
	Errors        []RowError `json:"errors"`
}

type SweepStatus string

const (
	SweepStatusSuccess SweepStatus = "success"
	SweepStatusError   SweepStatus = "error"
)

// DeviceSweepResult is one device's line in a sweep.
type DeviceSweepResult struct {
	Status            SweepStatus `json:"status"`
	AnomaliesDetected int         `json:"anomalies_detected"`
	WriteFailures     int         `json:"write_failures,omitempty"`
	ErrorMessage      string      `json:"error_message,omitempty"`
}

// SweepResult holds exactly one entry per submitted device.
type SweepResult struct {
	ID         string                       `json:"id"`
	PerDevice  map[string]DeviceSweepResult `json:"per_device"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
}

// Counts returns the number of successful and failed devices.
func (r *SweepResult) Counts() (succeeded, failed int) {
	for _, d := range r.PerDevice {
		if d.Status == SweepStatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
