package domain

import "time"

// Event subjects published and consumed by the pipeline.
const (
	EventConsumptionImported = "consumption.imported"
	EventAnomalyDetected     = "anomaly.detected"
	EventSweepCompleted      = "anomaly.sweep.completed"
	EventSweepRequested      = "anomaly.sweep.requested"
	EventDeviceClaimed       = "device.claimed"
)

// SweepRequest is the payload of an anomaly.sweep.requested message. An
// empty DeviceIDs means every known device.
type SweepRequest struct {
	DeviceIDs        []string `json:"device_ids"`
	ConcurrencyLimit int      `json:"concurrency_limit"`
}

// SweepCompleted is the payload of an anomaly.sweep.completed message.
type SweepCompleted struct {
	SweepID    string    `json:"sweep_id"`
	Devices    int       `json:"devices"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Anomalies  int       `json:"anomalies"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Cancelled  bool      `json:"cancelled,omitempty"`
}
