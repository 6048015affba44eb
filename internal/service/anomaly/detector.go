package anomaly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/observability/telemetry"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

// Config holds detector defaults.
type Config struct {
	Threshold     float64
	MinSamples    int
	DefaultWindow time.Duration
}

type Detector struct {
	records ports.ConsumptionRepository
	gate    ports.OwnershipGate
	remote  ports.PredictionService
	lock    *DeviceLock
	events  ports.EventPublisher
	cfg     Config
	log     *zap.Logger
	now     func() time.Time
}

// NewDetector builds a detector. remote may be nil, in which case the
// "remote" method fails with a ServiceError and z-score keeps working.
// lock may be nil to run without the per-device guard.
func NewDetector(records ports.ConsumptionRepository, gate ports.OwnershipGate, remote ports.PredictionService, lock *DeviceLock, events ports.EventPublisher, cfg Config, log *zap.Logger) *Detector {
	return &Detector{
		records: records,
		gate:    gate,
		remote:  remote,
		lock:    lock,
		events:  events,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// DetectAnomalies scores the device's readings in the trailing window and
// writes a flag on every reading past the threshold. It returns only the
// readings flagged by this run.
func (d *Detector) DetectAnomalies(ctx context.Context, deviceID string, opts ports.DetectionOptions) (*domain.DetectionReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "anomaly.DetectAnomalies")
	defer span.End()

	opts, err := d.resolve(opts)
	if err != nil {
		return nil, err
	}

	if d.lock != nil {
		release, err := d.lock.Acquire(ctx, deviceID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	to := d.now().UTC()
	from := to.Add(-opts.Window)

	recs, err := d.records.FindByDeviceInRange(ctx, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load readings for %s: %w", deviceID, err)
	}
	if len(recs) < d.cfg.MinSamples {
		return nil, &domain.InsufficientDataError{DeviceID: deviceID, Have: int64(len(recs)), Need: int64(d.cfg.MinSamples)}
	}

	var s summary
	for _, r := range recs {
		s.add(r.Value)
	}

	report := &domain.DetectionReport{
		DeviceID:    deviceID,
		Method:      opts.Method,
		From:        from,
		To:          to,
		Threshold:   opts.Threshold,
		SampleCount: len(recs),
		Mean:        s.mean,
		StdDev:      s.stdDev(),
		Anomalies:   []domain.AnomalyResult{},
	}

	var scores map[int]float64
	switch opts.Method {
	case domain.MethodRemote:
		scores, err = d.scoreRemote(ctx, deviceID, recs, opts)
		if err != nil {
			return nil, err
		}
	default:
		if report.StdDev == 0 {
			d.log.Debug("Constant series, nothing to flag", zap.String("device_id", deviceID))
			return report, nil
		}
		scores = make(map[int]float64)
		for i, r := range recs {
			if score, over := zScore(r.Value, report.Mean, report.StdDev, opts.Threshold); over {
				scores[i] = score
			}
		}
	}

	d.flag(ctx, report, recs, scores)
	d.finish(report)
	return report, nil
}

func (d *Detector) resolve(opts ports.DetectionOptions) (ports.DetectionOptions, error) {
	if opts.Window == 0 {
		opts.Window = d.cfg.DefaultWindow
	}
	if opts.Threshold == 0 {
		opts.Threshold = d.cfg.Threshold
	}
	if opts.Method == "" {
		opts.Method = domain.MethodZScore
	}

	if opts.Window < 0 {
		return opts, domain.NewValidationError("window", "must be positive")
	}
	if opts.Threshold < 0 {
		return opts, domain.NewValidationError("threshold", "must be positive")
	}
	if opts.Method != domain.MethodZScore && opts.Method != domain.MethodRemote {
		return opts, domain.NewValidationError("method", "unknown method "+opts.Method)
	}
	return opts, nil
}

// scoreRemote asks the model service to score the window and maps its
// verdicts back onto local readings by timestamp.
func (d *Detector) scoreRemote(ctx context.Context, deviceID string, recs []domain.ConsumptionRecord, opts ports.DetectionOptions) (map[int]float64, error) {
	if d.remote == nil {
		return nil, &domain.ServiceError{Operation: "detect", Err: errors.New("model service not configured")}
	}

	verdicts, err := d.remote.DetectRemote(ctx, deviceID, opts.Window, "", opts.Threshold)
	if err != nil {
		return nil, err
	}

	byTime := make(map[int64]int, len(recs))
	for i, r := range recs {
		byTime[r.Timestamp.UnixNano()] = i
	}

	scores := make(map[int]float64)
	for _, v := range verdicts {
		if !v.IsAnomaly {
			continue
		}
		i, ok := byTime[v.Timestamp.UnixNano()]
		if !ok {
			d.log.Debug("Remote anomaly does not match a stored reading",
				zap.String("device_id", deviceID),
				zap.Time("timestamp", v.Timestamp),
			)
			continue
		}
		scores[i] = v.Score
	}
	return scores, nil
}

// flag persists each verdict independently; a failed write is reported and
// does not stop the others.
func (d *Detector) flag(ctx context.Context, report *domain.DetectionReport, recs []domain.ConsumptionRecord, scores map[int]float64) {
	now := d.now().UTC()
	for i, r := range recs {
		score, ok := scores[i]
		if !ok {
			continue
		}

		flag := domain.MergeFlag(r.Anomaly, score, report.Method, now)
		if err := d.records.UpdateAnomaly(ctx, r.ID, flag); err != nil {
			d.log.Warn("Failed to persist anomaly flag",
				zap.String("device_id", r.DeviceID),
				zap.String("record_id", r.ID),
				zap.Error(err),
			)
			report.WriteFailures = append(report.WriteFailures, domain.WriteFailure{RecordID: r.ID, Message: err.Error()})
			telemetry.AnomalyWriteFailuresTotal.Inc()
			continue
		}

		report.Anomalies = append(report.Anomalies, domain.AnomalyResult{
			RecordID:  r.ID,
			DeviceID:  r.DeviceID,
			Timestamp: r.Timestamp,
			Value:     r.Value,
			Score:     score,
			Method:    report.Method,
			Reviewed:  flag.Reviewed,
		})
	}
}

func (d *Detector) finish(report *domain.DetectionReport) {
	telemetry.AnomaliesFlaggedTotal.WithLabelValues(report.Method).Add(float64(len(report.Anomalies)))

	d.log.Info("Anomaly detection finished",
		zap.String("device_id", report.DeviceID),
		zap.String("method", report.Method),
		zap.Int("samples", report.SampleCount),
		zap.Int("flagged", len(report.Anomalies)),
		zap.Int("write_failures", len(report.WriteFailures)),
	)

	if len(report.Anomalies) == 0 {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"device_id": report.DeviceID,
		"method":    report.Method,
		"threshold": report.Threshold,
		"anomalies": report.Anomalies,
	})
	if err := d.events.Publish(domain.EventAnomalyDetected, payload); err != nil {
		d.log.Warn("Failed to publish anomaly.detected", zap.String("device_id", report.DeviceID), zap.Error(err))
	}
}

// Review sets or clears the human review on a flagged reading. It is the
// only path that changes Reviewed.
func (d *Detector) Review(ctx context.Context, reviewerID, recordID string, reviewed bool) (*domain.ConsumptionRecord, error) {
	rec, err := d.records.FindByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", recordID, err)
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}

	if _, err := d.gate.Authorize(ctx, reviewerID, rec.DeviceID, domain.PermissionWrite); err != nil {
		return nil, err
	}

	if rec.Anomaly == nil || !rec.Anomaly.Detected {
		return nil, domain.NewValidationError("record", "reading is not flagged as an anomaly")
	}

	flag := *rec.Anomaly
	if reviewed {
		now := d.now().UTC()
		flag.Reviewed = true
		flag.ReviewedAt = &now
		flag.ReviewedBy = reviewerID
	} else {
		flag.Reviewed = false
		flag.ReviewedAt = nil
		flag.ReviewedBy = ""
	}

	if err := d.records.UpdateAnomaly(ctx, rec.ID, &flag); err != nil {
		return nil, fmt.Errorf("update review on %s: %w", rec.ID, err)
	}

	d.log.Info("Anomaly review updated",
		zap.String("audit", "anomaly.review"),
		zap.String("record_id", rec.ID),
		zap.String("device_id", rec.DeviceID),
		zap.String("reviewer_id", reviewerID),
		zap.Bool("reviewed", reviewed),
	)

	rec.Anomaly = &flag
	return rec, nil
}

// Stats returns aggregate statistics for the trailing window.
func (d *Detector) Stats(ctx context.Context, callerID, deviceID string, window time.Duration) (*domain.ConsumptionStats, error) {
	if window < 0 {
		return nil, domain.NewValidationError("window", "must be positive")
	}
	if window == 0 {
		window = d.cfg.DefaultWindow
	}

	if _, err := d.gate.Authorize(ctx, callerID, deviceID, domain.PermissionRead); err != nil {
		return nil, err
	}

	to := d.now().UTC()
	stats, err := d.records.Stats(ctx, deviceID, to.Add(-window), to)
	if err != nil {
		return nil, fmt.Errorf("stats for %s: %w", deviceID, err)
	}
	return stats, nil
}

// ListAnomalies returns the flagged readings in the trailing window, oldest
// first. Reviewed flags are included.
func (d *Detector) ListAnomalies(ctx context.Context, callerID, deviceID string, window time.Duration) ([]domain.ConsumptionRecord, error) {
	if window < 0 {
		return nil, domain.NewValidationError("window", "must be positive")
	}
	if window == 0 {
		window = d.cfg.DefaultWindow
	}

	if _, err := d.gate.Authorize(ctx, callerID, deviceID, domain.PermissionRead); err != nil {
		return nil, err
	}

	to := d.now().UTC()
	recs, err := d.records.ListAnomalies(ctx, deviceID, to.Add(-window), to)
	if err != nil {
		return nil, fmt.Errorf("list anomalies for %s: %w", deviceID, err)
	}
	if recs == nil {
		recs = []domain.ConsumptionRecord{}
	}
	return recs, nil
}
