package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/observability/telemetry"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

const cancelledMessage = "sweep cancelled"

// Orchestrator runs the anomaly detector over many devices with a fixed
// number of workers. One device failing never affects another.
type Orchestrator struct {
	detector     ports.AnomalyService
	opts         ports.DetectionOptions
	defaultLimit int
	log          *zap.Logger
}

// NewOrchestrator builds an orchestrator. opts are passed to every
// detection; defaultLimit is used when SweepAll gets a non-positive limit.
func NewOrchestrator(detector ports.AnomalyService, opts ports.DetectionOptions, defaultLimit int, log *zap.Logger) *Orchestrator {
	if defaultLimit < 1 {
		defaultLimit = 1
	}
	return &Orchestrator{
		detector:     detector,
		opts:         opts,
		defaultLimit: defaultLimit,
		log:          log,
	}
}

type outcome struct {
	deviceID string
	result   domain.DeviceSweepResult
}

// SweepAll returns one entry per distinct device ID. When ctx is cancelled
// it stops handing out devices, lets running detections finish, discards
// their results and marks every device without a result as cancelled. The
// result is returned together with ctx.Err() in that case.
func (o *Orchestrator) SweepAll(ctx context.Context, deviceIDs []string, concurrencyLimit int) (*domain.SweepResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "sweep.SweepAll")
	defer span.End()

	ids := dedupe(deviceIDs)
	result := &domain.SweepResult{
		ID:        uuid.New().String(),
		PerDevice: make(map[string]domain.DeviceSweepResult, len(ids)),
		StartedAt: time.Now().UTC(),
	}

	if len(ids) == 0 {
		result.FinishedAt = time.Now().UTC()
		return result, nil
	}

	workers := concurrencyLimit
	if workers <= 0 {
		workers = o.defaultLimit
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	o.log.Info("Anomaly sweep started",
		zap.String("sweep_id", result.ID),
		zap.Int("devices", len(ids)),
		zap.Int("workers", workers),
	)

	// Detections run on a context that ignores cancellation so in-flight
	// work is never torn down halfway through its flag writes.
	runCtx := context.WithoutCancel(ctx)

	jobs := make(chan string)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				outcomes <- o.detectOne(runCtx, id)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// The collector is the only writer of PerDevice.
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for out := range outcomes {
			if ctx.Err() != nil {
				continue
			}
			result.PerDevice[out.deviceID] = out.result
		}
	}()

dispatch:
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- id:
		}
	}
	close(jobs)
	<-collected

	err := ctx.Err()
	if err != nil {
		for _, id := range ids {
			if _, ok := result.PerDevice[id]; !ok {
				result.PerDevice[id] = domain.DeviceSweepResult{Status: domain.SweepStatusError, ErrorMessage: cancelledMessage}
			}
		}
	}

	result.FinishedAt = time.Now().UTC()
	o.record(result, err)
	return result, err
}

// detectOne turns any error or panic from the detector into an error entry.
func (o *Orchestrator) detectOne(ctx context.Context, deviceID string) (out outcome) {
	out.deviceID = deviceID

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Detector panicked during sweep",
				zap.String("device_id", deviceID),
				zap.Any("panic", r),
			)
			out.result = domain.DeviceSweepResult{
				Status:       domain.SweepStatusError,
				ErrorMessage: fmt.Sprintf("detector panic: %v", r),
			}
		}
	}()

	report, err := o.detector.DetectAnomalies(ctx, deviceID, o.opts)
	if err != nil {
		o.log.Warn("Device detection failed during sweep",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		out.result = domain.DeviceSweepResult{Status: domain.SweepStatusError, ErrorMessage: err.Error()}
		return out
	}

	out.result = domain.DeviceSweepResult{
		Status:            domain.SweepStatusSuccess,
		AnomaliesDetected: len(report.Anomalies),
		WriteFailures:     len(report.WriteFailures),
	}
	return out
}

func (o *Orchestrator) record(result *domain.SweepResult, err error) {
	succeeded, failed := result.Counts()
	telemetry.SweepDevicesTotal.WithLabelValues(string(domain.SweepStatusSuccess)).Add(float64(succeeded))
	telemetry.SweepDevicesTotal.WithLabelValues(string(domain.SweepStatusError)).Add(float64(failed))
	telemetry.SweepDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

	fields := []zap.Field{
		zap.String("sweep_id", result.ID),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	}
	if err != nil {
		o.log.Warn("Anomaly sweep cancelled", append(fields, zap.Error(err))...)
		return
	}
	o.log.Info("Anomaly sweep finished", fields...)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
