package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

// Scheduler triggers fleet-wide sweeps on a ticker and on
// anomaly.sweep.requested messages. Only one sweep runs per process.
type Scheduler struct {
	sweeper     ports.SweepService
	devices     ports.DeviceRepository
	bus         ports.EventBus
	interval    time.Duration
	concurrency int
	log         *zap.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	// mu orders trigger's wg.Add against the final wg.Wait in Run.
	mu      sync.Mutex
	stopped bool
}

func NewScheduler(sweeper ports.SweepService, devices ports.DeviceRepository, bus ports.EventBus, interval time.Duration, concurrency int, log *zap.Logger) *Scheduler {
	return &Scheduler{
		sweeper:     sweeper,
		devices:     devices,
		bus:         bus,
		interval:    interval,
		concurrency: concurrency,
		log:         log,
	}
}

// Run blocks until ctx is done, then waits for a running sweep to return.
func (s *Scheduler) Run(ctx context.Context) error {
	err := s.bus.Subscribe(domain.EventSweepRequested, func(data []byte) error {
		var req domain.SweepRequest
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("decode sweep request: %w", err)
			}
		}
		s.trigger(ctx, req, "message")
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", domain.EventSweepRequested, err)
	}

	s.log.Info("Sweep scheduler started", zap.Duration("interval", s.interval))

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.stopped = true
			s.mu.Unlock()
			s.wg.Wait()
			s.log.Info("Sweep scheduler stopped")
			return nil
		case <-tick:
			s.trigger(ctx, domain.SweepRequest{}, "schedule")
		}
	}
}

// trigger starts a sweep in the background unless the scheduler has
// stopped. Messages delivered after shutdown are dropped.
func (s *Scheduler) trigger(ctx context.Context, req domain.SweepRequest, reason string) {
	s.mu.Lock()
	if s.stopped || ctx.Err() != nil {
		s.mu.Unlock()
		s.log.Debug("Sweep trigger ignored after shutdown", zap.String("trigger", reason))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if _, err := s.RunOnce(ctx, req); err != nil {
			s.log.Warn("Sweep run did not complete",
				zap.String("trigger", reason),
				zap.Error(err),
			)
		}
	}()
}

// RunOnce sweeps req.DeviceIDs, or every known device when it is empty,
// and publishes anomaly.sweep.completed. It fails with
// domain.ErrDetectionInProgress if a sweep is already running here.
func (s *Scheduler) RunOnce(ctx context.Context, req domain.SweepRequest) (*domain.SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrDetectionInProgress
	}
	defer s.running.Store(false)

	ids := req.DeviceIDs
	if len(ids) == 0 {
		all, err := s.devices.ListIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list devices: %w", err)
		}
		ids = all
	}

	limit := req.ConcurrencyLimit
	if limit <= 0 {
		limit = s.concurrency
	}

	result, err := s.sweeper.SweepAll(ctx, ids, limit)
	if result != nil {
		s.publishCompleted(result, err != nil)
	}
	return result, err
}

func (s *Scheduler) publishCompleted(result *domain.SweepResult, cancelled bool) {
	succeeded, failed := result.Counts()
	anomalies := 0
	for _, d := range result.PerDevice {
		anomalies += d.AnomaliesDetected
	}

	payload, _ := json.Marshal(domain.SweepCompleted{
		SweepID:    result.ID,
		Devices:    len(result.PerDevice),
		Succeeded:  succeeded,
		Failed:     failed,
		Anomalies:  anomalies,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Cancelled:  cancelled,
	})
	if err := s.bus.Publish(domain.EventSweepCompleted, payload); err != nil {
		s.log.Warn("Failed to publish anomaly.sweep.completed", zap.String("sweep_id", result.ID), zap.Error(err))
	}
}
