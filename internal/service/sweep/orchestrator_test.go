package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/mocks"
	"github.com/seu-repo/energy-sentinel/internal/ports"
	"github.com/seu-repo/energy-sentinel/internal/service/anomaly"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestSweepAll_IsolatesDeviceFailure(t *testing.T) {
	// Arrange
	detector := &mocks.MockAnomalyService{
		DetectAnomaliesFunc: func(ctx context.Context, deviceID string, opts ports.DetectionOptions) (*domain.DetectionReport, error) {
			if deviceID == "d2" {
				return nil, errors.New("boom")
			}
			return &domain.DetectionReport{DeviceID: deviceID, Anomalies: []domain.AnomalyResult{{RecordID: "r1"}}}, nil
		},
	}
	o := NewOrchestrator(detector, ports.DetectionOptions{}, 5, newTestLogger())

	// Act
	res, err := o.SweepAll(context.Background(), []string{"d1", "d2"}, 1)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := res.PerDevice["d1"]; got.Status != domain.SweepStatusSuccess || got.AnomaliesDetected != 1 {
		t.Errorf("expected d1 success with 1 anomaly, got %+v", got)
	}
	if got := res.PerDevice["d2"]; got.Status != domain.SweepStatusError || got.ErrorMessage != "boom" {
		t.Errorf("expected d2 error 'boom', got %+v", got)
	}
}

func TestSweepAll_EmptyHistoryWithRealDetector(t *testing.T) {
	// Arrange
	now := time.Now().UTC()
	var seed []domain.ConsumptionRecord
	for _, dev := range []string{"d1", "d3", "d4"} {
		for i := 0; i < 30; i++ {
			seed = append(seed, domain.ConsumptionRecord{
				ID:        fmt.Sprintf("%s-%d", dev, i),
				DeviceID:  dev,
				Timestamp: now.Add(-time.Duration(i+1) * time.Hour),
				Value:     float64(10 + i%3),
				Unit:      domain.UnitKWh,
			})
		}
	}
	log := zap.NewNop()
	records := mocks.NewMockConsumptionRepository(seed...)
	cache := mocks.NewMockCache()
	detector := anomaly.NewDetector(records, &mocks.MockOwnershipGate{}, nil,
		anomaly.NewDeviceLock(cache, time.Minute, log), mocks.NewMockMessageQueue(),
		anomaly.Config{Threshold: 3, MinSamples: 10, DefaultWindow: 7 * 24 * time.Hour}, log)
	o := NewOrchestrator(detector, ports.DetectionOptions{}, 5, log)

	// Act
	res, err := o.SweepAll(context.Background(), []string{"d1", "d2", "d3", "d4"}, 2)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(res.PerDevice) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(res.PerDevice))
	}
	for _, dev := range []string{"d1", "d3", "d4"} {
		if res.PerDevice[dev].Status != domain.SweepStatusSuccess {
			t.Errorf("expected %s success, got %+v", dev, res.PerDevice[dev])
		}
	}
	d2 := res.PerDevice["d2"]
	if d2.Status != domain.SweepStatusError || !strings.Contains(d2.ErrorMessage, "insufficient data") {
		t.Errorf("expected d2 insufficient data error, got %+v", d2)
	}
	for _, dev := range []string{"d1", "d2", "d3", "d4"} {
		if cache.Has("anomaly:lock:" + dev) {
			t.Errorf("expected lock for %s to be released", dev)
		}
	}
}

func TestSweepAll_Empty(t *testing.T) {
	detector := &mocks.MockAnomalyService{
		DetectAnomaliesFunc: func(ctx context.Context, deviceID string, opts ports.DetectionOptions) (*domain.DetectionReport, error) {
			t.Error("detector should not be called")
			return nil, nil
		},
	}
	o := NewOrchestrator(detector, ports.DetectionOptions{}, 5, newTestLogger())

	res, err := o.SweepAll(context.Background(), nil, 5)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.PerDevice == nil || len(res.PerDevice) != 0 {
		t.Errorf("expected empty non-nil result, got %+v", res.PerDevice)
	}
}

func TestSweepAll_DuplicatesRunOnce(t *testing.T) {
	var calls atomic.Int32
	detector := &mocks.MockAnomalyService{
		DetectAnomaliesFunc: func(ctx context.Context, deviceID string, opts ports.DetectionOptions) (*domain.DetectionReport, error) {
			calls.Add(1)
			return &domain.DetectionReport{DeviceID: deviceID}, nil
		},
	}
	o := NewOrchestrator(detector, ports.DetectionOptions{}, 5, newTestLogger())

	res, _ := o.SweepAll(context.Background(), []string{"d1", "d2", "d1", "d1"}, 3)

	if len(res.PerDevice) != 2 {
		t.Errorf("expected 2 entries, got %d", len(res.PerDevice))
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected 2 detector calls, got %d", n)
	}
}

func TestSweepAll_RecoversPanic(t *testing.T) {
	detector := &mocks.MockAnomalyService{
		DetectAnomaliesFunc: func(ctx context.Context, deviceID string, opts ports.DetectionOptions) (*domain.DetectionReport, error) {
			if deviceID == "d1" {
				panic("nil map write")
			}
			return &domain.DetectionReport{DeviceID: deviceID}, nil
		},
	}
	o := NewOrchestrator(detector, ports.DetectionOptions{}, 5, newTestLogger())

	res, err := o.SweepAll(context.Background(), []string{"d1", "d2", "d3"}, 2)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := res.PerDevice["d1"]; got.Status != domain.SweepStatusError || !strings.Contains(got.ErrorMessage, "nil map write") {
		t.Errorf("expected d1 panic recorded as error, got %+v", got)
	}
	if res.PerDevice["d2"].Status != domain.SweepStatusSuccess || res.PerDevice["d3"].Status != domain.SweepStatusSuccess {
		t.Errorf("expected other devices to succeed, got %+v", res.PerDevice)
	}
}

func TestSweepAll_RespectsConcurrencyLimit(t *testing.T) {
	// Arrange
	var inFlight, peak atomic.Int32
	detector := &mocks.MockAnomalyService{
		DetectAnomaliesFunc: func(ctx context.Context, deviceID string, opts ports.DetectionOptions) (*domain.DetectionReport, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return &domain.DetectionReport{DeviceID: deviceID}, nil
		},
	}
	o := NewOrchestrator(detector, ports.DetectionOptions{}, 5, newTestLogger())
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("d%02d", i)
	}

	// Act
	res, err := o.SweepAll(context.Background(), ids, 3)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(res.PerDevice) != 20 {
		t.Errorf("expected 20 entries, got %d", len(res.PerDevice))
	}
	if p := peak.Load(); p > 3 {
		t.Errorf("expected at most 3 concurrent detections, saw %d", p)
	}
}

func TestSweepAll_DefaultLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	detector := &mocks.MockAnomalyService{
		DetectAnomaliesFunc: func(ctx context.Context, deviceID string, opts ports.DetectionOptions) (*domain.DetectionReport, error) {
			n := inFlight.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return &domain.DetectionReport{DeviceID: deviceID}, nil
		},
	}
	o := NewOrchestrator(detector, ports.DetectionOptions{}, 1, newTestLogger())

	_, _ = o.SweepAll(context.Background(), []string{"a", "b", "c", "d"}, 0)

	if p := peak.Load(); p != 1 {
		t.Errorf("expected default limit of 1 worker, saw %d concurrent", p)
	}
}

func TestSweepAll_Cancellation(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	var detectCtxErr error
	var mu sync.Mutex
	var once sync.Once

	detector := &mocks.MockAnomalyService{
		DetectAnomaliesFunc: func(dctx context.Context, deviceID string, opts ports.DetectionOptions) (*domain.DetectionReport, error) {
			calls.Add(1)
			once.Do(func() { close(started) })
			<-release
			mu.Lock()
			detectCtxErr = dctx.Err()
			mu.Unlock()
			return &domain.DetectionReport{DeviceID: deviceID}, nil
		},
	}
	o := NewOrchestrator(detector, ports.DetectionOptions{}, 5, newTestLogger())

	type sweepReturn struct {
		res *domain.SweepResult
		err error
	}
	done := make(chan sweepReturn, 1)

	// Act
	go func() {
		res, err := o.SweepAll(ctx, []string{"d1", "d2", "d3"}, 1)
		done <- sweepReturn{res, err}
	}()
	<-started
	cancel()
	close(release)

	var out sweepReturn
	select {
	case out = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not return after cancellation")
	}

	// Assert
	if !errors.Is(out.err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", out.err)
	}
	if len(out.res.PerDevice) != 3 {
		t.Fatalf("expected every device to have an entry, got %+v", out.res.PerDevice)
	}
	for id, r := range out.res.PerDevice {
		if r.Status != domain.SweepStatusError || r.ErrorMessage != "sweep cancelled" {
			t.Errorf("expected %s cancelled, got %+v", id, r)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected only the in-flight detection to run, got %d calls", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if detectCtxErr != nil {
		t.Errorf("in-flight detection should not see cancellation, got %v", detectCtxErr)
	}
}
