package ingestion

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/observability/telemetry"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

// Config controls ingestion policy.
type Config struct {
	// ClaimUnownedDevices lets a write to an unowned device claim it for
	// the caller through the ownership gate. Off by default.
	ClaimUnownedDevices bool
	// MaxConsecutiveStoreErrors aborts an import once the store has failed
	// this many rows in a row. Zero disables the check.
	MaxConsecutiveStoreErrors int
}

type Service struct {
	records ports.ConsumptionRepository
	gate    ports.OwnershipGate
	events  ports.EventPublisher
	cfg     Config
	log     *zap.Logger
	now     func() time.Time
}

func NewService(records ports.ConsumptionRepository, gate ports.OwnershipGate, events ports.EventPublisher, cfg Config, log *zap.Logger) *Service {
	return &Service{
		records: records,
		gate:    gate,
		events:  events,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// importRun accumulates the outcome of one Ingest call.
type importRun struct {
	callerID          string
	result            domain.ImportBatchResult
	consecutiveStores int
}

func (r *importRun) reject(row int, msg string) {
	r.result.Errors = append(r.result.Errors, domain.RowError{RowIndex: row, Message: msg})
	telemetry.ImportRowsTotal.WithLabelValues("rejected").Inc()
}

func (r *importRun) accept() {
	r.result.ImportedCount++
	r.consecutiveStores = 0
	telemetry.ImportRowsTotal.WithLabelValues("imported").Inc()
}

// Ingest streams a CSV of readings into the record store. Bad rows are
// collected in the result; only an unreadable stream, a bad header or a
// store that keeps failing end the run early.
func (s *Service) Ingest(ctx context.Context, r io.Reader, callerID string) (*domain.ImportBatchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingestion.Ingest")
	defer span.End()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	cols, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.NewValidationError("header", "empty file")
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, domain.NewValidationError("header", perr.Error())
		}
		return nil, &domain.IOError{Op: "read csv header", Err: err}
	}

	h, err := parseHeader(cols)
	if err != nil {
		return nil, err
	}

	run := &importRun{
		callerID: callerID,
		result:   domain.ImportBatchResult{Errors: []domain.RowError{}},
	}

	for {
		if err := ctx.Err(); err != nil {
			return s.finish(run), err
		}

		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var perr *csv.ParseError
		if err != nil && !errors.As(err, &perr) {
			s.log.Error("CSV stream read failed",
				zap.String("caller_id", callerID),
				zap.Int("rows_read", run.result.TotalRows),
				zap.Error(err),
			)
			return s.finish(run), &domain.IOError{Op: "read csv", Err: err}
		}

		run.result.TotalRows++
		row := run.result.TotalRows
		if perr != nil {
			run.reject(row, "malformed csv: "+perr.Err.Error())
			continue
		}

		if err := s.importRow(ctx, run, row, h, rec); err != nil {
			s.log.Error("Aborting CSV import",
				zap.String("caller_id", callerID),
				zap.Int("row", row),
				zap.Int("consecutive_store_errors", run.consecutiveStores),
				zap.Error(err),
			)
			return s.finish(run), err
		}
	}

	return s.finish(run), nil
}

// importRow handles one data row. It returns an error only when the whole
// import has to stop.
func (s *Service) importRow(ctx context.Context, run *importRun, row int, h header, rec []string) error {
	parsed, err := parseRow(h, rec, s.now().UTC())
	if err != nil {
		run.reject(row, err.Error())
		return nil
	}

	if err := s.authorize(ctx, run.callerID, parsed.DeviceID); err != nil {
		if msg, ok := gateMessage(err, parsed.DeviceID); ok {
			run.reject(row, msg)
			return nil
		}
		return s.storeFailure(run, row, err)
	}

	record := s.newRecord(run.callerID, parsed, domain.SourceCSV)
	if err := s.records.Save(ctx, record); err != nil {
		return s.storeFailure(run, row, err)
	}

	run.accept()
	return nil
}

func (s *Service) storeFailure(run *importRun, row int, err error) error {
	run.reject(row, "store write failed: "+err.Error())
	run.consecutiveStores++
	if s.cfg.MaxConsecutiveStoreErrors > 0 && run.consecutiveStores >= s.cfg.MaxConsecutiveStoreErrors {
		return fmt.Errorf("record store failed %d rows in a row: %w", run.consecutiveStores, err)
	}
	return nil
}

// authorize applies the ownership gate and, when configured, the claim
// policy for unowned devices. Rows run in order, so a claim made by one
// row is visible to every later row of the same file.
func (s *Service) authorize(ctx context.Context, callerID, deviceID string) error {
	_, err := s.gate.Authorize(ctx, callerID, deviceID, domain.PermissionWrite)
	if err == nil || !s.cfg.ClaimUnownedDevices || !errors.Is(err, domain.ErrDeviceUnowned) {
		return err
	}

	if _, err := s.gate.Claim(ctx, callerID, deviceID); err != nil {
		return err
	}
	s.log.Info("Unowned device claimed on write",
		zap.String("device_id", deviceID),
		zap.String("caller_id", callerID),
	)
	return nil
}

// gateMessage turns an authorization verdict into a row error message.
// Anything else is an infrastructure failure.
func gateMessage(err error, deviceID string) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "device not found: " + deviceID, true
	case errors.Is(err, domain.ErrDeviceUnowned):
		return "not authorized: device " + deviceID + " has no owner", true
	case errors.Is(err, domain.ErrForbidden):
		return "not authorized for device " + deviceID, true
	}
	return "", false
}

func (s *Service) newRecord(callerID string, r *reading, source domain.RecordSource) *domain.ConsumptionRecord {
	return &domain.ConsumptionRecord{
		ID:        uuid.New().String(),
		DeviceID:  r.DeviceID,
		UserID:    callerID,
		Timestamp: r.Timestamp,
		Value:     r.Value,
		Unit:      r.Unit,
		Cost:      r.Cost,
		Source:    source,
	}
}

func (s *Service) finish(run *importRun) *domain.ImportBatchResult {
	res := run.result

	s.log.Info("CSV import finished",
		zap.String("caller_id", run.callerID),
		zap.Int("total_rows", res.TotalRows),
		zap.Int("imported", res.ImportedCount),
		zap.Int("rejected", len(res.Errors)),
	)

	payload, _ := json.Marshal(map[string]interface{}{
		"caller_id":      run.callerID,
		"total_rows":     res.TotalRows,
		"imported_count": res.ImportedCount,
		"error_count":    len(res.Errors),
		"finished_at":    s.now().UTC(),
	})
	if err := s.events.Publish(domain.EventConsumptionImported, payload); err != nil {
		s.log.Warn("Failed to publish consumption.imported", zap.Error(err))
	}

	return &res
}

// RecordReading stores one reading submitted outside of a CSV upload.
func (s *Service) RecordReading(ctx context.Context, callerID string, in ports.ReadingInput) (*domain.ConsumptionRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingestion.RecordReading")
	defer span.End()

	parsed, source, err := s.validateInput(in)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, callerID, parsed.DeviceID); err != nil {
		return nil, err
	}

	record := s.newRecord(callerID, parsed, source)
	if err := s.records.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save reading: %w", err)
	}

	telemetry.ReadingsRecordedTotal.WithLabelValues(string(source)).Inc()
	return record, nil
}

func (s *Service) validateInput(in ports.ReadingInput) (*reading, domain.RecordSource, error) {
	if in.DeviceID == "" {
		return nil, "", domain.NewValidationError("device_id", "missing")
	}
	if in.Value == nil {
		return nil, "", domain.NewValidationError("value", "missing")
	}
	if math.IsNaN(*in.Value) || math.IsInf(*in.Value, 0) {
		return nil, "", domain.NewValidationError("value", "must be finite")
	}

	unit, err := parseUnit(in.Unit)
	if err != nil {
		return nil, "", err
	}

	source := in.Source
	if source == "" {
		source = domain.SourceAPI
	}
	if !source.Valid() {
		return nil, "", domain.NewValidationError("source", "unknown source "+string(source))
	}

	ts := s.now().UTC()
	if in.Timestamp != nil {
		ts = in.Timestamp.UTC()
	}

	return &reading{
		DeviceID:  in.DeviceID,
		Timestamp: ts,
		Value:     *in.Value,
		Unit:      unit,
		Cost:      in.Cost,
	}, source, nil
}
