package ports

import (
	"context"
	"time"

	"github.com/seu-repo/energy-sentinel/internal/domain"
)

// ConsumptionRepository is the Record Store. Lookups by ID return nil, nil
// when nothing matches.
type ConsumptionRepository interface {
	Save(ctx context.Context, record *domain.ConsumptionRecord) error
	FindByID(ctx context.Context, id string) (*domain.ConsumptionRecord, error)
	// FindByDeviceInRange returns readings with from <= timestamp < to, oldest first.
	FindByDeviceInRange(ctx context.Context, deviceID string, from, to time.Time) ([]domain.ConsumptionRecord, error)
	CountByDevice(ctx context.Context, deviceID string, from, to time.Time) (int64, error)
	Stats(ctx context.Context, deviceID string, from, to time.Time) (*domain.ConsumptionStats, error)
	// UpdateAnomaly writes only the anomaly sub-object of one record.
	UpdateAnomaly(ctx context.Context, recordID string, flag *domain.AnomalyFlag) error
	ListAnomalies(ctx context.Context, deviceID string, from, to time.Time) ([]domain.ConsumptionRecord, error)
}

// DeviceRepository exposes the device records owned by the device service.
type DeviceRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Device, error)
	// SetOwner assigns an owner only if the device is still unowned and
	// reports whether the assignment happened.
	SetOwner(ctx context.Context, deviceID, ownerID string) (bool, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// ModelRefRepository stores which remote model belongs to which device.
type ModelRefRepository interface {
	Save(ctx context.Context, ref *domain.ModelRef) error
	FindByDeviceID(ctx context.Context, deviceID string) (*domain.ModelRef, error)
}
