package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

type DeviceRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewDeviceRepository(db *gorm.DB, log *zap.Logger) ports.DeviceRepository {
	return &DeviceRepository{
		db:  db,
		log: log,
	}
}

func (r *DeviceRepository) FindByID(ctx context.Context, id string) (*domain.Device, error) {
	var d domain.Device
	result := r.db.WithContext(ctx).Preload("Shares").First(&d, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &d, nil
}

// SetOwner is a conditional update so two concurrent claims cannot both win.
func (r *DeviceRepository) SetOwner(ctx context.Context, deviceID, ownerID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Device{}).
		Where("id = ? AND (owner_id = '' OR owner_id IS NULL)", deviceID).
		Update("owner_id", ownerID)
	if result.Error != nil {
		r.log.Error("Failed to set device owner",
			zap.String("device_id", deviceID),
			zap.Error(result.Error),
		)
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *DeviceRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.Device{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}
