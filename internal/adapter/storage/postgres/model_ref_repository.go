package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

type ModelRefRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewModelRefRepository(db *gorm.DB, log *zap.Logger) ports.ModelRefRepository {
	return &ModelRefRepository{db: db, log: log}
}

func (r *ModelRefRepository) Save(ctx context.Context, ref *domain.ModelRef) error {
	return r.db.WithContext(ctx).Save(ref).Error
}

func (r *ModelRefRepository) FindByDeviceID(ctx context.Context, deviceID string) (*domain.ModelRef, error) {
	var ref domain.ModelRef
	err := r.db.WithContext(ctx).First(&ref, "device_id = ?", deviceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}
