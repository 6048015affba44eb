package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

type ConsumptionRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewConsumptionRepository(db *gorm.DB, log *zap.Logger) ports.ConsumptionRepository {
	return &ConsumptionRepository{
		db:  db,
		log: log,
	}
}

func (r *ConsumptionRepository) Save(ctx context.Context, record *domain.ConsumptionRecord) error {
	result := r.db.WithContext(ctx).Create(record)
	if result.Error != nil {
		r.log.Error("Failed to save consumption record",
			zap.String("device_id", record.DeviceID),
			zap.Error(result.Error),
		)
		return result.Error
	}
	return nil
}

func (r *ConsumptionRepository) FindByID(ctx context.Context, id string) (*domain.ConsumptionRecord, error) {
	var rec domain.ConsumptionRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *ConsumptionRepository) FindByDeviceInRange(ctx context.Context, deviceID string, from, to time.Time) ([]domain.ConsumptionRecord, error) {
	var recs []domain.ConsumptionRecord
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND timestamp >= ? AND timestamp < ?", deviceID, from, to).
		Order("timestamp asc").
		Find(&recs).Error
	return recs, err
}

func (r *ConsumptionRepository) CountByDevice(ctx context.Context, deviceID string, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.ConsumptionRecord{}).
		Where("device_id = ? AND timestamp >= ? AND timestamp < ?", deviceID, from, to).
		Count(&n).Error
	return n, err
}

type statsRow struct {
	Count    int64
	Mean     sql.NullFloat64
	StdDev   sql.NullFloat64
	MinValue sql.NullFloat64
	MaxValue sql.NullFloat64
}

func (r *ConsumptionRepository) Stats(ctx context.Context, deviceID string, from, to time.Time) (*domain.ConsumptionStats, error) {
	var row statsRow
	err := r.db.WithContext(ctx).
		Model(&domain.ConsumptionRecord{}).
		Select("COUNT(*) AS count, AVG(value) AS mean, STDDEV_POP(value) AS std_dev, MIN(value) AS min_value, MAX(value) AS max_value").
		Where("device_id = ? AND timestamp >= ? AND timestamp < ?", deviceID, from, to).
		Scan(&row).Error
	if err != nil {
		r.log.Error("Failed to aggregate consumption stats",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return nil, err
	}

	return &domain.ConsumptionStats{
		DeviceID: deviceID,
		From:     from,
		To:       to,
		Count:    row.Count,
		Mean:     row.Mean.Float64,
		StdDev:   row.StdDev.Float64,
		Min:      row.MinValue.Float64,
		Max:      row.MaxValue.Float64,
	}, nil
}

func (r *ConsumptionRepository) UpdateAnomaly(ctx context.Context, recordID string, flag *domain.AnomalyFlag) error {
	result := r.db.WithContext(ctx).
		Model(&domain.ConsumptionRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"anomaly_detected":    flag.Detected,
			"anomaly_score":       flag.Score,
			"anomaly_method":      flag.Method,
			"anomaly_reviewed":    flag.Reviewed,
			"anomaly_flagged_at":  flag.FlaggedAt,
			"anomaly_reviewed_at": flag.ReviewedAt,
			"anomaly_reviewed_by": flag.ReviewedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ConsumptionRepository) ListAnomalies(ctx context.Context, deviceID string, from, to time.Time) ([]domain.ConsumptionRecord, error) {
	var recs []domain.ConsumptionRecord
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND timestamp >= ? AND timestamp < ? AND anomaly_detected = ?", deviceID, from, to, true).
		Order("timestamp asc").
		Find(&recs).Error
	return recs, err
}
