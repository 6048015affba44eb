package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

const lockPrefix = "anomaly:lock:"

// DeviceLock allows at most one detection per device at a time, across
// processes when the cache is Redis. The TTL bounds how long a crashed
// holder can block a device.
type DeviceLock struct {
	cache ports.Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewDeviceLock(cache ports.Cache, ttl time.Duration, log *zap.Logger) *DeviceLock {
	return &DeviceLock{cache: cache, ttl: ttl, log: log}
}

// Acquire returns domain.ErrDetectionInProgress when another holder has
// the device. The returned release func must be called exactly once. It
// only removes the lock while this holder's token is still stored, so a
// holder that outlived the TTL cannot release someone else's lock.
func (l *DeviceLock) Acquire(ctx context.Context, deviceID string) (func(), error) {
	key := lockPrefix + deviceID
	token := uuid.NewString()
	ok, err := l.cache.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire detection lock for %s: %w", deviceID, err)
	}
	if !ok {
		return nil, domain.ErrDetectionInProgress
	}

	return func() {
		released, err := l.cache.CompareAndDelete(context.WithoutCancel(ctx), key, token)
		if err != nil {
			l.log.Warn("Failed to release detection lock", zap.String("device_id", deviceID), zap.Error(err))
			return
		}
		if !released {
			l.log.Warn("Detection lock expired before release",
				zap.String("device_id", deviceID),
				zap.Duration("ttl", l.ttl),
			)
		}
	}, nil
}
