package ownership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

const deviceCachePrefix = "device:"

type Gate struct {
	devices  ports.DeviceRepository
	cache    ports.Cache
	events   ports.EventPublisher
	log      *zap.Logger
	cacheTTL time.Duration
}

func NewGate(devices ports.DeviceRepository, cache ports.Cache, events ports.EventPublisher, cacheTTL time.Duration, log *zap.Logger) *Gate {
	return &Gate{
		devices:  devices,
		cache:    cache,
		events:   events,
		log:      log,
		cacheTTL: cacheTTL,
	}
}

// Authorize returns the device when callerID holds at least perm on it.
func (g *Gate) Authorize(ctx context.Context, callerID, deviceID string, perm domain.Permission) (*domain.Device, error) {
	device, err := g.lookup(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if !device.IsOwned() {
		return nil, domain.ErrDeviceUnowned
	}

	held, ok := device.AccessFor(callerID)
	if !ok || !held.Allows(perm) {
		return nil, domain.ErrForbidden
	}

	return device, nil
}

// Claim assigns an unowned device to callerID. Claiming a device the caller
// already owns is a no-op; claiming someone else's device is Forbidden.
func (g *Gate) Claim(ctx context.Context, callerID, deviceID string) (*domain.Device, error) {
	if callerID == "" {
		return nil, domain.ErrForbidden
	}

	device, err := g.load(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device.IsOwned() {
		if device.OwnerID == callerID {
			return device, nil
		}
		return nil, domain.ErrForbidden
	}

	claimed, err := g.devices.SetOwner(ctx, deviceID, callerID)
	if err != nil {
		return nil, fmt.Errorf("claim device %s: %w", deviceID, err)
	}
	g.invalidate(ctx, deviceID)

	if !claimed {
		// Lost a race with another claimant; report whoever won.
		device, err = g.load(ctx, deviceID)
		if err != nil {
			return nil, err
		}
		if device.OwnerID != callerID {
			return nil, domain.ErrForbidden
		}
		return device, nil
	}

	device.OwnerID = callerID
	g.log.Info("Device claimed",
		zap.String("audit", "device.claim"),
		zap.String("device_id", deviceID),
		zap.String("owner_id", callerID),
	)
	g.publishClaimed(device)

	return device, nil
}

// lookup reads through the cache.
func (g *Gate) lookup(ctx context.Context, deviceID string) (*domain.Device, error) {
	key := deviceCachePrefix + deviceID

	if cached, err := g.cache.Get(ctx, key); err == nil {
		var d domain.Device
		if jsonErr := json.Unmarshal([]byte(cached), &d); jsonErr == nil {
			return &d, nil
		}
		g.log.Warn("Discarding corrupt cached device", zap.String("device_id", deviceID))
	} else if !errors.Is(err, ports.ErrCacheMiss) {
		g.log.Warn("Device cache read failed", zap.String("device_id", deviceID), zap.Error(err))
	}

	device, err := g.load(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if err := g.cache.Set(ctx, key, device, g.cacheTTL); err != nil {
		g.log.Warn("Device cache write failed", zap.String("device_id", deviceID), zap.Error(err))
	}
	return device, nil
}

func (g *Gate) load(ctx context.Context, deviceID string) (*domain.Device, error) {
	device, err := g.devices.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load device %s: %w", deviceID, err)
	}
	if device == nil {
		return nil, domain.ErrNotFound
	}
	return device, nil
}

func (g *Gate) invalidate(ctx context.Context, deviceID string) {
	if err := g.cache.Delete(ctx, deviceCachePrefix+deviceID); err != nil {
		g.log.Warn("Device cache invalidation failed", zap.String("device_id", deviceID), zap.Error(err))
	}
}

func (g *Gate) publishClaimed(device *domain.Device) {
	payload, _ := json.Marshal(map[string]interface{}{
		"device_id":  device.ID,
		"owner_id":   device.OwnerID,
		"claimed_at": time.Now().UTC(),
	})
	if err := g.events.Publish(domain.EventDeviceClaimed, payload); err != nil {
		g.log.Warn("Failed to publish device.claimed", zap.String("device_id", device.ID), zap.Error(err))
	}
}
