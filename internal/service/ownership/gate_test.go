package ownership

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTestGate(devices ...domain.Device) (*Gate, *mocks.MockDeviceRepository, *mocks.MockCache, *mocks.MockMessageQueue) {
	repo := mocks.NewMockDeviceRepository(devices...)
	cache := mocks.NewMockCache()
	queue := mocks.NewMockMessageQueue()
	return NewGate(repo, cache, queue, time.Minute, newTestLogger()), repo, cache, queue
}

func TestAuthorize(t *testing.T) {
	devices := []domain.Device{
		{ID: "meter-1", OwnerID: "alice", Shares: []domain.DeviceShare{
			{DeviceID: "meter-1", UserID: "bob", Permission: domain.PermissionRead},
			{DeviceID: "meter-1", UserID: "carol", Permission: domain.PermissionWrite},
		}},
		{ID: "meter-2"},
	}

	testCases := []struct {
		name     string
		caller   string
		deviceID string
		perm     domain.Permission
		wantErr  error
	}{
		{name: "owner writes", caller: "alice", deviceID: "meter-1", perm: domain.PermissionWrite},
		{name: "read share reads", caller: "bob", deviceID: "meter-1", perm: domain.PermissionRead},
		{name: "read share cannot write", caller: "bob", deviceID: "meter-1", perm: domain.PermissionWrite, wantErr: domain.ErrForbidden},
		{name: "write share reads", caller: "carol", deviceID: "meter-1", perm: domain.PermissionRead},
		{name: "stranger", caller: "mallory", deviceID: "meter-1", perm: domain.PermissionRead, wantErr: domain.ErrForbidden},
		{name: "missing device", caller: "alice", deviceID: "meter-9", perm: domain.PermissionRead, wantErr: domain.ErrNotFound},
		{name: "unowned device", caller: "alice", deviceID: "meter-2", perm: domain.PermissionWrite, wantErr: domain.ErrDeviceUnowned},
	}

	gate, _, _, _ := newTestGate(devices...)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			device, err := gate.Authorize(context.Background(), tc.caller, tc.deviceID, tc.perm)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if device.ID != tc.deviceID {
				t.Errorf("expected device %s, got %s", tc.deviceID, device.ID)
			}
		})
	}
}

func TestAuthorize_UnownedIsForbidden(t *testing.T) {
	gate, _, _, _ := newTestGate(domain.Device{ID: "meter-2"})

	_, err := gate.Authorize(context.Background(), "alice", "meter-2", domain.PermissionRead)

	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected unowned device to be a Forbidden error, got %v", err)
	}
}

func TestAuthorize_CacheHit(t *testing.T) {
	// Arrange
	ctx := context.Background()
	gate, repo, _, _ := newTestGate(domain.Device{ID: "meter-1", OwnerID: "alice"})

	if _, err := gate.Authorize(ctx, "alice", "meter-1", domain.PermissionRead); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	repo.FindByIDFunc = func(ctx context.Context, id string) (*domain.Device, error) {
		t.Error("repository should not be called on cache hit")
		return nil, nil
	}

	// Act
	_, err := gate.Authorize(ctx, "alice", "meter-1", domain.PermissionWrite)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestAuthorize_RepositoryError(t *testing.T) {
	gate, repo, _, _ := newTestGate()
	repo.FindByIDFunc = func(ctx context.Context, id string) (*domain.Device, error) {
		return nil, errors.New("connection refused")
	}

	_, err := gate.Authorize(context.Background(), "alice", "meter-1", domain.PermissionRead)

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
		t.Errorf("store failure must not look like an authorization verdict, got %v", err)
	}
}

func TestClaim_UnownedDevice(t *testing.T) {
	// Arrange
	ctx := context.Background()
	gate, _, cache, queue := newTestGate(domain.Device{ID: "meter-2"})

	// Prime the cache with the unowned record.
	if _, err := gate.Authorize(ctx, "alice", "meter-2", domain.PermissionWrite); !errors.Is(err, domain.ErrDeviceUnowned) {
		t.Fatalf("expected ErrDeviceUnowned, got %v", err)
	}

	// Act
	device, err := gate.Claim(ctx, "alice", "meter-2")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if device.OwnerID != "alice" {
		t.Errorf("expected owner alice, got %s", device.OwnerID)
	}
	if cache.Has("device:meter-2") {
		t.Error("expected cached device to be invalidated")
	}
	if msgs := queue.GetPublishedMessages(domain.EventDeviceClaimed); len(msgs) != 1 {
		t.Errorf("expected 1 device.claimed event, got %d", len(msgs))
	}
	if _, err := gate.Authorize(ctx, "alice", "meter-2", domain.PermissionWrite); err != nil {
		t.Errorf("expected claimed device to authorize, got %v", err)
	}
}

func TestClaim_OwnedByAnother(t *testing.T) {
	gate, _, _, queue := newTestGate(domain.Device{ID: "meter-1", OwnerID: "alice"})

	_, err := gate.Claim(context.Background(), "bob", "meter-1")

	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if msgs := queue.GetPublishedMessages(domain.EventDeviceClaimed); len(msgs) != 0 {
		t.Errorf("expected no events, got %d", len(msgs))
	}
}

func TestClaim_AlreadyOwnedByCaller(t *testing.T) {
	gate, repo, _, _ := newTestGate(domain.Device{ID: "meter-1", OwnerID: "alice"})
	repo.SetOwnerFunc = func(ctx context.Context, deviceID, ownerID string) (bool, error) {
		t.Error("SetOwner should not be called for an owned device")
		return false, nil
	}

	device, err := gate.Claim(context.Background(), "alice", "meter-1")

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if device.OwnerID != "alice" {
		t.Errorf("expected owner alice, got %s", device.OwnerID)
	}
}

func TestClaim_LostRace(t *testing.T) {
	// Arrange
	gate, repo, _, _ := newTestGate()
	calls := 0
	repo.FindByIDFunc = func(ctx context.Context, id string) (*domain.Device, error) {
		calls++
		if calls == 1 {
			return &domain.Device{ID: id}, nil
		}
		return &domain.Device{ID: id, OwnerID: "bob"}, nil
	}
	repo.SetOwnerFunc = func(ctx context.Context, deviceID, ownerID string) (bool, error) {
		return false, nil
	}

	// Act
	_, err := gate.Claim(context.Background(), "alice", "meter-3")

	// Assert
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden after losing the race, got %v", err)
	}
}

func TestClaim_MissingDevice(t *testing.T) {
	gate, _, _, _ := newTestGate()

	_, err := gate.Claim(context.Background(), "alice", "meter-9")

	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
