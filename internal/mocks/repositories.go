package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seu-repo/energy-sentinel/internal/domain"
)

// MockConsumptionRepository is a mock implementation of ConsumptionRepository.
// Without Func overrides it behaves as an in-memory store.
type MockConsumptionRepository struct {
	mu      sync.Mutex
	records map[string]domain.ConsumptionRecord

	SaveFunc                func(ctx context.Context, record *domain.ConsumptionRecord) error
	FindByIDFunc            func(ctx context.Context, id string) (*domain.ConsumptionRecord, error)
	FindByDeviceInRangeFunc func(ctx context.Context, deviceID string, from, to time.Time) ([]domain.ConsumptionRecord, error)
	CountByDeviceFunc       func(ctx context.Context, deviceID string, from, to time.Time) (int64, error)
	StatsFunc               func(ctx context.Context, deviceID string, from, to time.Time) (*domain.ConsumptionStats, error)
	UpdateAnomalyFunc       func(ctx context.Context, recordID string, flag *domain.AnomalyFlag) error
	ListAnomaliesFunc       func(ctx context.Context, deviceID string, from, to time.Time) ([]domain.ConsumptionRecord, error)
}

func NewMockConsumptionRepository(seed ...domain.ConsumptionRecord) *MockConsumptionRepository {
	m := &MockConsumptionRepository{records: make(map[string]domain.ConsumptionRecord)}
	for _, r := range seed {
		m.records[r.ID] = r
	}
	return m
}

// All returns a snapshot of the stored records ordered by timestamp.
func (m *MockConsumptionRepository) All() []domain.ConsumptionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ConsumptionRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (m *MockConsumptionRepository) Save(ctx context.Context, record *domain.ConsumptionRecord) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]domain.ConsumptionRecord)
	}
	m.records[record.ID] = *record
	return nil
}

func (m *MockConsumptionRepository) FindByID(ctx context.Context, id string) (*domain.ConsumptionRecord, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MockConsumptionRepository) FindByDeviceInRange(ctx context.Context, deviceID string, from, to time.Time) ([]domain.ConsumptionRecord, error) {
	if m.FindByDeviceInRangeFunc != nil {
		return m.FindByDeviceInRangeFunc(ctx, deviceID, from, to)
	}
	var out []domain.ConsumptionRecord
	for _, r := range m.All() {
		if r.DeviceID == deviceID && !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockConsumptionRepository) CountByDevice(ctx context.Context, deviceID string, from, to time.Time) (int64, error) {
	if m.CountByDeviceFunc != nil {
		return m.CountByDeviceFunc(ctx, deviceID, from, to)
	}
	recs, _ := m.FindByDeviceInRange(ctx, deviceID, from, to)
	return int64(len(recs)), nil
}

func (m *MockConsumptionRepository) Stats(ctx context.Context, deviceID string, from, to time.Time) (*domain.ConsumptionStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, deviceID, from, to)
	}
	return &domain.ConsumptionStats{DeviceID: deviceID, From: from, To: to}, nil
}

func (m *MockConsumptionRepository) UpdateAnomaly(ctx context.Context, recordID string, flag *domain.AnomalyFlag) error {
	if m.UpdateAnomalyFunc != nil {
		return m.UpdateAnomalyFunc(ctx, recordID, flag)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok {
		return domain.ErrNotFound
	}
	f := *flag
	r.Anomaly = &f
	m.records[recordID] = r
	return nil
}

func (m *MockConsumptionRepository) ListAnomalies(ctx context.Context, deviceID string, from, to time.Time) ([]domain.ConsumptionRecord, error) {
	if m.ListAnomaliesFunc != nil {
		return m.ListAnomaliesFunc(ctx, deviceID, from, to)
	}
	recs, _ := m.FindByDeviceInRange(ctx, deviceID, from, to)
	var out []domain.ConsumptionRecord
	for _, r := range recs {
		if r.Anomaly != nil && r.Anomaly.Detected {
			out = append(out, r)
		}
	}
	return out, nil
}

// MockDeviceRepository is a mock implementation of DeviceRepository
type MockDeviceRepository struct {
	mu      sync.Mutex
	devices map[string]domain.Device

	FindByIDFunc func(ctx context.Context, id string) (*domain.Device, error)
	SetOwnerFunc func(ctx context.Context, deviceID, ownerID string) (bool, error)
	ListIDsFunc  func(ctx context.Context) ([]string, error)
}

func NewMockDeviceRepository(devices ...domain.Device) *MockDeviceRepository {
	m := &MockDeviceRepository{devices: make(map[string]domain.Device)}
	for _, d := range devices {
		m.devices[d.ID] = d
	}
	return m
}

func (m *MockDeviceRepository) FindByID(ctx context.Context, id string) (*domain.Device, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *MockDeviceRepository) SetOwner(ctx context.Context, deviceID, ownerID string) (bool, error) {
	if m.SetOwnerFunc != nil {
		return m.SetOwnerFunc(ctx, deviceID, ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok || d.OwnerID != "" {
		return false, nil
	}
	d.OwnerID = ownerID
	m.devices[deviceID] = d
	return true, nil
}

func (m *MockDeviceRepository) ListIDs(ctx context.Context) ([]string, error) {
	if m.ListIDsFunc != nil {
		return m.ListIDsFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// MockModelRefRepository is a mock implementation of ModelRefRepository
type MockModelRefRepository struct {
	SaveFunc           func(ctx context.Context, ref *domain.ModelRef) error
	FindByDeviceIDFunc func(ctx context.Context, deviceID string) (*domain.ModelRef, error)
}

func (m *MockModelRefRepository) Save(ctx context.Context, ref *domain.ModelRef) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, ref)
	}
	return nil
}

func (m *MockModelRefRepository) FindByDeviceID(ctx context.Context, deviceID string) (*domain.ModelRef, error) {
	if m.FindByDeviceIDFunc != nil {
		return m.FindByDeviceIDFunc(ctx, deviceID)
	}
	return nil, nil
}
