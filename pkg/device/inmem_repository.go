package device

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemDeviceRepository implements DeviceRepository using an in-memory map
type InMemDeviceRepository struct {
	devices map[string]TrustedDevice
	mu      sync.Mutex
}

// NewInMemDeviceRepository creates a new in-memory device repository
func NewInMemDeviceRepository() *InMemDeviceRepository {
	return &InMemDeviceRepository{
		devices: make(map[string]TrustedDevice),
	}
}

func deviceKey(userID, deviceID string) string {
	return userID + "|" + deviceID
}

func (r *InMemDeviceRepository) UpsertDevice(ctx context.Context, d TrustedDevice) (TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.LastUsedAt.IsZero() {
		d.LastUsedAt = time.Now().UTC()
	}

	key := deviceKey(d.UserID, d.DeviceID)
	if existing, ok := r.devices[key]; ok {
		if d.DeviceName != "" {
			existing.DeviceName = d.DeviceName
		}
		existing.IPAddress = d.IPAddress
		existing.UserAgent = d.UserAgent
		existing.LastUsedAt = d.LastUsedAt
		r.devices[key] = existing
		return existing, nil
	}

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = d.LastUsedAt
	r.devices[key] = d
	return d, nil
}

func (r *InMemDeviceRepository) TouchDevice(ctx context.Context, userID, deviceID string, now, notBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := deviceKey(userID, deviceID)
	d, ok := r.devices[key]
	if !ok || !d.LastUsedAt.After(notBefore) {
		return false, nil
	}
	d.LastUsedAt = now
	r.devices[key] = d
	return true, nil
}

func (r *InMemDeviceRepository) ListDevices(ctx context.Context, userID string) ([]TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := []TrustedDevice{}
	for _, d := range r.devices {
		if d.UserID == userID {
			devices = append(devices, d)
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].LastUsedAt.After(devices[j].LastUsedAt)
	})
	return devices, nil
}

func (r *InMemDeviceRepository) DeleteDevice(ctx context.Context, userID, deviceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := deviceKey(userID, deviceID)
	if _, ok := r.devices[key]; !ok {
		return false, nil
	}
	delete(r.devices, key)
	return true, nil
}

func (r *InMemDeviceRepository) DeleteAllDevices(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, d := range r.devices {
		if d.UserID == userID {
			delete(r.devices, key)
			n++
		}
	}
	return n, nil
}
