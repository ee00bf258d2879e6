package device

import (
	"context"
	"time"
)

// NoOpDeviceRepository trusts nothing and stores nothing.
// Use it when "remember this device" is turned off so every login requires a code.
type NoOpDeviceRepository struct{}

// NewNoOpDeviceRepository creates a new no-op device repository.
func NewNoOpDeviceRepository() DeviceRepository {
	return &NoOpDeviceRepository{}
}

func (r *NoOpDeviceRepository) UpsertDevice(ctx context.Context, d TrustedDevice) (TrustedDevice, error) {
	return d, nil // Silently succeed
}

func (r *NoOpDeviceRepository) TouchDevice(ctx context.Context, userID, deviceID string, now, notBefore time.Time) (bool, error) {
	return false, nil
}

func (r *NoOpDeviceRepository) ListDevices(ctx context.Context, userID string) ([]TrustedDevice, error) {
	return []TrustedDevice{}, nil
}

func (r *NoOpDeviceRepository) DeleteDevice(ctx context.Context, userID, deviceID string) (bool, error) {
	return false, nil
}

func (r *NoOpDeviceRepository) DeleteAllDevices(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}
