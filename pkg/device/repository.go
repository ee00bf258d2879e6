package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TrustedDevice lets a user skip OTP from a device they verified on before.
// (UserID, DeviceID) is unique.
type TrustedDevice struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// DeviceRepository defines the interface for trusted device storage operations
type DeviceRepository interface {
	// UpsertDevice inserts the device or, on (user_id, device_id) conflict,
	// refreshes name, IP, user agent and last_used_at. It must be a single atomic write.
	UpsertDevice(ctx context.Context, d TrustedDevice) (TrustedDevice, error)
	// TouchDevice sets last_used_at to now when the device exists and was used after notBefore.
	// It reports whether a row matched.
	TouchDevice(ctx context.Context, userID, deviceID string, now, notBefore time.Time) (bool, error)
	ListDevices(ctx context.Context, userID string) ([]TrustedDevice, error)
	DeleteDevice(ctx context.Context, userID, deviceID string) (bool, error)
	DeleteAllDevices(ctx context.Context, userID string) (int64, error)
}

const (
	DefaultTrustDays = 90 // trust lapses after 90 days without use
)

// DefaultTrustTTL is the default inactivity window after which a device is no longer trusted
var DefaultTrustTTL = time.Duration(DefaultTrustDays) * 24 * time.Hour
