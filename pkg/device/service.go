package device

import (
	"context"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/tendant/simple-stepup/pkg/errors"
)

// Registry records and checks which devices a user trusts
type Registry struct {
	repo     DeviceRepository
	trustTTL time.Duration
	now      func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithTrustTTL sets how long an unused device stays trusted. Zero disables expiry.
func WithTrustTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.trustTTL = ttl
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates a trusted device registry
func NewRegistry(repo DeviceRepository, opts ...Option) *Registry {
	r := &Registry{
		repo:     repo,
		trustTTL: DefaultTrustTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Trust records the device as trusted. Calling it again refreshes the existing row.
func (r *Registry) Trust(ctx context.Context, userID, deviceID, name, ipAddress, userAgent string) (TrustedDevice, error) {
	if strings.TrimSpace(deviceID) == "" {
		return TrustedDevice{}, apperrors.Validation("device_id", "is required")
	}
	if name == "" {
		name = NameFromUserAgent(userAgent)
	}

	d, err := r.repo.UpsertDevice(ctx, TrustedDevice{
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceName: name,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		LastUsedAt: r.now(),
	})
	if err != nil {
		slog.Error("Failed to trust device", "userId", userID, "error", err)
		return TrustedDevice{}, apperrors.Persistence(err, "failed to trust device")
	}

	slog.Info("Device trusted", "userId", userID, "deviceName", d.DeviceName)
	return d, nil
}

// IsTrusted reports whether the device is trusted and, if so, refreshes its last use.
func (r *Registry) IsTrusted(ctx context.Context, userID, deviceID string) (bool, error) {
	if deviceID == "" {
		return false, nil
	}

	now := r.now()
	var notBefore time.Time
	if r.trustTTL > 0 {
		notBefore = now.Add(-r.trustTTL)
	}

	trusted, err := r.repo.TouchDevice(ctx, userID, deviceID, now, notBefore)
	if err != nil {
		return false, apperrors.Persistence(err, "failed to check trusted device")
	}
	return trusted, nil
}

// List returns the user's trusted devices, most recently used first
func (r *Registry) List(ctx context.Context, userID string) ([]TrustedDevice, error) {
	devices, err := r.repo.ListDevices(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to list trusted devices")
	}
	return devices, nil
}

// Revoke removes one trusted device
func (r *Registry) Revoke(ctx context.Context, userID, deviceID string) error {
	deleted, err := r.repo.DeleteDevice(ctx, userID, deviceID)
	if err != nil {
		return apperrors.Persistence(err, "failed to revoke trusted device")
	}
	if !deleted {
		return apperrors.NotFound("trusted device", deviceID)
	}
	slog.Info("Trusted device revoked", "userId", userID)
	return nil
}

// RevokeAll removes every trusted device of the user and returns how many were removed
func (r *Registry) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := r.repo.DeleteAllDevices(ctx, userID)
	if err != nil {
		return 0, apperrors.Persistence(err, "failed to revoke trusted devices")
	}
	slog.Info("All trusted devices revoked", "userId", userID, "count", n)
	return n, nil
}
