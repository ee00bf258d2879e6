package settings

import (
	"context"
	"errors"
)

var (
	ErrSettingsNotFound = errors.New("notification settings not found")
	ErrProfileNotFound  = errors.New("user profile not found")
)

// SettingsRepository stores per-user notification settings
type SettingsRepository interface {
	GetSettings(ctx context.Context, userID string) (NotificationSettings, error)
	// CreateSettingsIfAbsent inserts s unless a row already exists and returns the stored row
	CreateSettingsIfAbsent(ctx context.Context, s NotificationSettings) (NotificationSettings, error)
	UpdateSettings(ctx context.Context, s NotificationSettings) (NotificationSettings, error)
}

// ProfileRepository reads the user's own contact information
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (Profile, error)
}

// SystemConfigRepository is the key/value store of fallback provider credentials
type SystemConfigRepository interface {
	GetSystemConfig(ctx context.Context) (map[string]string, error)
	SetSystemConfig(ctx context.Context, key, value string) error
}
