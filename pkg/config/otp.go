package config

import "time"

// OTPConfig holds one-time code and backup code settings
type OTPConfig struct {
	TTL              time.Duration `env:"OTP_TTL" env-default:"10m"`
	Pepper           string        `env:"OTP_PEPPER" env-default:"change-me-otp-pepper"`
	CleanupInterval  time.Duration `env:"OTP_CLEANUP_INTERVAL" env-default:"15m"`
	BackupCodePepper string        `env:"BACKUP_CODE_PEPPER" env-default:"change-me-backup-pepper"`
}

// TrustConfig holds trusted device settings.
// With Enabled false no device is remembered and every login needs a code.
type TrustConfig struct {
	Enabled bool          `env:"TRUSTED_DEVICES_ENABLED" env-default:"true"`
	TTL     time.Duration `env:"TRUSTED_DEVICE_TTL" env-default:"2160h"`
}

// DevicePersistence picks the device store type for the given persistence type
func (t TrustConfig) DevicePersistence(persistence string) string {
	if !t.Enabled {
		return "noop"
	}
	return persistence
}
