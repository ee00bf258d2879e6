package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPConfigValidator(t *testing.T) {
	cfg := OTPConfig{TTL: 10 * time.Minute, CleanupInterval: time.Minute, Pepper: "short", BackupCodePepper: "short"}

	require.NoError(t, Validate(cfg.Validator(false)))

	err := Validate(cfg.Validator(true))
	require.Error(t, err)
	errs, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, errs, 2)

	cfg.TTL = 0
	assert.Error(t, Validate(cfg.Validator(false)))
}

func TestSMSConfigValidator(t *testing.T) {
	cfg := SMSConfig{
		BearerJSONURL:      "https://sms.example.com/send",
		QueryGatewayURL:    "https://gw.example.com/api",
		DefaultCountryCode: "233",
		Timeout:            5 * time.Second,
	}
	require.NoError(t, Validate(cfg.Validator()))

	cfg.QueryGatewayURL = "not a url"
	cfg.DefaultCountryCode = ""
	err := Validate(cfg.Validator())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMS_QUERY_GATEWAY_URL")
	assert.Contains(t, err.Error(), "SMS_DEFAULT_COUNTRY_CODE")
}

func TestDatabaseConfigToDbConfig(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, Database: "stepup_db", User: "u", Password: "p"}
	db := d.ToDbConfig()
	assert.Equal(t, "db", db.Host)
	assert.Equal(t, uint16(5433), db.Port)
	assert.Equal(t, "stepup_db", db.Database)
	assert.Equal(t, "u", db.User)
	assert.Equal(t, "p", db.Password)
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	assert.Equal(t, Production, GetEnvironment())
	assert.True(t, IsProduction())

	t.Setenv("APP_ENV", "")
	assert.Equal(t, Development, GetEnvironment())
	assert.False(t, IsProduction())
}

func TestTrustConfigDevicePersistence(t *testing.T) {
	assert.Equal(t, "postgres", TrustConfig{Enabled: true}.DevicePersistence("postgres"))
	assert.Equal(t, "noop", TrustConfig{Enabled: false}.DevicePersistence("postgres"))
}

func TestRateLimitConfig(t *testing.T) {
	cfg := RateLimitConfig{PerUserCapacity: 5, PerIPCapacity: 20, Window: 100 * time.Second, BucketTTL: time.Hour}.ToMiddlewareConfig()
	assert.Equal(t, 5, cfg.PerUserCapacity)
	assert.InDelta(t, 0.05, cfg.PerUserRefillRate, 1e-9)
	assert.InDelta(t, 0.2, cfg.PerIPRefillRate, 1e-9)
	assert.Equal(t, time.Hour, cfg.BucketTTL)
}
