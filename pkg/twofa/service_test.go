package twofa

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-stepup/pkg/backupcode"
	"github.com/tendant/simple-stepup/pkg/device"
	apperrors "github.com/tendant/simple-stepup/pkg/errors"
	"github.com/tendant/simple-stepup/pkg/notification"
	"github.com/tendant/simple-stepup/pkg/otp"
	"github.com/tendant/simple-stepup/pkg/settings"
	"github.com/tendant/simple-stepup/pkg/sms"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureProvider records every SMS instead of calling a gateway
type captureProvider struct {
	mu       sync.Mutex
	phones   []string
	messages []string
}

func (p *captureProvider) Name() string { return "capture" }

func (p *captureProvider) Send(ctx context.Context, phone, message string, creds sms.Credentials) sms.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phones = append(p.phones, phone)
	p.messages = append(p.messages, message)
	return sms.Result{Success: true, Provider: p.Name()}
}

var sixDigits = regexp.MustCompile(`\b\d{6}\b`)

func (p *captureProvider) lastCode(t *testing.T) string {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.messages)
	code := sixDigits.FindString(p.messages[len(p.messages)-1])
	require.Len(t, code, 6)
	return code
}

type captureEmail struct {
	mu     sync.Mutex
	bodies []string
}

func (e *captureEmail) SendEmail(ctx context.Context, to string, msg notification.EmailMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bodies = append(e.bodies, msg.Text)
	return nil
}

type fixture struct {
	service  *TwoFaService
	repo     *InMemSettingsRepository
	provider *captureProvider
	email    *captureEmail
	profiles *settings.InMemRepository
	clock    *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		repo:     NewInMemSettingsRepository(),
		provider: &captureProvider{},
		email:    &captureEmail{},
		profiles: settings.NewInMemRepository(),
		clock:    &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, f.profiles.SetSystemConfig(ctx, settings.KeySMSProvider, "capture"))
	require.NoError(t, f.profiles.SetSystemConfig(ctx, settings.KeySMSAPIKey, "system-key"))
	require.NoError(t, f.profiles.UpsertProfile(ctx, settings.Profile{UserID: "kofi", Email: "kofi@example.com", PhoneNumber: "0201112222"}))

	resolver := settings.NewResolver(settings.Repositories{Settings: f.profiles, Profiles: f.profiles, System: f.profiles})
	dispatcher := notification.NewDispatcher(resolver, sms.NewRegistry(f.provider), notification.NewInMemRecordRepository(),
		notification.WithEmailSender(f.email), notification.WithCountryCode("233"))

	manager := otp.NewManager(otp.NewInMemRepository(), NewEnrollmentLookup(f.repo), dispatcher, otp.NewHMACHasher("test-pepper"),
		otp.WithClock(f.clock.Now))
	vault := backupcode.NewVault(backupcode.NewArgon2Hasher("test-pepper"), f.repo)
	registry := device.NewRegistry(device.NewInMemDeviceRepository(), device.WithClock(f.clock.Now))

	f.service = NewTwoFaService(f.repo, manager, vault, registry,
		WithProfiles(f.profiles), WithCountryCode("233"), WithClock(f.clock.Now))
	return f
}

func TestScenario_SMSEnrollmentAndVerification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	codes, err := f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: otp.MethodSMS, PhoneNumber: "0241234567"})
	require.NoError(t, err)
	assert.Len(t, codes, backupcode.CodeCount)

	result, err := f.service.SendOTP(ctx, "ama", "203.0.113.7", "Mozilla/5.0")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), result.ExpiresAt)
	assert.Equal(t, otp.MethodSMS, result.Method)
	assert.NotContains(t, result.Destination, "0241234567")

	code := f.provider.lastCode(t)
	assert.Regexp(t, `^\d{6}$`, code)
	assert.Equal(t, "233241234567", f.provider.phones[0])

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err = f.service.VerifyOTP(ctx, VerifyRequest{UserID: "ama", Code: wrong})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeOTPInvalidOrExpired))

	require.NoError(t, f.service.VerifyOTP(ctx, VerifyRequest{UserID: "ama", Code: code}))

	err = f.service.VerifyOTP(ctx, VerifyRequest{UserID: "ama", Code: code})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeOTPInvalidOrExpired))
	assert.Equal(t, apperrors.InvalidCodeMessage, apperrors.PublicMessage(err))
}

func TestEnable2FA_ContactFallsBackToProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Enable2FA(ctx, EnableRequest{UserID: "kofi", Method: otp.MethodSMS})
	require.NoError(t, err)
	stored, err := f.repo.GetSettings(ctx, "kofi")
	require.NoError(t, err)
	assert.Equal(t, "233201112222", stored.PhoneNumber)

	_, err = f.service.Enable2FA(ctx, EnableRequest{UserID: "kofi", Method: otp.MethodEmail})
	require.NoError(t, err)
	stored, err = f.repo.GetSettings(ctx, "kofi")
	require.NoError(t, err)
	assert.Equal(t, otp.MethodEmail, stored.Method)
	assert.Equal(t, "kofi@example.com", stored.Email)

	_, err = f.service.SendOTP(ctx, "kofi", "", "")
	require.NoError(t, err)
	require.Len(t, f.email.bodies, 1)
	assert.Regexp(t, `\b\d{6}\b`, f.email.bodies[0])
}

func TestEnable2FA_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Enable2FA(ctx, EnableRequest{UserID: "nobody", Method: otp.MethodSMS})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfiguration))

	_, err = f.service.Enable2FA(ctx, EnableRequest{UserID: "nobody", Method: otp.MethodEmail})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfiguration))

	_, err = f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: otp.MethodSMS, PhoneNumber: "call me"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	_, err = f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: "totp", PhoneNumber: "0241234567"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
}

func TestSendOTP_NotEnabled(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SendOTP(context.Background(), "ama", "", "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCode2FANotEnabled))
	assert.Empty(t, f.provider.messages)
}

func TestVerifyOTP_Expired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: otp.MethodSMS, PhoneNumber: "0241234567"})
	require.NoError(t, err)

	_, err = f.service.SendOTP(ctx, "ama", "", "")
	require.NoError(t, err)
	code := f.provider.lastCode(t)

	f.clock.Advance(10*time.Minute + time.Second)
	err = f.service.VerifyOTP(ctx, VerifyRequest{UserID: "ama", Code: code})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeOTPInvalidOrExpired))
}

func TestBackupCodes_SingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	codes, err := f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: otp.MethodSMS, PhoneNumber: "0241234567"})
	require.NoError(t, err)

	for i, code := range codes {
		remaining, err := f.service.VerifyBackupCode(ctx, "ama", code)
		require.NoError(t, err)
		assert.Equal(t, len(codes)-i-1, remaining)

		_, err = f.service.VerifyBackupCode(ctx, "ama", code)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBackupCodeInvalid))
	}

	_, err = f.service.VerifyBackupCode(ctx, "ama", "ABCD-EFGH")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBackupCodeInvalid))
}

func TestBackupCodes_LowercaseAndSpacing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	codes, err := f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: otp.MethodSMS, PhoneNumber: "0241234567"})
	require.NoError(t, err)

	sloppy := " " + codes[0][:4] + " " + codes[0][5:] + " "
	remaining, err := f.service.VerifyBackupCode(ctx, "ama", sloppy)
	require.NoError(t, err)
	assert.Equal(t, backupcode.CodeCount-1, remaining)
}

func TestBackupCodes_ConcurrentRedeem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	codes, err := f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: otp.MethodSMS, PhoneNumber: "0241234567"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.VerifyBackupCode(ctx, "ama", codes[0]); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestRegenerateBackupCodes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.RegenerateBackupCodes(ctx, "ama")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCode2FANotEnabled))

	old, err := f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: otp.MethodSMS, PhoneNumber: "0241234567"})
	require.NoError(t, err)

	fresh, err := f.service.RegenerateBackupCodes(ctx, "ama")
	require.NoError(t, err)
	assert.Len(t, fresh, backupcode.CodeCount)

	_, err = f.service.VerifyBackupCode(ctx, "ama", old[0])
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBackupCodeInvalid))
	_, err = f.service.VerifyBackupCode(ctx, "ama", fresh[0])
	assert.NoError(t, err)
}

func TestIs2FARequired_TrustedDevice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deviceID := device.Fingerprint("Mozilla/5.0", "203.0.113.7")

	required, err := f.service.Is2FARequired(ctx, "ama", deviceID)
	require.NoError(t, err)
	assert.False(t, required)

	_, err = f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: otp.MethodSMS, PhoneNumber: "0241234567"})
	require.NoError(t, err)

	required, err = f.service.Is2FARequired(ctx, "ama", deviceID)
	require.NoError(t, err)
	assert.True(t, required)

	_, err = f.service.SendOTP(ctx, "ama", "203.0.113.7", "Mozilla/5.0")
	require.NoError(t, err)
	require.NoError(t, f.service.VerifyOTP(ctx, VerifyRequest{
		UserID:         "ama",
		Code:           f.provider.lastCode(t),
		RememberDevice: true,
		DeviceID:       deviceID,
		IPAddress:      "203.0.113.7",
		UserAgent:      "Mozilla/5.0",
	}))

	required, err = f.service.Is2FARequired(ctx, "ama", deviceID)
	require.NoError(t, err)
	assert.False(t, required)

	devices, err := f.service.ListTrustedDevices(ctx, "ama")
	require.NoError(t, err)
	require.Len(t, devices, 1)

	// trust lapses after the inactivity window
	f.clock.Advance(device.DefaultTrustTTL + time.Hour)
	required, err = f.service.Is2FARequired(ctx, "ama", deviceID)
	require.NoError(t, err)
	assert.True(t, required)

	require.NoError(t, f.service.RemoveTrustedDevice(ctx, "ama", deviceID))
	err = f.service.RemoveTrustedDevice(ctx, "ama", deviceID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestAddTrustedDevice_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.AddTrustedDevice(ctx, "ama", "dev-1", "Laptop", "10.0.0.1", "Mozilla/5.0")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.service.AddTrustedDevice(ctx, "ama", "dev-1", "", "10.0.0.2", "Mozilla/5.0")
	require.NoError(t, err)
	assert.Equal(t, "Laptop", second.DeviceName)
	assert.Equal(t, "10.0.0.2", second.IPAddress)

	devices, err := f.service.ListTrustedDevices(ctx, "ama")
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestDisable2FA(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.service.Disable2FA(ctx, "ama"))

	codes, err := f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: otp.MethodSMS, PhoneNumber: "0241234567"})
	require.NoError(t, err)
	_, err = f.service.SendOTP(ctx, "ama", "", "")
	require.NoError(t, err)
	code := f.provider.lastCode(t)
	_, err = f.service.AddTrustedDevice(ctx, "ama", "dev-1", "Laptop", "10.0.0.1", "Mozilla/5.0")
	require.NoError(t, err)

	require.NoError(t, f.service.Disable2FA(ctx, "ama"))

	status, err := f.service.Status(ctx, "ama")
	require.NoError(t, err)
	assert.False(t, status.Enabled)

	_, err = f.service.VerifyBackupCode(ctx, "ama", codes[0])
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBackupCodeInvalid))
	err = f.service.VerifyOTP(ctx, VerifyRequest{UserID: "ama", Code: code})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeOTPInvalidOrExpired))

	devices, err := f.service.ListTrustedDevices(ctx, "ama")
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestForceEnabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.service.SetForceEnabled(ctx, "ama", true))
	_, err := f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: otp.MethodSMS, PhoneNumber: "0241234567"})
	require.NoError(t, err)

	status, err := f.service.Status(ctx, "ama")
	require.NoError(t, err)
	assert.True(t, status.ForceEnabled)

	err = f.service.Disable2FA(ctx, "ama")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))

	require.NoError(t, f.service.SetForceEnabled(ctx, "ama", false))
	assert.NoError(t, f.service.Disable2FA(ctx, "ama"))
}

func TestForceEnabled_RequiredBeforeEnrollment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.service.SetForceEnabled(ctx, "boss", true))
	status, err := f.service.Status(ctx, "boss")
	require.NoError(t, err)
	require.False(t, status.Enabled)

	required, err := f.service.Is2FARequired(ctx, "boss", "")
	require.NoError(t, err)
	assert.True(t, required)

	// clearing the flag on an unenrolled account lifts the requirement
	require.NoError(t, f.service.SetForceEnabled(ctx, "boss", false))
	required, err = f.service.Is2FARequired(ctx, "boss", "")
	require.NoError(t, err)
	assert.False(t, required)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	status, err := f.service.Status(ctx, "ama")
	require.NoError(t, err)
	assert.Equal(t, Status{}, status)

	codes, err := f.service.Enable2FA(ctx, EnableRequest{UserID: "ama", Method: otp.MethodSMS, PhoneNumber: "0241234567"})
	require.NoError(t, err)
	_, err = f.service.VerifyBackupCode(ctx, "ama", codes[3])
	require.NoError(t, err)

	status, err = f.service.Status(ctx, "ama")
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Equal(t, otp.MethodSMS, status.Method)
	assert.Equal(t, "********4567", status.Destination)
	assert.Equal(t, backupcode.CodeCount-1, status.BackupCodesRemaining)
}
