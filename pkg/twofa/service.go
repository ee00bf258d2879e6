package twofa

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-stepup/pkg/backupcode"
	"github.com/tendant/simple-stepup/pkg/device"
	apperrors "github.com/tendant/simple-stepup/pkg/errors"
	"github.com/tendant/simple-stepup/pkg/otp"
	"github.com/tendant/simple-stepup/pkg/settings"
	"github.com/tendant/simple-stepup/pkg/utils"
)

// TwoFactorService is the step-up authentication surface used by the HTTP layer
type TwoFactorService interface {
	Enable2FA(ctx context.Context, req EnableRequest) ([]string, error)
	Disable2FA(ctx context.Context, userID string) error
	SendOTP(ctx context.Context, userID, ipAddress, userAgent string) (otp.IssueResult, error)
	VerifyOTP(ctx context.Context, req VerifyRequest) error
	VerifyBackupCode(ctx context.Context, userID, code string) (int, error)
	Is2FARequired(ctx context.Context, userID, deviceID string) (bool, error)
	AddTrustedDevice(ctx context.Context, userID, deviceID, name, ipAddress, userAgent string) (device.TrustedDevice, error)
	RemoveTrustedDevice(ctx context.Context, userID, deviceID string) error
	ListTrustedDevices(ctx context.Context, userID string) ([]device.TrustedDevice, error)
	Status(ctx context.Context, userID string) (Status, error)
	RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error)
	SetForceEnabled(ctx context.Context, userID string, force bool) error
}

// EnableRequest turns on 2FA. Empty contact fields fall back to the user's profile.
type EnableRequest struct {
	UserID      string
	Method      otp.Method
	PhoneNumber string
	Email       string
}

// VerifyRequest checks an OTP. With RememberDevice the device is trusted
// after a successful check.
type VerifyRequest struct {
	UserID         string
	Code           string
	RememberDevice bool
	DeviceID       string
	DeviceName     string
	IPAddress      string
	UserAgent      string
}

// Status summarizes the enrollment of a user without revealing secrets
type Status struct {
	Enabled              bool       `json:"enabled"`
	Method               otp.Method `json:"method,omitempty"`
	Destination          string     `json:"destination,omitempty"`
	BackupCodesRemaining int        `json:"backup_codes_remaining"`
	ForceEnabled         bool       `json:"force_enabled"`
}

type Option func(*TwoFaService)

// WithProfiles supplies contact details when Enable2FA is called without them
func WithProfiles(profiles settings.ProfileRepository) Option {
	return func(s *TwoFaService) {
		s.profiles = profiles
	}
}

func WithCountryCode(code string) Option {
	return func(s *TwoFaService) {
		s.countryCode = code
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *TwoFaService) {
		s.now = now
	}
}

// TwoFaService ties the OTP manager, backup code vault and trusted device
// registry to the stored enrollment
type TwoFaService struct {
	repo        SettingsRepository
	otp         *otp.Manager
	vault       *backupcode.Vault
	devices     *device.Registry
	profiles    settings.ProfileRepository
	countryCode string
	now         func() time.Time
}

func NewTwoFaService(repo SettingsRepository, otpManager *otp.Manager, vault *backupcode.Vault, devices *device.Registry, opts ...Option) *TwoFaService {
	s := &TwoFaService{
		repo:        repo,
		otp:         otpManager,
		vault:       vault,
		devices:     devices,
		countryCode: "233",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TwoFaService) profile(ctx context.Context, userID string) settings.Profile {
	if s.profiles == nil {
		return settings.Profile{}
	}
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, settings.ErrProfileNotFound) {
		slog.Warn("Failed to load profile for 2FA enrollment", "userId", userID, "err", err)
	}
	return p
}

// Enable2FA turns on 2FA and returns a new set of backup codes. The codes are
// only ever returned here and by RegenerateBackupCodes.
func (s *TwoFaService) Enable2FA(ctx context.Context, req EnableRequest) ([]string, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, apperrors.Validation("user_id", "is required")
	}
	if !req.Method.Valid() {
		return nil, apperrors.Validation("method", "must be sms or email")
	}

	stored := Settings{UserID: req.UserID, Method: req.Method, UpdatedAt: s.now()}
	profile := s.profile(ctx, req.UserID)

	switch req.Method {
	case otp.MethodSMS:
		phone := utils.FirstNonEmpty(req.PhoneNumber, profile.PhoneNumber)
		if phone == "" {
			return nil, apperrors.Configuration("a phone number is required for sms two-factor authentication")
		}
		normalized, err := utils.NormalizePhone(phone, s.countryCode)
		if err != nil {
			return nil, apperrors.Validation("phone_number", err.Error())
		}
		stored.PhoneNumber = normalized
		stored.Email = strings.TrimSpace(req.Email)
	case otp.MethodEmail:
		email := utils.FirstNonEmpty(req.Email, profile.Email)
		if email == "" {
			return nil, apperrors.Configuration("an email address is required for email two-factor authentication")
		}
		if !strings.Contains(email, "@") {
			return nil, apperrors.Validation("email", "must be an email address")
		}
		stored.Email = email
	}

	codes, hashes, err := s.vault.Generate()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to generate backup codes")
	}
	stored.BackupCodeHashes = hashes

	if _, err := s.repo.EnableSettings(ctx, stored); err != nil {
		return nil, apperrors.Persistence(err, "failed to enable two-factor authentication")
	}

	// codes sent to the old destination must not stay valid
	if err := s.otp.Revoke(ctx, req.UserID); err != nil {
		slog.Warn("Failed to revoke outstanding otp tokens", "userId", req.UserID, "err", err)
	}

	slog.Info("Two-factor authentication enabled", "userId", req.UserID, "method", req.Method)
	return codes, nil
}

// Disable2FA turns off 2FA, clears the backup codes and revokes outstanding
// codes and trusted devices. Accounts with ForceEnabled cannot disable.
func (s *TwoFaService) Disable2FA(ctx context.Context, userID string) error {
	current, err := s.repo.GetSettings(ctx, userID)
	if errors.Is(err, ErrSettingsNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Persistence(err, "failed to load two-factor settings")
	}
	if current.ForceEnabled {
		return apperrors.Forbidden("two-factor authentication is required for this account")
	}

	if err := s.repo.DisableSettings(ctx, userID, s.now()); err != nil {
		return apperrors.Persistence(err, "failed to disable two-factor authentication")
	}
	if err := s.otp.Revoke(ctx, userID); err != nil {
		slog.Warn("Failed to revoke otp tokens", "userId", userID, "err", err)
	}
	if _, err := s.devices.RevokeAll(ctx, userID); err != nil {
		slog.Warn("Failed to revoke trusted devices", "userId", userID, "err", err)
	}

	slog.Info("Two-factor authentication disabled", "userId", userID)
	return nil
}

func (s *TwoFaService) SendOTP(ctx context.Context, userID, ipAddress, userAgent string) (otp.IssueResult, error) {
	return s.otp.Issue(ctx, userID, ipAddress, userAgent)
}

func (s *TwoFaService) VerifyOTP(ctx context.Context, req VerifyRequest) error {
	if err := s.otp.Verify(ctx, req.UserID, req.Code); err != nil {
		return err
	}
	if req.RememberDevice && req.DeviceID != "" {
		if _, err := s.devices.Trust(ctx, req.UserID, req.DeviceID, req.DeviceName, req.IPAddress, req.UserAgent); err != nil {
			slog.Warn("Failed to trust device after verification", "userId", req.UserID, "err", err)
		}
	}
	return nil
}

// VerifyBackupCode consumes a backup code and returns how many are left
func (s *TwoFaService) VerifyBackupCode(ctx context.Context, userID, code string) (int, error) {
	return s.vault.Redeem(ctx, userID, code)
}

// Is2FARequired reports whether a login from deviceID needs a second factor.
// A trusted device skips it. On lookup errors it returns true with the error.
// A force-enabled account that has not enrolled yet is always required, so the
// login flow has to send it through enrollment.
func (s *TwoFaService) Is2FARequired(ctx context.Context, userID, deviceID string) (bool, error) {
	current, err := s.repo.GetSettings(ctx, userID)
	if errors.Is(err, ErrSettingsNotFound) {
		return false, nil
	}
	if err != nil {
		return true, apperrors.Persistence(err, "failed to load two-factor settings")
	}
	if !current.Enabled {
		if current.ForceEnabled {
			slog.Info("Two-factor enrollment pending for force-enabled account", "userId", userID)
			return true, nil
		}
		return false, nil
	}

	trusted, err := s.devices.IsTrusted(ctx, userID, deviceID)
	if err != nil {
		return true, err
	}
	return !trusted, nil
}

func (s *TwoFaService) AddTrustedDevice(ctx context.Context, userID, deviceID, name, ipAddress, userAgent string) (device.TrustedDevice, error) {
	return s.devices.Trust(ctx, userID, deviceID, name, ipAddress, userAgent)
}

func (s *TwoFaService) RemoveTrustedDevice(ctx context.Context, userID, deviceID string) error {
	return s.devices.Revoke(ctx, userID, deviceID)
}

func (s *TwoFaService) ListTrustedDevices(ctx context.Context, userID string) ([]device.TrustedDevice, error) {
	return s.devices.List(ctx, userID)
}

func (s *TwoFaService) Status(ctx context.Context, userID string) (Status, error) {
	current, err := s.repo.GetSettings(ctx, userID)
	if errors.Is(err, ErrSettingsNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, apperrors.Persistence(err, "failed to load two-factor settings")
	}

	status := Status{Enabled: current.Enabled, ForceEnabled: current.ForceEnabled}
	if current.Enabled {
		status.Method = current.Method
		status.BackupCodesRemaining = len(current.BackupCodeHashes)
		switch current.Method {
		case otp.MethodSMS:
			status.Destination = utils.MaskPhone(current.PhoneNumber)
		case otp.MethodEmail:
			status.Destination = utils.MaskEmail(current.Email)
		}
	}
	return status, nil
}

// RegenerateBackupCodes replaces every backup code of an enabled user
func (s *TwoFaService) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	codes, hashes, err := s.vault.Generate()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to generate backup codes")
	}

	replaced, err := s.repo.ReplaceBackupCodes(ctx, userID, hashes, s.now())
	if err != nil {
		return nil, apperrors.Persistence(err, "failed to store backup codes")
	}
	if !replaced {
		return nil, apperrors.NotEnabled()
	}

	slog.Info("Backup codes regenerated", "userId", userID)
	return codes, nil
}

func (s *TwoFaService) SetForceEnabled(ctx context.Context, userID string, force bool) error {
	if err := s.repo.SetForceEnabled(ctx, userID, force, s.now()); err != nil {
		return apperrors.Persistence(err, "failed to update two-factor policy")
	}
	slog.Info("Two-factor policy updated", "userId", userID, "forceEnabled", force)
	return nil
}
