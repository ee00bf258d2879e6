package twofa

import (
	"context"
	"errors"
	"time"

	"github.com/tendant/simple-stepup/pkg/otp"
)

var ErrSettingsNotFound = errors.New("two-factor settings not found")

// Settings is the two-factor enrollment of one user. BackupCodeHashes holds
// the hashes of the unused backup codes.
type Settings struct {
	UserID           string
	Enabled          bool
	Method           otp.Method
	PhoneNumber      string
	Email            string
	BackupCodeHashes []string
	ForceEnabled     bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SettingsRepository stores two-factor enrollments. Every method is a single
// write so concurrent requests for one user cannot interleave.
type SettingsRepository interface {
	GetSettings(ctx context.Context, userID string) (Settings, error)
	// EnableSettings turns 2FA on with the given method and contact and
	// replaces the whole backup code set. ForceEnabled is kept.
	EnableSettings(ctx context.Context, s Settings) (Settings, error)
	// DisableSettings turns 2FA off and clears the backup codes
	DisableSettings(ctx context.Context, userID string, now time.Time) error
	// ReplaceBackupCodes swaps the code set of an enabled user and reports
	// whether the user was enabled
	ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, now time.Time) (bool, error)
	// RemoveBackupCode implements backupcode.Store
	RemoveBackupCode(ctx context.Context, userID, hash string) (int, error)
	SetForceEnabled(ctx context.Context, userID string, force bool, now time.Time) error
}

type enrollmentLookup struct {
	repo SettingsRepository
}

// NewEnrollmentLookup exposes a SettingsRepository as an otp.EnrollmentLookup.
// Users without settings are reported as not enrolled.
func NewEnrollmentLookup(repo SettingsRepository) otp.EnrollmentLookup {
	return enrollmentLookup{repo: repo}
}

func (l enrollmentLookup) GetEnrollment(ctx context.Context, userID string) (otp.Enrollment, error) {
	s, err := l.repo.GetSettings(ctx, userID)
	if errors.Is(err, ErrSettingsNotFound) {
		return otp.Enrollment{}, nil
	}
	if err != nil {
		return otp.Enrollment{}, err
	}
	return otp.Enrollment{
		Enabled:     s.Enabled,
		Method:      s.Method,
		PhoneNumber: s.PhoneNumber,
		Email:       s.Email,
	}, nil
}
