package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-stepup/pkg/errors"
	"github.com/tendant/simple-stepup/pkg/utils"
)

const (
	DefaultTTL = 10 * time.Minute
	CodeLength = 6

	messageTemplate = "Your verification code is %s. It expires in %d minutes. Do not share it with anyone."
	emailSubject    = "Your verification code"
)

// Enrollment is the part of a user's two-factor settings the manager needs
type Enrollment struct {
	Enabled     bool
	Method      Method
	PhoneNumber string
	Email       string
}

// EnrollmentLookup returns the two-factor enrollment of a user
type EnrollmentLookup interface {
	GetEnrollment(ctx context.Context, userID string) (Enrollment, error)
}

// CodeSender delivers a message carrying the raw code
type CodeSender interface {
	SendSMS(ctx context.Context, userID, phone, message string) error
	SendEmail(ctx context.Context, userID, email, subject, body string) error
}

// IssueResult describes an issued code without revealing it
type IssueResult struct {
	TokenID     uuid.UUID
	Method      Method
	Destination string // masked
	ExpiresAt   time.Time
}

// Manager issues and verifies one-time codes
type Manager struct {
	repo        Repository
	enrollments EnrollmentLookup
	sender      CodeSender
	hasher      Hasher
	ttl         time.Duration
	now         func() time.Time
	generate    func() (string, error)
}

// Option configures a Manager
type Option func(*Manager)

// WithTTL sets how long an issued code stays valid
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithCodeGenerator replaces the random code generator, for tests
func WithCodeGenerator(generate func() (string, error)) Option {
	return func(m *Manager) {
		m.generate = generate
	}
}

func NewManager(repo Repository, enrollments EnrollmentLookup, sender CodeSender, hasher Hasher, opts ...Option) *Manager {
	m := &Manager{
		repo:        repo,
		enrollments: enrollments,
		sender:      sender,
		hasher:      hasher,
		ttl:         DefaultTTL,
		now:         func() time.Time { return time.Now().UTC() },
		generate:    GenerateCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the validity window of issued codes
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a new code for the user and sends it over the enrolled method.
// Concurrent calls each create an independent token.
func (m *Manager) Issue(ctx context.Context, userID, ipAddress, userAgent string) (IssueResult, error) {
	enrollment, err := m.enrollments.GetEnrollment(ctx, userID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCode2FANotEnabled) {
			return IssueResult{}, err
		}
		return IssueResult{}, apperrors.Persistence(err, "failed to load two-factor settings")
	}
	if !enrollment.Enabled {
		return IssueResult{}, apperrors.NotEnabled()
	}

	destination, err := destinationFor(enrollment)
	if err != nil {
		return IssueResult{}, err
	}

	code, err := m.generate()
	if err != nil {
		return IssueResult{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to generate code")
	}

	now := m.now()
	token, err := m.repo.CreateToken(ctx, Token{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: m.hasher.Hash(userID, code),
		Method:    enrollment.Method,
		ExpiresAt: now.Add(m.ttl),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: now,
	})
	if err != nil {
		return IssueResult{}, apperrors.Persistence(err, "failed to store otp token")
	}

	message := fmt.Sprintf(messageTemplate, code, int(m.ttl.Minutes()))
	switch enrollment.Method {
	case MethodSMS:
		err = m.sender.SendSMS(ctx, userID, destination, message)
	case MethodEmail:
		err = m.sender.SendEmail(ctx, userID, destination, emailSubject, message)
	}
	if err != nil {
		slog.Error("Failed to deliver otp", "userId", userID, "method", enrollment.Method, "tokenId", token.ID, "err", err)
		var coded *apperrors.Error
		if errors.As(err, &coded) {
			return IssueResult{}, err
		}
		return IssueResult{}, apperrors.Provider(string(enrollment.Method), err)
	}

	slog.Info("OTP issued", "userId", userID, "method", enrollment.Method, "tokenId", token.ID, "expiresAt", token.ExpiresAt)
	return IssueResult{
		TokenID:     token.ID,
		Method:      enrollment.Method,
		Destination: mask(enrollment.Method, destination),
		ExpiresAt:   token.ExpiresAt,
	}, nil
}

// Verify consumes the code. Wrong, expired and already used codes fail the same way.
func (m *Manager) Verify(ctx context.Context, userID, code string) error {
	if !isNumericCode(code) {
		slog.Warn("OTP verification failed", "userId", userID, "reason", "malformed")
		return apperrors.InvalidOrExpiredToken()
	}

	token, err := m.repo.ConsumeToken(ctx, userID, m.hasher.Hash(userID, code), m.now())
	if err != nil {
		if errors.Is(err, ErrNoMatchingToken) {
			slog.Warn("OTP verification failed", "userId", userID)
			return apperrors.InvalidOrExpiredToken()
		}
		return apperrors.Persistence(err, "failed to verify otp token")
	}

	if n, err := m.repo.DeleteOtherTokens(ctx, userID, token.ID); err != nil {
		slog.Warn("Failed to purge otp tokens", "userId", userID, "err", err)
	} else if n > 0 {
		slog.Debug("Purged otp tokens", "userId", userID, "count", n)
	}

	slog.Info("OTP verified", "userId", userID, "tokenId", token.ID)
	return nil
}

// Revoke deletes every outstanding token of the user
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if _, err := m.repo.DeleteUserTokens(ctx, userID); err != nil {
		return apperrors.Persistence(err, "failed to revoke otp tokens")
	}
	return nil
}

// CleanupExpiredTokens deletes tokens past their expiry
func (m *Manager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpiredTokens(ctx, m.now())
	if err != nil {
		return 0, apperrors.Persistence(err, "failed to clean up otp tokens")
	}
	if n > 0 {
		slog.Info("Expired otp tokens removed", "count", n)
	}
	return n, nil
}

// RunCleanup calls CleanupExpiredTokens every interval until ctx is done
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.CleanupExpiredTokens(ctx); err != nil {
				slog.Error("OTP cleanup failed", "err", err)
			}
		}
	}
}

// GenerateCode returns a uniformly random 6 digit code; leading zeros are kept
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func isNumericCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func destinationFor(e Enrollment) (string, error) {
	switch e.Method {
	case MethodSMS:
		if e.PhoneNumber == "" {
			return "", apperrors.Configuration("no phone number configured for sms codes")
		}
		return e.PhoneNumber, nil
	case MethodEmail:
		if e.Email == "" {
			return "", apperrors.Configuration("no email address configured for email codes")
		}
		return e.Email, nil
	default:
		return "", apperrors.Configuration(fmt.Sprintf("unsupported otp method %q", e.Method))
	}
}

func mask(method Method, destination string) string {
	if method == MethodEmail {
		return utils.MaskEmail(destination)
	}
	return utils.MaskPhone(destination)
}
