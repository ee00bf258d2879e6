package otp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Method is the channel a code is delivered over
type Method string

const (
	MethodSMS   Method = "sms"
	MethodEmail Method = "email"
)

// Valid reports whether m is a supported delivery method
func (m Method) Valid() bool {
	return m == MethodSMS || m == MethodEmail
}

// Token is a stored one-time code. Only the hash of the code is kept.
type Token struct {
	ID         uuid.UUID
	UserID     string
	TokenHash  string
	Method     Method
	ExpiresAt  time.Time
	Verified   bool
	VerifiedAt *time.Time
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// ErrNoMatchingToken is returned by ConsumeToken when no live token matches
var ErrNoMatchingToken = errors.New("no matching otp token")

// Repository stores OTP tokens
type Repository interface {
	CreateToken(ctx context.Context, t Token) (Token, error)
	// ConsumeToken marks every unverified, unexpired token of the user with the
	// given hash as verified and returns the newest. Finding and marking happen in
	// a single conditional write, so a code value succeeds at most once even when
	// it was issued twice.
	ConsumeToken(ctx context.Context, userID, tokenHash string, now time.Time) (Token, error)
	// DeleteOtherTokens removes every token of the user except keep
	DeleteOtherTokens(ctx context.Context, userID string, keep uuid.UUID) (int64, error)
	DeleteUserTokens(ctx context.Context, userID string) (int64, error)
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}
