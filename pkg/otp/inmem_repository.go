package otp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository implements Repository in memory. The mutex makes
// ConsumeToken a single conditional write.
type InMemRepository struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]Token
}

func NewInMemRepository() *InMemRepository {
	return &InMemRepository{tokens: make(map[uuid.UUID]Token)}
}

func (r *InMemRepository) CreateToken(ctx context.Context, t Token) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	r.tokens[t.ID] = t
	return t, nil
}

func (r *InMemRepository) ConsumeToken(ctx context.Context, userID, tokenHash string, now time.Time) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var match *Token
	for id, t := range r.tokens {
		if t.UserID != userID || t.TokenHash != tokenHash || t.Verified || !t.ExpiresAt.After(now) {
			continue
		}
		verifiedAt := now
		t.Verified = true
		t.VerifiedAt = &verifiedAt
		r.tokens[id] = t
		if match == nil || t.CreatedAt.After(match.CreatedAt) {
			consumed := t
			match = &consumed
		}
	}
	if match == nil {
		return Token{}, ErrNoMatchingToken
	}
	return *match, nil
}

func (r *InMemRepository) DeleteOtherTokens(ctx context.Context, userID string, keep uuid.UUID) (int64, error) {
	return r.deleteWhere(func(t Token) bool { return t.UserID == userID && t.ID != keep }), nil
}

func (r *InMemRepository) DeleteUserTokens(ctx context.Context, userID string) (int64, error) {
	return r.deleteWhere(func(t Token) bool { return t.UserID == userID }), nil
}

func (r *InMemRepository) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(t Token) bool { return !t.ExpiresAt.After(now) }), nil
}

// Tokens returns a snapshot of the user's tokens
func (r *InMemRepository) Tokens(userID string) []Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Token
	for _, t := range r.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (r *InMemRepository) deleteWhere(match func(Token) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.tokens {
		if match(t) {
			delete(r.tokens, id)
			n++
		}
	}
	return n
}
