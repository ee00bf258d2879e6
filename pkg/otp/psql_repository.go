package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = `id, user_id, token_hash, method, expires_at, verified, verified_at, ip_address, user_agent, created_at`

func scanToken(row pgx.Row) (Token, error) {
	var t Token
	var method string
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &method, &t.ExpiresAt, &t.Verified, &t.VerifiedAt, &t.IPAddress, &t.UserAgent, &t.CreatedAt)
	t.Method = Method(method)
	return t, err
}

func (r *PostgresRepository) CreateToken(ctx context.Context, t Token) (Token, error) {
	query := `
		INSERT INTO otp_tokens (id, user_id, token_hash, method, expires_at, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + tokenColumns
	created, err := scanToken(r.db.QueryRow(ctx, query,
		t.ID, t.UserID, t.TokenHash, string(t.Method), t.ExpiresAt, t.IPAddress, t.UserAgent, t.CreatedAt,
	))
	if err != nil {
		return Token{}, fmt.Errorf("failed to create otp token: %w", err)
	}
	return created, nil
}

// ConsumeToken flips every live token of the user that carries tokenHash and
// returns the newest. Candidates are locked in a fixed order, so a concurrent
// caller waits on the first row and finds nothing left once it is released.
func (r *PostgresRepository) ConsumeToken(ctx context.Context, userID, tokenHash string, now time.Time) (Token, error) {
	query := `
		WITH candidates AS (
			SELECT id FROM otp_tokens
			WHERE user_id = $1 AND token_hash = $2 AND verified = false AND expires_at > $3
			ORDER BY created_at DESC, id
			FOR UPDATE
		)
		UPDATE otp_tokens SET verified = true, verified_at = $3
		WHERE id IN (SELECT id FROM candidates) AND verified = false
		RETURNING ` + tokenColumns
	rows, err := r.db.Query(ctx, query, userID, tokenHash, now)
	if err != nil {
		return Token{}, fmt.Errorf("failed to consume otp token: %w", err)
	}
	defer rows.Close()

	var newest Token
	var found bool
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return Token{}, fmt.Errorf("failed to scan otp token: %w", err)
		}
		if !found || t.CreatedAt.After(newest.CreatedAt) {
			newest, found = t, true
		}
	}
	if err := rows.Err(); err != nil {
		return Token{}, fmt.Errorf("failed to consume otp token: %w", err)
	}
	if !found {
		return Token{}, ErrNoMatchingToken
	}
	return newest, nil
}

func (r *PostgresRepository) DeleteOtherTokens(ctx context.Context, userID string, keep uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM otp_tokens WHERE user_id = $1 AND id <> $2`, userID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to delete otp tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) DeleteUserTokens(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM otp_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete otp tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM otp_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otp tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
