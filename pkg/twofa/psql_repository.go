package twofa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tendant/simple-stepup/pkg/backupcode"
	"github.com/tendant/simple-stepup/pkg/otp"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresSettingsRepository implements SettingsRepository using PostgreSQL
type PostgresSettingsRepository struct {
	db DBTX
}

// NewPostgresSettingsRepository creates a new PostgreSQL-based 2FA settings repository
func NewPostgresSettingsRepository(db DBTX) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

const settingsColumns = `user_id, enabled, method, phone_number, email, backup_code_hashes, force_enabled, created_at, updated_at`

func scanSettings(row pgx.Row) (Settings, error) {
	var s Settings
	var method string
	err := row.Scan(&s.UserID, &s.Enabled, &method, &s.PhoneNumber, &s.Email, &s.BackupCodeHashes, &s.ForceEnabled, &s.CreatedAt, &s.UpdatedAt)
	s.Method = otp.Method(method)
	return s, err
}

func (r *PostgresSettingsRepository) GetSettings(ctx context.Context, userID string) (Settings, error) {
	s, err := scanSettings(r.db.QueryRow(ctx, `SELECT `+settingsColumns+` FROM two_factor_settings WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, ErrSettingsNotFound
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to get two-factor settings: %w", err)
	}
	return s, nil
}

func (r *PostgresSettingsRepository) EnableSettings(ctx context.Context, s Settings) (Settings, error) {
	if s.BackupCodeHashes == nil {
		s.BackupCodeHashes = []string{}
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO two_factor_settings (user_id, enabled, method, phone_number, email, backup_code_hashes, created_at, updated_at)
		VALUES ($1, TRUE, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = TRUE,
			method = EXCLUDED.method,
			phone_number = EXCLUDED.phone_number,
			email = EXCLUDED.email,
			backup_code_hashes = EXCLUDED.backup_code_hashes,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + settingsColumns
	stored, err := scanSettings(r.db.QueryRow(ctx, query,
		s.UserID, string(s.Method), s.PhoneNumber, s.Email, s.BackupCodeHashes, s.UpdatedAt,
	))
	if err != nil {
		return Settings{}, fmt.Errorf("failed to enable two-factor settings: %w", err)
	}
	return stored, nil
}

func (r *PostgresSettingsRepository) DisableSettings(ctx context.Context, userID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE two_factor_settings SET enabled = FALSE, backup_code_hashes = '{}', updated_at = $2
		WHERE user_id = $1
	`, userID, now)
	if err != nil {
		return fmt.Errorf("failed to disable two-factor settings: %w", err)
	}
	return nil
}

func (r *PostgresSettingsRepository) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE two_factor_settings SET backup_code_hashes = $2, updated_at = $3
		WHERE user_id = $1 AND enabled
	`, userID, hashes, now)
	if err != nil {
		return false, fmt.Errorf("failed to replace backup codes: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveBackupCode checks membership and removes the hash in one statement,
// so a code can only be redeemed once under concurrency.
func (r *PostgresSettingsRepository) RemoveBackupCode(ctx context.Context, userID, hash string) (int, error) {
	var remaining int
	err := r.db.QueryRow(ctx, `
		UPDATE two_factor_settings
		SET backup_code_hashes = array_remove(backup_code_hashes, $2), updated_at = now()
		WHERE user_id = $1 AND enabled AND $2 = ANY(backup_code_hashes)
		RETURNING cardinality(backup_code_hashes)
	`, userID, hash).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, backupcode.ErrCodeNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to remove backup code: %w", err)
	}
	return remaining, nil
}

func (r *PostgresSettingsRepository) SetForceEnabled(ctx context.Context, userID string, force bool, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO two_factor_settings (user_id, force_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET force_enabled = EXCLUDED.force_enabled, updated_at = EXCLUDED.updated_at
	`, userID, force, now)
	if err != nil {
		return fmt.Errorf("failed to set force enabled: %w", err)
	}
	return nil
}
