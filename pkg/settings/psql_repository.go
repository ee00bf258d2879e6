package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const settingsColumns = `user_id, email_enabled, sms_enabled, push_enabled,
	login_alerts, transaction_alerts, low_balance_alerts, low_balance_threshold,
	email_address, phone_number, sms_provider, sms_api_key, sms_api_secret, sms_sender_id,
	created_at, updated_at`

// PostgresRepository implements all three repositories on PostgreSQL
type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanSettings(row pgx.Row) (NotificationSettings, error) {
	var s NotificationSettings
	err := row.Scan(
		&s.UserID, &s.EmailEnabled, &s.SMSEnabled, &s.PushEnabled,
		&s.LoginAlerts, &s.TransactionAlerts, &s.LowBalanceAlerts, &s.LowBalanceThreshold,
		&s.EmailAddress, &s.PhoneNumber, &s.SMSProvider, &s.SMSAPIKey, &s.SMSAPISecret, &s.SMSSenderID,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (r *PostgresRepository) GetSettings(ctx context.Context, userID string) (NotificationSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM notification_settings WHERE user_id = $1`
	s, err := scanSettings(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotificationSettings{}, ErrSettingsNotFound
		}
		return NotificationSettings{}, fmt.Errorf("failed to get notification settings: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) CreateSettingsIfAbsent(ctx context.Context, s NotificationSettings) (NotificationSettings, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO notification_settings (` + settingsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		s.UserID, s.EmailEnabled, s.SMSEnabled, s.PushEnabled,
		s.LoginAlerts, s.TransactionAlerts, s.LowBalanceAlerts, s.LowBalanceThreshold,
		s.EmailAddress, s.PhoneNumber, s.SMSProvider, s.SMSAPIKey, s.SMSAPISecret, s.SMSSenderID,
		now,
	)
	if err != nil {
		return NotificationSettings{}, fmt.Errorf("failed to create notification settings: %w", err)
	}
	// a concurrent first resolution may have won the insert
	return r.GetSettings(ctx, s.UserID)
}

func (r *PostgresRepository) UpdateSettings(ctx context.Context, s NotificationSettings) (NotificationSettings, error) {
	query := `
		UPDATE notification_settings SET
			email_enabled = $2, sms_enabled = $3, push_enabled = $4,
			login_alerts = $5, transaction_alerts = $6, low_balance_alerts = $7, low_balance_threshold = $8,
			email_address = $9, phone_number = $10,
			sms_provider = $11, sms_api_key = $12, sms_api_secret = $13, sms_sender_id = $14,
			updated_at = $15
		WHERE user_id = $1
		RETURNING ` + settingsColumns
	updated, err := scanSettings(r.db.QueryRow(ctx, query,
		s.UserID, s.EmailEnabled, s.SMSEnabled, s.PushEnabled,
		s.LoginAlerts, s.TransactionAlerts, s.LowBalanceAlerts, s.LowBalanceThreshold,
		s.EmailAddress, s.PhoneNumber, s.SMSProvider, s.SMSAPIKey, s.SMSAPISecret, s.SMSSenderID,
		time.Now().UTC(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotificationSettings{}, ErrSettingsNotFound
		}
		return NotificationSettings{}, fmt.Errorf("failed to update notification settings: %w", err)
	}
	return updated, nil
}

func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := r.db.QueryRow(ctx,
		`SELECT user_id, name, email, phone_number FROM user_profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Name, &p.Email, &p.PhoneNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, fmt.Errorf("failed to get user profile: %w", err)
	}
	return p, nil
}

// UpsertProfile is used by provisioning and tests; profiles are owned by the account service
func (r *PostgresRepository) UpsertProfile(ctx context.Context, p Profile) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_profiles (user_id, name, email, phone_number)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, phone_number = EXCLUDED.phone_number
	`, p.UserID, p.Name, p.Email, p.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to upsert user profile: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetSystemConfig(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM system_notification_config`)
	if err != nil {
		return nil, fmt.Errorf("failed to query system config: %w", err)
	}
	defer rows.Close()

	config := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan system config: %w", err)
		}
		config[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read system config: %w", err)
	}
	return config, nil
}

func (r *PostgresRepository) SetSystemConfig(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO system_notification_config (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set system config %s: %w", key, err)
	}
	return nil
}
