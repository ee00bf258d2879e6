package device

import (
	"context"
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

// PostgresDeviceRepository implements DeviceRepository using PostgreSQL
type PostgresDeviceRepository struct {
	db DBTX
}

// NewPostgresDeviceRepository creates a new PostgreSQL device repository
func NewPostgresDeviceRepository(db DBTX) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

const deviceColumns = `id, user_id, device_id, device_name, ip_address, user_agent, last_used_at, created_at`

func scanDevice(row pgx.Row) (TrustedDevice, error) {
	var d TrustedDevice
	err := row.Scan(&d.ID, &d.UserID, &d.DeviceID, &d.DeviceName, &d.IPAddress, &d.UserAgent, &d.LastUsedAt, &d.CreatedAt)
	return d, err
}

func (r *PostgresDeviceRepository) UpsertDevice(ctx context.Context, d TrustedDevice) (TrustedDevice, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.LastUsedAt.IsZero() {
		d.LastUsedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO trusted_devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			device_name = COALESCE(NULLIF(EXCLUDED.device_name, ''), trusted_devices.device_name),
			ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent,
			last_used_at = EXCLUDED.last_used_at
		RETURNING ` + deviceColumns
	stored, err := scanDevice(r.db.QueryRow(ctx, query,
		d.ID, d.UserID, d.DeviceID, d.DeviceName, d.IPAddress, d.UserAgent, d.LastUsedAt,
	))
	if err != nil {
		return TrustedDevice{}, fmt.Errorf("failed to upsert trusted device: %w", err)
	}
	return stored, nil
}

func (r *PostgresDeviceRepository) TouchDevice(ctx context.Context, userID, deviceID string, now, notBefore time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE trusted_devices SET last_used_at = $3
		WHERE user_id = $1 AND device_id = $2 AND last_used_at > $4
	`, userID, deviceID, now, notBefore)
	if err != nil {
		return false, fmt.Errorf("failed to touch trusted device: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresDeviceRepository) ListDevices(ctx context.Context, userID string) ([]TrustedDevice, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+deviceColumns+` FROM trusted_devices WHERE user_id = $1 ORDER BY last_used_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted devices: %w", err)
	}
	defer rows.Close()

	devices := []TrustedDevice{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trusted device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trusted devices: %w", err)
	}
	return devices, nil
}

func (r *PostgresDeviceRepository) DeleteDevice(ctx context.Context, userID, deviceID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM trusted_devices WHERE user_id = $1 AND device_id = $2`, userID, deviceID)
	if err != nil {
		return false, fmt.Errorf("failed to delete trusted device: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresDeviceRepository) DeleteAllDevices(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM trusted_devices WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trusted devices: %w", err)
	}
	return tag.RowsAffected(), nil
}
