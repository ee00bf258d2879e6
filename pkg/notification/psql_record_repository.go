package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tendant/simple-stepup/pkg/utils"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRecordRepository implements RecordRepository using PostgreSQL
type PostgresRecordRepository struct {
	db DBTX
}

func NewPostgresRecordRepository(db DBTX) *PostgresRecordRepository {
	return &PostgresRecordRepository{db: db}
}

const recordColumns = `id, user_id, COALESCE(branch_id, ''), type, title, message, metadata, priority, status, created_at, read_at`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	var eventType, priority, status string
	err := row.Scan(&r.ID, &r.UserID, &r.BranchID, &eventType, &r.Title, &r.Message, &r.Metadata, &priority, &status, &r.CreatedAt, &r.ReadAt)
	r.Type = EventType(eventType)
	r.Priority = Priority(priority)
	r.Status = Status(status)
	return r, err
}

func (p *PostgresRecordRepository) CreateRecord(ctx context.Context, r Record) (Record, error) {
	if r.Metadata == nil {
		r.Metadata = map[string]interface{}{}
	}
	query := `
		INSERT INTO notifications (id, user_id, branch_id, type, title, message, metadata, priority, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + recordColumns
	created, err := scanRecord(p.db.QueryRow(ctx, query,
		r.ID, r.UserID, utils.ToNullString(r.BranchID), string(r.Type), r.Title, r.Message,
		r.Metadata, string(r.Priority), string(r.Status), r.CreatedAt,
	))
	if err != nil {
		return Record{}, fmt.Errorf("failed to create notification record: %w", err)
	}
	return created, nil
}

func (p *PostgresRecordRepository) ListRecords(ctx context.Context, userID string, filter ListFilter) ([]Record, error) {
	filter = filter.Normalize()
	query := `
		SELECT ` + recordColumns + ` FROM notifications
		WHERE user_id = $1
			AND ($2 = '' OR type = $2)
			AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`
	rows, err := p.db.Query(ctx, query, userID, string(filter.Type), string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notification records: %w", err)
	}
	return records, nil
}

func (p *PostgresRecordRepository) MarkAsRead(ctx context.Context, id uuid.UUID, userID string, now time.Time) (bool, error) {
	// already read rows still match so the call is idempotent
	tag, err := p.db.Exec(ctx, `
		UPDATE notifications SET status = 'read', read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
	`, id, userID, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *PostgresRecordRepository) MarkAllAsRead(ctx context.Context, userID string, now time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, `
		UPDATE notifications SET status = 'read', read_at = $2
		WHERE user_id = $1 AND status = 'unread'
	`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresRecordRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := p.db.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE user_id = $1 AND status = 'unread'`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}
