package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows a record listing
type ListFilter struct {
	Limit  int
	Offset int
	Type   EventType
	Status Status
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalize clamps the paging values
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// RecordRepository stores the notification log. Records are append-only
// apart from the read status.
type RecordRepository interface {
	CreateRecord(ctx context.Context, r Record) (Record, error)
	ListRecords(ctx context.Context, userID string, filter ListFilter) ([]Record, error)
	// MarkAsRead reports whether a record with id owned by userID exists
	MarkAsRead(ctx context.Context, id uuid.UUID, userID string, now time.Time) (bool, error)
	MarkAllAsRead(ctx context.Context, userID string, now time.Time) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}
