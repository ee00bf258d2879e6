package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRecordRepository implements RecordRepository in memory
type InMemRecordRepository struct {
	mu      sync.Mutex
	records []Record
}

func NewInMemRecordRepository() *InMemRecordRepository {
	return &InMemRecordRepository{}
}

func (m *InMemRecordRepository) CreateRecord(ctx context.Context, r Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.records = append(m.records, r)
	return r, nil
}

func (m *InMemRecordRepository) ListRecords(ctx context.Context, userID string, filter ListFilter) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filter = filter.Normalize()
	matched := []Record{}
	for _, r := range m.records {
		if r.UserID != userID {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		matched = append(matched, r)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return []Record{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}

func (m *InMemRecordRepository) MarkAsRead(ctx context.Context, id uuid.UUID, userID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].ID == id && m.records[i].UserID == userID {
			if m.records[i].ReadAt == nil {
				readAt := now
				m.records[i].ReadAt = &readAt
			}
			m.records[i].Status = StatusRead
			return true, nil
		}
	}
	return false, nil
}

func (m *InMemRecordRepository) MarkAllAsRead(ctx context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for i := range m.records {
		if m.records[i].UserID == userID && m.records[i].Status == StatusUnread {
			readAt := now
			m.records[i].ReadAt = &readAt
			m.records[i].Status = StatusRead
			n++
		}
	}
	return n, nil
}

func (m *InMemRecordRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, r := range m.records {
		if r.UserID == userID && r.Status == StatusUnread {
			n++
		}
	}
	return n, nil
}
