package settings

import (
	"context"
	"sync"
	"time"
)

// InMemRepository implements all three repositories in memory
type InMemRepository struct {
	mu       sync.Mutex
	settings map[string]NotificationSettings
	profiles map[string]Profile
	system   map[string]string
}

func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		settings: make(map[string]NotificationSettings),
		profiles: make(map[string]Profile),
		system:   make(map[string]string),
	}
}

func (r *InMemRepository) GetSettings(ctx context.Context, userID string) (NotificationSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.settings[userID]
	if !ok {
		return NotificationSettings{}, ErrSettingsNotFound
	}
	return s, nil
}

func (r *InMemRepository) CreateSettingsIfAbsent(ctx context.Context, s NotificationSettings) (NotificationSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.settings[s.UserID]; ok {
		return existing, nil
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	r.settings[s.UserID] = s
	return s, nil
}

func (r *InMemRepository) UpdateSettings(ctx context.Context, s NotificationSettings) (NotificationSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.settings[s.UserID]
	if !ok {
		return NotificationSettings{}, ErrSettingsNotFound
	}
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	r.settings[s.UserID] = s
	return s, nil
}

func (r *InMemRepository) GetProfile(ctx context.Context, userID string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (r *InMemRepository) UpsertProfile(ctx context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles[p.UserID] = p
	return nil
}

func (r *InMemRepository) GetSystemConfig(ctx context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	config := make(map[string]string, len(r.system))
	for k, v := range r.system {
		config[k] = v
	}
	return config, nil
}

func (r *InMemRepository) SetSystemConfig(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.system[key] = value
	return nil
}
