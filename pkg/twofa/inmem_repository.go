package twofa

import (
	"context"
	"sync"
	"time"

	"github.com/tendant/simple-stepup/pkg/backupcode"
	"github.com/tendant/simple-stepup/pkg/otp"
)

// InMemSettingsRepository implements SettingsRepository in memory
type InMemSettingsRepository struct {
	mu       sync.Mutex
	settings map[string]Settings
}

func NewInMemSettingsRepository() *InMemSettingsRepository {
	return &InMemSettingsRepository{settings: make(map[string]Settings)}
}

func copySettings(s Settings) Settings {
	s.BackupCodeHashes = append([]string{}, s.BackupCodeHashes...)
	return s
}

func (r *InMemSettingsRepository) GetSettings(ctx context.Context, userID string) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.settings[userID]
	if !ok {
		return Settings{}, ErrSettingsNotFound
	}
	return copySettings(s), nil
}

func (r *InMemSettingsRepository) EnableSettings(ctx context.Context, s Settings) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	existing, ok := r.settings[s.UserID]
	if ok {
		s.CreatedAt = existing.CreatedAt
		s.ForceEnabled = existing.ForceEnabled
	} else {
		s.CreatedAt = s.UpdatedAt
		s.ForceEnabled = false
	}
	s.Enabled = true
	s = copySettings(s)
	r.settings[s.UserID] = s
	return copySettings(s), nil
}

func (r *InMemSettingsRepository) DisableSettings(ctx context.Context, userID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.settings[userID]; ok {
		s.Enabled = false
		s.BackupCodeHashes = []string{}
		s.UpdatedAt = now
		r.settings[userID] = s
	}
	return nil
}

func (r *InMemSettingsRepository) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.settings[userID]
	if !ok || !s.Enabled {
		return false, nil
	}
	s.BackupCodeHashes = append([]string{}, hashes...)
	s.UpdatedAt = now
	r.settings[userID] = s
	return true, nil
}

func (r *InMemSettingsRepository) RemoveBackupCode(ctx context.Context, userID, hash string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.settings[userID]
	if !ok || !s.Enabled {
		return 0, backupcode.ErrCodeNotFound
	}
	for i, h := range s.BackupCodeHashes {
		if h == hash {
			remaining := make([]string, 0, len(s.BackupCodeHashes)-1)
			remaining = append(remaining, s.BackupCodeHashes[:i]...)
			remaining = append(remaining, s.BackupCodeHashes[i+1:]...)
			s.BackupCodeHashes = remaining
			s.UpdatedAt = time.Now().UTC()
			r.settings[userID] = s
			return len(remaining), nil
		}
	}
	return 0, backupcode.ErrCodeNotFound
}

func (r *InMemSettingsRepository) SetForceEnabled(ctx context.Context, userID string, force bool, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.settings[userID]
	if !ok {
		s = Settings{UserID: userID, Method: otp.MethodSMS, BackupCodeHashes: []string{}, CreatedAt: now}
	}
	s.ForceEnabled = force
	s.UpdatedAt = now
	r.settings[userID] = s
	return nil
}
