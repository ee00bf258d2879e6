package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/tendant/simple-stepup/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Resolver produces the effective notification configuration of a user and
// provisions the settings row on first use.
type Resolver struct {
	settings SettingsRepository
	profiles ProfileRepository
	system   SystemConfigRepository
}

func NewResolver(repos Repositories) *Resolver {
	return &Resolver{
		settings: repos.Settings,
		profiles: repos.Profiles,
		system:   repos.System,
	}
}

// Resolve never fails. Lookup errors are logged and hard defaults are returned.
// The user's rows and the system config load concurrently; the first error
// cancels the other lookup.
func (r *Resolver) Resolve(ctx context.Context, userID string) EffectiveConfig {
	var (
		profile Profile
		s       NotificationSettings
		system  map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if profile, err = r.profile(gctx, userID); err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		if s, err = r.ensureSettings(gctx, userID, profile); err != nil {
			return fmt.Errorf("failed to load notification settings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if system, err = r.system.GetSystemConfig(gctx); err != nil {
			return fmt.Errorf("failed to load system notification config: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Error("Using default notification config", "userId", userID, "err", err)
		return DefaultEffectiveConfig()
	}

	return Resolve(&s, profile, system)
}

// GetSettings returns the user's settings row, seeding it if absent
func (r *Resolver) GetSettings(ctx context.Context, userID string) (NotificationSettings, error) {
	profile, err := r.profile(ctx, userID)
	if err != nil {
		return NotificationSettings{}, apperrors.Persistence(err, "failed to load profile")
	}
	s, err := r.ensureSettings(ctx, userID, profile)
	if err != nil {
		return NotificationSettings{}, apperrors.Persistence(err, "failed to load notification settings")
	}
	return s, nil
}

// UpdateSettings applies a partial update to the user's settings
func (r *Resolver) UpdateSettings(ctx context.Context, userID string, patch Patch) (NotificationSettings, error) {
	if patch.LowBalanceThreshold != nil && *patch.LowBalanceThreshold < 0 {
		return NotificationSettings{}, apperrors.Validation("low_balance_threshold", "must not be negative")
	}
	if patch.EmailAddress != nil {
		if email := strings.TrimSpace(*patch.EmailAddress); email != "" && !strings.Contains(email, "@") {
			return NotificationSettings{}, apperrors.Validation("email_address", "must be an email address")
		}
	}

	s, err := r.GetSettings(ctx, userID)
	if err != nil {
		return NotificationSettings{}, err
	}
	patch.Apply(&s)

	updated, err := r.settings.UpdateSettings(ctx, s)
	if err != nil {
		return NotificationSettings{}, apperrors.Persistence(err, "failed to update notification settings")
	}
	slog.Info("Notification settings updated", "userId", userID)
	return updated, nil
}

// SetSystemConfig stores a system-wide fallback value
func (r *Resolver) SetSystemConfig(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return apperrors.Validation("key", "is required")
	}
	if err := r.system.SetSystemConfig(ctx, key, value); err != nil {
		return apperrors.Persistence(err, "failed to set system config")
	}
	slog.Info("System notification config updated", "key", key)
	return nil
}

func (r *Resolver) profile(ctx context.Context, userID string) (Profile, error) {
	profile, err := r.profiles.GetProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return Profile{UserID: userID}, nil
	}
	return profile, err
}

func (r *Resolver) ensureSettings(ctx context.Context, userID string, profile Profile) (NotificationSettings, error) {
	s, err := r.settings.GetSettings(ctx, userID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrSettingsNotFound) {
		return NotificationSettings{}, err
	}

	seeded, err := r.settings.CreateSettingsIfAbsent(ctx, DefaultSettings(userID, profile))
	if err != nil {
		return NotificationSettings{}, fmt.Errorf("failed to seed notification settings: %w", err)
	}
	slog.Info("Seeded notification settings", "userId", userID)
	return seeded, nil
}
