package twofa

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-stepup/pkg/backupcode"
	"github.com/tendant/simple-stepup/pkg/otp"
	"github.com/tendant/simple-stepup/pkg/testutil"
)

func TestPostgresSettingsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	ctx := context.Background()
	repo := NewPostgresSettingsRepository(testutil.SetupTestDatabase(t))
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := repo.GetSettings(ctx, "ama")
	assert.ErrorIs(t, err, ErrSettingsNotFound)

	require.NoError(t, repo.SetForceEnabled(ctx, "ama", true, now))
	stored, err := repo.EnableSettings(ctx, Settings{
		UserID:           "ama",
		Method:           otp.MethodSMS,
		PhoneNumber:      "233241234567",
		BackupCodeHashes: []string{"h1", "h2", "h3"},
		UpdatedAt:        now,
	})
	require.NoError(t, err)
	assert.True(t, stored.Enabled)
	assert.True(t, stored.ForceEnabled)
	assert.Equal(t, []string{"h1", "h2", "h3"}, stored.BackupCodeHashes)

	enrollment, err := NewEnrollmentLookup(repo).GetEnrollment(ctx, "ama")
	require.NoError(t, err)
	assert.True(t, enrollment.Enabled)
	assert.Equal(t, "233241234567", enrollment.PhoneNumber)

	remaining, err := repo.RemoveBackupCode(ctx, "ama", "h2")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
	_, err = repo.RemoveBackupCode(ctx, "ama", "h2")
	assert.ErrorIs(t, err, backupcode.ErrCodeNotFound)

	replaced, err := repo.ReplaceBackupCodes(ctx, "ama", []string{"n1"}, now)
	require.NoError(t, err)
	assert.True(t, replaced)
	_, err = repo.RemoveBackupCode(ctx, "ama", "h1")
	assert.ErrorIs(t, err, backupcode.ErrCodeNotFound)

	require.NoError(t, repo.DisableSettings(ctx, "ama", now))
	stored, err = repo.GetSettings(ctx, "ama")
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
	assert.Empty(t, stored.BackupCodeHashes)

	replaced, err = repo.ReplaceBackupCodes(ctx, "ama", []string{"n2"}, now)
	require.NoError(t, err)
	assert.False(t, replaced)
}

func TestPostgresSettingsRepository_ConcurrentRemove(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	ctx := context.Background()
	repo := NewPostgresSettingsRepository(testutil.SetupTestDatabase(t))
	_, err := repo.EnableSettings(ctx, Settings{UserID: "ama", Method: otp.MethodSMS, BackupCodeHashes: []string{"h1", "h2"}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.RemoveBackupCode(ctx, "ama", "h1"); err == nil {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes)
}
