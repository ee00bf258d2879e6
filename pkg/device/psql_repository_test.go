package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-stepup/pkg/testutil"
)

func TestPostgresDeviceRepository_UpsertAndTouch(t *testing.T) {
	// Skip if running in CI environment or quick tests
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	ctx := context.Background()
	repo := NewPostgresDeviceRepository(testutil.SetupTestDatabase(t))

	start := time.Now().UTC().Truncate(time.Millisecond)
	first, err := repo.UpsertDevice(ctx, TrustedDevice{UserID: "u1", DeviceID: "dev-1", DeviceName: "Laptop", IPAddress: "10.0.0.1", LastUsedAt: start})
	require.NoError(t, err)

	later := start.Add(time.Hour)
	second, err := repo.UpsertDevice(ctx, TrustedDevice{UserID: "u1", DeviceID: "dev-1", IPAddress: "10.0.0.2", LastUsedAt: later})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Laptop", second.DeviceName)
	assert.Equal(t, "10.0.0.2", second.IPAddress)
	assert.True(t, second.LastUsedAt.Equal(later))

	// concurrent upserts of the same device stay one row
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpsertDevice(ctx, TrustedDevice{UserID: "u1", DeviceID: "dev-2"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	devices, err := repo.ListDevices(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	ok, err := repo.TouchDevice(ctx, "u1", "dev-1", later.Add(time.Minute), later.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TouchDevice(ctx, "u1", "dev-1", later.Add(2*time.Minute), later.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := repo.DeleteDevice(ctx, "u1", "dev-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	n, err := repo.DeleteAllDevices(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
