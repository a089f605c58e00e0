package selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotSet)

	require.NoError(t, store.Set(ctx, "user-1", "c1"))

	companyID, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "c1", companyID)

	require.NoError(t, store.Clear(ctx, "user-1"))

	_, err = store.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotSet)
}

func TestCacheSetNotifiesSubscribers(t *testing.T) {
	cache := NewCache(NewMemoryStore())
	ctx := context.Background()

	var got []string
	cancel := cache.Subscribe("user-1", func(companyID string) {
		got = append(got, companyID)
	})
	defer cancel()

	require.NoError(t, cache.Set(ctx, "user-1", "c1"))
	require.NoError(t, cache.Set(ctx, "user-1", "c2"))

	assert.Equal(t, []string{"c1", "c2"}, got)
}

func TestCacheClearNotifiesWithEmptyID(t *testing.T) {
	cache := NewCache(NewMemoryStore())
	ctx := context.Background()

	var got []string
	cancel := cache.Subscribe("user-1", func(companyID string) {
		got = append(got, companyID)
	})
	defer cancel()

	require.NoError(t, cache.Set(ctx, "user-1", "c1"))
	require.NoError(t, cache.Clear(ctx, "user-1"))

	assert.Equal(t, []string{"c1", ""}, got)
}

func TestCacheSubscribersAreScopedPerUser(t *testing.T) {
	cache := NewCache(NewMemoryStore())
	ctx := context.Background()

	notified := 0
	cancel := cache.Subscribe("user-1", func(string) { notified++ })
	defer cancel()

	require.NoError(t, cache.Set(ctx, "user-2", "c1"))
	assert.Equal(t, 0, notified)

	require.NoError(t, cache.Set(ctx, "user-1", "c1"))
	assert.Equal(t, 1, notified)
}

func TestCacheCancelStopsNotifications(t *testing.T) {
	cache := NewCache(NewMemoryStore())
	ctx := context.Background()

	notified := 0
	cancel := cache.Subscribe("user-1", func(string) { notified++ })

	require.NoError(t, cache.Set(ctx, "user-1", "c1"))
	cancel()
	require.NoError(t, cache.Set(ctx, "user-1", "c2"))

	assert.Equal(t, 1, notified)
}

func TestCacheFailedWriteDoesNotNotify(t *testing.T) {
	cache := NewCache(failingStore{})

	notified := false
	cancel := cache.Subscribe("user-1", func(string) { notified = true })
	defer cancel()

	err := cache.Set(context.Background(), "user-1", "c1")
	assert.Error(t, err)
	assert.False(t, notified)
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, userID string) (string, error) {
	return "", ErrNotSet
}

func (failingStore) Set(ctx context.Context, userID, companyID string) error {
	return assert.AnError
}

func (failingStore) Clear(ctx context.Context, userID string) error {
	return assert.AnError
}
