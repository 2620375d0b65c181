package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time           { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestAdapter(t *testing.T) (*Adapter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	return NewAdapter(NewMemoryBackend(), WithClock(clock.Now)), clock
}

func TestCachedWishlistHonoursTTL(t *testing.T) {
	ctx := context.Background()
	a, clock := newTestAdapter(t)
	items := []domain.WishlistItem{{Product: "Milk", Quantity: 2, Category: "dairy", Status: domain.StatusManual}}
	require.True(t, a.CacheWishlist(ctx, "alice", items))

	clock.Advance(299 * time.Second)
	got, ok := a.CachedWishlist(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, items, got)

	clock.Advance(2 * time.Second)
	_, ok = a.CachedWishlist(ctx, "alice")
	assert.False(t, ok)
}

func TestCachedWishlistIsPerUser(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)
	require.True(t, a.CacheWishlist(ctx, "alice", nil))

	got, ok := a.CachedWishlist(ctx, "alice")
	require.True(t, ok)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	_, ok = a.CachedWishlist(ctx, "bob")
	assert.False(t, ok)
}

func TestPreferencesDefaultAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)
	assert.Equal(t, domain.DefaultPreferences(), a.Preferences(ctx))

	prefs := domain.Preferences{Theme: domain.ThemeDark, VoiceEnabled: false, Notifications: true, AutoRefresh: false}
	require.True(t, a.SetPreferences(ctx, prefs))
	assert.Equal(t, prefs, a.Preferences(ctx))
}

func TestCurrentUserAndClearAll(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)
	assert.Equal(t, "", a.CurrentUser(ctx))

	require.True(t, a.SetCurrentUser(ctx, "alice"))
	require.True(t, a.SetTheme(ctx, domain.ThemeDark))
	assert.Equal(t, "alice", a.CurrentUser(ctx))
	assert.Equal(t, domain.ThemeDark, a.Theme(ctx))

	require.True(t, a.SetCurrentUser(ctx, ""))
	assert.Equal(t, "", a.CurrentUser(ctx))

	require.True(t, a.SetCurrentUser(ctx, "alice"))
	require.True(t, a.ClearAll(ctx))
	assert.Equal(t, "", a.CurrentUser(ctx))
	assert.Equal(t, domain.ThemeLight, a.Theme(ctx))
}

type brokenBackend struct{}

var errDiskFull = errors.New("disk full")

func (brokenBackend) Get(context.Context, string) (string, bool, error) { return "", false, errDiskFull }
func (brokenBackend) Set(context.Context, string, string) error         { return errDiskFull }
func (brokenBackend) Delete(context.Context, ...string) error           { return errDiskFull }
func (brokenBackend) Close() error                                      { return nil }

func TestAdapterDegradesOnBackendFailure(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(brokenBackend{})

	assert.False(t, a.SetCurrentUser(ctx, "alice"))
	assert.Equal(t, "", a.CurrentUser(ctx))
	assert.Equal(t, domain.DefaultPreferences(), a.Preferences(ctx))
	assert.False(t, a.CacheWishlist(ctx, "alice", nil))
	_, ok := a.CachedWishlist(ctx, "alice")
	assert.False(t, ok)
	assert.False(t, a.ClearAll(ctx))
}

func TestCorruptPayloadsFallBack(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	a := NewAdapter(backend)
	require.NoError(t, backend.Set(ctx, KeyPreferences, "{not json"))
	require.NoError(t, backend.Set(ctx, wishlistKey("alice"), "[]"))

	assert.Equal(t, domain.DefaultPreferences(), a.Preferences(ctx))
	_, ok := a.CachedWishlist(ctx, "alice")
	assert.False(t, ok)
}
