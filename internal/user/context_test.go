package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/storage"
)

func newTestContext(t *testing.T) (*Context, *storage.Adapter) {
	t.Helper()
	store := storage.NewAdapter(storage.NewMemoryBackend())
	return New(store, "demo", nil), store
}

func TestInitAdoptsDefaultUser(t *testing.T) {
	ctx := context.Background()
	uc, store := newTestContext(t)

	snap := uc.Init(ctx)
	assert.Equal(t, "demo", snap.CurrentUser)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, domain.DefaultPreferences(), snap.Preferences)
	assert.Equal(t, "demo", store.CurrentUser(ctx))
}

func TestInitAdoptsStoredUser(t *testing.T) {
	ctx := context.Background()
	uc, store := newTestContext(t)
	require.True(t, store.SetCurrentUser(ctx, "alice"))

	assert.Equal(t, "alice", uc.Init(ctx).CurrentUser)
}

func TestPreferencesSurviveLogout(t *testing.T) {
	ctx := context.Background()
	uc, store := newTestContext(t)
	uc.Init(ctx)

	dark := domain.ThemeDark
	off := false
	prefs, err := uc.UpdatePreferences(ctx, domain.PreferencesPatch{Theme: &dark, AutoRefresh: &off})
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeDark, prefs.Theme)
	assert.True(t, prefs.VoiceEnabled)

	snap := uc.Logout(ctx)
	assert.Equal(t, "", snap.CurrentUser)
	assert.False(t, snap.IsAuthenticated)
	assert.Equal(t, prefs, uc.Preferences())
	assert.Equal(t, prefs, store.Preferences(ctx))
	assert.Equal(t, domain.ThemeDark, store.Theme(ctx))
	assert.Equal(t, "", store.CurrentUser(ctx))

	// A fresh process sees the same preferences.
	again := New(store, "", nil)
	assert.Equal(t, prefs, again.Init(ctx).Preferences)
}

func TestUpdatePreferencesRejectsUnknownTheme(t *testing.T) {
	uc, _ := newTestContext(t)
	bad := domain.Theme("sepia")
	_, err := uc.UpdatePreferences(context.Background(), domain.PreferencesPatch{Theme: &bad})
	require.Error(t, err)
	assert.Equal(t, domain.DefaultPreferences(), uc.Preferences())
}

func TestSetUserBumpsGenerationAndNotifies(t *testing.T) {
	ctx := context.Background()
	uc, store := newTestContext(t)
	uc.Init(ctx)

	var changes []Change
	var seen []string
	unsubscribe := uc.Subscribe(func(c Change, s Snapshot) {
		changes = append(changes, c)
		seen = append(seen, s.CurrentUser)
	})

	before := uc.Tag()
	_, err := uc.SetUser(ctx, "  alice ")
	require.NoError(t, err)
	assert.False(t, uc.IsCurrent(before))
	assert.Equal(t, "alice", store.CurrentUser(ctx))

	// Same name is a no-op.
	tag := uc.Tag()
	_, err = uc.SetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, uc.IsCurrent(tag))

	// Switching back to a previous user still invalidates the old tag.
	_, err = uc.SetUser(ctx, "demo")
	require.NoError(t, err)
	assert.False(t, uc.IsCurrent(before))

	_, err = uc.SetUser(ctx, " ")
	require.Error(t, err)

	unsubscribe()
	unsubscribe()
	uc.Logout(ctx)

	assert.Equal(t, []Change{ChangeUser, ChangeUser}, changes)
	assert.Equal(t, []string{"alice", "demo"}, seen)
}
