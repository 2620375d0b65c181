package storage

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
)

// Namespaced keys. Changing any of them, or the payload shapes below,
// breaks data written by earlier versions.
const (
	KeyCurrentUser  = "voice_shopping_current_user"
	KeyPreferences  = "voice_shopping_preferences"
	KeyLastWishlist = "voice_shopping_last_wishlist"
	KeyTheme        = "voice_shopping_theme"
)

// DefaultCacheTTL bounds how long a cached wishlist may be adopted on cold start.
const DefaultCacheTTL = 5 * time.Minute

type cachedWishlist struct {
	Data      []domain.WishlistItem `json:"data"`
	Timestamp int64                 `json:"timestamp"` // unix milliseconds
}

// Adapter is the typed view over a Backend. Failures are logged and
// degrade to defaults; callers never see storage errors.
type Adapter struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
	ttl     time.Duration
}

type Option func(*Adapter)

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Adapter) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = logging.OrNop(l) }
}

func NewAdapter(backend Backend, opts ...Option) *Adapter {
	a := &Adapter{
		backend: backend,
		logger:  zap.NewNop(),
		now:     time.Now,
		ttl:     DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) CurrentUser(ctx context.Context) string {
	v, ok, err := a.backend.Get(ctx, KeyCurrentUser)
	if err != nil {
		a.fail("get current user", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// SetCurrentUser stores username; an empty name clears the stored identity.
func (a *Adapter) SetCurrentUser(ctx context.Context, username string) bool {
	var err error
	if username == "" {
		err = a.backend.Delete(ctx, KeyCurrentUser)
	} else {
		err = a.backend.Set(ctx, KeyCurrentUser, username)
	}
	if err != nil {
		a.fail("set current user", err)
		return false
	}
	return true
}

func (a *Adapter) Preferences(ctx context.Context) domain.Preferences {
	v, ok, err := a.backend.Get(ctx, KeyPreferences)
	if err != nil {
		a.fail("get preferences", err)
		return domain.DefaultPreferences()
	}
	if !ok {
		return domain.DefaultPreferences()
	}
	prefs := domain.DefaultPreferences()
	if err := json.Unmarshal([]byte(v), &prefs); err != nil {
		a.fail("decode preferences", err)
		return domain.DefaultPreferences()
	}
	return prefs
}

func (a *Adapter) SetPreferences(ctx context.Context, prefs domain.Preferences) bool {
	return a.setJSON(ctx, KeyPreferences, prefs, "set preferences")
}

func (a *Adapter) Theme(ctx context.Context) domain.Theme {
	v, ok, err := a.backend.Get(ctx, KeyTheme)
	if err != nil {
		a.fail("get theme", err)
		return domain.ThemeLight
	}
	theme, perr := domain.ParseTheme(v)
	if !ok || perr != nil {
		return domain.ThemeLight
	}
	return theme
}

func (a *Adapter) SetTheme(ctx context.Context, theme domain.Theme) bool {
	if err := a.backend.Set(ctx, KeyTheme, string(theme)); err != nil {
		a.fail("set theme", err)
		return false
	}
	return true
}

func wishlistKey(username string) string {
	return KeyLastWishlist + "_" + username
}

// CacheWishlist mirrors items for username, stamped with the current time.
func (a *Adapter) CacheWishlist(ctx context.Context, username string, items []domain.WishlistItem) bool {
	if items == nil {
		items = []domain.WishlistItem{}
	}
	payload := cachedWishlist{Data: items, Timestamp: a.now().UnixMilli()}
	return a.setJSON(ctx, wishlistKey(username), payload, "cache wishlist")
}

// CachedWishlist returns the cached copy for username only while it is
// younger than the cache TTL; stale or missing copies report ok=false.
func (a *Adapter) CachedWishlist(ctx context.Context, username string) ([]domain.WishlistItem, bool) {
	v, ok, err := a.backend.Get(ctx, wishlistKey(username))
	if err != nil {
		a.fail("get cached wishlist", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var cached cachedWishlist
	if err := json.Unmarshal([]byte(v), &cached); err != nil {
		a.fail("decode cached wishlist", err)
		return nil, false
	}
	capturedAt := time.UnixMilli(cached.Timestamp)
	if a.now().Sub(capturedAt) >= a.ttl {
		return nil, false
	}
	if cached.Data == nil {
		cached.Data = []domain.WishlistItem{}
	}
	return cached.Data, true
}

// ClearAll removes the top-level keys. Per-user wishlist snapshots are
// left to expire through the TTL check.
func (a *Adapter) ClearAll(ctx context.Context) bool {
	if err := a.backend.Delete(ctx, KeyCurrentUser, KeyPreferences, KeyLastWishlist, KeyTheme); err != nil {
		a.fail("clear storage", err)
		return false
	}
	return true
}

func (a *Adapter) setJSON(ctx context.Context, key string, v any, op string) bool {
	data, err := json.Marshal(v)
	if err != nil {
		a.fail(op, err)
		return false
	}
	if err := a.backend.Set(ctx, key, string(data)); err != nil {
		a.fail(op, err)
		return false
	}
	return true
}

func (a *Adapter) fail(op string, err error) {
	a.logger.Warn("storage operation failed",
		zap.String("op", op),
		zap.Error(domain.NewError(domain.KindStorage, "", err)),
	)
}
