// Package user holds the active identity and preferences shared by every
// controller.
package user

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/storage"
)

// Change says what a notification is about.
type Change string

const (
	ChangeUser        Change = "user"
	ChangePreferences Change = "preferences"
)

// Tag identifies the user session a request was issued for. Generation
// increases on every identity change, so switching away from a user and
// back still invalidates older requests.
type Tag struct {
	User       string
	Generation uint64
}

type Snapshot struct {
	CurrentUser     string             `json:"current_user"`
	Preferences     domain.Preferences `json:"preferences"`
	IsAuthenticated bool               `json:"is_authenticated"`
	Generation      uint64             `json:"generation"`
}

func (s Snapshot) Tag() Tag { return Tag{User: s.CurrentUser, Generation: s.Generation} }

// Listener is called after a change has been applied. Listeners run on the
// caller's goroutine and must not call back into Context mutators.
type Listener func(change Change, snap Snapshot)

// Context is the handle passed to controllers at construction.
type Context struct {
	store       *storage.Adapter
	defaultUser string
	logger      *zap.Logger

	mu         sync.RWMutex
	current    string
	prefs      domain.Preferences
	generation uint64

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

func New(store *storage.Adapter, defaultUser string, logger *zap.Logger) *Context {
	return &Context{
		store:       store,
		defaultUser: strings.TrimSpace(defaultUser),
		logger:      logging.OrNop(logger).Named("user"),
		prefs:       domain.DefaultPreferences(),
		listeners:   make(map[int]Listener),
	}
}

// Init adopts the stored user, or stores and adopts the default user when
// none is stored. Preferences are read from storage.
func (c *Context) Init(ctx context.Context) Snapshot {
	name := c.store.CurrentUser(ctx)
	if name == "" && c.defaultUser != "" {
		name = c.defaultUser
		c.store.SetCurrentUser(ctx, name)
	}
	prefs := c.store.Preferences(ctx)

	c.mu.Lock()
	c.current = name
	c.prefs = prefs
	c.generation++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("user context ready", zap.String("user", name), zap.String("theme", string(prefs.Theme)))
	c.notify(ChangeUser, snap)
	return snap
}

func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Context) snapshotLocked() Snapshot {
	return Snapshot{
		CurrentUser:     c.current,
		Preferences:     c.prefs,
		IsAuthenticated: c.current != "",
		Generation:      c.generation,
	}
}

func (c *Context) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Context) Tag() Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Tag{User: c.current, Generation: c.generation}
}

// IsCurrent reports whether t still names the active session.
func (c *Context) IsCurrent(t Tag) bool {
	return c.Tag() == t
}

func (c *Context) Preferences() domain.Preferences {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefs
}

// SetUser switches the active identity and persists it.
func (c *Context) SetUser(ctx context.Context, username string) (Snapshot, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Snapshot{}, fmt.Errorf("username is required")
	}
	c.mu.Lock()
	if c.current == username {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}
	previous := c.current
	c.current = username
	c.generation++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.store.SetCurrentUser(ctx, username)
	c.logger.Info("user switched", zap.String("from", previous), zap.String("to", username))
	c.notify(ChangeUser, snap)
	return snap, nil
}

// Logout clears the identity only. Preferences stay as they were.
func (c *Context) Logout(ctx context.Context) Snapshot {
	c.mu.Lock()
	previous := c.current
	c.current = ""
	c.generation++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.store.SetCurrentUser(ctx, "")
	c.logger.Info("user logged out", zap.String("user", previous))
	c.notify(ChangeUser, snap)
	return snap
}

// UpdatePreferences merges patch into the current preferences and persists
// the result.
func (c *Context) UpdatePreferences(ctx context.Context, patch domain.PreferencesPatch) (domain.Preferences, error) {
	if patch.Theme != nil {
		if _, err := domain.ParseTheme(string(*patch.Theme)); err != nil {
			return domain.Preferences{}, err
		}
	}
	c.mu.Lock()
	c.prefs = c.prefs.Apply(patch)
	prefs := c.prefs
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.store.SetPreferences(ctx, prefs)
	if patch.Theme != nil {
		c.store.SetTheme(ctx, prefs.Theme)
	}
	c.notify(ChangePreferences, snap)
	return prefs, nil
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (c *Context) Subscribe(fn Listener) (unsubscribe func()) {
	c.lmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.lmu.Lock()
			delete(c.listeners, id)
			c.lmu.Unlock()
		})
	}
}

func (c *Context) notify(change Change, snap Snapshot) {
	c.lmu.Lock()
	fns := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.lmu.Unlock()
	for _, fn := range fns {
		fn(change, snap)
	}
}
