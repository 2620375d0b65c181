// Package recommend keeps AI product suggestions for the active user,
// refreshing them only once they go stale.
package recommend

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/observability"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/poll"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/user"
)

const (
	DefaultCheckInterval = 60 * time.Second
	DefaultMaxAge        = 5 * time.Minute
)

type Gateway interface {
	FetchRecommendations(ctx context.Context, username string) ([]domain.Product, string, error)
}

type Stats struct {
	Total         int            `json:"total"`
	TotalPrice    float64        `json:"totalPrice"`
	AveragePrice  float64        `json:"averagePrice"`
	CategoryCount int            `json:"categoryCount"`
	Categories    map[string]int `json:"categories"`
}

// ComputeStats is recomputed from the items on every call.
func ComputeStats(items []domain.Product) Stats {
	s := Stats{Total: len(items), Categories: make(map[string]int)}
	for _, p := range items {
		s.Categories[p.Category]++
		s.TotalPrice += p.Price
	}
	s.CategoryCount = len(s.Categories)
	if s.Total > 0 {
		s.AveragePrice = s.TotalPrice / float64(s.Total)
	}
	return s
}

type State struct {
	User      string           `json:"user"`
	Items     []domain.Product `json:"items"`
	Stats     Stats            `json:"stats"`
	Note      string           `json:"note,omitempty"`
	FetchedAt time.Time        `json:"fetched_at,omitempty"`
	Stale     bool             `json:"stale"`
	Loading   bool             `json:"loading"`
	Error     string           `json:"error,omitempty"`
	ErrorKind domain.Kind      `json:"error_kind,omitempty"`
}

type Options struct {
	CheckInterval time.Duration
	MaxAge        time.Duration
	Now           func() time.Time
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	OnChange      func(State)
}

type Controller struct {
	gw       Gateway
	users    *user.Context
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
	metrics  *observability.Metrics
	logger   *zap.Logger
	onChange func(State)

	mu        sync.RWMutex
	user      string
	items     []domain.Product
	note      string
	fetchedAt time.Time
	inflight  int
	lastErr   error

	lifeMu      sync.Mutex
	base        context.Context
	task        *poll.Task
	stopLoad    context.CancelFunc
	loads       sync.WaitGroup
	unsubscribe func()
}

func New(gw Gateway, users *user.Context, opts Options) *Controller {
	c := &Controller{
		gw:       gw,
		users:    users,
		interval: opts.CheckInterval,
		maxAge:   opts.MaxAge,
		now:      opts.Now,
		metrics:  opts.Metrics,
		logger:   logging.OrNop(opts.Logger).Named("recommend"),
		onChange: opts.OnChange,
		items:    []domain.Product{},
	}
	if c.interval <= 0 {
		c.interval = DefaultCheckInterval
	}
	if c.maxAge <= 0 {
		c.maxAge = DefaultMaxAge
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Start loads suggestions for the active user, reloads on every user
// switch and runs the staleness check until ctx ends or Close is called.
func (c *Controller) Start(ctx context.Context) {
	c.lifeMu.Lock()
	c.base = ctx
	c.unsubscribe = c.users.Subscribe(func(change user.Change, snap user.Snapshot) {
		if change == user.ChangeUser {
			c.switchUser(snap.CurrentUser)
		}
	})
	c.lifeMu.Unlock()
	c.switchUser(c.users.Current())
}

func (c *Controller) Close() {
	c.lifeMu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.task.Stop()
	c.task = nil
	if c.stopLoad != nil {
		c.stopLoad()
		c.stopLoad = nil
	}
	c.lifeMu.Unlock()
	c.loads.Wait()
}

func (c *Controller) switchUser(name string) {
	c.lifeMu.Lock()
	c.task.Stop()
	c.task = nil
	if c.stopLoad != nil {
		c.stopLoad()
		c.stopLoad = nil
	}
	base := c.base
	var loadCtx context.Context
	if name != "" && base != nil {
		c.task = poll.Every(base, c.interval, func(ctx context.Context) {
			c.metrics.ObservePollTick("recommendations")
			_, _ = c.AutoRefreshIfStale(ctx)
		})
		loadCtx, c.stopLoad = context.WithCancel(base)
		c.loads.Add(1)
	}
	c.lifeMu.Unlock()

	c.mu.Lock()
	c.user = name
	c.items = []domain.Product{}
	c.note = ""
	c.fetchedAt = time.Time{}
	c.lastErr = nil
	c.mu.Unlock()
	c.publish()

	if loadCtx != nil {
		go func() {
			defer c.loads.Done()
			_ = c.Load(loadCtx)
		}()
	}
}

// Load fetches suggestions for the current user and replaces the state
// wholesale. On failure the previous suggestions stay.
func (c *Controller) Load(ctx context.Context) error {
	tag := c.users.Tag()
	if tag.User == "" {
		return nil
	}
	c.mu.Lock()
	c.inflight++
	c.lastErr = nil
	c.mu.Unlock()
	c.publish()

	items, note, err := c.gw.FetchRecommendations(ctx, tag.User)

	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()

	if !c.users.IsCurrent(tag) {
		c.metrics.ObserveStaleResponse("recommendations")
		c.logger.Debug("discarding recommendations for previous user session", zap.String("user", tag.User))
		return nil
	}
	c.mu.Lock()
	if err != nil {
		c.lastErr = err
	} else {
		c.items = append([]domain.Product{}, items...)
		c.note = note
		c.fetchedAt = c.now()
	}
	c.mu.Unlock()
	c.publish()
	return err
}

// Refresh is a forced Load.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.Load(ctx)
}

// IsStale is true when nothing was fetched yet or the last fetch is older
// than the max age.
func (c *Controller) IsStale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staleLocked()
}

func (c *Controller) staleLocked() bool {
	return c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) > c.maxAge
}

// AutoRefreshIfStale loads only when IsStale. It reports whether a load ran.
func (c *Controller) AutoRefreshIfStale(ctx context.Context) (bool, error) {
	if !c.IsStale() {
		return false, nil
	}
	return true, c.Load(ctx)
}

func (c *Controller) Items() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Product{}, c.items...)
}

// ByCategory filters by exact category; "all" or "" returns everything.
func (c *Controller) ByCategory(category string) []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if category == "" || category == domain.CategoryAll {
		return append([]domain.Product{}, c.items...)
	}
	out := make([]domain.Product, 0, len(c.items))
	for _, p := range c.items {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ComputeStats(c.items)
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := State{
		User:      c.user,
		Items:     append([]domain.Product{}, c.items...),
		Stats:     ComputeStats(c.items),
		Note:      c.note,
		FetchedAt: c.fetchedAt,
		Stale:     c.staleLocked(),
		Loading:   c.inflight > 0,
	}
	if c.lastErr != nil {
		s.Error = domain.UserMessage(c.lastErr)
		s.ErrorKind = domain.KindOf(c.lastErr)
	}
	return s
}

func (c *Controller) publish() {
	if c.onChange != nil {
		c.onChange(c.State())
	}
}
