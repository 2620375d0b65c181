// Package wishlist owns the active user's wishlist: cache-first loads,
// mutate-then-reload writes and the background refresh loop.
package wishlist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/gateway"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/observability"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/poll"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/storage"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/user"
)

const DefaultPollInterval = 10 * time.Second

// Gateway is the slice of the backend client the controller needs.
type Gateway interface {
	FetchWishlist(ctx context.Context, username string) ([]domain.WishlistItem, error)
	ApplyWishlistMutation(ctx context.Context, username string, intent domain.Intent) (gateway.MutationResult, error)
}

// State is a point-in-time copy of the controller.
type State struct {
	User      string                `json:"user"`
	Items     []domain.WishlistItem `json:"items"`
	Filtered  []domain.WishlistItem `json:"filtered"`
	Stats     Stats                 `json:"stats"`
	Filter    string                `json:"filter"`
	Search    string                `json:"search"`
	Loading   bool                  `json:"loading"`
	Error     string                `json:"error,omitempty"`
	ErrorKind domain.Kind           `json:"error_kind,omitempty"`
	UpdatedAt time.Time             `json:"updated_at,omitempty"`
}

type Options struct {
	PollInterval time.Duration
	Now          func() time.Time
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	// OnChange receives a copy of the state after every change.
	OnChange func(State)
	// OnMutated runs after a mutation has been committed locally.
	OnMutated func(ctx context.Context)
}

type Controller struct {
	gw       Gateway
	store    *storage.Adapter
	users    *user.Context
	interval time.Duration
	now      func() time.Time
	metrics  *observability.Metrics
	logger   *zap.Logger
	onChange func(State)
	onMut    func(ctx context.Context)

	// opMu serializes mutations so each one is followed by its own reload.
	opMu sync.Mutex

	mu        sync.RWMutex
	user      string
	items     []domain.WishlistItem
	filter    string
	search    string
	inflight  int
	lastErr   error
	updatedAt time.Time
	// issued numbers every read when it starts; applied is the newest
	// read whose result reached state. Older results are dropped.
	issued  uint64
	applied uint64

	lifeMu      sync.Mutex
	base        context.Context
	task        *poll.Task
	stopLoad    context.CancelFunc
	loads       sync.WaitGroup
	unsubscribe func()
}

func New(gw Gateway, store *storage.Adapter, users *user.Context, opts Options) *Controller {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		gw:       gw,
		store:    store,
		users:    users,
		interval: interval,
		now:      now,
		metrics:  opts.Metrics,
		logger:   logging.OrNop(opts.Logger).Named("wishlist"),
		onChange: opts.OnChange,
		onMut:    opts.OnMutated,
		items:    []domain.WishlistItem{},
		filter:   domain.CategoryAll,
	}
}

// Start follows the user context: it loads the active user's wishlist and
// keeps it fresh until ctx ends or Close is called.
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

// Close stops the refresh loop, cancels a pending initial load and waits
// for it, then detaches from the user context.
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
			c.metrics.ObservePollTick("wishlist")
			_ = c.Load(ctx, true)
		})
		loadCtx, c.stopLoad = context.WithCancel(base)
		c.loads.Add(1)
	}
	c.lifeMu.Unlock()

	c.mu.Lock()
	c.user = name
	c.items = []domain.WishlistItem{}
	c.lastErr = nil
	c.updatedAt = time.Time{}
	c.mu.Unlock()
	c.metrics.SetWishlistItems(0)
	c.publish()

	if loadCtx != nil {
		go func() {
			defer c.loads.Done()
			_ = c.Load(loadCtx, false)
		}()
	}
}

// Load refreshes the wishlist. Without force, a fresh cached copy for the
// current user is adopted with no network call. On failure the last known
// items are kept and the error is surfaced.
func (c *Controller) Load(ctx context.Context, force bool) error {
	tag := c.users.Tag()
	if tag.User == "" {
		return nil
	}
	if !force {
		seq := c.nextRead()
		cached, ok := c.store.CachedWishlist(ctx, tag.User)
		c.metrics.ObserveCache(ok)
		if ok {
			c.commit(tag, seq, cached, false)
			return nil
		}
	}

	seq := c.begin()
	items, err := c.gw.FetchWishlist(ctx, tag.User)
	c.end()
	if err != nil {
		c.fail(tag, seq, err)
		return err
	}
	c.commit(tag, seq, items, true)
	return nil
}

// Mutate submits one intent and then reloads the full wishlist. Local
// state changes only once that reload has succeeded.
func (c *Controller) Mutate(ctx context.Context, intent domain.Intent) (gateway.MutationResult, error) {
	tag := c.users.Tag()
	if tag.User == "" {
		return gateway.MutationResult{}, domain.NewError(domain.KindNoUserSelected, "", nil)
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	seq := c.begin()
	ack, err := c.gw.ApplyWishlistMutation(ctx, tag.User, intent)
	if err != nil {
		c.end()
		c.fail(tag, seq, err)
		return gateway.MutationResult{}, err
	}
	// The reload must outrank every read issued before the write landed.
	seq = c.nextRead()
	items, err := c.gw.FetchWishlist(ctx, tag.User)
	c.end()
	if err != nil {
		c.fail(tag, seq, err)
		return gateway.MutationResult{}, err
	}
	c.logger.Info("wishlist mutated",
		zap.String("user", tag.User),
		zap.Stringer("action", intent.Action),
		zap.String("product", intent.Product),
		zap.Int("items", len(items)),
	)
	if c.commit(tag, seq, items, true) && c.onMut != nil {
		c.onMut(ctx)
	}
	return ack, nil
}

// AddItem adds a manual entry; quantity below 1 becomes 1 and an empty
// category becomes "unknown".
func (c *Controller) AddItem(ctx context.Context, product string, quantity int, category string) (gateway.MutationResult, error) {
	return c.Mutate(ctx, domain.ManualIntent(domain.ActionAdd, product, quantity, category))
}

func (c *Controller) RemoveItem(ctx context.Context, product string) (gateway.MutationResult, error) {
	return c.Mutate(ctx, domain.ManualIntent(domain.ActionRemove, product, 1, domain.CategoryUnknown))
}

// ClearAll deletes every current item one request at a time, then empties
// local state and cache. It stops at the first failure without touching
// local state; the next reload shows what the backend kept.
func (c *Controller) ClearAll(ctx context.Context) error {
	tag := c.users.Tag()
	if tag.User == "" {
		return domain.NewError(domain.KindNoUserSelected, "", nil)
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	pending := append([]domain.WishlistItem(nil), c.items...)
	c.mu.RUnlock()

	seq := c.begin()
	for i, item := range pending {
		intent := domain.ManualIntent(domain.ActionDelete, item.Product, 1, item.Category)
		if _, err := c.gw.ApplyWishlistMutation(ctx, tag.User, intent); err != nil {
			c.end()
			c.logger.Warn("clear wishlist stopped",
				zap.String("user", tag.User),
				zap.Int("deleted", i),
				zap.Int("remaining", len(pending)-i),
				zap.Error(err),
			)
			c.fail(tag, seq, err)
			return err
		}
	}
	c.end()
	seq = c.nextRead()
	if c.commit(tag, seq, []domain.WishlistItem{}, true) && c.onMut != nil {
		c.onMut(ctx)
	}
	return nil
}

func (c *Controller) SetFilter(category string) {
	c.mu.Lock()
	c.filter = normalizeCategory(category)
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	c.search = term
	c.mu.Unlock()
	c.publish()
}

// Items returns a copy of the canonical wishlist.
func (c *Controller) Items() []domain.WishlistItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.WishlistItem{}, c.items...)
}

// Filtered applies the controller's current filter and search term.
func (c *Controller) Filtered() []domain.WishlistItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Filter(c.items, c.filter, c.search)
}

// ByCategory returns the items in category; "all" or "" returns every item.
func (c *Controller) ByCategory(category string) []domain.WishlistItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Filter(c.items, category, "")
}

func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ComputeStats(c.items)
}

func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	s := State{
		User:      c.user,
		Items:     append([]domain.WishlistItem{}, c.items...),
		Filtered:  Filter(c.items, c.filter, c.search),
		Stats:     ComputeStats(c.items),
		Filter:    c.filter,
		Search:    c.search,
		Loading:   c.inflight > 0,
		UpdatedAt: c.updatedAt,
	}
	if c.lastErr != nil {
		s.Error = domain.UserMessage(c.lastErr)
		s.ErrorKind = domain.KindOf(c.lastErr)
	}
	return s
}

// begin marks a request in flight and returns its read number.
func (c *Controller) begin() uint64 {
	c.mu.Lock()
	c.inflight++
	c.lastErr = nil
	c.issued++
	seq := c.issued
	c.mu.Unlock()
	c.publish()
	return seq
}

func (c *Controller) nextRead() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return c.issued
}

func (c *Controller) end() {
	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()
}

// commit replaces the wishlist wholesale if tag still names the active
// user session and no newer read has been applied. It reports whether the
// items were applied.
func (c *Controller) commit(tag user.Tag, seq uint64, items []domain.WishlistItem, cache bool) bool {
	if !c.users.IsCurrent(tag) {
		c.discard(tag)
		return false
	}
	if items == nil {
		items = []domain.WishlistItem{}
	}
	c.mu.Lock()
	if seq < c.applied {
		c.mu.Unlock()
		c.superseded(tag, seq)
		return false
	}
	c.applied = seq
	c.items = append([]domain.WishlistItem{}, items...)
	c.lastErr = nil
	c.updatedAt = c.now()
	c.mu.Unlock()

	if cache {
		c.store.CacheWishlist(context.Background(), tag.User, items)
	}
	c.metrics.SetWishlistItems(len(items))
	c.publish()
	return true
}

func (c *Controller) fail(tag user.Tag, seq uint64, err error) {
	if !c.users.IsCurrent(tag) {
		c.discard(tag)
		return
	}
	c.mu.Lock()
	if seq < c.applied {
		c.mu.Unlock()
		c.superseded(tag, seq)
		return
	}
	c.lastErr = err
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) discard(tag user.Tag) {
	c.metrics.ObserveStaleResponse("wishlist")
	c.logger.Debug("discarding response for previous user session",
		zap.String("user", tag.User),
		zap.Uint64("generation", tag.Generation),
	)
}

func (c *Controller) superseded(tag user.Tag, seq uint64) {
	c.metrics.ObserveStaleResponse("wishlist")
	c.logger.Debug("discarding response older than the applied wishlist",
		zap.String("user", tag.User),
		zap.Uint64("read", seq),
	)
}

func (c *Controller) publish() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.State())
}
