// Package catalog caches the store's product list for browsing.
package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
)

type Gateway interface {
	FetchStoreCatalog(ctx context.Context) ([]domain.StoreProduct, string, error)
}

type State struct {
	Items      []domain.StoreProduct `json:"items"`
	Categories []string              `json:"categories"`
	Note       string                `json:"note,omitempty"`
	FetchedAt  time.Time             `json:"fetched_at,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Catalog holds the last successful store listing. Stock changes with
// every wishlist mutation, so the app reloads it after each one.
type Catalog struct {
	gw       Gateway
	now      func() time.Time
	logger   *zap.Logger
	onChange func(State)

	mu        sync.RWMutex
	items     []domain.StoreProduct
	note      string
	fetchedAt time.Time
	lastErr   error
}

func New(gw Gateway, logger *zap.Logger, onChange func(State)) *Catalog {
	return &Catalog{
		gw:       gw,
		now:      time.Now,
		logger:   logging.OrNop(logger).Named("catalog"),
		onChange: onChange,
		items:    []domain.StoreProduct{},
	}
}

func (c *Catalog) Load(ctx context.Context) error {
	items, note, err := c.gw.FetchStoreCatalog(ctx)
	c.mu.Lock()
	if err != nil {
		c.lastErr = err
	} else {
		c.items = items
		c.note = note
		c.fetchedAt = c.now()
		c.lastErr = nil
	}
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn("store catalog refresh failed", zap.Error(err))
	}
	if c.onChange != nil {
		c.onChange(c.State())
	}
	return err
}

// Loaded reports whether a listing has been fetched successfully.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.fetchedAt.IsZero()
}

// Find returns the product whose name matches, ignoring case.
func (c *Catalog) Find(product string) (domain.StoreProduct, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.items {
		if strings.EqualFold(p.Product, strings.TrimSpace(product)) {
			return p, true
		}
	}
	return domain.StoreProduct{}, false
}

// View filters by category ("all" or "" for every category) and a
// case-insensitive search over product and category names.
func (c *Catalog) View(category, search string) []domain.StoreProduct {
	c.mu.RLock()
	defer c.mu.RUnlock()
	category = strings.TrimSpace(category)
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.StoreProduct, 0, len(c.items))
	for _, p := range c.items {
		if category != "" && category != domain.CategoryAll && p.Category != category {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.Product), term) &&
			!strings.Contains(strings.ToLower(p.Category), term) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Catalog) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{})
	var cats []string
	for _, p := range c.items {
		if _, ok := seen[p.Category]; !ok {
			seen[p.Category] = struct{}{}
			cats = append(cats, p.Category)
		}
	}
	sort.Strings(cats)
	s := State{
		Items:      append([]domain.StoreProduct{}, c.items...),
		Categories: cats,
		Note:       c.note,
		FetchedAt:  c.fetchedAt,
	}
	if c.lastErr != nil {
		s.Error = domain.UserMessage(c.lastErr)
	}
	return s
}
