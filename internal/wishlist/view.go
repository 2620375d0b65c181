package wishlist

import (
	"strings"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
)

// Stats are derived from the canonical wishlist on every read.
type Stats struct {
	Total         int            `json:"total"`
	TotalQuantity int            `json:"totalQuantity"`
	CategoryCount int            `json:"categoryCount"`
	Categories    map[string]int `json:"categories"`
}

// ComputeStats counts items, quantities (1 for an item without one) and
// items per category.
func ComputeStats(items []domain.WishlistItem) Stats {
	s := Stats{Total: len(items), Categories: make(map[string]int)}
	for _, it := range items {
		s.Categories[it.Category]++
		if it.Quantity > 0 {
			s.TotalQuantity += it.Quantity
		} else {
			s.TotalQuantity++
		}
	}
	s.CategoryCount = len(s.Categories)
	return s
}

// Filter keeps items matching category (exact, unless "all" or empty) and
// whose product or category contains search, ignoring case.
func Filter(items []domain.WishlistItem, category, search string) []domain.WishlistItem {
	category = normalizeCategory(category)
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.WishlistItem, 0, len(items))
	for _, it := range items {
		if category != domain.CategoryAll && it.Category != category {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(it.Product), term) &&
			!strings.Contains(strings.ToLower(it.Category), term) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func normalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return domain.CategoryAll
	}
	return category
}
