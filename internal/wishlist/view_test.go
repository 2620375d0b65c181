package wishlist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
)

func TestFilterComposition(t *testing.T) {
	items := []domain.WishlistItem{
		{Product: "Milk", Category: "dairy"},
		{Product: "Apple", Category: "fruit"},
	}

	assert.Equal(t, items[:1], Filter(items, "dairy", ""))
	assert.Equal(t, items[1:], Filter(items, "all", "app"))
	assert.Equal(t, items[1:], Filter(items, "", "APP"))
	// Search also matches the category name.
	assert.Equal(t, items[:1], Filter(items, "dairy", "a"))
	assert.Empty(t, Filter(items, "fruit", "milk"))
	assert.Equal(t, items, Filter(items, "all", ""))
}

func TestComputeStats(t *testing.T) {
	items := []domain.WishlistItem{
		{Category: "dairy", Quantity: 2},
		{Category: "dairy", Quantity: 1},
		{Category: "fruit", Quantity: 3},
	}
	assert.Equal(t, Stats{
		Total:         3,
		TotalQuantity: 6,
		CategoryCount: 2,
		Categories:    map[string]int{"dairy": 2, "fruit": 1},
	}, ComputeStats(items))

	s := ComputeStats([]domain.WishlistItem{{Category: "misc"}})
	assert.Equal(t, 1, s.TotalQuantity)

	empty := ComputeStats(nil)
	assert.Equal(t, 0, empty.Total)
	assert.NotNil(t, empty.Categories)
}
