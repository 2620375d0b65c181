package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
)

type fakeStore struct {
	items []domain.StoreProduct
	err   error
	calls int
}

func (f *fakeStore) FetchStoreCatalog(context.Context) ([]domain.StoreProduct, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", domain.NewError(domain.KindStoreFetch, "", f.err)
	}
	return f.items, "", nil
}

func TestCatalogViewAndFind(t *testing.T) {
	gw := &fakeStore{items: []domain.StoreProduct{
		{Product: "Milk", Category: "dairy", Price: 1.2, Stock: 10},
		{Product: "Apple", Category: "fruit", Price: 0.5, Stock: 40},
		{Product: "Almond Milk", Category: "dairy", Price: 2.5, Stock: 0},
	}}
	var published int
	c := New(gw, nil, func(State) { published++ })
	assert.False(t, c.Loaded())
	require.NoError(t, c.Load(context.Background()))
	assert.True(t, c.Loaded())
	assert.Equal(t, 1, published)

	assert.Len(t, c.View("", ""), 3)
	assert.Len(t, c.View("dairy", ""), 2)
	assert.Len(t, c.View("all", "milk"), 2)
	assert.Len(t, c.View("fruit", "milk"), 0)
	assert.Equal(t, []string{"dairy", "fruit"}, c.State().Categories)

	p, ok := c.Find(" apple ")
	require.True(t, ok)
	assert.Equal(t, 40, p.Stock)
	_, ok = c.Find("bread")
	assert.False(t, ok)
}

func TestCatalogFailureKeepsListing(t *testing.T) {
	gw := &fakeStore{items: []domain.StoreProduct{{Product: "Milk", Category: "dairy"}}}
	c := New(gw, nil, nil)
	require.NoError(t, c.Load(context.Background()))

	gw.err = errors.New("offline")
	require.ErrorIs(t, c.Load(context.Background()), domain.ErrStoreFetch)
	st := c.State()
	assert.Len(t, st.Items, 1)
	assert.Equal(t, domain.ErrStoreFetch.Error(), st.Error)
}
