package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
)

type fakeShop struct {
	mu    sync.Mutex
	lists map[string][]domain.WishlistItem
}

func (f *fakeShop) handler() http.Handler {
	r := chi.NewRouter()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	r.Post("/recognise_text_to_llm", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{
			"recognized_text": "add milk",
			"llm_response":    map[string]any{"product": "Milk", "quantity": 1, "category": "dairy", "action": "add", "status": "ai_generated"},
		})
	})
	r.Get("/wishlist/{username}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		reply(w, map[string]any{"wishlist": f.lists[chi.URLParam(r, "username")]})
	})
	r.Post("/update_wishlist/{username}", func(w http.ResponseWriter, r *http.Request) {
		var in domain.Intent
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		defer f.mu.Unlock()
		name := chi.URLParam(r, "username")
		if in.Action == domain.ActionAdd {
			f.lists[name] = append(f.lists[name], domain.WishlistItem{Product: in.Product, Quantity: in.Quantity, Category: in.Category, Status: in.Status})
		} else {
			f.lists[name] = nil
		}
		reply(w, map[string]any{"message": "Wishlist updated", "data": in})
	})
	r.Get("/recommendations/{username}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"recommendations": []map[string]any{{"product": "Bread", "category": "bakery", "price": 2.5}}})
	})
	r.Get("/store", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"store_items": []map[string]any{
			{"product": "Milk", "category": "dairy", "price": 1.5, "quantity": 7},
			{"product": "Apple", "category": "fruit", "price": 0.5, "quantity": 3},
		}})
	})
	return r
}

func setupEnv(t *testing.T) *fakeShop {
	t.Helper()
	shop := &fakeShop{lists: map[string][]domain.WishlistItem{}}
	srv := httptest.NewServer(shop.handler())
	t.Cleanup(srv.Close)

	t.Setenv("VOICESHOP_ENV_FILE", "")
	t.Setenv("VOICESHOP_API_BASE_URL", srv.URL)
	t.Setenv("VOICESHOP_DEFAULT_USER", "alice")
	t.Setenv("VOICESHOP_STORE_URL", "sqlite://"+filepath.Join(t.TempDir(), "state.db"))
	t.Setenv("VOICESHOP_CAPTURE_DEVICE", "mock")
	t.Setenv("VOICESHOP_LOG_LEVEL", "error")
	return shop
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "voiceshop version dev")
}

func TestMissingConfigFails(t *testing.T) {
	t.Setenv("VOICESHOP_ENV_FILE", "")
	t.Setenv("VOICESHOP_API_BASE_URL", "")
	t.Setenv("VOICESHOP_DEFAULT_USER", "")
	_, err := run(t, "", "user", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
}

func TestUserPersistsAcrossRuns(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "user", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Current user: alice")

	_, err = run(t, "", "user", "set", "bob")
	require.NoError(t, err)
	out, err = run(t, "", "user", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Current user: bob")

	out, err = run(t, "", "user", "prefs", "--theme", "dark", "--voice=false")
	require.NoError(t, err)
	assert.Contains(t, out, "theme=dark voice=false")

	out, err = run(t, "", "user", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "No user selected")

	out, err = run(t, "", "user", "prefs")
	require.NoError(t, err)
	assert.Contains(t, out, "theme=dark")
}

func TestWishlistCommands(t *testing.T) {
	shop := setupEnv(t)

	out, err := run(t, "", "wishlist", "add", "Apple", "-q", "2", "--category", "fruit")
	require.NoError(t, err)
	assert.Contains(t, out, "Wishlist updated")
	require.Len(t, shop.lists["alice"], 1)
	assert.Equal(t, domain.StatusManual, shop.lists["alice"][0].Status)

	out, err = run(t, "", "wishlist", "list", "--refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "1 items, 2 units")
	assert.Contains(t, out, "Apple")

	out, err = run(t, "", "--json", "wishlist", "list", "--category", "dairy")
	require.NoError(t, err)
	var payload struct {
		Items []domain.WishlistItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Empty(t, payload.Items)

	_, err = run(t, "", "wishlist", "clear")
	require.NoError(t, err)
	assert.Empty(t, shop.lists["alice"])
}

func TestRecordConfirmAndCancel(t *testing.T) {
	shop := setupEnv(t)
	recordings := t.TempDir()
	t.Setenv("VOICESHOP_RECORDING_DIR", recordings)

	out, err := run(t, "\n", "record", "--seconds", "0", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, `Heard: "add milk"`)
	assert.Contains(t, out, "In store: 7 available at 1.50")
	assert.Contains(t, out, "Voice command processed: add Milk")
	require.Len(t, shop.lists["alice"], 1)
	assert.Equal(t, domain.StatusAIGenerated, shop.lists["alice"][0].Status)

	out, err = run(t, "\nn\n", "record", "--seconds", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled.")
	assert.Len(t, shop.lists["alice"], 1)

	saved, err := filepath.Glob(filepath.Join(recordings, "*-voice-command.wav"))
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestStoreAndRecommendations(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "store", "--category", "fruit")
	require.NoError(t, err)
	assert.Contains(t, out, "Apple")
	assert.NotContains(t, out, "Milk")

	out, err = run(t, "", "recommendations")
	require.NoError(t, err)
	assert.Contains(t, out, "1 suggestions, average price 2.50")
	assert.Contains(t, out, "Bread")
}
