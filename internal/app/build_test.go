package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/audio"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/config"
)

func testConfig(baseURL string) config.Config {
	return config.Config{
		APIBaseURL:           baseURL,
		DefaultUser:          "alice",
		RequestTimeout:       2 * time.Second,
		StoreURL:             "memory://",
		CacheTTL:             5 * time.Minute,
		WishlistPoll:         time.Hour,
		RecommendationCheck:  time.Hour,
		RecommendationMaxAge: 5 * time.Minute,
		ConfirmTimeout:       time.Minute,
		CaptureDevice:        "mock",
		SampleRate:           16000,
		BreakerEnabled:       true,
		BreakerFailures:      3,
		BreakerOpen:          time.Minute,
		MetricsNamespace:     "voiceshop_app_test",
	}
}

func TestBuildWiresComponents(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/wishlist/{username}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"wishlist": []map[string]any{
			{"product": "Milk", "quantity": 1, "category": "dairy", "status": "manual"},
		}})
	})
	r.Get("/recommendations/{username}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"recommendations": []any{}, "note": "Wishlist empty"})
	})
	remote := httptest.NewServer(r)
	defer remote.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res, err := Build(ctx, testConfig(remote.URL), nil)
	require.NoError(t, err)

	assert.Equal(t, "alice", res.Users.Current())
	assert.Equal(t, "mock", res.CaptureInfo.Device)
	assert.True(t, res.Capture.Supported())
	assert.Equal(t, "closed", res.Gateway.BreakerState())

	assert.Equal(t, "alice", res.Store.CurrentUser(ctx))

	res.Start(ctx)
	require.Eventually(t, func() bool { return len(res.Wishlist.Items()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return res.Recommend.State().Note == "Wishlist empty" }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, res.Cleanup())
}

func TestBuildRejectsBadStore(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.StoreURL = "bogus://x"
	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestResolveCaptureDevice(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	setup, err := resolveCaptureDevice(cfg, nil)
	require.NoError(t, err)
	assert.True(t, setup.device.Available())

	cfg.CaptureDevice = "command"
	cfg.CaptureCommand = "definitely-not-a-recorder-binary -r {rate}"
	setup, err = resolveCaptureDevice(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, setup.device.Available())
	assert.Contains(t, setup.detail, "unavailable")

	cfg.CaptureDevice = "pulse"
	_, err = resolveCaptureDevice(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestRecordingSaver(t *testing.T) {
	assert.Nil(t, recordingSaver("  ", zap.NewNop()))

	dir := filepath.Join(t.TempDir(), "recordings")
	save := recordingSaver(dir, zap.NewNop())
	require.NotNil(t, save)

	wav, err := audio.EncodeWAV([]byte{1, 0, 2, 0}, 16000)
	require.NoError(t, err)
	save("abc", audio.Artifact{Data: wav})
	got, err := os.ReadFile(filepath.Join(dir, "abc-"+audio.ArtifactFileName))
	require.NoError(t, err)
	assert.Equal(t, wav, got)

	save("empty", audio.Artifact{})
	_, err = os.Stat(filepath.Join(dir, "empty-"+audio.ArtifactFileName))
	assert.True(t, os.IsNotExist(err))
}
