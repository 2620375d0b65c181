package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLatencyWindowSnapshot(t *testing.T) {
	w := newLatencyWindow(4)
	for _, ms := range []float64{100, 300, 200} {
		w.Observe("wishlist", ms)
	}
	w.ObserveIndicator("stale_wishlist")
	w.ObserveIndicator("stale_wishlist")
	w.ObserveIndicator("  ")

	snap := w.Snapshot()
	if snap.WindowSize != 4 {
		t.Fatalf("WindowSize = %d, want 4", snap.WindowSize)
	}
	if len(snap.Endpoints) != 1 {
		t.Fatalf("len(Endpoints) = %d, want 1", len(snap.Endpoints))
	}
	e := snap.Endpoints[0]
	if e.Samples != 3 || e.LastMS != 200 || e.P50MS != 200 || e.MaxMS != 300 {
		t.Fatalf("unexpected stats: %+v", e)
	}
	if e.TargetP95MS != 1000 {
		t.Fatalf("TargetP95MS = %.2f, want 1000", e.TargetP95MS)
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].Count != 2 {
		t.Fatalf("unexpected indicators: %+v", snap.Indicators)
	}
}

func TestLatencyWindowWraps(t *testing.T) {
	w := newLatencyWindow(2)
	w.Observe("voice", 10)
	w.Observe("voice", 20)
	w.Observe("voice", 30)
	e := w.Snapshot().Endpoints[0]
	if e.Samples != 2 || e.MaxMS != 30 || e.AvgMS != 25 {
		t.Fatalf("unexpected stats after wrap: %+v", e)
	}
	w.Reset()
	if n := len(w.Snapshot().Endpoints); n != 0 {
		t.Fatalf("len(Endpoints) after reset = %d, want 0", n)
	}
}

func TestMetricsHandlerExposesInstruments(t *testing.T) {
	m := NewMetrics("voiceshop_test")
	m.ObserveGateway("wishlist", "ok", 120*time.Millisecond)
	m.ObserveStaleResponse("wishlist")
	m.SetWishlistItems(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`voiceshop_test_gateway_requests_total{endpoint="wishlist",outcome="ok"} 1`,
		`voiceshop_test_stale_responses_discarded_total{controller="wishlist"} 1`,
		`voiceshop_test_wishlist_items 3`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveGateway("voice", "error", time.Second)
	m.ObserveRecording("ok", time.Second)
	m.ObserveConfirmation("committed")
	m.ObservePollTick("wishlist")
	m.ObserveCache(true)
	if snap := m.LatencySnapshot(); len(snap.Endpoints) != 0 {
		t.Fatalf("nil metrics snapshot has endpoints")
	}
}
