package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/catalog"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/config"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/observability"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/recommend"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/user"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/voice"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/wishlist"
)

// Deps are the components the API drives.
type Deps struct {
	Config    config.Config
	Users     *user.Context
	Voice     *voice.Controller
	Wishlist  *wishlist.Controller
	Recommend *recommend.Controller
	Catalog   *catalog.Catalog
	// BreakerState reports the gateway circuit state for health checks.
	BreakerState func() string
	Metrics      *observability.Metrics
	Hub          *Hub
	Logger       *zap.Logger
}

type Server struct {
	cfg          config.Config
	users        *user.Context
	voice        *voice.Controller
	wishlist     *wishlist.Controller
	recommend    *recommend.Controller
	catalog      *catalog.Catalog
	breakerState func() string
	metrics      *observability.Metrics
	hub          *Hub
	logger       *zap.Logger
	validate     *validator.Validate
	upgrader     websocket.Upgrader
}

func New(d Deps) *Server {
	hub := d.Hub
	if hub == nil {
		hub = NewHub(d.Metrics, d.Logger)
	}
	allowAny := d.Config.AllowAnyOrigin
	return &Server{
		cfg:          d.Config,
		users:        d.Users,
		voice:        d.Voice,
		wishlist:     d.Wishlist,
		recommend:    d.Recommend,
		catalog:      d.Catalog,
		breakerState: d.BreakerState,
		metrics:      d.Metrics,
		hub:          hub,
		logger:       logging.OrNop(d.Logger).Named("httpapi"),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may watch state unless opted out.
				if allowAny {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/diagnostics/latency", s.handleLatency)

		r.Route("/user", func(r chi.Router) {
			r.Get("/", s.handleGetUser)
			r.Put("/", s.handleSetUser)
			r.Post("/logout", s.handleLogout)
			r.Get("/preferences", s.handleGetPreferences)
			r.Patch("/preferences", s.handlePatchPreferences)
		})

		r.Route("/voice", func(r chi.Router) {
			r.Get("/", s.handleVoiceSnapshot)
			r.Post("/start", s.handleVoiceStart)
			r.Post("/stop", s.handleVoiceStop)
			r.Post("/confirm", s.handleVoiceConfirm)
			r.Post("/cancel", s.handleVoiceCancel)
			r.Post("/reset", s.handleVoiceReset)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", s.handleGetWishlist)
			r.Delete("/", s.handleClearWishlist)
			r.Post("/refresh", s.handleRefreshWishlist)
			r.Put("/filter", s.handleSetWishlistFilter)
			r.Post("/items", s.handleAddItem)
			r.Delete("/items/{product}", s.handleRemoveItem)
		})

		r.Get("/recommendations", s.handleGetRecommendations)
		r.Post("/recommendations/refresh", s.handleRefreshRecommendations)
		r.Get("/store", s.handleGetStore)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) breaker() string {
	if s.breakerState == nil {
		return "disabled"
	}
	return s.breakerState()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"breaker_state": s.breaker(),
		"event_clients": s.hub.ClientCount(),
	})
}

// handleReady reports not ready while the gateway circuit is open.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	state := s.breaker()
	status, code := "ready", http.StatusOK
	if state == "open" {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{
		"status":        status,
		"breaker_state": state,
		"current_user":  s.users.Current(),
	})
}

func (s *Server) handleLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.LatencySnapshot())
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// decodeAndValidate decodes a required JSON body and checks its validate tags.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decodeJSON(r, out); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error(), false)
		return false
	}
	if err := s.validate.Struct(out); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error(), false)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
