// Package app wires the assistant's components together.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/audio"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/catalog"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/config"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/gateway"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/httpapi"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/observability"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/recommend"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/storage"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/user"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/voice"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/wishlist"
)

type CaptureInfo struct {
	Device string
	Detail string
}

type BuildResult struct {
	Config    config.Config
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Store     *storage.Adapter
	Gateway   *gateway.Client
	Users     *user.Context
	Capture   *audio.Service
	Voice     *voice.Controller
	Wishlist  *wishlist.Controller
	Recommend *recommend.Controller
	Catalog   *catalog.Catalog
	Hub       *httpapi.Hub
	API       *httpapi.Server
	CaptureInfo

	// Cleanup stops background loops and releases the store and microphone.
	Cleanup func() error
}

// Build constructs every component from cfg. Nothing runs in the
// background until Start is called.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	logger = logging.OrNop(logger)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	backend, err := storage.Open(ctx, cfg.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}
	store := storage.NewAdapter(backend,
		storage.WithCacheTTL(cfg.CacheTTL),
		storage.WithLogger(logger),
	)

	var breaker *gateway.BreakerSettings
	if cfg.BreakerEnabled {
		breaker = &gateway.BreakerSettings{Failures: cfg.BreakerFailures, Open: cfg.BreakerOpen}
	}
	gw, err := gateway.New(gateway.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Breaker: breaker,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("gateway init failed: %w", err)
	}

	capture, err := resolveCaptureDevice(cfg, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	capSvc := audio.NewService(capture.device, cfg.SampleRate, logger)

	users := user.New(store, cfg.DefaultUser, logger)
	users.Init(ctx)

	hub := httpapi.NewHub(metrics, logger)
	users.Subscribe(func(_ user.Change, snap user.Snapshot) { hub.Publish(httpapi.EventUser, snap) })

	cat := catalog.New(gw, logger, func(st catalog.State) { hub.Publish(httpapi.EventStore, st) })
	wish := wishlist.New(gw, store, users, wishlist.Options{
		PollInterval: cfg.WishlistPoll,
		Metrics:      metrics,
		Logger:       logger,
		OnChange:     func(st wishlist.State) { hub.Publish(httpapi.EventWishlist, st) },
		// Stock moves with every wishlist change.
		OnMutated: func(ctx context.Context) {
			if err := cat.Load(ctx); err != nil {
				logger.Warn("store refresh after wishlist change failed", zap.Error(err))
			}
		},
	})
	recs := recommend.New(gw, users, recommend.Options{
		CheckInterval: cfg.RecommendationCheck,
		MaxAge:        cfg.RecommendationMaxAge,
		Metrics:       metrics,
		Logger:        logger,
		OnChange:      func(st recommend.State) { hub.Publish(httpapi.EventRecommendations, st) },
	})
	vc := voice.NewController(capSvc, gw, wish, voice.Options{
		ConfirmTimeout: cfg.ConfirmTimeout,
		Enabled:        func() bool { return users.Preferences().VoiceEnabled },
		Metrics:        metrics,
		Logger:         logger,
		OnChange:       func(s voice.Snapshot) { hub.Publish(httpapi.EventVoice, s) },
		OnArtifact:     recordingSaver(cfg.RecordingDir, logger),
	})

	api := httpapi.New(httpapi.Deps{
		Config:       cfg,
		Users:        users,
		Voice:        vc,
		Wishlist:     wish,
		Recommend:    recs,
		Catalog:      cat,
		BreakerState: gw.BreakerState,
		Metrics:      metrics,
		Hub:          hub,
		Logger:       logger,
	})

	cleanup := func() error {
		wish.Close()
		recs.Close()
		vc.Reset()
		hub.Close()
		var errs []error
		if err := backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		return errors.Join(errs...)
	}

	logger.Info("assistant built",
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.String("store", logging.RedactURL(cfg.StoreURL)),
		zap.String("capture_device", capture.kind),
		zap.String("current_user", users.Current()),
	)

	return &BuildResult{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Store:       store,
		Gateway:     gw,
		Users:       users,
		Capture:     capSvc,
		Voice:       vc,
		Wishlist:    wish,
		Recommend:   recs,
		Catalog:     cat,
		Hub:         hub,
		API:         api,
		CaptureInfo: CaptureInfo{Device: capture.kind, Detail: capture.detail},
		Cleanup:     cleanup,
	}, nil
}

// Start runs the wishlist and recommendation loops until ctx ends or
// Cleanup is called.
func (b *BuildResult) Start(ctx context.Context) {
	b.Wishlist.Start(ctx)
	b.Recommend.Start(ctx)
}
