package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the voice shopping assistant.
type Config struct {
	APIBaseURL  string `env:"VOICESHOP_API_BASE_URL,required,notEmpty"`
	DefaultUser string `env:"VOICESHOP_DEFAULT_USER,required,notEmpty"`

	BindAddr        string        `env:"VOICESHOP_BIND_ADDR" envDefault:"127.0.0.1:8090"`
	ShutdownTimeout time.Duration `env:"VOICESHOP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	AllowAnyOrigin  bool          `env:"VOICESHOP_ALLOW_ANY_ORIGIN" envDefault:"false"`

	// Voice transcription can be slow; every gateway call shares this timeout.
	RequestTimeout time.Duration `env:"VOICESHOP_REQUEST_TIMEOUT" envDefault:"30s"`

	StoreURL string `env:"VOICESHOP_STORE_URL,expand" envDefault:"sqlite://${HOME}/.voiceshop/state.db"`

	CacheTTL             time.Duration `env:"VOICESHOP_CACHE_TTL" envDefault:"5m"`
	WishlistPoll         time.Duration `env:"VOICESHOP_WISHLIST_POLL" envDefault:"10s"`
	RecommendationCheck  time.Duration `env:"VOICESHOP_RECOMMEND_CHECK" envDefault:"60s"`
	RecommendationMaxAge time.Duration `env:"VOICESHOP_RECOMMEND_STALE" envDefault:"5m"`
	ConfirmTimeout       time.Duration `env:"VOICESHOP_CONFIRM_TIMEOUT" envDefault:"60s"`

	CaptureDevice  string `env:"VOICESHOP_CAPTURE_DEVICE" envDefault:"command"`
	CaptureCommand string `env:"VOICESHOP_CAPTURE_COMMAND" envDefault:"arecord -q -f S16_LE -c 1 -r 16000 -t raw"`
	SampleRate     int    `env:"VOICESHOP_SAMPLE_RATE" envDefault:"16000"`
	// RecordingDir keeps a copy of every captured utterance when set.
	RecordingDir string `env:"VOICESHOP_RECORDING_DIR,expand"`

	BreakerEnabled  bool          `env:"VOICESHOP_BREAKER_ENABLED" envDefault:"true"`
	BreakerFailures uint32        `env:"VOICESHOP_BREAKER_FAILURES" envDefault:"5"`
	BreakerOpen     time.Duration `env:"VOICESHOP_BREAKER_OPEN" envDefault:"30s"`

	LogLevel         string `env:"VOICESHOP_LOG_LEVEL" envDefault:"info"`
	LogFile          string `env:"VOICESHOP_LOG_FILE"`
	LogJSON          bool   `env:"VOICESHOP_LOG_JSON" envDefault:"false"`
	MetricsNamespace string `env:"VOICESHOP_METRICS_NAMESPACE" envDefault:"voiceshop"`
}

const envFileVar = "VOICESHOP_ENV_FILE"

// Load reads an optional .env file, then environment variables, and
// validates the result. Missing base URL or default user is fatal.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.DefaultUser = strings.TrimSpace(cfg.DefaultUser)
	cfg.CaptureDevice = strings.ToLower(strings.TrimSpace(cfg.CaptureDevice))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFile() error {
	path := strings.TrimSpace(os.Getenv(envFileVar))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("%s: %w", envFileVar, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("VOICESHOP_API_BASE_URL must be an http(s) URL, got %q", c.APIBaseURL)
	}
	if c.DefaultUser == "" {
		return fmt.Errorf("VOICESHOP_DEFAULT_USER must not be blank")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("VOICESHOP_REQUEST_TIMEOUT must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("VOICESHOP_CACHE_TTL must be positive")
	}
	if c.WishlistPoll < time.Second {
		return fmt.Errorf("VOICESHOP_WISHLIST_POLL must be at least 1s")
	}
	if c.RecommendationCheck < time.Second {
		return fmt.Errorf("VOICESHOP_RECOMMEND_CHECK must be at least 1s")
	}
	if c.RecommendationMaxAge <= 0 {
		return fmt.Errorf("VOICESHOP_RECOMMEND_STALE must be positive")
	}
	if c.ConfirmTimeout < 0 {
		return fmt.Errorf("VOICESHOP_CONFIRM_TIMEOUT must be >= 0")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("VOICESHOP_SAMPLE_RATE must be positive")
	}
	switch c.CaptureDevice {
	case "command":
		if len(strings.Fields(c.CaptureCommand)) == 0 {
			return fmt.Errorf("VOICESHOP_CAPTURE_COMMAND must not be empty when VOICESHOP_CAPTURE_DEVICE=command")
		}
	case "mock":
	default:
		return fmt.Errorf("invalid VOICESHOP_CAPTURE_DEVICE: %q (expected command|mock)", c.CaptureDevice)
	}
	if c.BreakerEnabled && c.BreakerFailures == 0 {
		return fmt.Errorf("VOICESHOP_BREAKER_FAILURES must be positive")
	}
	return nil
}
