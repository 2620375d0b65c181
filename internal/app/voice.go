package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/audio"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/config"
)

// mockUtterance is how much silence the mock device yields per recording.
const mockUtterance = time.Second

type captureSetup struct {
	device audio.Device
	kind   string
	detail string
}

// resolveCaptureDevice picks the microphone backend. A command device
// whose binary is missing is still returned; the voice controller reports
// it as unsupported when a recording is attempted.
func resolveCaptureDevice(cfg config.Config, logger *zap.Logger) (captureSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.CaptureDevice))
	switch mode {
	case "", "command":
		dev, err := audio.NewCommandDevice(cfg.CaptureCommand)
		if err != nil {
			return captureSetup{}, fmt.Errorf("capture device init failed: %w", err)
		}
		setup := captureSetup{device: dev, kind: "command", detail: cfg.CaptureCommand}
		if !dev.Available() {
			logger.Warn("capture command not found; voice recording unavailable", zap.String("command", cfg.CaptureCommand))
			setup.detail = "unavailable: " + cfg.CaptureCommand
		}
		return setup, nil
	case "mock":
		samples := int(mockUtterance.Seconds() * float64(cfg.SampleRate))
		return captureSetup{
			device: &audio.MockDevice{PCM: make([]byte, samples*2)},
			kind:   "mock",
			detail: fmt.Sprintf("%s of silence", mockUtterance),
		}, nil
	default:
		return captureSetup{}, fmt.Errorf("invalid VOICESHOP_CAPTURE_DEVICE: %q (expected command|mock)", cfg.CaptureDevice)
	}
}

// recordingSaver returns a hook that writes each utterance to dir as
// <session id>-voice-command.wav, or nil when dir is empty.
func recordingSaver(dir string, logger *zap.Logger) func(string, audio.Artifact) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}
	return func(sessionID string, a audio.Artifact) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("recording dir unavailable", zap.String("dir", dir), zap.Error(err))
			return
		}
		path := filepath.Join(dir, sessionID+"-"+audio.ArtifactFileName)
		if err := audio.SaveArtifact(path, a); err != nil {
			logger.Warn("save recording failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Debug("recording saved", zap.String("path", path))
	}
}
