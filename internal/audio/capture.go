package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
)

const (
	ArtifactFileName = "voice-command.wav"
	ArtifactMIMEType = "audio/wav"
	readChunkSize    = 4096
)

// Artifact is one encoded utterance. A zero-size artifact means nothing
// was captured.
type Artifact struct {
	Data       []byte
	FileName   string
	MIMEType   string
	SampleRate int
	Duration   time.Duration
}

func (a Artifact) Size() int { return len(a.Data) }

// Service owns the microphone. At most one recording is live at a time.
type Service struct {
	device      Device
	constraints Constraints
	logger      *zap.Logger

	mu     sync.Mutex
	active *recording
}

type recording struct {
	stream Stream
	done   chan struct{}

	mu  sync.Mutex
	pcm bytes.Buffer
	err error
}

func NewService(device Device, sampleRate int, logger *zap.Logger) *Service {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Service{
		device: device,
		constraints: Constraints{
			EchoCancellation: true,
			NoiseSuppression: true,
			SampleRate:       sampleRate,
		},
		logger: logging.OrNop(logger).Named("audio"),
	}
}

// Supported reports whether the device can record at all.
func (s *Service) Supported() bool {
	return s.device != nil && s.device.Available()
}

func (s *Service) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// StartRecording acquires the microphone and begins buffering audio. It
// returns as soon as capture is running.
func (s *Service) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return domain.NewError(domain.KindRecordingActive, "", nil)
	}
	if !s.Supported() {
		return domain.NewError(domain.KindUnsupported, "", nil)
	}
	stream, err := s.device.Open(ctx, s.constraints)
	if err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}

	rec := &recording{stream: stream, done: make(chan struct{})}
	go rec.pump()
	s.active = rec
	s.logger.Debug("recording started", zap.Int("sample_rate", s.constraints.SampleRate))
	return nil
}

func (r *recording) pump() {
	defer close(r.done)
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.stream.Read(buf)
		if n > 0 {
			r.mu.Lock()
			r.pcm.Write(buf[:n])
			r.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.mu.Lock()
				r.err = err
				r.mu.Unlock()
			}
			return
		}
	}
}

// StopRecording ends the active recording, releases the microphone and
// returns the encoded artifact. An empty capture yields a zero-size
// artifact; rejecting it is up to the caller.
func (s *Service) StopRecording(ctx context.Context) (Artifact, error) {
	s.mu.Lock()
	rec := s.active
	s.active = nil
	s.mu.Unlock()
	if rec == nil {
		return Artifact{}, domain.NewError(domain.KindNoActiveRecording, "", nil)
	}

	releaseErr := rec.stream.Release()
	select {
	case <-rec.done:
	case <-ctx.Done():
		return Artifact{}, ctx.Err()
	}
	if releaseErr != nil {
		return Artifact{}, releaseErr
	}

	rec.mu.Lock()
	pcm := append([]byte(nil), rec.pcm.Bytes()...)
	readErr := rec.err
	rec.mu.Unlock()
	if readErr != nil {
		s.logger.Warn("capture stream ended with error", zap.Error(readErr), zap.Int("bytes", len(pcm)))
	}

	out := Artifact{
		FileName:   ArtifactFileName,
		MIMEType:   ArtifactMIMEType,
		SampleRate: s.constraints.SampleRate,
		Duration:   PCMDuration(len(pcm), s.constraints.SampleRate),
	}
	if len(pcm) < 2 {
		return out, nil
	}
	wav, err := EncodeWAV(pcm, s.constraints.SampleRate)
	if err != nil {
		return Artifact{}, err
	}
	out.Data = wav
	s.logger.Debug("recording stopped", zap.Int("bytes", out.Size()), zap.Duration("duration", out.Duration))
	return out, nil
}

// Abandon releases any live recording and discards its audio.
func (s *Service) Abandon() {
	s.mu.Lock()
	rec := s.active
	s.active = nil
	s.mu.Unlock()
	if rec == nil {
		return
	}
	if err := rec.stream.Release(); err != nil {
		s.logger.Warn("release abandoned recording", zap.Error(err))
	}
	s.logger.Debug("recording abandoned")
}
