// Package voice drives one spoken command from microphone to committed
// wishlist change: record, transcribe, confirm, commit.
package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/audio"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/gateway"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/observability"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/poll"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/reliability"
)

type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseStarting             Phase = "starting"
	PhaseRecording            Phase = "recording"
	PhaseProcessing           Phase = "processing"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseCommitting           Phase = "committing"
)

// Outcome records how the last session ended.
type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeFailed       Outcome = "failed"
	OutcomeCommitted    Outcome = "committed"
	OutcomeCancelled    Outcome = "cancelled"
	OutcomeTimedOut     Outcome = "timed_out"
	OutcomeCommitFailed Outcome = "commit_failed"
)

const DefaultConfirmTimeout = 60 * time.Second

// Capture is the microphone side of a session.
type Capture interface {
	Supported() bool
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (audio.Artifact, error)
	Abandon()
}

type Transcriber interface {
	SubmitVoiceAudio(ctx context.Context, artifact audio.Artifact) (domain.VoiceResult, error)
}

// Committer applies a confirmed intent; the wishlist controller.
type Committer interface {
	Mutate(ctx context.Context, intent domain.Intent) (gateway.MutationResult, error)
}

// Snapshot is the observable recording session.
type Snapshot struct {
	SessionID       string              `json:"session_id,omitempty"`
	Phase           Phase               `json:"phase"`
	IsRecording     bool                `json:"is_recording"`
	IsProcessing    bool                `json:"is_processing"`
	ElapsedSeconds  int                 `json:"elapsed_seconds"`
	Elapsed         string              `json:"elapsed"`
	Result          *domain.VoiceResult `json:"result,omitempty"`
	Error           string              `json:"error,omitempty"`
	ErrorKind       domain.Kind         `json:"error_kind,omitempty"`
	Retryable       bool                `json:"retryable,omitempty"`
	Outcome         Outcome             `json:"outcome,omitempty"`
	Message         string              `json:"message,omitempty"`
	ConfirmDeadline time.Time           `json:"confirm_deadline,omitempty"`
}

type Options struct {
	// ConfirmTimeout bounds AwaitingConfirmation; zero waits forever.
	ConfirmTimeout time.Duration
	TickInterval   time.Duration
	Now            func() time.Time
	// Enabled gates new recordings, typically on the voiceEnabled preference.
	Enabled  func() bool
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	OnChange func(Snapshot)
	// OnArtifact sees every non-empty recording before it is uploaded.
	OnArtifact func(sessionID string, a audio.Artifact)
}

type Controller struct {
	capture   Capture
	stt       Transcriber
	committer Committer
	confirmTO time.Duration
	tick      time.Duration
	now       func() time.Time
	enabled   func() bool
	metrics   *observability.Metrics
	logger    *zap.Logger
	onChange  func(Snapshot)
	onArtif   func(sessionID string, a audio.Artifact)

	mu        sync.Mutex
	phase     Phase
	epoch     uint64
	sessionID string
	startedAt time.Time
	elapsed   int
	result    *domain.VoiceResult
	lastErr   error
	outcome   Outcome
	message   string
	deadline  time.Time
	ticker    *poll.Task
	timer     *time.Timer
}

func NewController(capture Capture, stt Transcriber, committer Committer, opts Options) *Controller {
	c := &Controller{
		capture:   capture,
		stt:       stt,
		committer: committer,
		confirmTO: opts.ConfirmTimeout,
		tick:      opts.TickInterval,
		now:       opts.Now,
		enabled:   opts.Enabled,
		metrics:   opts.Metrics,
		logger:    logging.OrNop(opts.Logger).Named("voice"),
		onChange:  opts.OnChange,
		onArtif:   opts.OnArtifact,
		phase:     PhaseIdle,
	}
	if c.tick <= 0 {
		c.tick = time.Second
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.confirmTO < 0 {
		c.confirmTO = 0
	}
	return c
}

// FormatElapsed renders seconds as mm:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID:       c.sessionID,
		Phase:           c.phase,
		IsRecording:     c.phase == PhaseRecording,
		IsProcessing:    c.phase == PhaseProcessing || c.phase == PhaseCommitting,
		ElapsedSeconds:  c.elapsed,
		Elapsed:         FormatElapsed(c.elapsed),
		Outcome:         c.outcome,
		Message:         c.message,
		ConfirmDeadline: c.deadline,
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	if c.lastErr != nil {
		s.Error = domain.UserMessage(c.lastErr)
		s.ErrorKind = domain.KindOf(c.lastErr)
		s.Retryable = reliability.IsRetryable(c.lastErr)
	}
	return s
}

// Start begins a new recording. Error and result of the previous session
// are cleared first.
func (c *Controller) Start(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	switch c.phase {
	case PhaseIdle:
	case PhaseStarting, PhaseRecording:
		c.mu.Unlock()
		return c.Snapshot(), domain.NewError(domain.KindRecordingActive, "", nil)
	default:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, domain.NewError(domain.KindInvalidState, fmt.Sprintf("cannot start recording while %s", snap.Phase), nil)
	}
	c.lastErr = nil
	c.result = nil
	c.outcome = OutcomeNone
	c.message = ""
	c.elapsed = 0
	c.deadline = time.Time{}

	var err error
	switch {
	case c.enabled != nil && !c.enabled():
		err = domain.NewError(domain.KindInvalidState, "voice commands are disabled in preferences", nil)
	case !c.capture.Supported():
		err = domain.NewError(domain.KindUnsupported, "", nil)
	}
	if err != nil {
		return c.startFailed(err)
	}

	// Opening the device can take a while; snapshots stay readable meanwhile.
	c.epoch++
	epoch := c.epoch
	c.phase = PhaseStarting
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	err = c.capture.StartRecording(ctx)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		if err == nil {
			c.capture.Abandon()
		}
		c.logger.Debug("recording reset while the microphone was opening")
		return c.Snapshot(), domain.NewError(domain.KindInvalidState, "recording was reset", nil)
	}
	if err != nil {
		c.phase = PhaseIdle
		return c.startFailed(err)
	}

	c.sessionID = uuid.NewString()
	c.startedAt = c.now()
	c.phase = PhaseRecording
	c.ticker = poll.Every(context.Background(), c.tick, func(context.Context) { c.onTick(epoch) })
	snap = c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug("recording started", zap.String("session_id", snap.SessionID))
	c.publish(snap)
	return snap, nil
}

// startFailed records a failed start. c.mu must be held; it is released.
func (c *Controller) startFailed(err error) (Snapshot, error) {
	c.lastErr = err
	c.outcome = OutcomeFailed
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.metrics.ObserveRecording("capture_error", 0)
	c.logger.Warn("recording could not start", zap.Error(err))
	c.publish(snap)
	return snap, err
}

func (c *Controller) onTick(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.phase != PhaseRecording {
		c.mu.Unlock()
		return
	}
	elapsed := int(c.now().Sub(c.startedAt) / time.Second)
	changed := elapsed != c.elapsed
	c.elapsed = elapsed
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if changed {
		c.publish(snap)
	}
}

// Stop ends the recording and uploads it. It returns once the backend has
// answered; the upload is not cancelled by ctx.
func (c *Controller) Stop(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.phase != PhaseRecording {
		c.mu.Unlock()
		return c.Snapshot(), domain.NewError(domain.KindNoActiveRecording, "", nil)
	}
	c.phase = PhaseProcessing
	epoch := c.epoch
	ticker := c.ticker
	c.ticker = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	ticker.Stop()
	c.publish(snap)

	ctx = context.WithoutCancel(ctx)
	artifact, err := c.capture.StopRecording(ctx)
	if err != nil {
		c.metrics.ObserveRecording("capture_error", 0)
		return c.fail(epoch, err)
	}
	if artifact.Size() == 0 {
		c.metrics.ObserveRecording("empty", 0)
		return c.fail(epoch, domain.NewError(domain.KindEmptyRecording, "", nil))
	}
	if c.onArtif != nil {
		c.onArtif(snap.SessionID, artifact)
	}

	result, err := c.stt.SubmitVoiceAudio(ctx, artifact)
	if err != nil {
		c.metrics.ObserveRecording("upload_error", artifact.Duration)
		return c.fail(epoch, err)
	}
	c.metrics.ObserveRecording("ok", artifact.Duration)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.logger.Debug("dropping transcription for reset session")
		return c.Snapshot(), domain.NewError(domain.KindInvalidState, "recording was reset", nil)
	}
	c.result = &result
	c.elapsed = 0
	c.phase = PhaseAwaitingConfirmation
	if c.confirmTO > 0 {
		c.deadline = c.now().Add(c.confirmTO)
		c.timer = time.AfterFunc(c.confirmTO, func() { c.onConfirmTimeout(epoch) })
	}
	snap = c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("voice command recognised",
		zap.String("session_id", snap.SessionID),
		zap.String("text", logging.RedactTranscript(result.RecognizedText)),
		zap.Stringer("action", result.Intent.Action),
		zap.String("product", result.Intent.Product),
	)
	c.publish(snap)
	return snap, nil
}

func (c *Controller) fail(epoch uint64, err error) (Snapshot, error) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	c.phase = PhaseIdle
	c.lastErr = err
	c.result = nil
	c.outcome = OutcomeFailed
	c.elapsed = 0
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Warn("voice command failed", zap.String("session_id", snap.SessionID), zap.Error(err))
	c.publish(snap)
	return snap, err
}

// Confirm commits the pending intent.
func (c *Controller) Confirm(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.phase != PhaseAwaitingConfirmation || c.result == nil {
		c.mu.Unlock()
		return c.Snapshot(), domain.NewError(domain.KindInvalidState, "nothing to confirm", nil)
	}
	c.stopTimerLocked()
	c.phase = PhaseCommitting
	epoch := c.epoch
	intent := c.result.Intent
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	_, err := c.committer.Mutate(ctx, intent)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	c.phase = PhaseIdle
	if err != nil {
		c.outcome = OutcomeCommitFailed
		c.lastErr = err
		c.result = nil
	} else {
		c.outcome = OutcomeCommitted
		c.message = fmt.Sprintf("Voice command processed: %s %s", intent.Action, intent.Product)
	}
	snap = c.snapshotLocked()
	c.mu.Unlock()

	c.metrics.ObserveConfirmation(string(snap.Outcome))
	if err != nil {
		c.logger.Warn("voice command commit failed", zap.Error(err))
	} else {
		c.logger.Info(snap.Message)
	}
	c.publish(snap)
	return snap, err
}

// Cancel drops the pending intent without committing it.
func (c *Controller) Cancel() (Snapshot, error) {
	c.mu.Lock()
	if c.phase != PhaseAwaitingConfirmation {
		c.mu.Unlock()
		return c.Snapshot(), domain.NewError(domain.KindInvalidState, "nothing to cancel", nil)
	}
	c.stopTimerLocked()
	c.phase = PhaseIdle
	c.result = nil
	c.outcome = OutcomeCancelled
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.metrics.ObserveConfirmation(string(OutcomeCancelled))
	c.publish(snap)
	return snap, nil
}

func (c *Controller) onConfirmTimeout(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.phase != PhaseAwaitingConfirmation {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.deadline = time.Time{}
	c.phase = PhaseIdle
	c.result = nil
	c.outcome = OutcomeTimedOut
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.metrics.ObserveConfirmation(string(OutcomeTimedOut))
	c.logger.Info("voice command confirmation timed out", zap.String("session_id", snap.SessionID))
	c.publish(snap)
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.deadline = time.Time{}
}

// Reset returns to Idle from any phase and releases the microphone. Work
// already in flight finishes but its result is dropped.
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	wasRecording := c.phase == PhaseRecording
	c.epoch++
	ticker := c.ticker
	c.ticker = nil
	c.stopTimerLocked()
	c.phase = PhaseIdle
	c.sessionID = ""
	c.elapsed = 0
	c.result = nil
	c.lastErr = nil
	c.outcome = OutcomeNone
	c.message = ""
	snap := c.snapshotLocked()
	c.mu.Unlock()

	ticker.Stop()
	c.capture.Abandon()
	if wasRecording {
		c.metrics.ObserveRecording("abandoned", 0)
	}
	c.publish(snap)
	return snap
}

func (c *Controller) publish(s Snapshot) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
