package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
)

// Constraints are the capture settings requested when a stream is opened.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
}

// Stream is an open microphone. Release must be called exactly once the
// recording ends; it is safe to call more than once.
type Stream interface {
	io.Reader
	Release() error
}

// Device acquires microphone streams.
type Device interface {
	// Available reports whether the platform can record at all.
	Available() bool
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// DefaultStartGrace is how long Open waits for a recorder to fail before
// treating a silent, still running process as started.
const DefaultStartGrace = 300 * time.Millisecond

// CommandDevice records by running an external capture program that
// writes raw mono PCM16LE to stdout (arecord, sox, ffmpeg).
type CommandDevice struct {
	argv []string
	// StartGrace overrides DefaultStartGrace.
	StartGrace time.Duration
}

// NewCommandDevice parses a command line. The placeholder {rate} is
// replaced by the requested sample rate when the stream opens.
func NewCommandDevice(commandLine string) (*CommandDevice, error) {
	argv := strings.Fields(commandLine)
	if len(argv) == 0 {
		return nil, fmt.Errorf("capture command is empty")
	}
	return &CommandDevice{argv: argv}, nil
}

func (d *CommandDevice) Available() bool {
	_, err := exec.LookPath(d.argv[0])
	return err == nil
}

func (d *CommandDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	path, err := exec.LookPath(d.argv[0])
	if err != nil {
		return nil, classifyStartError(err)
	}
	args := make([]string, 0, len(d.argv)-1)
	for _, a := range d.argv[1:] {
		args = append(args, strings.ReplaceAll(a, "{rate}", strconv.Itoa(c.SampleRate)))
	}

	// The process must outlive the request context that opened it.
	cmd := exec.Command(path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, classifyStartError(err)
	}
	s := &commandStream{
		cmd:    cmd,
		stdout: bufio.NewReaderSize(stdout, readChunkSize),
		stderr: &stderr,
		ready:  make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.awaitAudio()

	// A recorder denied the microphone exits before writing anything.
	grace := d.StartGrace
	if grace <= 0 {
		grace = DefaultStartGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-s.ready:
		if s.firstErr != nil {
			s.reap()
			return nil, s.startFailure()
		}
	case <-timer.C:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-s.ready
		s.reap()
		return nil, ctx.Err()
	}
	return s, nil
}

func classifyStartError(err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return domain.NewError(domain.KindUnsupported, "", err)
	case errors.Is(err, fs.ErrPermission):
		return domain.NewError(domain.KindPermission, "", err)
	default:
		return fmt.Errorf("start capture: %w", err)
	}
}

type commandStream struct {
	cmd    *exec.Cmd
	stdout *bufio.Reader
	stderr *bytes.Buffer

	// ready is closed once the first byte arrived or stdout ended.
	ready    chan struct{}
	firstErr error

	reapOnce    sync.Once
	releaseOnce sync.Once
	exited      chan struct{}
	waitErr     error
}

func (s *commandStream) awaitAudio() {
	_, s.firstErr = s.stdout.Peek(1)
	close(s.ready)
}

// startFailure explains a recorder that exited before producing audio.
// The process must have been reaped.
func (s *commandStream) startFailure() error {
	msg := strings.TrimSpace(s.stderr.String())
	if isPermissionMessage(msg) {
		return domain.NewError(domain.KindPermission, "", errors.New(msg))
	}
	if msg == "" {
		msg = "recorder exited before producing audio"
		if s.waitErr != nil {
			msg += ": " + s.waitErr.Error()
		}
	}
	return domain.NewError(domain.KindUnsupported, "", errors.New(msg))
}

func (s *commandStream) Read(p []byte) (int, error) {
	<-s.ready
	n, err := s.stdout.Read(p)
	if err != nil {
		s.reap()
	}
	return n, err
}

// reap waits for the process once stdout has been drained.
func (s *commandStream) reap() {
	s.reapOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
		close(s.exited)
	})
}

func (s *commandStream) Release() error {
	s.releaseOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		select {
		case <-s.exited:
		case <-time.After(2 * time.Second):
			s.reap()
		}
	})
	if msg := strings.TrimSpace(s.stderr.String()); msg != "" && isPermissionMessage(msg) {
		return domain.NewError(domain.KindPermission, "", errors.New(msg))
	}
	return nil
}

func isPermissionMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
}

// MockDevice replays fixed PCM data. It counts acquisitions so tests can
// check that every stream gets released.
type MockDevice struct {
	PCM         []byte
	Unavailable bool
	OpenErr     error

	mu       sync.Mutex
	opened   int
	released int
	last     Constraints
}

func (d *MockDevice) Available() bool { return !d.Unavailable }

func (d *MockDevice) Open(_ context.Context, c Constraints) (Stream, error) {
	if d.Unavailable {
		return nil, domain.NewError(domain.KindUnsupported, "", nil)
	}
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.mu.Lock()
	d.opened++
	d.last = c
	d.mu.Unlock()
	return &mockStream{dev: d, r: bytes.NewReader(d.PCM)}, nil
}

// Held reports how many streams are open and not yet released.
func (d *MockDevice) Held() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened - d.released
}

func (d *MockDevice) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

func (d *MockDevice) LastConstraints() Constraints {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

type mockStream struct {
	dev  *MockDevice
	r    *bytes.Reader
	once sync.Once
}

func (s *mockStream) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *mockStream) Release() error {
	s.once.Do(func() {
		s.dev.mu.Lock()
		s.dev.released++
		s.dev.mu.Unlock()
	})
	return nil
}
