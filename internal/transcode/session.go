// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcode supervises ffmpeg processes that re-stream a remote video
// as MPEG-TS, exposing each process's stdout as a lazy sequence of chunks.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vidrelay/internal/infra/ffmpeg"
	xglog "github.com/ManuGH/vidrelay/internal/log"
	"github.com/ManuGH/vidrelay/internal/metrics"
	"github.com/ManuGH/vidrelay/internal/procgroup"
	"github.com/ManuGH/vidrelay/internal/telemetry"
)

var (
	// ErrProcessStart is returned by Start when ffmpeg could not be spawned.
	ErrProcessStart = errors.New("transcode process could not be started")

	// ErrProcessExit is returned by Peek when ffmpeg exited with an error
	// before producing any output.
	ErrProcessExit = errors.New("transcode process exited without output")

	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("transcode session closed")
)

const (
	DefaultFFmpegBin = "ffmpeg"
	DefaultChunkSize = 1 << 20
	DefaultKillGrace = 3 * time.Second

	stderrTailLines = 50
	stderrTailBytes = 2048
)

// Config tunes every session started by a Transcoder.
type Config struct {
	FFmpegBin string
	ChunkSize int
	KillGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.FFmpegBin == "" {
		c.FFmpegBin = DefaultFFmpegBin
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.KillGrace <= 0 {
		c.KillGrace = DefaultKillGrace
	}
	return c
}

// Spec describes one download.
type Spec struct {
	// TaskID identifies the session. A random UUID is used when empty.
	TaskID   string
	ClientID string
	URL      string
	Headers  map[string]string

	// OnClose runs exactly once when the session ends, whichever way it
	// ends. It also runs when Start fails.
	OnClose func()
}

// Transcoder starts sessions.
type Transcoder struct {
	cfg    Config
	logger zerolog.Logger
}

// NewTranscoder returns a Transcoder using cfg, with zero fields defaulted.
func NewTranscoder(cfg Config, logger zerolog.Logger) *Transcoder {
	return &Transcoder{
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str(xglog.FieldComponent, "transcode").Logger(),
	}
}

// Session is one supervised ffmpeg process. The zero value is not usable.
type Session struct {
	id        string
	clientID  string
	sourceURL string
	startedAt time.Time
	grace     time.Duration
	logger    zerolog.Logger

	cmd  *exec.Cmd
	ring *ffmpeg.RingBuffer

	chunks  chan []byte
	pending []byte
	stop    chan struct{}
	exited  chan struct{}
	exitErr error
	readErr error

	eofSeen   atomic.Bool
	bytesSent atomic.Int64
	errClass  atomic.Value

	mu    sync.Mutex
	state State

	closeOnce sync.Once
	stopWatch func() bool
	onClose   func()
}

// Start spawns ffmpeg for spec in its own process group and returns the
// Running session. The session is closed automatically when ctx ends.
// On failure spec.OnClose has already run and the error wraps
// ErrProcessStart.
func (t *Transcoder) Start(ctx context.Context, spec Spec) (*Session, error) {
	_, span := telemetry.Tracer("vidrelay/transcode").Start(ctx, "transcode.start")
	defer span.End()

	id := spec.TaskID
	if id == "" {
		id = uuid.NewString()
	}
	logger := t.logger.With().
		Str(xglog.FieldTaskID, id).
		Str(xglog.FieldClientID, spec.ClientID).
		Logger()

	fail := func(err error) (*Session, error) {
		metrics.SessionStartFailuresTotal.Inc()
		telemetry.RecordError(span, err, "process_start")
		logger.Error().Err(err).Str(xglog.FieldEvent, "transcode.start_failed").Msg("failed to start ffmpeg")
		if spec.OnClose != nil {
			spec.OnClose()
		}
		return nil, fmt.Errorf("%w: %w", ErrProcessStart, err)
	}

	// A caller that left before the spawn gets no process.
	if err := ctx.Err(); err != nil {
		logger.Debug().Err(err).Str(xglog.FieldEvent, "transcode.start_canceled").Msg("context ended before ffmpeg was spawned")
		if spec.OnClose != nil {
			spec.OnClose()
		}
		return nil, fmt.Errorf("%w: %w", ErrProcessStart, err)
	}

	// #nosec G204 -- binary comes from config; the URL is a single argv entry.
	cmd := exec.Command(t.cfg.FFmpegBin, Args(spec.URL, spec.Headers)...)
	procgroup.Set(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(fmt.Errorf("stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		return fail(fmt.Errorf("stderr pipe: %w", err))
	}

	s := &Session{
		id:        id,
		clientID:  spec.ClientID,
		sourceURL: spec.URL,
		grace:     t.cfg.KillGrace,
		logger:    logger,
		cmd:       cmd,
		ring:      ffmpeg.NewRingBuffer(stderrTailLines),
		chunks:    make(chan []byte),
		stop:      make(chan struct{}),
		exited:    make(chan struct{}),
		state:     StateCreated,
		onClose:   spec.OnClose,
	}

	if err := cmd.Start(); err != nil {
		return fail(err)
	}
	s.startedAt = time.Now()

	span.SetAttributes(telemetry.SessionAttributes(id, spec.ClientID, cmd.Process.Pid)...)
	metrics.SessionsActive.Inc()
	s.transition(StateRunning)
	logger.Info().
		Str(xglog.FieldEvent, "transcode.started").
		Int(xglog.FieldPID, cmd.Process.Pid).
		Str(xglog.FieldSourceURL, spec.URL).
		Msg("ffmpeg started")

	go s.supervise(stdout, stderr, t.cfg.ChunkSize)
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	s.mu.Lock()
	s.stopWatch = stop
	s.mu.Unlock()

	return s, nil
}

// supervise owns the process: it pumps stdout, drains stderr and reaps the
// process once both pipes reach EOF.
func (s *Session) supervise(stdout, stderr io.Reader, chunkSize int) {
	var drained sync.WaitGroup
	drained.Add(1)
	go func() {
		defer drained.Done()
		ffmpeg.DrainStderr(stderr, s.ring, s.logger, func(class string) {
			s.errClass.CompareAndSwap(nil, class)
			metrics.IncFFmpegError(class)
		})
	}()

	s.pump(stdout, chunkSize)
	drained.Wait()

	err := s.cmd.Wait()
	s.mu.Lock()
	s.exitErr = err
	s.mu.Unlock()
	close(s.exited)
}

func (s *Session) pump(stdout io.Reader, chunkSize int) {
	defer close(s.chunks)
	buf := make([]byte, chunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.stop:
				// Keep the pipe empty so the process can act on SIGTERM.
				_, _ = io.Copy(io.Discard, stdout)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.mu.Lock()
				s.readErr = err
				s.mu.Unlock()
				s.logger.Warn().Err(err).Str(xglog.FieldEvent, "transcode.read_failed").Msg("reading ffmpeg output failed")
				_, _ = io.Copy(io.Discard, stdout)
			}
			return
		}
	}
}

// Next returns the next chunk of output. It returns io.EOF once ffmpeg has
// closed its output and exited; the session is closed by then. A read error
// on the pipe is returned in place of io.EOF.
func (s *Session) Next(ctx context.Context) ([]byte, error) {
	if p := s.takePending(); p != nil {
		return p, nil
	}

	select {
	case <-s.stop:
		return nil, ErrClosed
	default:
	}

	select {
	case chunk, ok := <-s.chunks:
		if ok {
			return chunk, nil
		}
	case <-s.stop:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Output is exhausted; wait for the reap before reporting the end.
	select {
	case <-s.exited:
	case <-s.stop:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.eofSeen.Store(true)
	_ = s.Close()

	s.mu.Lock()
	readErr := s.readErr
	s.mu.Unlock()
	if readErr != nil {
		return nil, readErr
	}
	return nil, io.EOF
}

func (s *Session) takePending() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

// Peek blocks until ffmpeg produces its first chunk or exits. It returns an
// error wrapping ErrProcessExit when ffmpeg failed without writing anything,
// so callers can still answer with an error before committing a response.
// The peeked chunk is returned by the next call to Next.
func (s *Session) Peek(ctx context.Context) error {
	chunk, err := s.Next(ctx)
	switch {
	case err == nil:
		s.mu.Lock()
		s.pending = chunk
		s.mu.Unlock()
		return nil
	case errors.Is(err, io.EOF):
		if exitErr := s.ExitErr(); exitErr != nil {
			return fmt.Errorf("%w: %v (%s)", ErrProcessExit, exitErr, s.StderrTail())
		}
		return nil
	default:
		return err
	}
}

type flusher interface {
	Flush()
}

// Stream copies every chunk to w, flushing after each one when w supports
// it, and closes the session when done. A canceled ctx or a failed write
// (the client went away) ends the stream quietly; neither is an error from
// the session's point of view. It returns the number of bytes written.
func (s *Session) Stream(ctx context.Context, w io.Writer) int64 {
	defer func() { _ = s.Close() }()

	f, _ := w.(flusher)
	var written int64
	for {
		chunk, err := s.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug().Err(err).Str(xglog.FieldEvent, "transcode.stream_ended").Msg("stream ended early")
			}
			return written
		}

		n, werr := w.Write(chunk)
		written += int64(n)
		s.bytesSent.Add(int64(n))
		metrics.AddBytesStreamed(n)
		if werr != nil {
			s.logger.Debug().Err(werr).Str(xglog.FieldEvent, "transcode.client_gone").Msg("client stopped reading")
			return written
		}
		if f != nil {
			f.Flush()
		}
	}
}

// Close stops the session and blocks until ffmpeg has been reaped. A running
// process receives SIGTERM on its process group and, after the grace period,
// SIGKILL. Close is idempotent and safe for concurrent use; every caller
// returns only after cleanup has finished.
func (s *Session) Close() error {
	s.closeOnce.Do(s.shutdown)
	return nil
}

func (s *Session) shutdown() {
	s.mu.Lock()
	stopWatch := s.stopWatch
	s.mu.Unlock()
	if stopWatch != nil {
		stopWatch()
	}
	close(s.stop)

	select {
	case <-s.exited:
		if s.eofSeen.Load() {
			s.transition(StateCompleted)
		} else {
			s.transition(StateTerminated)
		}
	default:
		s.transition(StateTerminated)
		waitCh := make(chan error, 1)
		go func() {
			<-s.exited
			waitCh <- s.ExitErr()
		}()
		if forced, _ := procgroup.Terminate(s.cmd, waitCh, s.grace); forced {
			s.transition(StateKilled)
		}
	}
	<-s.exited

	state := s.State()
	metrics.SessionsActive.Dec()
	metrics.RecordSessionEnd(state.String(), time.Since(s.startedAt).Seconds())

	ev := s.logger.Info().
		Str(xglog.FieldEvent, "transcode.closed").
		Str("state", state.String()).
		Int64("bytes_sent", s.bytesSent.Load()).
		Dur("duration", time.Since(s.startedAt))
	if err := s.ExitErr(); err != nil && state == StateCompleted {
		ev = ev.AnErr("exit_error", err).Str("stderr_tail", s.StderrTail())
	}
	ev.Msg("transcode session closed")

	if s.onClose != nil {
		s.onClose()
	}
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	if !canTransition(from, to) {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()

	s.logger.Debug().
		Str(xglog.FieldEvent, "transcode.state").
		Str(xglog.FieldOldState, from.String()).
		Str(xglog.FieldNewState, to.String()).
		Msg("session state changed")
}

// ID returns the task id.
func (s *Session) ID() string { return s.id }

// ClientID returns the owning client identity.
func (s *Session) ClientID() string { return s.clientID }

// PID returns the ffmpeg process id.
func (s *Session) PID() int { return s.cmd.Process.Pid }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BytesSent returns the bytes written by Stream so far.
func (s *Session) BytesSent() int64 { return s.bytesSent.Load() }

// ExitErr returns the process Wait error, or nil while running or after a
// clean exit.
func (s *Session) ExitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// ErrorClass returns the first classified ffmpeg stderr failure, if any.
func (s *Session) ErrorClass() string {
	if v, ok := s.errClass.Load().(string); ok {
		return v
	}
	return ""
}

// StderrTail returns the last lines ffmpeg wrote to stderr.
func (s *Session) StderrTail() string {
	return s.ring.Tail(stderrTailBytes)
}

// Done is closed once the process has been reaped.
func (s *Session) Done() <-chan struct{} { return s.exited }

// Snapshot is a point-in-time view of a session for progress output.
type Snapshot struct {
	TaskID    string    `json:"task_id"`
	Client    string    `json:"client"`
	State     string    `json:"state"`
	BytesSent int64     `json:"bytes_sent"`
	StartedAt time.Time `json:"started_at"`
	SourceURL string    `json:"source_url"`
}

// Snapshot returns the current progress view.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		TaskID:    s.id,
		Client:    s.clientID,
		State:     s.State().String(),
		BytesSent: s.bytesSent.Load(),
		StartedAt: s.startedAt,
		SourceURL: s.sourceURL,
	}
}
