// Package logstream follows a deployed agent's logs until interrupted.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/xpander-ai/xpander-cli/internal/api"
	"github.com/xpander-ai/xpander-cli/internal/logger"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultRetry        = 3 * time.Second
	defaultMaxFailures  = 5
)

// Source is the remote side of the log feed.
type Source interface {
	GetAgent(ctx context.Context, id string) (*api.Agent, error)
	OpenLogStream(ctx context.Context, agentID string) (io.ReadCloser, error)
	FetchLogs(ctx context.Context, agentID string) ([]string, error)
}

// Indicator shows that the streamer is waiting for the first line.
type Indicator interface {
	Start(message string)
	Stop()
}

type noIndicator struct{}

func (noIndicator) Start(string) {}
func (noIndicator) Stop()        {}

// Streamer prints log lines to its output as they arrive.
type Streamer struct {
	src          Source
	out          io.Writer
	info         io.Writer
	logger       *slog.Logger
	wait         Indicator
	pollInterval time.Duration
	retry        time.Duration
	maxFailures  uint32
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithOutput sets where log lines go. Defaults to stdout.
func WithOutput(w io.Writer) Option { return func(s *Streamer) { s.out = w } }

// WithInfo sets where informational notices go. Defaults to stderr.
func WithInfo(w io.Writer) Option { return func(s *Streamer) { s.info = w } }

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option { return func(s *Streamer) { s.logger = l } }

// WithIndicator installs the waiting indicator.
func WithIndicator(i Indicator) Option { return func(s *Streamer) { s.wait = i } }

// WithPollInterval overrides the 2s polling cadence.
func WithPollInterval(d time.Duration) Option { return func(s *Streamer) { s.pollInterval = d } }

// WithReconnectDelay overrides the default delay before reopening a stream
// the server closed without a retry hint.
func WithReconnectDelay(d time.Duration) Option { return func(s *Streamer) { s.retry = d } }

// WithMaxFailures sets how many consecutive poll failures end the stream.
func WithMaxFailures(n uint32) Option { return func(s *Streamer) { s.maxFailures = n } }

// New creates a Streamer reading from src.
func New(src Source, opts ...Option) *Streamer {
	s := &Streamer{
		src:          src,
		out:          os.Stdout,
		info:         os.Stderr,
		logger:       logger.Discard(),
		wait:         noIndicator{},
		pollInterval: defaultPollInterval,
		retry:        defaultRetry,
		maxFailures:  defaultMaxFailures,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream follows the agent's logs until ctx is cancelled. Cancellation is
// a normal end and returns nil after printing a notice.
func (s *Streamer) Stream(ctx context.Context, agentID string) error {
	agent, err := s.src.GetAgent(ctx, agentID)
	if err != nil {
		if ctx.Err() != nil {
			return s.interrupted()
		}
		return fmt.Errorf("looking up agent %s: %w", agentID, err)
	}

	s.wait.Start("Waiting for logs...")
	em := &emitter{out: s.out, wait: s.wait}
	defer em.stop()

	if agent.DeploymentType == api.DeploymentTypeContainer {
		s.logger.Debug("streaming logs", "agent", agentID, "strategy", "sse")
		err = s.streamSSE(ctx, agentID, em)
	} else {
		s.logger.Debug("streaming logs", "agent", agentID, "strategy", "poll")
		err = s.poll(ctx, agentID, em)
	}

	if ctx.Err() != nil {
		em.stop()
		return s.interrupted()
	}
	return err
}

func (s *Streamer) interrupted() error {
	fmt.Fprintln(s.info, "\nLog streaming interrupted")
	return nil
}

// emitter writes lines and clears the waiting indicator on the first one.
type emitter struct {
	out  io.Writer
	wait Indicator
	once sync.Once
}

func (e *emitter) emit(line string) {
	e.stop()
	fmt.Fprintln(e.out, line)
}

func (e *emitter) stop() {
	e.once.Do(e.wait.Stop)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
