// Package proc runs external commands under supervision: output arrives as
// line events, the exit code is collected separately, and the process can be
// cancelled at any time.
package proc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// waitDelay bounds how long Wait lingers on open pipes after the process
// has been killed.
const waitDelay = 5 * time.Second

// Stream identifies which output pipe a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Line is one line of process output without its trailing newline.
type Line struct {
	Stream Stream
	Text   string
}

// Command describes a process to launch.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the current environment.
	Env []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Supervised is a running process. Its Lines channel must be drained;
// it is closed once both pipes reach EOF.
type Supervised struct {
	cmd    *exec.Cmd
	ctx    context.Context
	cancel context.CancelFunc
	lines  chan Line
	done   chan struct{}

	mu       sync.Mutex
	exitCode int
	err      error
}

// Start launches c. Cancelling ctx kills the process.
func Start(ctx context.Context, c Command) (*Supervised, error) {
	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.WaitDelay = waitDelay

	// Output is copied through in-memory pipes so that Wait, not the
	// readers, owns the OS pipes and WaitDelay can close them after a kill.
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting %s: %w", c.Name, err)
	}

	s := &Supervised{
		cmd:    cmd,
		ctx:    cmdCtx,
		cancel: cancel,
		lines:  make(chan Line, 64),
		done:   make(chan struct{}),
	}

	var g errgroup.Group
	g.Go(func() error { return s.pump(outR, Stdout) })
	g.Go(func() error { return s.pump(errR, Stderr) })

	go func() {
		waitErr := cmd.Wait()
		_ = outW.Close()
		_ = errW.Close()
		pumpErr := g.Wait()
		close(s.lines)
		s.finish(pumpErr, waitErr)
		cancel()
		close(s.done)
	}()

	return s, nil
}

// Lines returns the output channel.
func (s *Supervised) Lines() <-chan Line { return s.lines }

// Cancel kills the process. It is safe to call more than once.
func (s *Supervised) Cancel() { s.cancel() }

// Wait blocks until the process exits and returns its exit code. A non-zero
// exit is not an error; err is set when the process could not be waited on
// or was cancelled.
func (s *Supervised) Wait() (int, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, s.err
}

// Pid returns the operating system process ID.
func (s *Supervised) Pid() int { return s.cmd.Process.Pid }

func (s *Supervised) pump(r io.Reader, stream Stream) error {
	br := bufio.NewReader(r)
	for {
		text, err := br.ReadString('\n')
		if text != "" {
			text = strings.TrimRight(text, "\r\n")
			s.lines <- Line{Stream: stream, Text: text}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", stream, err)
		}
	}
}

func (s *Supervised) finish(pumpErr, waitErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctxErr := s.ctx.Err(); ctxErr != nil {
		s.exitCode = -1
		s.err = ctxErr
		return
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		s.exitCode = 0
	case errors.As(waitErr, &exitErr):
		s.exitCode = exitErr.ExitCode()
	default:
		s.exitCode = -1
		s.err = waitErr
		return
	}
	s.err = pumpErr
}

// Run starts c, hands every output line to onLine (which may be nil), and
// returns the exit code.
func Run(ctx context.Context, c Command, onLine func(Line)) (int, error) {
	s, err := Start(ctx, c)
	if err != nil {
		return -1, err
	}
	for line := range s.Lines() {
		if onLine != nil {
			onLine(line)
		}
	}
	return s.Wait()
}

// Output runs c and returns its combined output, newline separated, in the
// order lines were read.
func Output(ctx context.Context, c Command) (string, int, error) {
	var sb strings.Builder
	code, err := Run(ctx, c, func(l Line) {
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	})
	return sb.String(), code, err
}
