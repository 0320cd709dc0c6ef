package logstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxLineSize bounds a single SSE line.
const maxLineSize = 1 << 20

// streamSSE reads the event stream, reopening it whenever the server ends
// it cleanly.
func (s *Streamer) streamSSE(ctx context.Context, agentID string, em *emitter) error {
	retry := s.retry
	for {
		body, err := s.src.OpenLogStream(ctx, agentID)
		if err != nil {
			if isCancellation(ctx, err) {
				return nil
			}
			return fmt.Errorf("opening log stream: %w", err)
		}

		err = s.readEvents(ctx, body, em, &retry)
		_ = body.Close()
		if err != nil {
			if isCancellation(ctx, err) {
				return nil
			}
			return fmt.Errorf("reading log stream: %w", err)
		}

		s.logger.Debug("log stream closed by server", "agent", agentID, "retry", retry)
		if err := sleepCtx(ctx, retry); err != nil {
			return nil
		}
	}
}

// readEvents consumes one connection until EOF. data payloads are emitted
// as log lines; retry hints update *retry.
func (s *Streamer) readEvents(ctx context.Context, body io.Reader, em *emitter, retry *time.Duration) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimRight(scanner.Text(), "\r")

		// Blank lines separate events; ':' starts a comment.
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			em.emit(value)
		case "retry":
			ms, err := strconv.Atoi(value)
			if err != nil || ms < 0 {
				s.logger.Debug("ignoring malformed retry hint", "value", value)
				continue
			}
			*retry = time.Duration(ms) * time.Millisecond
			fmt.Fprintf(s.info, "Log stream reconnect interval set to %s\n", *retry)
		}
	}
	return scanner.Err()
}
