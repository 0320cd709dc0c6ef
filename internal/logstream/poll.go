package logstream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/xpander-ai/xpander-cli/internal/api"
)

// poll fetches the log buffer on a fixed cadence and prints lines it has
// not printed before. A missing log buffer (404) is not a failure.
func (s *Streamer) poll(ctx context.Context, agentID string, em *emitter) error {
	limiter := rate.NewLimiter(rate.Every(s.pollInterval), 1)
	cb := gobreaker.NewCircuitBreaker[[]string](gobreaker.Settings{
		Name:    "logs:" + agentID,
		Timeout: time.Duration(math.MaxInt64),
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || api.IsNotFound(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("log polling breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	seen := make(map[string]struct{})
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		lines, err := cb.Execute(func() ([]string, error) {
			return s.src.FetchLogs(ctx, agentID)
		})
		switch {
		case err == nil:
		case isCancellation(ctx, err):
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return fmt.Errorf("log polling stopped after %d consecutive failures: %w", s.maxFailures, err)
		case api.IsNotFound(err):
			continue
		default:
			s.logger.Debug("log poll failed", "agent", agentID, "error", err)
			continue
		}

		for _, line := range lines {
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			em.emit(line)
		}
	}
}
