package llmclient

import (
	"context"
	"time"
)

// rpsLimiter is a lightweight token-bucket limiter that throttles to at most
// R requests per second. A nil limiter is disabled (Acquire is a no-op).
type rpsLimiter struct {
	tokens chan struct{}
	stopCh chan struct{}
}

func newRPSLimiter(rps int) *rpsLimiter {
	if rps <= 0 {
		return nil
	}

	l := &rpsLimiter{
		tokens: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}

	// Pre-fill so the first request never waits.
	l.tokens <- struct{}{}

	period := time.Second / time.Duration(rps)
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case l.tokens <- struct{}{}:
				default:
					// bucket full; drop token
				}
			case <-l.stopCh:
				return
			}
		}
	}()

	return l
}

// Acquire blocks until a token is available or the context is canceled.
func (l *rpsLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return context.Canceled
	case <-l.tokens:
		return nil
	}
}

// Stop terminates the limiter's refill goroutine.
func (l *rpsLimiter) Stop() {
	if l == nil {
		return
	}
	close(l.stopCh)
}
