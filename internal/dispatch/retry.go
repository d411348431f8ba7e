package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/PinForge/internal/provider"
)

// call runs fn under the retry policy. Each attempt waits for the rate
// limiter and gets its own timeout. Only retryable failures are retried, at
// most MaxRetries times, with exponential backoff.
func (d *Dispatcher) call(ctx context.Context, name, kind string, fn func(context.Context) error) error {
	delay := d.cfg.RetryDelay
	var err error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			d.metrics.Retry(name)
			d.logger.Debug("Retrying provider call",
				zap.String("provider", name),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return err
			case <-time.After(delay):
			}
			delay *= 2
		}

		if werr := d.limiter.Wait(ctx); werr != nil {
			if err == nil {
				err = werr
			}
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
		start := time.Now()
		err = fn(callCtx)
		d.metrics.ObserveCall(name, kind, time.Since(start))
		cancel()

		if err == nil || !provider.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}
