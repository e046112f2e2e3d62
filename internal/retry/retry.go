package retry

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"lockScope/internal/metrics"
)

// DefaultSchedule is the wait before each attempt: immediate, then 1s, 2.5s and 5s.
var DefaultSchedule = []time.Duration{0, time.Second, 2500 * time.Millisecond, 5 * time.Second}

const probeTimeout = 5 * time.Second

// NetworkProbe reports the chain id of the current connection.
type NetworkProbe func(ctx context.Context) (*big.Int, error)

// FetchError is returned once every attempt has failed. NetID and NetworkType
// are zero when the network could not be probed.
type FetchError struct {
	Err         error
	NetID       uint64
	NetworkType string
}

func (e *FetchError) Error() string {
	if e.NetID == 0 {
		return fmt.Sprintf("fetch failed: %v", e.Err)
	}
	return fmt.Sprintf("fetch failed on %s (net %d): %v", e.NetworkType, e.NetID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retries an operation along a fixed delay schedule.
type Fetcher struct {
	Name        string
	Schedule    []time.Duration
	Probe       NetworkProbe
	NetworkName func(chainID uint64) string
	Logger      *zap.Logger
	Metrics     *metrics.Metrics

	// Retryable reports whether a failed attempt is worth repeating. Nil
	// retries every error.
	Retryable func(error) bool

	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run calls op until it succeeds or the schedule is exhausted.
func Run[T any](ctx context.Context, f *Fetcher, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if f == nil {
		f = &Fetcher{}
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	schedule := f.Schedule
	if len(schedule) == 0 {
		schedule = []time.Duration{0}
	}
	sleep := f.Sleep
	if sleep == nil {
		sleep = wait
	}

	var lastErr error
	for attempt, delay := range schedule {
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}

		f.Metrics.RetryAttempt(f.Name)
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		logger.Warn("fetch attempt failed",
			zap.String("operation", f.Name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", len(schedule)),
			zap.Error(err),
		)
		if f.Retryable != nil && !f.Retryable(err) {
			break
		}
	}

	f.Metrics.RetryGaveUp(f.Name)
	return zero, f.enrich(ctx, lastErr)
}

// enrich is best effort: a failing probe leaves the network fields empty.
func (f *Fetcher) enrich(ctx context.Context, err error) *FetchError {
	out := &FetchError{Err: err}
	if f.Probe == nil {
		return out
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	chainID, probeErr := f.Probe(probeCtx)
	if probeErr != nil || chainID == nil || !chainID.IsUint64() {
		if f.Logger != nil {
			f.Logger.Debug("network probe failed", zap.String("operation", f.Name), zap.Error(probeErr))
		}
		return out
	}

	out.NetID = chainID.Uint64()
	if f.NetworkName != nil {
		out.NetworkType = f.NetworkName(out.NetID)
	}
	return out
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
