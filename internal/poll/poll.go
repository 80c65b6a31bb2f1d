package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultTimeout is the page-load deadline used for every navigation wait.
	DefaultTimeout = 30 * time.Second
	// DefaultInterval is the pause between two predicate evaluations.
	DefaultInterval = 100 * time.Millisecond

	minInterval = 10 * time.Millisecond
)

// ErrTimeout is matched by every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("poll: timed out")

// TimeoutError reports a condition that never became true before its deadline.
type TimeoutError struct {
	Desc    string
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poll: timed out after %v waiting for %s", e.Timeout, e.Desc)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Condition is evaluated until it reports true. Returning an error aborts the wait.
type Condition func(ctx context.Context) (bool, error)

type options struct {
	timeout  time.Duration
	interval time.Duration
	desc     string
}

// Option configures Until.
type Option func(*options)

// WithTimeout sets the deadline. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithInterval sets the pause between attempts, clamped to a 10ms floor.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = max(d, minInterval)
		}
	}
}

// WithDescription names the awaited condition in timeout errors.
func WithDescription(desc string) Option {
	return func(o *options) {
		o.desc = desc
	}
}

// Until evaluates cond until it returns true or the elapsed time exceeds the
// timeout, in which case a *TimeoutError is returned. The condition always runs
// at least once.
func Until(ctx context.Context, cond Condition, opts ...Option) error {
	o := options{timeout: DefaultTimeout, interval: DefaultInterval, desc: "condition"}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	deadline := start.Add(o.timeout)
	condCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		ok, err := cond(condCtx)
		if err == nil && ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		now := time.Now()
		// Past the deadline every failed attempt is a timeout, including
		// context.Canceled from work cancelled off condCtx.
		if condCtx.Err() != nil {
			return &TimeoutError{Desc: o.desc, Timeout: o.timeout, Elapsed: now.Sub(start)}
		}
		if err != nil {
			return fmt.Errorf("poll: %s: %w", o.desc, err)
		}
		if now.After(deadline) {
			return &TimeoutError{Desc: o.desc, Timeout: o.timeout, Elapsed: now.Sub(start)}
		}

		wait := min(o.interval, deadline.Sub(now)+time.Millisecond)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
