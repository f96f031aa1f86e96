package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Parse converts "every N seconds|minutes|hours" or a Go duration string to
// a positive interval.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 3 && fields[0] == "every" {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("schedule: invalid count in %q", s)
		}
		var unit time.Duration
		switch strings.TrimSuffix(fields[2], "s") {
		case "second":
			unit = time.Second
		case "minute", "min":
			unit = time.Minute
		case "hour":
			unit = time.Hour
		default:
			return 0, fmt.Errorf("schedule: unknown unit %q in %q", fields[2], s)
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("schedule: %q is neither \"every N <unit>\" nor a duration", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("schedule: interval must be positive, got %v", d)
	}
	return d, nil
}

// TickFunc runs one tick. at is the boundary the tick was scheduled for.
type TickFunc func(ctx context.Context, at time.Time) error

// Runner calls a TickFunc on every interval boundary.
type Runner struct {
	interval time.Duration
	loc      *time.Location

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	running atomic.Bool
	skipped atomic.Int64
}

// NewRunner returns a Runner for interval aligned in loc. A nil loc means UTC.
func NewRunner(interval time.Duration, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		interval: interval,
		loc:      loc,
		now:      time.Now,
		after:    time.After,
	}
}

// Next returns the first boundary strictly after t.
func (r *Runner) Next(t time.Time) time.Time {
	t = t.In(r.loc)
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	n := t.Sub(midnight)/r.interval + 1
	return midnight.Add(n * r.interval)
}

// Skipped returns how many boundaries were dropped because a tick was still
// running.
func (r *Runner) Skipped() int64 { return r.skipped.Load() }

// Run blocks until ctx is cancelled, calling fn on each boundary. Tick errors
// are logged; they do not stop the runner. Run waits for an in-flight tick
// before returning.
func (r *Runner) Run(ctx context.Context, fn TickFunc) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	slog.Info("schedule: started",
		"interval", r.interval,
		"timezone", r.loc.String(),
		"next", r.Next(r.now()),
	)

	for {
		now := r.now()
		next := r.Next(now)

		select {
		case <-ctx.Done():
			return nil
		case <-r.after(next.Sub(now)):
		}

		if !r.running.CompareAndSwap(false, true) {
			r.skipped.Add(1)
			slog.Warn("schedule: previous tick still running, skipping", "at", next)
			continue
		}

		wg.Add(1)
		go func(at time.Time) {
			defer wg.Done()
			defer r.running.Store(false)

			if err := fn(ctx, at); err != nil {
				slog.Error("schedule: tick failed", "at", at, "err", err)
			}
		}(next)
	}
}
