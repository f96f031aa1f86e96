package alerts

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hivewatch/hivewatch/pkg/types"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
	deliveryTimeout = 10 * time.Second
)

// Event states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Event is one hive entering or leaving alert.
type Event struct {
	ID         string     `json:"id"`
	HiveID     string     `json:"hive_id"`
	State      string     `json:"state"`
	Reasons    []string   `json:"reasons"`
	Message    string     `json:"message"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Target receives alert events. Send is called from a delivery goroutine and
// may block up to the context deadline.
type Target interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Notifier tracks alert state per hive across ticks and delivers an event
// whenever a hive starts alerting, changes its reasons, or recovers. An
// identical reason set is not re-fired within the cooldown, which damps
// hives that flap in and out of alert.
//
// Notifier is safe for concurrent use.
type Notifier struct {
	targets  []Target
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	active   map[string]*Event // key: hive id
	lastFire map[string]time.Time
	lastKey  map[string]string // reason set of the last fire per hive
	history  []*Event          // recently resolved events
	inflight sync.WaitGroup
}

// NewNotifier returns a Notifier delivering to targets. A Notifier without
// targets still tracks state for Active.
func NewNotifier(cooldown time.Duration, targets ...Target) *Notifier {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Notifier{
		targets:  targets,
		cooldown: cooldown,
		now:      time.Now,
		active:   make(map[string]*Event),
		lastFire: make(map[string]time.Time),
		lastKey:  make(map[string]string),
	}
}

// Observe compares the freshly written records against the tracked state.
// Delivery is asynchronous; call Wait to block until it has finished.
func (n *Notifier) Observe(records []types.HiveRecord) {
	now := n.now()
	for _, rec := range records {
		if ev := n.transition(rec, now); ev != nil {
			if ev.State == StateFiring {
				slog.Warn("alerts: hive alerting", "hive", ev.HiveID, "reasons", ev.Reasons)
			} else {
				slog.Info("alerts: hive recovered", "hive", ev.HiveID)
			}
			n.inflight.Add(1)
			go func(ev Event) {
				defer n.inflight.Done()
				n.deliver(ev)
			}(*ev)
		}
	}
}

// transition updates the state of one hive and returns a copy of the event to
// deliver, or nil.
func (n *Notifier) transition(rec types.HiveRecord, now time.Time) *Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	cur, firing := n.active[rec.ID]

	if !rec.Alert {
		if !firing {
			return nil
		}
		resolved := now
		cur.State = StateResolved
		cur.ResolvedAt = &resolved
		cur.Message = "hive " + rec.ID + " recovered"
		delete(n.active, rec.ID)

		n.history = append(n.history, cur)
		if len(n.history) > maxHistoryLen {
			n.history = n.history[len(n.history)-maxHistoryLen:]
		}
		cp := *cur
		return &cp
	}

	key := reasonKey(rec.AlertReasons)
	if firing && key == n.lastKey[rec.ID] {
		return nil
	}
	if key == n.lastKey[rec.ID] && now.Sub(n.lastFire[rec.ID]) < n.cooldown {
		return nil
	}

	ev := &Event{
		ID:      uuid.NewString(),
		HiveID:  rec.ID,
		State:   StateFiring,
		Reasons: slices.Clone(rec.AlertReasons),
		Message: "hive " + rec.ID + ": " + strings.Join(rec.AlertReasons, "; "),
		FiredAt: now,
	}
	n.active[rec.ID] = ev
	n.lastFire[rec.ID] = now
	n.lastKey[rec.ID] = key
	cp := *ev
	return &cp
}

// Active returns copies of all firing events plus those resolved within the
// past hour, newest first.
func (n *Notifier) Active() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	cutoff := n.now().Add(-recentWindow)
	out := make([]Event, 0, len(n.active))
	for _, ev := range n.active {
		out = append(out, *ev)
	}
	for _, ev := range n.history {
		if ev.ResolvedAt != nil && ev.ResolvedAt.After(cutoff) {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Firing returns the number of hives currently in alert.
func (n *Notifier) Firing() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.active)
}

// Wait blocks until every queued delivery has finished.
func (n *Notifier) Wait() { n.inflight.Wait() }

// deliver sends ev to every target. Errors are logged but do not affect the
// caller.
func (n *Notifier) deliver(ev Event) {
	for _, t := range n.targets {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err := t.Send(ctx, ev)
		cancel()

		if err != nil {
			slog.Error("alerts: delivery failed",
				"target", t.Name(),
				"hive", ev.HiveID,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: delivered",
			"target", t.Name(),
			"hive", ev.HiveID,
			"state", ev.State,
		)
	}
}

func reasonKey(reasons []string) string {
	return strings.Join(reasons, "\x00")
}
