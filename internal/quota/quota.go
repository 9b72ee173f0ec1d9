// Package quota gates session creation per group per day.
package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alienxp03/sparring/internal/core"
)

// ErrExceeded is the single user-visible rejection when a group has
// reached its daily session limit.
var ErrExceeded = errors.New("daily session quota exceeded for group")

// Store reads and increments daily usage counters keyed by
// (UTC date, group).
type Store interface {
	Usage(ctx context.Context, day, group string) (*core.DailyUsage, error)
	IncrSessions(ctx context.Context, day, group string) error
	IncrMessages(ctx context.Context, day, group string) error
}

// Guard is the admission check for session creation. It fails open on
// read errors and fails closed only on an explicit limit breach. The
// check and the increment are deliberately separate operations:
// concurrent starts at the limit boundary may over-admit slightly,
// which is an accepted trade-off for availability.
type Guard struct {
	store Store
	limit int
	now   func() time.Time
}

// NewGuard creates a guard. A limit <= 0 disables quota enforcement.
func NewGuard(store Store, limit int) *Guard {
	return &Guard{store: store, limit: limit, now: time.Now}
}

// Allow reports whether a new session may start for the group. Quota is
// opt-in per group: an empty group always passes. A storage read error
// is logged and allowed through.
func (g *Guard) Allow(ctx context.Context, group string) error {
	if group == "" || g.limit <= 0 {
		return nil
	}

	usage, err := g.store.Usage(ctx, g.day(), group)
	if err != nil {
		slog.Warn("quota read failed, admitting session", "group", group, "error", err)
		return nil
	}
	if usage == nil {
		return nil
	}
	if usage.SessionCount >= g.limit {
		return ErrExceeded
	}
	return nil
}

// RecordSession increments the group's session counter. Best-effort:
// failures are logged and swallowed, never rolled back into the session
// that already started. Callers dispatch it off the critical path.
func (g *Guard) RecordSession(ctx context.Context, group string) {
	if group == "" {
		return
	}
	if err := g.store.IncrSessions(ctx, g.day(), group); err != nil {
		slog.Warn("failed to record session start", "group", group, "error", err)
	}
}

// RecordMessage increments the informational message counter.
// Best-effort; never blocks a turn.
func (g *Guard) RecordMessage(ctx context.Context, group string) {
	if group == "" {
		return
	}
	if err := g.store.IncrMessages(ctx, g.day(), group); err != nil {
		slog.Warn("failed to record message", "group", group, "error", err)
	}
}

func (g *Guard) day() string {
	return Day(g.now())
}

// Day formats a timestamp as the UTC counter key date.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
