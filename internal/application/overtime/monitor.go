// Package overtime runs the recurring scan that alerts on sessions left open
// past the configured hour threshold. Each session is alerted at most once;
// the scan policy compares the elapsed hour component for exact equality with
// the threshold, so a session whose threshold hour was never observed is
// never retroactively flagged.
package overtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/timeclock-api/internal/domain"
	"github.com/timeclock-api/internal/notify"
	"github.com/timeclock-api/internal/pkg/clock"
	"github.com/timeclock-api/internal/pkg/duration"
	"github.com/timeclock-api/internal/pkg/keymutex"
)

const displayTimeFormat = "03:04:05 PM MST"

// SessionStore is the slice of session persistence the monitor needs.
type SessionStore interface {
	ListUnnotified(ctx context.Context) ([]domain.Session, error)
	MarkNotified(ctx context.Context, id int64, now time.Time) error
}

// MonitorDeps carries the collaborators for NewMonitor. Locks must be shared
// with the timeclock service so a flag-set never interleaves with a clock-out
// for the same user.
type MonitorDeps struct {
	Store SessionStore
	Clock clock.Clock
	Sink  notify.Sink
	Locks *keymutex.KeyedMutex

	// ThresholdHours is the exact elapsed-hour value that triggers the alert.
	ThresholdHours int
	// Interval is the wall-clock period between scans.
	Interval time.Duration
}

// Monitor periodically scans open, unflagged sessions. It runs for the life
// of the process; Close stops the loop without interrupting a row mid-update.
type Monitor struct {
	store          SessionStore
	clk            clock.Clock
	sink           notify.Sink
	locks          *keymutex.KeyedMutex
	thresholdHours int
	interval       time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMonitor(deps MonitorDeps) *Monitor {
	return &Monitor{
		store:          deps.Store,
		clk:            deps.Clock,
		sink:           deps.Sink,
		locks:          deps.Locks,
		thresholdHours: deps.ThresholdHours,
		interval:       deps.Interval,
	}
}

// Start launches the scan loop. The first scan runs immediately, then one per
// interval. Calling Start twice is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.scan(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.scan(runCtx)
			}
		}
	}()
}

// Close stops the loop and waits for any in-flight scan to finish its current
// row.
func (m *Monitor) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// scan evaluates every unflagged session once. One row's failure is logged
// and never aborts the rest of the pass.
func (m *Monitor) scan(ctx context.Context) {
	sessions, err := m.store.ListUnnotified(ctx)
	if err != nil {
		slog.Error("overtime scan: list unnotified sessions", "err", err)
		return
	}

	for i := range sessions {
		if ctx.Err() != nil {
			return
		}
		sess := &sessions[i]
		if !sess.Open() {
			// Closed before ever reaching the threshold; the alert is moot.
			continue
		}
		now := m.clk.Now()
		elapsed, err := duration.Between(sess.TimeIn, now)
		if err != nil {
			slog.Error("overtime scan: session started in the future",
				"session_id", sess.SessionID, "user", sess.UserID, "err", err)
			continue
		}
		if elapsed.Hours != m.thresholdHours {
			continue
		}
		m.flag(ctx, sess, now)
	}
}

// flag marks the session under the user's lock, then delivers the one-time
// alert pair outside it. The lock covers only the conditional update, so a
// slow sink never delays that user's clock-out, and a session that closed
// concurrently is never alerted.
func (m *Monitor) flag(ctx context.Context, sess *domain.Session, now time.Time) {
	m.locks.Lock(sess.UserID)
	err := m.store.MarkNotified(ctx, sess.SessionID, now)
	m.locks.Unlock(sess.UserID)
	if errors.Is(err, domain.ErrSessionClosed) {
		slog.Debug("session closed before overtime flag committed", "session_id", sess.SessionID)
		return
	}
	if err != nil {
		// Not marked, so the next scan retries the row.
		slog.Error("overtime scan: mark notified", "session_id", sess.SessionID, "err", err)
		return
	}

	fields := []notify.Field{
		{Label: "Start Time", Value: sess.TimeIn.Format(displayTimeFormat)},
		{Label: "Current Time", Value: now.Format(displayTimeFormat)},
	}

	title := fmt.Sprintf("User Clocked In For %d Hours", m.thresholdHours)
	body := fmt.Sprintf("%s has been clocked in for %d hours", sess.UserID, m.thresholdHours)
	if err := m.sink.NotifyAudit(ctx, title, body, fields); err != nil {
		slog.Warn("overtime audit notification failed", "session_id", sess.SessionID, "err", err)
	}

	userTitle := fmt.Sprintf("Clocked In For %d Hours", m.thresholdHours)
	userBody := fmt.Sprintf("You've been clocked in for over %d hours", m.thresholdHours)
	if err := m.sink.NotifyUser(ctx, sess.UserID, userTitle, userBody, fields); err != nil {
		slog.Warn("overtime user notification failed",
			"session_id", sess.SessionID, "user", sess.UserID, "err", err)
	}
}
