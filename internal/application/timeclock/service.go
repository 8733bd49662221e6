// Package timeclock implements the session state machine: a user is either
// clocked out (no open session) or clocked in (exactly one). Clock-in and
// clock-out are the only two mutations a user can make, and both run their
// read-check-then-write sequence under that user's lock.
package timeclock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/timeclock-api/internal/domain"
	"github.com/timeclock-api/internal/notify"
	"github.com/timeclock-api/internal/pkg/clock"
	"github.com/timeclock-api/internal/pkg/duration"
	"github.com/timeclock-api/internal/pkg/keymutex"
)

// displayTimeFormat renders a timestamp the way the audit channel has always
// shown it, e.g. "09:00:00 AM EST".
const displayTimeFormat = "03:04:05 PM MST"

// SessionStore is the session persistence contract the service requires.
type SessionStore interface {
	// FindOpen returns the user's open session, domain.ErrNotFound when the
	// user is clocked out, or domain.ErrInvariant on more than one open row.
	FindOpen(ctx context.Context, user string) (*domain.Session, error)
	Create(ctx context.Context, user string, timeIn time.Time) (*domain.Session, error)
	Close(ctx context.Context, id int64, timeOut time.Time, total duration.Triple) error
	ListByUser(ctx context.Context, user string) ([]domain.Session, error)
}

// Actor identifies who is clocking in or out. The identifier is opaque and
// externally issued; DisplayName is optional and only used in notifications.
type Actor struct {
	UserID      string
	DisplayName string
}

func (a Actor) name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.UserID
}

// ClockInResult reports a clock-in. AlreadyClockedIn means the user had an
// open session; Session then carries the original record, time-in included.
// That is a steady-state response, not an error.
type ClockInResult struct {
	Session          *domain.Session
	AlreadyClockedIn bool
}

// ClockOutResult reports a clock-out. NotClockedIn means there was nothing to
// close and nothing was mutated; otherwise Session is the closed record and
// Total its duration.
type ClockOutResult struct {
	Session      *domain.Session
	Total        duration.Triple
	NotClockedIn bool
}

type Service interface {
	ClockIn(ctx context.Context, actor Actor) (*ClockInResult, error)
	ClockOut(ctx context.Context, actor Actor) (*ClockOutResult, error)
	// CurrentSession returns the user's open session or domain.ErrNotFound.
	CurrentSession(ctx context.Context, user string) (*domain.Session, error)
	// ListSessions returns the user's retained sessions, optionally bounded
	// by clock-in date.
	ListSessions(ctx context.Context, user string, from, to *time.Time) ([]domain.Session, error)
}

// ServiceDeps carries the collaborators for NewService. Locks must be the
// same instance the overtime monitor uses, so the flag-set and clock-out
// critical sections exclude each other per user.
type ServiceDeps struct {
	Store SessionStore
	Clock clock.Clock
	Sink  notify.Sink
	Locks *keymutex.KeyedMutex
}

type service struct {
	store SessionStore
	clk   clock.Clock
	sink  notify.Sink
	locks *keymutex.KeyedMutex
}

func NewService(deps ServiceDeps) Service {
	return &service{
		store: deps.Store,
		clk:   deps.Clock,
		sink:  deps.Sink,
		locks: deps.Locks,
	}
}

func (s *service) ClockIn(ctx context.Context, actor Actor) (*ClockInResult, error) {
	s.locks.Lock(actor.UserID)
	defer s.locks.Unlock(actor.UserID)

	existing, err := s.store.FindOpen(ctx, actor.UserID)
	if err == nil {
		return &ClockInResult{Session: existing, AlreadyClockedIn: true}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := s.clk.Now()
	sess, err := s.store.Create(ctx, actor.UserID, now)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "User Clocked In",
		fmt.Sprintf("%s clocked in at %s", actor.name(), now.Format(displayTimeFormat)), nil)

	return &ClockInResult{Session: sess}, nil
}

func (s *service) ClockOut(ctx context.Context, actor Actor) (*ClockOutResult, error) {
	s.locks.Lock(actor.UserID)
	defer s.locks.Unlock(actor.UserID)

	sess, err := s.store.FindOpen(ctx, actor.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return &ClockOutResult{NotClockedIn: true}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	total, err := duration.Between(sess.TimeIn, now)
	if err != nil {
		return nil, fmt.Errorf("session %d started in the future: %w", sess.SessionID, domain.ErrInvariant)
	}

	if err := s.store.Close(ctx, sess.SessionID, now, total); err != nil {
		return nil, err
	}
	sess.TimeOut = &now
	sess.TotalTime = &total

	fields := []notify.Field{
		{Label: "Name", Value: actor.name()},
		{Label: "Start Time", Value: sess.TimeIn.Format(displayTimeFormat)},
		{Label: "End Time", Value: now.Format(displayTimeFormat)},
		{Label: "Total Time", Value: total.Humanize()},
	}
	s.audit(ctx, "User Clocked Out",
		fmt.Sprintf("%s clocked out at %s", actor.name(), now.Format(displayTimeFormat)), fields)
	s.user(ctx, actor.UserID, "You've Been Clocked Out",
		fmt.Sprintf("You've been clocked out at %s.", now.Format(displayTimeFormat)),
		[]notify.Field{{Label: "Total Time", Value: total.Humanize()}})

	return &ClockOutResult{Session: sess, Total: total}, nil
}

func (s *service) CurrentSession(ctx context.Context, user string) (*domain.Session, error) {
	return s.store.FindOpen(ctx, user)
}

func (s *service) ListSessions(ctx context.Context, user string, from, to *time.Time) ([]domain.Session, error) {
	sessions, err := s.store.ListByUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if from == nil && to == nil {
		return sessions, nil
	}
	filtered := make([]domain.Session, 0, len(sessions))
	for _, sess := range sessions {
		if from != nil && sess.TimeIn.Before(*from) {
			continue
		}
		if to != nil && !sess.TimeIn.Before(*to) {
			continue
		}
		filtered = append(filtered, sess)
	}
	return filtered, nil
}

// audit and user deliver notifications fire-and-forget: a failed delivery is
// logged and never unwinds the state change that triggered it.
func (s *service) audit(ctx context.Context, title, body string, fields []notify.Field) {
	if err := s.sink.NotifyAudit(ctx, title, body, fields); err != nil {
		slog.Warn("audit notification failed", "title", title, "err", err)
	}
}

func (s *service) user(ctx context.Context, user, title, body string, fields []notify.Field) {
	if err := s.sink.NotifyUser(ctx, user, title, body, fields); err != nil {
		slog.Warn("user notification failed", "user", user, "title", title, "err", err)
	}
}
