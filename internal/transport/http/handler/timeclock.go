package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/timeclock-api/internal/application/timeclock"
	"github.com/timeclock-api/internal/domain"
	"github.com/timeclock-api/internal/pkg/validate"
	"github.com/timeclock-api/internal/transport/http/middleware"
)

const reportDateLayout = "2006-01-02"

// TimeclockHandler handles clock-in, clock-out and session report endpoints.
type TimeclockHandler struct {
	svc timeclock.Service
	loc *time.Location
}

func NewTimeclockHandler(svc timeclock.Service, loc *time.Location) *TimeclockHandler {
	return &TimeclockHandler{svc: svc, loc: loc}
}

func actorFromContext(r *http.Request) (timeclock.Actor, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return timeclock.Actor{}, false
	}
	return timeclock.Actor{UserID: claims.UserID, DisplayName: claims.DisplayName}, true
}

func (h *TimeclockHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := h.svc.ClockIn(r.Context(), actor)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if result.AlreadyClockedIn {
		writeJSON(w, http.StatusOK, ClockEnvelope{
			Session:          toSessionView(result.Session),
			AlreadyClockedIn: true,
			Message:          "already clocked in",
		})
		return
	}
	writeJSON(w, http.StatusCreated, ClockEnvelope{
		Session: toSessionView(result.Session),
		Message: "clocked in",
	})
}

func (h *TimeclockHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := h.svc.ClockOut(r.Context(), actor)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if result.NotClockedIn {
		writeJSON(w, http.StatusOK, ClockEnvelope{
			NotClockedIn: true,
			Message:      "not clocked in",
		})
		return
	}
	writeJSON(w, http.StatusOK, ClockEnvelope{
		Session:   toSessionView(result.Session),
		TotalTime: result.Total.Humanize(),
		Message:   "clocked out",
	})
}

func (h *TimeclockHandler) Current(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, err := h.svc.CurrentSession(r.Context(), actor.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not clocked in")
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: toSessionView(sess)})
}

type reportQuery struct {
	User string `validate:"required"`
	From string `validate:"omitempty,datetime=2006-01-02"`
	To   string `validate:"omitempty,datetime=2006-01-02"`
}

// Report lists a user's retained sessions, optionally bounded by clock-in
// date. The To bound is inclusive of the named day.
func (h *TimeclockHandler) Report(w http.ResponseWriter, r *http.Request) {
	q := reportQuery{
		User: r.URL.Query().Get("user"),
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var from, to *time.Time
	if q.From != "" {
		t, _ := time.ParseInLocation(reportDateLayout, q.From, h.loc)
		from = &t
	}
	if q.To != "" {
		t, _ := time.ParseInLocation(reportDateLayout, q.To, h.loc)
		t = t.AddDate(0, 0, 1)
		to = &t
	}

	sessions, err := h.svc.ListSessions(r.Context(), q.User, from, to)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	views := make([]SessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, *toSessionView(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, ReportEnvelope{UserID: q.User, Count: len(views), Data: views})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvariant):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStorage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
