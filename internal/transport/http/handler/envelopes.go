package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/timeclock-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// SessionView is the wire shape of a session record.
type SessionView struct {
	SessionID int64      `json:"session_id"`
	UserID    string     `json:"user_id"`
	TimeIn    time.Time  `json:"time_in"`
	TimeOut   *time.Time `json:"time_out,omitempty"`
	TotalTime string     `json:"total_time,omitempty"`
	Notified  bool       `json:"notified"`
}

// ClockEnvelope wraps clock-in and clock-out responses. AlreadyClockedIn and
// NotClockedIn report the no-op outcomes of the respective commands.
type ClockEnvelope struct {
	Session          *SessionView `json:"session,omitempty"`
	TotalTime        string       `json:"total_time,omitempty"`
	AlreadyClockedIn bool         `json:"already_clocked_in,omitempty"`
	NotClockedIn     bool         `json:"not_clocked_in,omitempty"`
	Message          string       `json:"message,omitempty"`
	Error            string       `json:"error,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *SessionView `json:"session,omitempty"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// ReportEnvelope wraps the per-user session report.
type ReportEnvelope struct {
	UserID string        `json:"user_id"`
	Count  int           `json:"count"`
	Data   []SessionView `json:"data"`
	Error  string        `json:"error,omitempty"`
}

func toSessionView(s *domain.Session) *SessionView {
	if s == nil {
		return nil
	}
	view := &SessionView{
		SessionID: s.SessionID,
		UserID:    s.UserID,
		TimeIn:    s.TimeIn,
		TimeOut:   s.TimeOut,
		Notified:  s.Notified,
	}
	if s.TotalTime != nil {
		view.TotalTime = s.TotalTime.Humanize()
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
