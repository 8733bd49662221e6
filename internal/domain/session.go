package domain

import (
	"time"

	"github.com/timeclock-api/internal/pkg/duration"
)

// Session is one clock-in-to-clock-out record for a user. A session with no
// TimeOut is open; TimeOut and TotalTime are always set together in a single
// store update. Sessions are never deleted; the table is the attendance
// audit trail.
type Session struct {
	SessionID int64            `json:"id"`
	UserID    string           `json:"user_id"`
	TimeIn    time.Time        `json:"time_in"`
	TimeOut   *time.Time       `json:"time_out,omitempty"`
	TotalTime *duration.Triple `json:"total_time,omitempty"`
	Notified  bool             `json:"notified"`
	CreatedAt time.Time        `json:"created"`
	UpdatedAt time.Time        `json:"updated"`
}

// Open reports whether the session has no recorded end time.
func (s *Session) Open() bool {
	return s.TimeOut == nil
}
