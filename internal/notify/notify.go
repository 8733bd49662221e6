// Package notify defines the outbound alert contract. The session engine
// calls a Sink on every transition it makes; delivery failures are logged by
// the caller and never roll back a state change.
package notify

import "context"

// Field is one label/value pair shown in a notification. Fields are an
// ordered slice, not a map: the display order of Start Time, End Time and
// Total Time is part of the audit-log contract.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Sink delivers alerts to a user and to the operations audit channel.
// Implementations own retries; the engine fires and forgets.
type Sink interface {
	NotifyUser(ctx context.Context, user, title, body string, fields []Field) error
	NotifyAudit(ctx context.Context, title, body string, fields []Field) error
}
