package smtp

import (
	"context"
	"strings"

	"github.com/timeclock-api/internal/notify"
)

// Notifier implements notify.Sink over plain email. Deployments that route
// alerts by mail use the recipient address as the opaque user identifier;
// audit alerts go to a fixed operations mailbox.
type Notifier struct {
	mailer    Mailer
	auditAddr string
}

func NewNotifier(mailer Mailer, auditAddr string) *Notifier {
	return &Notifier{mailer: mailer, auditAddr: auditAddr}
}

func (n *Notifier) NotifyUser(_ context.Context, user, title, body string, fields []notify.Field) error {
	return n.mailer.SendEmail(user, title, renderBody(body, fields))
}

func (n *Notifier) NotifyAudit(_ context.Context, title, body string, fields []notify.Field) error {
	return n.mailer.SendEmail(n.auditAddr, title, renderBody(body, fields))
}

// renderBody appends the ordered fields below the body, one per line, in the
// order the engine supplied them.
func renderBody(body string, fields []notify.Field) string {
	if len(fields) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	for _, f := range fields {
		b.WriteString("\n")
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	return b.String()
}
