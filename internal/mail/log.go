package mail

import (
	"context"

	"neurocare.org/internal/obs"
)

// LogSender is the development fallback: it records that a delivery would
// have happened without exposing the message body, which carries the code.
type LogSender struct{}

var _ Sender = LogSender{}

func (LogSender) Send(_ context.Context, msg Message) error {
	obs.LogRequest(map[string]any{
		"type":    "mail",
		"to":      msg.To,
		"subject": msg.Subject,
	})
	return nil
}
