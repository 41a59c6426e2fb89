// Package mail delivers transactional messages for the auth service. The
// provider behind the Sender interface is chosen by configuration; the auth
// core only ever sees auth.Mailer.
package mail

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message. Implementations do not retry.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const resetSubject = "Your NeuroCare Password Reset OTP"

// OTPMailer composes reset-code messages and satisfies auth.Mailer.
type OTPMailer struct {
	sender Sender
}

// NewOTPMailer wraps a Sender.
func NewOTPMailer(sender Sender) (*OTPMailer, error) {
	if sender == nil {
		return nil, errors.New("mail: sender is required")
	}
	return &OTPMailer{sender: sender}, nil
}

// SendResetCode emails the one-time code with its expiry notice. The code
// travels only by mail, never in an HTTP response.
func (m *OTPMailer) SendResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	return m.sender.Send(ctx, Message{
		To:      to,
		Subject: resetSubject,
		Body: fmt.Sprintf(
			"Your OTP is: %s\n\nIt will expire in %d minutes. If you did not request this, ignore this email.",
			code, int(ttl.Minutes()),
		),
	})
}
