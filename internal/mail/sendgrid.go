package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers messages through the SendGrid API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

var _ Sender = (*SendGridSender)(nil)

// NewSendGridSender constructs a sender from an API key and a from address.
func NewSendGridSender(apiKey, fromName, fromAddress string) (*SendGridSender, error) {
	if apiKey == "" || fromAddress == "" {
		return nil, errors.New("mail: incomplete sendgrid configuration")
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(fromName, fromAddress),
	}, nil
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	email := sgmail.NewSingleEmail(s.from, msg.Subject, sgmail.NewEmail("", msg.To), msg.Body, "")
	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("mail: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("mail: sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}
