package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
)

// SMTPConfig holds the configuration for SMTP delivery.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (c SMTPConfig) validate() error {
	if c.Host == "" || c.Port == "" || c.From == "" {
		return errors.New("mail: incomplete smtp configuration")
	}
	return nil
}

// SMTPSender delivers messages through a plain SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender validates the configuration and returns a sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	payload := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.cfg.From, msg.To, msg.Subject, msg.Body,
	))
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, payload); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}
