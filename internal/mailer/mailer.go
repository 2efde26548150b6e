// Package mailer turns alert text into plain-text email.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// Sender delivers built messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Options configures a Mailer.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Subject  string
}

// Mailer sends one email per alert.
type Mailer struct {
	sender  Sender
	from    string
	to      []string
	subject string
	log     logrus.FieldLogger
}

// New dials nothing yet; each Send opens its own SMTP session. SMTP auth
// is enabled only when a username is configured.
func New(opts Options, log logrus.FieldLogger) (*Mailer, error) {
	clientOpts := []mail.Option{
		mail.WithPort(opts.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}
	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return NewWithSender(client, opts, log), nil
}

// NewWithSender builds a Mailer over an existing Sender.
func NewWithSender(s Sender, opts Options, log logrus.FieldLogger) *Mailer {
	return &Mailer{
		sender:  s,
		from:    opts.From,
		to:      opts.To,
		subject: opts.Subject,
		log:     log,
	}
}

// Build assembles the message for one alert body.
func (m *Mailer) Build(body string) (*mail.Msg, error) {
	if body == "" {
		return nil, errors.New("empty alert body")
	}
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(m.to...); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject(m.subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// Send builds and delivers one alert.
func (m *Mailer) Send(ctx context.Context, body string) error {
	msg, err := m.Build(body)
	if err != nil {
		return err
	}
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	m.log.WithField("to", m.to).Infof("sent alert: %s", body)
	return nil
}
