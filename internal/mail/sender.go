package mail

import (
	"log/slog"
	"strings"
)

var defaultFromAddr string

func SetDefaultFromAddress(from string) {
	defaultFromAddr = from
}

type Message struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	Body    string
	IsHTML  bool
}

type MailSender interface {
	Send(message *Message) error
}

// LogMailSender writes messages to the log instead of delivering them.
type LogMailSender struct{}

func (LogMailSender) Send(message *Message) error {
	slog.Info("Mail delivery disabled, dropping message",
		"to", strings.Join(message.To, ","),
		"subject", message.Subject,
	)
	return nil
}
