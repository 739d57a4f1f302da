// Package mailer delivers a single rendered message to a single recipient
// over one of several transports.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/emersion/go-message/mail"

	"github.com/foxzi/alumnet/internal/config"
)

// Message is one outbound email addressed to exactly one recipient
type Message struct {
	From    string // "Name <addr>" or bare address
	ReplyTo string
	To      string
	Subject string
	HTML    string
	Text    string // derived from HTML when empty
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SendError represents a delivery error with type information
type SendError struct {
	Temporary bool
	Reason    string
}

func (e *SendError) Error() string {
	return e.Reason
}

// IsTemporary reports whether err is worth retrying. Unknown errors are
// treated as temporary.
func IsTemporary(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Temporary
	}
	return true
}

// Reason returns the human readable failure reason for err
func Reason(err error) string {
	var se *SendError
	if errors.As(err, &se) {
		return se.Reason
	}
	return err.Error()
}

func permanent(format string, args ...any) *SendError {
	return &SendError{Temporary: false, Reason: fmt.Sprintf(format, args...)}
}

func temporary(format string, args ...any) *SendError {
	return &SendError{Temporary: true, Reason: fmt.Sprintf(format, args...)}
}

// validate checks the fields every transport relies on
func (m *Message) validate() error {
	if m.To == "" {
		return permanent("no recipient")
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return permanent("invalid recipient address %q", m.To)
	}
	if m.From == "" {
		return permanent("no sender")
	}
	return nil
}

// New creates the sender selected by cfg.Transport. The returned closer
// releases transport resources (the sandbox database) and is never nil.
func New(cfg config.MailerConfig, logger *slog.Logger) (Sender, func() error, error) {
	noop := func() error { return nil }

	var signer *Signer
	if cfg.DKIM.Enabled {
		s, err := NewSignerFromFile(cfg.DKIM.KeyFile, cfg.DKIM.Domain, cfg.DKIM.Selector)
		if err != nil {
			return nil, noop, err
		}
		signer = s
	}

	switch cfg.Transport {
	case "smtp":
		c := NewSMTPSender(cfg.SMTP, cfg.Timeout, logger.With("component", "smtp_sender"))
		c.SetSigner(signer)
		return c, noop, nil
	case "api":
		return NewAPISender(cfg.API.BaseURL, cfg.API.APIKey, cfg.Timeout, logger.With("component", "api_sender")), noop, nil
	case "sandbox":
		store, err := OpenCaptureStore(cfg.Sandbox.Path)
		if err != nil {
			return nil, noop, err
		}
		s := NewSandboxSender(store, logger.With("component", "sandbox_sender"))
		s.SetErrorSimulation(cfg.Sandbox.SimulateErrors, cfg.Sandbox.ErrorProbability)
		s.SetSigner(signer)
		return s, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown mailer transport: %s", cfg.Transport)
	}
}

// FormatFrom builds the From header value from a display name and address
func FormatFrom(name, addr string) string {
	if name == "" {
		return addr
	}
	return (&mail.Address{Name: name, Address: addr}).String()
}
