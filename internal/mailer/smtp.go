package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/foxzi/alumnet/internal/config"
)

// SMTPSender submits messages to a relay over SMTP
type SMTPSender struct {
	cfg     config.SMTPConfig
	timeout time.Duration
	signer  *Signer
	logger  *slog.Logger
}

// NewSMTPSender creates a new SMTP submission sender
func NewSMTPSender(cfg config.SMTPConfig, timeout time.Duration, logger *slog.Logger) *SMTPSender {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.HeloName == "" {
		cfg.HeloName = "localhost"
	}
	return &SMTPSender{
		cfg:     cfg,
		timeout: timeout,
		logger:  logger,
	}
}

// SetSigner enables DKIM signing. A nil signer disables it.
func (s *SMTPSender) SetSigner(signer *Signer) {
	s.signer = signer
}

// Send delivers msg through the configured relay
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	data, err := Build(msg, time.Now())
	if err != nil {
		return asSendError(err)
	}
	data = sign(s.signer, data, s.logger)

	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return permanent("invalid sender address %q", msg.From)
	}

	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.Username != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := client.Auth(auth); err != nil {
			return categorizeError(err, "AUTH")
		}
	}

	if err := client.SendMail(from.Address, []string{msg.To}, bytes.NewReader(data)); err != nil {
		return categorizeError(err, "send")
	}

	if err := client.Quit(); err != nil {
		s.logger.Debug("QUIT failed", "error", err)
	}

	s.logger.Debug("message submitted", "to", msg.To, "relay", s.cfg.Host)
	return nil
}

func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, temporary("connection failed to %s: %v", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(s.timeout))
	}

	tlsConfig := &tls.Config{
		ServerName:         s.cfg.Host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}

	var client *smtp.Client
	switch s.cfg.Security {
	case "tls":
		client = smtp.NewClient(tls.Client(conn, tlsConfig))
	case "starttls":
		// NewClientStartTLS greets with its own EHLO, so helo_name is not used here
		client, err = smtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			conn.Close()
			return nil, temporary("STARTTLS failed with %s: %v", addr, err)
		}
		return client, nil
	default:
		client = smtp.NewClient(conn)
	}

	if err := client.Hello(s.cfg.HeloName); err != nil {
		client.Close()
		return nil, categorizeError(err, "HELO")
	}

	return client, nil
}

// smtpCodePattern matches SMTP response codes at word boundaries
var smtpCodePattern = regexp.MustCompile(`\b([45]\d{2})\b`)

// categorizeError maps an SMTP failure to a SendError: 5xx replies are
// permanent, everything else is temporary.
func categorizeError(err error, stage string) *SendError {
	reason := fmt.Sprintf("%s failed: %v", stage, err)

	var se *smtp.SMTPError
	if errors.As(err, &se) {
		return &SendError{Temporary: se.Code/100 != 5, Reason: reason}
	}

	if m := smtpCodePattern.FindStringSubmatch(err.Error()); len(m) > 1 && m[1][0] == '5' {
		return &SendError{Temporary: false, Reason: reason}
	}
	return &SendError{Temporary: true, Reason: reason}
}

func asSendError(err error) error {
	var se *SendError
	if errors.As(err, &se) {
		return se
	}
	return permanent("%v", err)
}

// sign applies DKIM when a signer is set. Signing failures are logged and
// the message goes out unsigned.
func sign(signer *Signer, data []byte, logger *slog.Logger) []byte {
	if signer == nil {
		return data
	}
	signed, err := signer.Sign(data)
	if err != nil {
		logger.Warn("DKIM signing failed, sending unsigned",
			"domain", signer.Domain(),
			"error", err,
		)
		return data
	}
	return signed
}
