package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/foxzi/alumnet/internal/mailer"
	"github.com/foxzi/alumnet/internal/metrics"
	"github.com/foxzi/alumnet/internal/models"
)

// ErrTestSend is wrapped by every test-send failure
var ErrTestSend = errors.New("test send failed")

// TestSubjectPrefix marks test messages in the administrator's inbox
const TestSubjectPrefix = "[TEST] "

// TestResult is the outcome of a test send
type TestResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// TestSender sends a campaign to a single administrator. It never looks at
// the campaign's audience.
type TestSender struct {
	sender mailer.Sender
	from   string
	logger *slog.Logger
}

// NewTestSender creates a test sender
func NewTestSender(sender mailer.Sender, from string, logger *slog.Logger) *TestSender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TestSender{
		sender: sender,
		from:   from,
		logger: logger.With("component", "test_sender"),
	}
}

// SendTest performs exactly one send to adminAddress. An empty address fails
// without sending.
func (t *TestSender) SendTest(ctx context.Context, c *models.Campaign, adminAddress string) (TestResult, error) {
	if adminAddress == "" {
		metrics.IncTestSends(false)
		return TestResult{Reason: "no administrator address"}, fmt.Errorf("%w: no administrator address", ErrTestSend)
	}

	err := t.sender.Send(ctx, &mailer.Message{
		From:    t.from,
		ReplyTo: c.ReplyTo,
		To:      adminAddress,
		Subject: TestSubjectPrefix + c.Subject,
		HTML:    c.Body,
	})
	if err != nil {
		reason := mailer.Reason(err)
		metrics.IncTestSends(false)
		t.logger.Warn("test send failed", "campaign_id", c.ID, "to", adminAddress, "error", err)
		return TestResult{Reason: reason}, fmt.Errorf("%w: %s", ErrTestSend, reason)
	}

	metrics.IncTestSends(true)
	t.logger.Info("test send delivered", "campaign_id", c.ID, "to", adminAddress)
	return TestResult{Success: true}, nil
}
