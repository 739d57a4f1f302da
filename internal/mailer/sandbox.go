package mailer

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

var simulatedErrors = []string{
	"550 User not found",
	"451 Temporary failure",
	"452 Insufficient storage",
	"421 Service not available",
}

// SandboxSender captures messages into a CaptureStore instead of
// delivering them
type SandboxSender struct {
	store            *CaptureStore
	signer           *Signer
	logger           *slog.Logger
	simulateErrors   bool
	errorProbability float64
	randFloat        func() float64
	randIntn         func(int) int
}

// NewSandboxSender creates a new sandbox sender
func NewSandboxSender(store *CaptureStore, logger *slog.Logger) *SandboxSender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SandboxSender{
		store:            store,
		logger:           logger,
		errorProbability: 0.1,
		randFloat:        rand.Float64,
		randIntn:         rand.Intn,
	}
}

// SetErrorSimulation enables/disables error simulation
func (s *SandboxSender) SetErrorSimulation(enabled bool, probability float64) {
	s.simulateErrors = enabled
	if probability > 0 && probability <= 1 {
		s.errorProbability = probability
	}
}

// Store returns the capture store messages are written to
func (s *SandboxSender) Store() *CaptureStore {
	return s.store
}

// SetSigner enables DKIM signing of captured messages
func (s *SandboxSender) SetSigner(signer *Signer) {
	s.signer = signer
}

// Send stores msg. With error simulation on, a random SMTP-like failure is
// recorded and returned instead.
func (s *SandboxSender) Send(ctx context.Context, msg *Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	now := time.Now()
	data, err := Build(msg, now)
	if err != nil {
		return asSendError(err)
	}

	capture := &Capture{
		ID:         uuid.NewString(),
		From:       msg.From,
		To:         msg.To,
		ReplyTo:    msg.ReplyTo,
		Subject:    msg.Subject,
		Data:       sign(s.signer, data, s.logger),
		CapturedAt: now,
	}

	var sendErr *SendError
	if s.simulateErrors && s.randFloat() < s.errorProbability {
		reason := simulatedErrors[s.randIntn(len(simulatedErrors))]
		capture.SimulatedErr = reason
		sendErr = &SendError{Temporary: reason[0] == '4', Reason: reason}
	}

	if err := s.store.Save(ctx, capture); err != nil {
		return temporary("sandbox capture failed: %v", err)
	}

	s.logger.Info("sandbox: captured message",
		"id", capture.ID,
		"to", msg.To,
		"subject", msg.Subject,
		"simulated_error", capture.SimulatedErr,
	)

	if sendErr != nil {
		return sendErr
	}
	return nil
}
