package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// sendRequest is the body of POST /api/v1/send on a Sendry-compatible server
type sendRequest struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	Body    string            `json:"body,omitempty"`
	HTML    string            `json:"html,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type sendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// APISender submits messages to an HTTP mail API
type APISender struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAPISender creates a new HTTP API sender
func NewAPISender(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *APISender {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &APISender{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Send posts msg to the API. Transport errors, 429 and 5xx responses are
// temporary; other 4xx responses are permanent.
func (a *APISender) Send(ctx context.Context, msg *Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	text := msg.Text
	if text == "" {
		text = HTMLToText(msg.HTML)
	}
	body := sendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Body:    text,
		HTML:    msg.HTML,
	}
	if msg.ReplyTo != "" {
		body.Headers = map[string]string{"Reply-To": msg.ReplyTo}
	}

	var resp sendResponse
	if err := a.request(ctx, http.MethodPost, "/api/v1/send", body, &resp); err != nil {
		return err
	}
	a.logger.Debug("message accepted", "to", msg.To, "message_id", resp.ID, "status", resp.Status)
	return nil
}

func (a *APISender) request(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return permanent("marshal request: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return permanent("create request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return temporary("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		reason := fmt.Sprintf("HTTP %d", resp.StatusCode)
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			reason = fmt.Sprintf("API error (HTTP %d): %s", resp.StatusCode, errResp.Error)
		}
		temp := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return &SendError{Temporary: temp, Reason: reason}
	}

	// 2xx means accepted; an unreadable body is logged, not retried
	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			a.logger.Warn("accepted response body could not be decoded",
				"path", path,
				"status", resp.StatusCode,
				"error", err,
			)
		}
	}
	return nil
}
