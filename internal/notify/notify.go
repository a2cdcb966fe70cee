// Package notify sends SMS notifications to shop owners.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"barberline/pkg/logger"
)

// Sender delivers a text message. Callers treat delivery as best-effort.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

var ErrNotConfigured = errors.New("notify: sms sender not configured")

const twilioAPIBase = "https://api.twilio.com"

// TwilioSender posts to the Twilio Messages REST resource without the SDK.
type TwilioSender struct {
	client     *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
}

func NewTwilioSender(client *http.Client, accountSID, authToken, from string) *TwilioSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TwilioSender{
		client:     client,
		baseURL:    twilioAPIBase,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
	}
}

// WithBaseURL points the sender at another host (tests).
func (s *TwilioSender) WithBaseURL(u string) *TwilioSender {
	s.baseURL = strings.TrimRight(u, "/")
	return s
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if s.accountSID == "" || s.authToken == "" || s.from == "" {
		return ErrNotConfigured
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("notify: recipient is required")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &e)
		return fmt.Errorf("twilio send: status %d code %d: %s", resp.StatusCode, e.Code, e.Message)
	}
	return nil
}

// LogSender is used when Twilio is not configured. It logs the attempt and
// reports ErrNotConfigured so callers that depend on delivery can fail.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, body string) error {
	logger.From(ctx).Info("sms not sent: twilio not configured", "to", logger.MaskPhone(to), "chars", len(body))
	return ErrNotConfigured
}
