package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"caldigest/internal/types"
)

// sendGridAPIBase is the default SendGrid API base URL. Overridable in
// tests via SendGridConfig.BaseURL.
const sendGridAPIBase = "https://api.sendgrid.com"

// SendGridConfig holds the parameters for creating a SendGridChannel.
type SendGridConfig struct {
	APIKey   string
	FromAddr string
	FromName string
	BaseURL  string // override for testing; defaults to sendGridAPIBase
}

// SendGridChannel is the primary send channel: direct HTTP calls to the
// SendGrid v3 Mail Send API through BaseClient so sends share the circuit
// breaker and error mapping. Retries happen in the caller's retry
// executor.
type SendGridChannel struct {
	base    *BaseClient
	cfg     SendGridConfig
	baseURL string
}

// NewSendGridChannel creates the channel. A nil base gets a default
// BaseClient with a breaker named "sendgrid".
func NewSendGridChannel(base *BaseClient, cfg SendGridConfig) *SendGridChannel {
	if base == nil {
		base = NewBaseClient(nil, "sendgrid")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}
	return &SendGridChannel{
		base:    base,
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Name identifies the channel in logs and retry operation names.
func (s *SendGridChannel) Name() string { return "sendgrid" }

// sgPayload is the SendGrid v3 mail/send request body, reduced to the
// fields the digest job uses.
type sgPayload struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send transmits one message. Error mapping:
//   - 403 -> ErrCodeEmailBlocked (recipient suppressed; terminal)
//   - 429 / 5xx -> transient codes via BaseClient
//   - other non-2xx -> ErrCodeUpstreamEmailProvider
func (s *SendGridChannel) Send(ctx context.Context, msg types.OutboundMessage) error {
	payload := sgPayload{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: msg.To}}}},
		From:             sgAddress{Email: s.cfg.FromAddr, Name: s.cfg.FromName},
		Subject:          msg.Subject,
		Content:          []sgContent{{Type: "text/plain", Value: msg.Body}},
	}
	if msg.HTMLBody != "" {
		payload.Content = append(payload.Content, sgContent{Type: "text/html", Value: msg.HTMLBody})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to marshal mail payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to build mail request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusForbidden {
		return types.NewAppError(types.ErrCodeEmailBlocked,
			"recipient blocked by provider", nil)
	}

	return types.NewAppError(types.ErrCodeUpstreamEmailProvider,
		fmt.Sprintf("sendgrid returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
}

// Compile-time assertion that SendGridChannel implements types.SendChannel.
var _ types.SendChannel = (*SendGridChannel)(nil)
