package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tripgenie/internal/types"
)

// sendGridAPIBase is the default SendGrid API base URL.
// Overridable in tests via SendGridClientConfig.BaseURL.
const sendGridAPIBase = "https://api.sendgrid.com"

// SendGridClientConfig holds the configuration for creating a SendGridClient.
type SendGridClientConfig struct {
	APIKey  string
	BaseURL string // Override for testing; defaults to sendGridAPIBase
	Logger  *slog.Logger
}

// SendGridClient sends mail through the SendGrid v3 Mail Send API with
// inline HTML content. Routing through BaseClient gives email delivery the
// same circuit breaker treatment as the other providers, and makes testing
// with httptest straightforward.
type SendGridClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewSendGridClient creates a new SendGridClient. The httpClient timeout
// should be around 10 seconds; mail acceptance is fast when healthy.
func NewSendGridClient(httpClient *http.Client, cfg SendGridClientConfig) *SendGridClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"sendgrid",
		// Single attempt: a timeout after the provider has already accepted
		// the message would otherwise replay the send and double-deliver
		// the alert. The caller treats a failed send as "not delivered".
		RetryPolicy{MaxRetries: 0, MinWait: 500 * time.Millisecond, MaxWait: time.Second},
		"TripGenie/1.0",
	)

	return &SendGridClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// MailMessage is a fully rendered email ready for transmission.
type MailMessage struct {
	To       string
	ToName   string
	From     string
	FromName string
	Subject  string
	BodyHTML string
}

// sendGridMailPayload mirrors the SendGrid v3 mail/send JSON request body.
type sendGridMailPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send transmits an email and returns the provider message ID (from the
// X-Message-Id response header) on success. SendGrid returns 202 Accepted
// when the message is queued for delivery.
func (s *SendGridClient) Send(ctx context.Context, msg MailMessage) (string, error) {
	payload := sendGridMailPayload{
		Personalizations: []sendGridPersonalization{
			{To: []sendGridAddress{{Email: msg.To, Name: msg.ToName}}},
		},
		From:    sendGridAddress{Email: msg.From, Name: msg.FromName},
		Subject: msg.Subject,
		Content: []sendGridContent{
			{Type: "text/html", Value: msg.BodyHTML},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal mail payload", err)
	}

	reqURL := s.baseURL + "/v3/mail/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create mail send request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.base.Do(req)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider, "mail send request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return resp.Header.Get("X-Message-Id"), nil
	}

	return "", types.NewAppError(
		types.ErrCodeUpstreamEmailProvider,
		fmt.Sprintf("mail send returned status %d", resp.StatusCode),
		nil,
	)
}
