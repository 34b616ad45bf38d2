package email

import (
	"context"
	"log/slog"

	"tripgenie/internal/external"
	"tripgenie/internal/types"
)

// Provider sends a fully rendered email and returns a provider message ID.
// Implemented by external.SendGridClient.
type Provider interface {
	Send(ctx context.Context, msg external.MailMessage) (string, error)
}

// ChannelConfig holds the parameters needed to construct a Channel.
type ChannelConfig struct {
	Provider    Provider
	Renderer    *Renderer
	FromAddress string
	FromName    string
	Logger      *slog.Logger
}

// Channel is the pipeline's email dispatcher. It renders the severity-styled
// alert and hands it to the provider in a single attempt: there is no retry
// queue, a failed send simply reports false so the caller leaves the
// notification's email_sent flag unset.
type Channel struct {
	provider    Provider
	renderer    *Renderer
	fromAddress string
	fromName    string
	logger      *slog.Logger
}

// NewChannel creates an email dispatch channel.
func NewChannel(cfg ChannelConfig) *Channel {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		provider:    cfg.Provider,
		renderer:    cfg.Renderer,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		logger:      logger,
	}
}

// SendAlert renders and sends the alert email. Returns true only when the
// provider confirmed acceptance. Failures are logged, never raised: email
// delivery is best-effort and must not stop the rest of the pipeline.
func (c *Channel) SendAlert(ctx context.Context, userEmail, userName string, n *types.Notification) bool {
	rendered, err := c.renderer.Render(userName, n)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to render alert email",
			"notification_id", n.ID,
			"error", err,
		)
		return false
	}

	msgID, err := c.provider.Send(ctx, external.MailMessage{
		To:       userEmail,
		ToName:   userName,
		From:     c.fromAddress,
		FromName: c.fromName,
		Subject:  rendered.Subject,
		BodyHTML: rendered.BodyHTML,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "alert email send failed",
			"notification_id", n.ID,
			"destination", n.Destination,
			"error", err,
		)
		return false
	}

	c.logger.InfoContext(ctx, "alert email sent",
		"notification_id", n.ID,
		"destination", n.Destination,
		"provider_message_id", msgID,
	)
	return true
}
