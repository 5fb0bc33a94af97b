// Package email sends transactional email through Resend using embedded HTML templates.
package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

// DefaultFrom is the sender used when none is configured
const DefaultFrom = "KCT Menswear <noreply@kctmenswear.com>"

//go:embed templates/*.html
var templateFS embed.FS

// ErrAPIKeyMissing is returned when sending without a Resend API key
var ErrAPIKeyMissing = errors.New("email: resend api key is not configured")

// Message is one outgoing email
type Message struct {
	To       string
	Subject  string
	Template Template
	Data     any
	// IdempotencyKey lets Resend drop duplicate sends from job retries
	IdempotencyKey string
	Tags           map[string]string
}

// Client wraps the Resend client and the parsed templates
type Client struct {
	client    *resend.Client
	from      string
	replyTo   string
	templates *template.Template
	logger    *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBaseURL points the client at a different Resend API endpoint
func WithBaseURL(u *url.URL) Option {
	return func(c *Client) {
		c.client.BaseURL = u
	}
}

// NewClient creates an email Client from configuration
func NewClient(cfg config.EmailConfig, opts ...Option) (*Client, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = DefaultFrom
	}

	c := &Client{
		client:    resend.NewClient(cfg.ResendAPIKey),
		from:      from,
		replyTo:   cfg.ReplyTo,
		templates: tmpl,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Render executes a template into HTML
func (c *Client) Render(name Template, data any) (string, error) {
	var body bytes.Buffer
	if err := c.templates.ExecuteTemplate(&body, name.file(), data); err != nil {
		return "", fmt.Errorf("failed to execute email template %s: %w", name, err)
	}
	return body.String(), nil
}

// Send renders and sends a message. It returns the provider message ID.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if c.client.ApiKey == "" {
		return "", ErrAPIKeyMissing
	}

	html, err := c.Render(msg.Template, msg.Data)
	if err != nil {
		return "", err
	}

	req := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    html,
		ReplyTo: c.replyTo,
		Tags:    []resend.Tag{{Name: "template", Value: string(msg.Template)}},
	}
	for k, v := range msg.Tags {
		req.Tags = append(req.Tags, resend.Tag{Name: k, Value: v})
	}

	resp, err := c.client.Emails.SendWithOptions(ctx, req, &resend.SendEmailOptions{
		IdempotencyKey: msg.IdempotencyKey,
	})
	if err != nil {
		c.logger.Error("Failed to send email",
			zap.String("template", string(msg.Template)),
			zap.String("to", msg.To),
			zap.Error(err))
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Info("Email sent",
		zap.String("template", string(msg.Template)),
		zap.String("to", msg.To),
		zap.String("message_id", resp.Id))
	return resp.Id, nil
}
