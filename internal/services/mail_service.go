package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

var ErrMailerNotConfigured = errors.New("mail provider api key is not configured")

type Email struct {
	To      string
	Subject string
	HTML    string
}

type MailServiceConfig struct {
	APIKey  string
	BaseURL string
	From    string
}

// MailService delivers email through Resend.
type MailService struct {
	config MailServiceConfig
	client *resend.Client
}

func NewMailService(config MailServiceConfig) *MailService {
	client := resend.NewCustomClient(&http.Client{Timeout: 15 * time.Second}, config.APIKey)

	if config.BaseURL != "" {
		// The client resolves "emails" against the base, which needs the trailing slash.
		baseURL, err := url.Parse(strings.TrimRight(config.BaseURL, "/") + "/")
		if err == nil {
			client.BaseURL = baseURL
		}
	}

	return &MailService{
		config: config,
		client: client,
	}
}

func (ms *MailService) Ready() error {
	if ms.config.APIKey == "" {
		return ErrMailerNotConfigured
	}
	return nil
}

func (ms *MailService) Send(ctx context.Context, email Email) error {
	if err := ms.Ready(); err != nil {
		return err
	}

	_, err := ms.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    fmt.Sprintf("RiseGen <%s>", ms.config.From),
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
	})

	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
