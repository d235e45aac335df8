package notifier

import (
	"context"
	"fmt"

	resend "github.com/resend/resend-go/v3"
)

// Email is one outbound message, rendered and ready to send.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers rendered emails.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// ResendSender delivers emails through the Resend API.
type ResendSender struct {
	from   string
	client *resend.Client
}

// NewResendSender builds a sender using the given API key and from address.
func NewResendSender(apiKey, from string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key required")
	}
	if from == "" {
		return nil, fmt.Errorf("from address required")
	}
	return &ResendSender{from: from, client: resend.NewClient(apiKey)}, nil
}

// Send delivers the email via Resend.
func (r *ResendSender) Send(ctx context.Context, email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}
	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{email.To},
		Subject: email.Subject,
	}
	if email.HTML != "" {
		params.Html = email.HTML
	}
	if email.Text != "" {
		params.Text = email.Text
	}
	if params.Html == "" && params.Text == "" {
		return fmt.Errorf("email body is empty")
	}
	if _, err := r.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email via resend: %w", err)
	}
	return nil
}
