package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

type postmarkClient struct {
	client  *postmark.Client
	from    string
	replyTo string
}

// NewPostmarkClient returns a sender delivering through Postmark. Replies
// go to SupportEmail.
func NewPostmarkClient(cfg Config) (EmailSender, error) {
	required := []struct {
		name, value string
		address     bool
	}{
		{"POSTMARK_SERVER_TOKEN", cfg.PostmarkServerToken, false},
		{"POSTMARK_ACCOUNT_TOKEN", cfg.PostmarkAccountToken, false},
		{"SENDER_EMAIL", cfg.SenderEmail, true},
		{"SUPPORT_EMAIL", cfg.SupportEmail, true},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidConfig, r.name)
		}
		if r.address && !emailRegex.MatchString(r.value) {
			return nil, fmt.Errorf("%w: %s is not a valid email address", ErrInvalidConfig, r.name)
		}
	}

	return &postmarkClient{
		client:  postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:    cfg.SenderEmail,
		replyTo: cfg.SupportEmail,
	}, nil
}

// SendEmail implements EmailSender. A Postmark error code in an otherwise
// successful response is reported as a failure too.
func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:     c.from,
		ReplyTo:  c.replyTo,
		To:       params.SendTo,
		Subject:  params.Subject,
		Tag:      params.Tag,
		HTMLBody: params.BodyHTML,
		TextBody: params.BodyText,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode != 0 {
		return fmt.Errorf("%w: postmark error %d: %s", ErrFailedToSendEmail, resp.ErrorCode, resp.Message)
	}
	return nil
}
