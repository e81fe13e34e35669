// Package email sends transactional emails through Postmark, or writes them
// to disk during development.
//
// EmailSender is the provider abstraction. New returns the Postmark client
// when both tokens are configured and a DevSender otherwise, so local runs
// never need credentials.
//
//	sender, err := email.New(cfg)
//	html, _ := email.RenderNotification("Scheduled publish failed", body)
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   user.Email,
//	    Subject:  "Scheduled publish failed",
//	    BodyHTML: html,
//	    Tag:      "publish-failed",
//	})
//
// Errors are ErrInvalidConfig, ErrInvalidParams and ErrFailedToSendEmail,
// checked with errors.Is.
package email
