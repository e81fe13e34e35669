package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/dmitrymomot/levelqueue/pkg/email"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/webhook"
	"github.com/dmitrymomot/levelqueue/svc/account"
	"github.com/dmitrymomot/levelqueue/svc/jobs"
)

// Notifier owns the notification handlers.
type Notifier struct {
	accounts account.Store
	mailer   email.EmailSender
	sender   *webhook.Sender
	cfg      Config
	sendOpts []webhook.SendOption
	logger   *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithSendOptions applies opts to every outbound webhook call.
func WithSendOptions(opts ...webhook.SendOption) Option {
	return func(n *Notifier) {
		n.sendOpts = append(n.sendOpts, opts...)
	}
}

// New creates a Notifier. A nil sender uses webhook.NewSender defaults.
func New(accounts account.Store, mailer email.EmailSender, sender *webhook.Sender, cfg Config, opts ...Option) *Notifier {
	if sender == nil {
		sender = webhook.NewSender(nil, cfg.UserAgent)
	}
	n := &Notifier{
		accounts: accounts,
		mailer:   mailer,
		sender:   sender,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With(logger.Component("notify"))
	return n
}

// Handlers returns one handler per notification message type.
func (n *Notifier) Handlers() []queue.Handler {
	return []queue.Handler{
		queue.NewTaskHandler(jobs.TypeEmailNotification, n.email),
		queue.NewTaskHandler(jobs.TypePushNotification, n.push),
		queue.NewTaskHandler(jobs.TypeDiscordNotification, n.discord),
		queue.NewTaskHandler(jobs.TypeFetch, n.fetch),
	}
}

func (n *Notifier) email(ctx context.Context, msg *queue.Message, p jobs.EmailPayload) error {
	u, err := n.accounts.GetUser(ctx, p.UserID)
	if errors.Is(err, account.ErrUserNotFound) {
		return queue.Permanent(err)
	}
	if err != nil {
		return err
	}
	if u.Email == "" {
		msg.AppendLog("user " + u.ID + " has no email address, skipped")
		return nil
	}

	body, err := email.RenderNotification(p.Subject, p.Body)
	if err != nil {
		return queue.Permanent(err)
	}
	err = n.mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:   u.Email,
		Subject:  p.Subject,
		BodyHTML: body,
		BodyText: p.Body,
		Tag:      p.Category,
	})
	if errors.Is(err, email.ErrInvalidParams) {
		return queue.Permanent(err)
	}
	if err != nil {
		return err
	}
	msg.AppendLog("email sent to user " + u.ID)
	return nil
}

func (n *Notifier) push(ctx context.Context, msg *queue.Message, p jobs.PushPayload) error {
	if n.cfg.PushGatewayURL == "" {
		msg.AppendLog("push gateway not configured, skipped")
		return nil
	}
	opts := slices.Clone(n.sendOpts)
	if n.cfg.PushGatewaySecret != "" {
		opts = append(opts, webhook.WithSignature(n.cfg.PushGatewaySecret))
	}
	if err := n.sender.Send(ctx, n.cfg.PushGatewayURL, p, opts...); err != nil {
		return classify(err)
	}
	msg.AppendLog("push sent to user " + p.UserID)
	return nil
}

func (n *Notifier) discord(ctx context.Context, msg *queue.Message, p jobs.DiscordPayload) error {
	url, ok := n.cfg.DiscordWebhooks[p.Channel]
	if !ok {
		msg.AppendLog("no discord webhook for channel " + p.Channel + ", skipped")
		return nil
	}
	if err := n.sender.Send(ctx, url, map[string]string{"content": p.Content}, n.sendOpts...); err != nil {
		return classify(err)
	}
	msg.AppendLog("posted to discord channel " + p.Channel)
	return nil
}

func (n *Notifier) fetch(ctx context.Context, msg *queue.Message, p jobs.FetchPayload) error {
	method := p.Method
	if method == "" {
		method = http.MethodGet
	}
	status, err := n.sender.Do(ctx, webhook.Request{
		Method: method,
		URL:    p.URL,
		Body:   []byte(p.Body),
		Header: p.Header,
	}, n.sendOpts...)
	if err != nil {
		return classify(err)
	}
	msg.AppendLog(fmt.Sprintf("%s %s -> %d", method, p.URL, status))
	return nil
}

// classify marks webhook failures that a retry cannot fix as permanent.
func classify(err error) error {
	if errors.Is(err, webhook.ErrPermanentFailure) ||
		errors.Is(err, webhook.ErrInvalidURL) ||
		errors.Is(err, webhook.ErrInvalidPayload) {
		return queue.Permanent(err)
	}
	return err
}
