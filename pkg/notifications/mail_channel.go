package notifications

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/email/templates"
	"github.com/dmitrymomot/notifykit/pkg/i18n"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// MailReceipt is the response of the mail channel.
type MailReceipt struct {
	To      string
	Subject string
	Tag     string
}

// MailChannel renders ToMail and sends it through an email.EmailSender.
type MailChannel struct {
	sender     email.EmailSender
	translator *i18n.Translator
	tag        string
	logger     *slog.Logger
}

// MailChannelOption configures a MailChannel.
type MailChannelOption func(*MailChannel)

// WithMailTranslator translates MailMessage.SubjectKey in the delivery locale.
func WithMailTranslator(t *i18n.Translator) MailChannelOption {
	return func(c *MailChannel) {
		c.translator = t
	}
}

// WithMailTag sets the default message stream tag.
func WithMailTag(tag string) MailChannelOption {
	return func(c *MailChannel) {
		c.tag = tag
	}
}

// WithMailLogger sets the logger for the MailChannel.
func WithMailLogger(l *slog.Logger) MailChannelOption {
	return func(c *MailChannel) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewMailChannel creates a mail channel sending through sender.
func NewMailChannel(sender email.EmailSender, opts ...MailChannelOption) *MailChannel {
	c := &MailChannel{sender: sender, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send delivers the rendered mail. Recipients without an address and
// notifications without a mail message are skipped.
func (c *MailChannel) Send(ctx context.Context, r Recipient, msg Message) (any, error) {
	m, err := MailData(ctx, msg.Notification, r)
	if err != nil {
		return nil, fmt.Errorf("render mail: %w", err)
	}
	if m == nil {
		return nil, nil
	}

	to := m.To
	if to == "" {
		to = c.route(r, msg.Channel)
	}
	if to == "" {
		ident, _ := IdentityOf(r)
		c.logger.LogAttrs(ctx, slog.LevelDebug, "mail skipped: no route",
			logger.NotificationID(msg.ID),
			logger.Channel(msg.Channel),
			logger.Recipient(ident.Type, ident.Key),
		)
		return nil, nil
	}

	locale := cmp.Or(msg.Locale, i18n.GetLocale(ctx))
	subject := m.Subject
	if m.SubjectKey != "" && c.translator != nil {
		subject = c.translator.Td(locale, m.SubjectKey, cmp.Or(m.Subject, m.SubjectKey), m.SubjectArgs...)
	}

	html, err := templates.Render(ctx, c.body(m))
	if err != nil {
		return nil, fmt.Errorf("render mail body: %w", err)
	}

	text := m.Text
	if text == "" {
		text = plainText(m)
	}

	params := email.SendEmailParams{
		SendTo:   to,
		Subject:  subject,
		BodyHTML: html,
		BodyText: text,
		Tag:      cmp.Or(m.Tag, c.tag),
	}
	if err := c.sender.SendEmail(ctx, params); err != nil {
		return nil, err
	}

	return MailReceipt{To: to, Subject: subject, Tag: params.Tag}, nil
}

func (c *MailChannel) route(r Recipient, channel string) string {
	if addr, ok := RouteFor(r, channel); ok {
		return addr
	}
	if addr, ok := RouteFor(r, DriverMail); ok {
		return addr
	}
	return ""
}

func (c *MailChannel) body(m *MailMessage) templ.Component {
	if m.Template != nil {
		return m.Template
	}
	sm := templates.SimpleMessage{
		Greeting:   m.Greeting,
		IntroLines: m.Lines,
		OutroLines: m.OutroLines,
		Salutation: m.Salutation,
	}
	if m.ActionURL != "" {
		sm.Action = &templates.Button{Text: cmp.Or(m.ActionText, m.ActionURL), URL: m.ActionURL}
	}
	return templates.Simple(sm)
}

func plainText(m *MailMessage) string {
	var b strings.Builder
	write := func(s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s)
	}

	write(m.Greeting)
	for _, l := range m.Lines {
		write(l)
	}
	if m.ActionURL != "" {
		write(cmp.Or(m.ActionText, "Open") + ": " + m.ActionURL)
	}
	for _, l := range m.OutroLines {
		write(l)
	}
	write(m.Salutation)
	return b.String()
}

// MailDriver returns a Factory for mail channels. The "tag" option sets the
// default tag.
func MailDriver(sender email.EmailSender, opts ...MailChannelOption) Factory {
	return func(_ string, o ChannelOptions) (Channel, error) {
		if sender == nil {
			return nil, fmt.Errorf("%w: email sender", ErrNilDependency)
		}
		all := opts[:len(opts):len(opts)]
		if tag := o.String("tag", ""); tag != "" {
			all = append(all, WithMailTag(tag))
		}
		return NewMailChannel(sender, all...), nil
	}
}
