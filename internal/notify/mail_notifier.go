package notify

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/charlesng35/staffhub/pkg/mail"
)

// TokenPlaceholder is replaced with the URL-escaped token in link templates.
const TokenPlaceholder = "{token}"

// Links configures the URLs embedded in outbound mail.
type Links struct {
	ConfirmURL string
	ResetURL   string
	LoginURL   string
}

// MailNotifierConfig configures a MailNotifier.
type MailNotifierConfig struct {
	Links      Links
	ConfirmTTL time.Duration
	ResetTTL   time.Duration
}

// MailNotifier renders built-in templates and delivers them through a mail.Mailer.
type MailNotifier struct {
	mailer    mail.Mailer
	links     Links
	ttls      map[TemplateID]time.Duration
	templates map[TemplateID]mailTemplate
}

// NewMailNotifier constructs a MailNotifier.
func NewMailNotifier(mailer mail.Mailer, cfg MailNotifierConfig) (*MailNotifier, error) {
	if mailer == nil {
		return nil, errors.New("notify: mailer is required")
	}
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &MailNotifier{
		mailer: mailer,
		links:  cfg.Links,
		ttls: map[TemplateID]time.Duration{
			TemplateConfirmEmail:  cfg.ConfirmTTL,
			TemplatePasswordReset: cfg.ResetTTL,
		},
		templates: templates,
	}, nil
}

// Send renders msg and hands it to the mailer.
func (n *MailNotifier) Send(ctx context.Context, msg Message) error {
	tmpl, ok := n.templates[msg.Template]
	if !ok {
		return fmt.Errorf("notify: unknown template %q", msg.Template)
	}

	vars := n.enrich(msg)
	subject, body, err := tmpl.render(vars)
	if err != nil {
		return fmt.Errorf("notify: render %s: %w", msg.Template, err)
	}

	return n.mailer.Send(ctx, mail.Message{
		To:      msg.To,
		Subject: subject,
		Body:    body,
	})
}

func (n *MailNotifier) enrich(msg Message) map[string]string {
	vars := make(map[string]string, len(msg.Vars)+2)
	maps.Copy(vars, msg.Vars)

	if vars[VarName] == "" {
		vars[VarName] = "there"
	}
	if ttl := n.ttls[msg.Template]; ttl > 0 {
		vars["ttl"] = humanDuration(ttl)
	}

	if vars[VarLink] == "" {
		switch msg.Template {
		case TemplateConfirmEmail:
			vars[VarLink] = BuildLink(n.links.ConfirmURL, vars[VarToken])
		case TemplatePasswordReset:
			vars[VarLink] = BuildLink(n.links.ResetURL, vars[VarToken])
		case TemplateAccountApproved:
			vars[VarLink] = n.links.LoginURL
		}
	}
	return vars
}

// BuildLink substitutes token into base. When base has no placeholder the
// token is appended as a path segment.
func BuildLink(base, token string) string {
	escaped := url.PathEscape(token)
	if strings.Contains(base, TokenPlaceholder) {
		return strings.ReplaceAll(base, TokenPlaceholder, escaped)
	}
	if base == "" {
		return escaped
	}
	return strings.TrimRight(base, "/") + "/" + escaped
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	case d%time.Minute == 0:
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	default:
		return d.String()
	}
}
