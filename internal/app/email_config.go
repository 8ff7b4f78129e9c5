package app

import (
	"strings"

	"github.com/charlesng35/staffhub/internal/notify"
	"github.com/charlesng35/staffhub/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     strings.TrimSpace(c.SMTP.Host),
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     strings.TrimSpace(c.SMTP.From),
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// MailNotifierConfig builds the notifier configuration. Token lifetimes come
// from the auth section so the mail copy matches what the token manager enforces.
func (c Config) MailNotifierConfig() notify.MailNotifierConfig {
	confirm, reset := c.Auth.TokenTTLs()
	return notify.MailNotifierConfig{
		Links: notify.Links{
			ConfirmURL: strings.TrimSpace(c.Email.Links.ConfirmURL),
			ResetURL:   strings.TrimSpace(c.Email.Links.ResetURL),
			LoginURL:   strings.TrimSpace(c.Email.Links.LoginURL),
		},
		ConfirmTTL: confirm,
		ResetTTL:   reset,
	}
}

// DispatcherConfig converts EmailConfig into notification dispatcher options.
func (c EmailConfig) DispatcherConfig() notify.DispatcherConfig {
	return notify.DispatcherConfig{Timeout: c.DispatchTimeout}
}
