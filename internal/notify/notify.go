// Package notify delivers templated account notifications. Delivery is
// always asynchronous relative to the HTTP response: callers hand messages to
// a Dispatcher, which logs failures and never retries.
package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/staffhub/pkg/logger"
)

// TemplateID names a notification template.
type TemplateID string

const (
	TemplateConfirmEmail    TemplateID = "confirm_email"
	TemplatePasswordReset   TemplateID = "password_reset"
	TemplateApprovalRequest TemplateID = "approval_request"
	TemplateAccountApproved TemplateID = "account_approved"
	TemplateAccountRejected TemplateID = "account_rejected"
	TemplatePasswordChanged TemplateID = "password_changed"
)

// Well-known template variables.
const (
	VarName     = "name"
	VarEmail    = "email"
	VarToken    = "token"
	VarLink     = "link"
	VarEmployee = "employee"
)

// Message is a notification addressed to one or more recipients.
type Message struct {
	To       []string
	Template TemplateID
	Vars     map[string]string
}

// Notifier sends a single message synchronously.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier records notifications in the log instead of delivering them.
// Template variables are omitted because they can carry tokens.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier returns a LogNotifier writing to the notify module logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.WithModule("notify")}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.log.Info("notification suppressed (mail delivery disabled)",
		zap.String("template", string(msg.Template)),
		zap.String("recipients", strings.Join(msg.To, ",")),
	)
	return nil
}
