// Package events publishes identity lifecycle events for downstream
// consumers. Publishing is fire-and-forget relative to the HTTP request.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/staffhub/pkg/logger"
)

// Event types emitted by the identity core.
const (
	TypeEmployeeRegistered    = "employee.registered"
	TypeEmployeeEmailVerified = "employee.email_verified"
	TypeEmployeeApproved      = "employee.approved"
	TypeEmployeeRejected      = "employee.rejected"
	TypeEmployeeUpdated       = "employee.updated"
	TypePasswordChanged       = "account.password_changed"
	TypeSignedOut             = "account.signed_out"
)

// Event is a single lifecycle fact.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	AccountID  string         `json:"account_id"`
	ProfileID  string         `json:"profile_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// New builds an event stamped with a fresh id and the current time.
func New(eventType, accountID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		AccountID:  accountID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher writes events to the log when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

// NewLogPublisher returns a LogPublisher bound to the events module logger.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{log: logger.WithModule("events")}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.log.Debug("event",
		zap.String("type", event.Type),
		zap.String("account_id", event.AccountID),
		zap.String("profile_id", event.ProfileID),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
