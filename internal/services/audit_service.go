package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/store"
)

// Audit results.
const (
	AuditResultSuccess = "success"
	AuditResultFailure = "failure"
)

// AuditEntry captures a single audit event to persist.
type AuditEntry struct {
	ActorID   string
	Action    string
	Resource  string
	Result    string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
}

// AuditListOptions controls pagination and filtering for audit queries.
type AuditListOptions struct {
	Page     int
	PageSize int
	ActorID  string
	Action   string
}

// AuditService persists and retrieves audit log entries.
type AuditService struct {
	store store.Store
	now   func() time.Time
}

// NewAuditService constructs an AuditService using the provided store.
func NewAuditService(st store.Store) (*AuditService, error) {
	if st == nil {
		return nil, errors.New("audit service: store is required")
	}
	return &AuditService{store: st, now: time.Now}, nil
}

// Log stores an audit entry, marshalling metadata into JSON form.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit service: action is required")
	}
	if strings.TrimSpace(entry.Result) == "" {
		return errors.New("audit service: result is required")
	}

	var payload datatypes.JSON
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		payload = datatypes.JSON(encoded)
	}

	log := &models.AuditLog{
		Action:    strings.TrimSpace(entry.Action),
		Resource:  strings.TrimSpace(entry.Resource),
		Result:    strings.TrimSpace(entry.Result),
		IPAddress: strings.TrimSpace(entry.IPAddress),
		UserAgent: strings.TrimSpace(entry.UserAgent),
		Metadata:  payload,
		CreatedAt: s.now().UTC(),
	}

	if id := strings.TrimSpace(entry.ActorID); id != "" {
		log.ActorID = &id
	}

	return s.store.RecordAudit(ctx, log)
}

// List returns paginated audit logs ordered by creation time descending.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)

	_, perPage, offset := pageOffset(opts.Page, opts.PageSize)
	logs, total, err := s.store.ListAudit(ctx, store.AuditFilter{
		ActorID: strings.TrimSpace(opts.ActorID),
		Action:  strings.TrimSpace(opts.Action),
		Offset:  offset,
		Limit:   perPage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}
	return logs, total, nil
}

// CleanupOlderThan removes audit logs older than the supplied retention window (in days).
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	removed, err := s.store.PurgeAuditBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", err)
	}
	return removed, nil
}
