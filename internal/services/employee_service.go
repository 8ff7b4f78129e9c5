package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/staffhub/internal/auth"
	"github.com/charlesng35/staffhub/internal/events"
	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/store"
	apperrors "github.com/charlesng35/staffhub/pkg/errors"
	"github.com/charlesng35/staffhub/pkg/logger"
)

// EmployeeListOptions controls pagination and filtering for employee queries.
type EmployeeListOptions struct {
	Status  models.ProfileStatus
	Role    models.Role
	Page    int
	PerPage int
}

// EmployeeService exposes the administrator view of employee profiles.
type EmployeeService struct {
	store  store.Store
	gate   *auth.ApprovalGate
	events events.Publisher
	audit  *AuditService
}

// NewEmployeeService constructs an EmployeeService.
func NewEmployeeService(st store.Store, gate *auth.ApprovalGate, publisher events.Publisher, audit *AuditService) (*EmployeeService, error) {
	if st == nil {
		return nil, errors.New("employee service: store is required")
	}
	if gate == nil {
		return nil, errors.New("employee service: approval gate is required")
	}
	if publisher == nil {
		publisher = events.NewLogPublisher()
	}
	return &EmployeeService{store: st, gate: gate, events: publisher, audit: audit}, nil
}

// List returns a page of employees with their account email.
func (s *EmployeeService) List(ctx context.Context, opts EmployeeListOptions) ([]AccountView, int64, error) {
	ctx = ensureContext(ctx)

	if opts.Status != "" && !opts.Status.Valid() {
		return nil, 0, apperrors.NewValidation("Unknown status filter")
	}
	if opts.Role != "" && !opts.Role.Valid() {
		return nil, 0, apperrors.NewValidation("Unknown role filter")
	}

	_, perPage, offset := pageOffset(opts.Page, opts.PerPage)
	profiles, total, err := s.store.ListProfiles(ctx, store.ProfileFilter{
		Status: opts.Status,
		Role:   opts.Role,
		Offset: offset,
		Limit:  perPage,
	})
	if err != nil {
		return nil, 0, translateAuthError(err, "list_employees")
	}

	views := make([]AccountView, 0, len(profiles))
	for i := range profiles {
		profile := &profiles[i]
		account := profile.Account
		if account == nil {
			account = &models.Account{BaseModel: models.BaseModel{ID: profile.AccountID}}
		}
		views = append(views, newAccountView(account, profile))
	}
	return views, total, nil
}

// Get returns a single employee by profile id.
func (s *EmployeeService) Get(ctx context.Context, profileID string) (*AccountView, error) {
	ctx = ensureContext(ctx)

	profile, account, err := s.load(ctx, profileID)
	if err != nil {
		return nil, translateAuthError(err, "get_employee")
	}
	view := newAccountView(account, profile)
	return &view, nil
}

// Override reassigns role, status, department or position directly. Unlike
// approve/reject it is not limited to pending profiles.
func (s *EmployeeService) Override(ctx context.Context, profileID, actorID string, override auth.ProfileOverride, meta auth.SessionMetadata) (*AccountView, error) {
	ctx = ensureContext(ctx)

	profile, err := s.gate.Override(ctx, profileID, actorID, override)
	if err != nil {
		return nil, translateAuthError(err, "override_employee")
	}

	account, err := s.store.GetAccountByID(ctx, profile.AccountID)
	if err != nil {
		return nil, translateAuthError(lookupError(err), "override_employee")
	}

	changes := overrideMetadata(override)
	event := events.New(events.TypeEmployeeUpdated, account.ID)
	event.ProfileID = profile.ID
	event.ActorID = actorID
	event.Data = changes
	if err := s.events.Publish(ctx, event); err != nil {
		logger.WithModule("employees").Warn("failed to publish event", zap.String("type", event.Type), zap.Error(err))
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:   actorID,
		Action:    "employee.override",
		Resource:  "profile:" + profile.ID,
		Result:    AuditResultSuccess,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Metadata:  changes,
	})

	view := newAccountView(account, profile)
	return &view, nil
}

func (s *EmployeeService) load(ctx context.Context, profileID string) (*models.EmployeeProfile, *models.Account, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, nil, auth.ErrNotFound
	}
	profile, err := s.store.GetProfileByID(ctx, profileID)
	if err != nil {
		return nil, nil, lookupError(err)
	}
	account, err := s.store.GetAccountByID(ctx, profile.AccountID)
	if err != nil {
		return nil, nil, lookupError(err)
	}
	return profile, account, nil
}

func overrideMetadata(override auth.ProfileOverride) map[string]any {
	changes := make(map[string]any, 4)
	if override.Role != nil {
		changes["role"] = string(*override.Role)
	}
	if override.Status != nil {
		changes["status"] = string(*override.Status)
	}
	if override.Department != nil {
		changes["department"] = strings.TrimSpace(*override.Department)
	}
	if override.Position != nil {
		changes["position"] = strings.TrimSpace(*override.Position)
	}
	return changes
}
