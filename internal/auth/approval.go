package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/store"
	"github.com/charlesng35/staffhub/pkg/metrics"
)

// ApprovalConfig configures the approval gate.
type ApprovalConfig struct {
	// AutoActivate creates employee profiles as active, skipping the approval step.
	AutoActivate bool
	Clock        func() time.Time
}

// ProfileOverride is an administrator's direct reassignment of a profile.
type ProfileOverride struct {
	Role       *models.Role
	Status     *models.ProfileStatus
	Department *string
	Position   *string
}

// Empty reports whether the override changes nothing.
func (o ProfileOverride) Empty() bool {
	return o.Role == nil && o.Status == nil && o.Department == nil && o.Position == nil
}

// ApprovalGate owns the profile status state machine and the login policy.
type ApprovalGate struct {
	store        store.Store
	autoActivate bool
	now          func() time.Time
}

// NewApprovalGate constructs an ApprovalGate.
func NewApprovalGate(st store.Store, cfg ApprovalConfig) (*ApprovalGate, error) {
	if st == nil {
		return nil, errors.New("approval gate: store is required")
	}
	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}
	return &ApprovalGate{store: st, autoActivate: cfg.AutoActivate, now: clock}, nil
}

// AutoActivate reports whether employees skip the approval step.
func (g *ApprovalGate) AutoActivate() bool {
	return g.autoActivate
}

// InitialStatus is the status a new profile with role starts in.
func (g *ApprovalGate) InitialStatus(role models.Role) models.ProfileStatus {
	if role == models.RoleAdmin || g.autoActivate {
		return models.StatusActive
	}
	return models.StatusPending
}

// CanLogin returns nil when the account may receive a session. The blocking
// reasons are checked in a fixed order: verification, then approval.
func (g *ApprovalGate) CanLogin(account *models.Account, profile *models.EmployeeProfile) error {
	if account == nil || profile == nil {
		return ErrNotFound
	}
	if !account.EmailVerified {
		return ErrEmailNotVerified
	}
	switch profile.Status {
	case models.StatusActive:
		return nil
	case models.StatusRejected:
		return ErrAccountRejected
	default:
		return ErrPendingApproval
	}
}

// Approve moves a pending profile to active.
func (g *ApprovalGate) Approve(ctx context.Context, profileID, actorID string) (*models.EmployeeProfile, error) {
	return g.transition(ctx, profileID, actorID, models.StatusActive)
}

// Reject moves a pending profile to rejected.
func (g *ApprovalGate) Reject(ctx context.Context, profileID, actorID string) (*models.EmployeeProfile, error) {
	return g.transition(ctx, profileID, actorID, models.StatusRejected)
}

func (g *ApprovalGate) transition(ctx context.Context, profileID, actorID string, to models.ProfileStatus) (*models.EmployeeProfile, error) {
	profile, err := g.store.TransitionProfileStatus(ctx, profileID, models.StatusPending, to, actorID, g.now().UTC())
	switch {
	case err == nil:
		metrics.ApprovalTransitions.WithLabelValues(string(to)).Inc()
		return profile, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, store.ErrStatusConflict):
		return nil, ErrInvalidTransition
	default:
		return nil, fmt.Errorf("approval gate: transition profile: %w", err)
	}
}

// Override applies an administrator's direct reassignment. It bypasses the
// pending-only transition rule.
func (g *ApprovalGate) Override(ctx context.Context, profileID, actorID string, override ProfileOverride) (*models.EmployeeProfile, error) {
	if override.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if override.Role != nil && !override.Role.Valid() {
		return nil, fmt.Errorf("%w: role %q is not supported", ErrInvalidInput, *override.Role)
	}
	if override.Status != nil && !override.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q is not supported", ErrInvalidInput, *override.Status)
	}

	profile, err := g.store.OverrideProfile(ctx, profileID, store.ProfileOverride{
		Role:       override.Role,
		Status:     override.Status,
		Department: trimOptionalKeepEmpty(override.Department),
		Position:   trimOptionalKeepEmpty(override.Position),
		ActorID:    actorID,
		At:         g.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("approval gate: override profile: %w", err)
	}
	if override.Status != nil {
		metrics.ApprovalTransitions.WithLabelValues(string(*override.Status)).Inc()
	}
	return profile, nil
}

func trimOptionalKeepEmpty(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := trimOptional(value)
	if trimmed == nil {
		empty := ""
		return &empty
	}
	return trimmed
}
