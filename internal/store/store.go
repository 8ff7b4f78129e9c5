// Package store defines the persistence capability consumed by the identity
// core. Adapters hold no business rules: hashing, token generation and the
// approval state machine live in package auth.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/staffhub/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateEmail is returned when an account already uses the normalised email.
	ErrDuplicateEmail = errors.New("store: duplicate email")
	// ErrTokenNotFound is returned when no live token matches a compare-and-clear.
	ErrTokenNotFound = errors.New("store: token not found")
	// ErrTokenExpired is returned when the matching token had already expired. The row is still removed.
	ErrTokenExpired = errors.New("store: token expired")
	// ErrStatusConflict is returned when a profile is not in the expected status.
	ErrStatusConflict = errors.New("store: status conflict")
)

// RedeemEffect is applied in the same transaction that consumes a verification token.
type RedeemEffect struct {
	MarkEmailVerified   bool
	PasswordHash        string
	RevokeRefreshTokens bool
}

// ProfileFilter narrows ListProfiles.
type ProfileFilter struct {
	Status models.ProfileStatus
	Role   models.Role
	Offset int
	Limit  int
}

// ProfileOverride carries an administrator's direct reassignment. Nil fields are left unchanged.
type ProfileOverride struct {
	Role       *models.Role
	Status     *models.ProfileStatus
	Department *string
	Position   *string
	ActorID    string
	At         time.Time
}

// AuditFilter narrows ListAudit.
type AuditFilter struct {
	ActorID string
	Action  string
	Offset  int
	Limit   int
}

// PurgeResult reports how many rows a maintenance purge removed.
type PurgeResult struct {
	VerificationTokens int64
	RefreshTokens      int64
}

// Store is implemented by every persistence adapter.
type Store interface {
	// CreateAccount persists the account and its profile in one transaction.
	CreateAccount(ctx context.Context, account *models.Account, profile *models.EmployeeProfile) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetProfileByID(ctx context.Context, id string) (*models.EmployeeProfile, error)
	GetProfileByAccountID(ctx context.Context, accountID string) (*models.EmployeeProfile, error)
	// ListProfiles returns a page of profiles with Account populated, plus the total match count.
	ListProfiles(ctx context.Context, filter ProfileFilter) ([]models.EmployeeProfile, int64, error)
	// ListActiveAdminEmails returns verified, active administrator addresses.
	ListActiveAdminEmails(ctx context.Context) ([]string, error)
	// CountAdmins counts administrator profiles in any status.
	CountAdmins(ctx context.Context) (int64, error)
	UpdatePasswordHash(ctx context.Context, accountID, hash string, changedAt time.Time) error
	TouchLastLogin(ctx context.Context, accountID string, at time.Time) error

	// SaveVerificationToken replaces any token with the same account and purpose.
	SaveVerificationToken(ctx context.Context, token *models.VerificationToken) error
	// ConsumeVerificationToken deletes the token matching hash and purpose and
	// applies effect atomically. Exactly one concurrent caller can succeed.
	ConsumeVerificationToken(ctx context.Context, tokenHash string, purpose models.TokenPurpose, now time.Time, effect RedeemEffect) (string, error)

	// TransitionProfileStatus moves a profile from one status to another only
	// when it currently holds from; otherwise ErrStatusConflict.
	TransitionProfileStatus(ctx context.Context, profileID string, from, to models.ProfileStatus, actorID string, at time.Time) (*models.EmployeeProfile, error)
	OverrideProfile(ctx context.Context, profileID string, override ProfileOverride) (*models.EmployeeProfile, error)

	AddRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RotateRefreshToken removes oldHash for the account and inserts next in
	// one transaction; ErrTokenNotFound when oldHash is no longer a member.
	RotateRefreshToken(ctx context.Context, accountID, oldHash string, next *models.RefreshToken) error
	RevokeRefreshTokens(ctx context.Context, accountID string) (int64, error)
	CountRefreshTokens(ctx context.Context, accountID string) (int64, error)

	RecordAudit(ctx context.Context, entry *models.AuditLog) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]models.AuditLog, int64, error)

	PurgeExpiredTokens(ctx context.Context, now time.Time) (PurgeResult, error)
	PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// NormalizePage clamps offset/limit pairs to sane bounds.
func NormalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	return offset, limit
}
