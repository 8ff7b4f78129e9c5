package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/store"
	"github.com/charlesng35/staffhub/pkg/crypto"
)

// timingPlaceholder is hashed once so lookups for unknown emails spend the
// same time in the hasher as lookups for real accounts.
const timingPlaceholder = "staffhub-timing-placeholder-1"

// NewAccount captures the fields needed to register an account and its profile.
type NewAccount struct {
	Email      string
	Password   string
	FullName   string
	Role       models.Role
	Department *string
	Position   *string
}

// CredentialConfig configures a CredentialStore.
type CredentialConfig struct {
	Hasher crypto.PasswordHasher
	Policy *PasswordPolicy
	Clock  func() time.Time
}

// CredentialStore owns account creation and password verification.
type CredentialStore struct {
	store     store.Store
	hasher    crypto.PasswordHasher
	policy    PasswordPolicy
	dummyHash string
	now       func() time.Time
}

// NewCredentialStore builds a CredentialStore. Bcrypt at the default cost is
// used when no hasher is configured.
func NewCredentialStore(st store.Store, cfg CredentialConfig) (*CredentialStore, error) {
	if st == nil {
		return nil, errors.New("credential store: store is required")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = crypto.NewBcryptHasher(0)
	}

	policy := DefaultPasswordPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	dummy, err := hasher.Hash(timingPlaceholder)
	if err != nil {
		return nil, fmt.Errorf("credential store: prepare placeholder hash: %w", err)
	}

	return &CredentialStore{
		store:     st,
		hasher:    hasher,
		policy:    policy,
		dummyHash: dummy,
		now:       clock,
	}, nil
}

// Create validates and persists a new account together with its profile.
func (c *CredentialStore) Create(ctx context.Context, input NewAccount, status models.ProfileStatus) (*models.Account, *models.EmployeeProfile, error) {
	email := models.NormalizeEmail(input.Email)
	if parsed, err := mail.ParseAddress(email); err != nil || parsed.Address != email {
		return nil, nil, fmt.Errorf("%w: email address is invalid", ErrInvalidInput)
	}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, nil, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if !input.Role.Valid() {
		return nil, nil, fmt.Errorf("%w: role %q is not supported", ErrInvalidInput, input.Role)
	}
	if !status.Valid() {
		return nil, nil, fmt.Errorf("%w: status %q is not supported", ErrInvalidInput, status)
	}

	hash, err := c.HashPassword(input.Password)
	if err != nil {
		return nil, nil, err
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: hash,
	}
	profile := &models.EmployeeProfile{
		FullName:   fullName,
		Role:       input.Role,
		Department: trimOptional(input.Department),
		Position:   trimOptional(input.Position),
		Status:     status,
	}

	if err := c.store.CreateAccount(ctx, account, profile); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, nil, ErrDuplicateEmail
		}
		return nil, nil, fmt.Errorf("credential store: create account: %w", err)
	}
	return account, profile, nil
}

// VerifyPassword reports whether candidate matches the account registered
// under email. Unknown emails return false with no error after an equivalent
// amount of hashing work.
func (c *CredentialStore) VerifyPassword(ctx context.Context, email, candidate string) (*models.Account, bool, error) {
	account, err := c.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			crypto.VerifyPassword(c.dummyHash, candidate)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("credential store: lookup account: %w", err)
	}

	if !crypto.VerifyPassword(account.PasswordHash, candidate) {
		return nil, false, nil
	}
	return account, true, nil
}

// CheckPassword verifies candidate against a known account.
func (c *CredentialStore) CheckPassword(account *models.Account, candidate string) bool {
	if account == nil {
		crypto.VerifyPassword(c.dummyHash, candidate)
		return false
	}
	return crypto.VerifyPassword(account.PasswordHash, candidate)
}

// SetPassword rehashes and overwrites the account's password. Sessions are
// left untouched.
func (c *CredentialStore) SetPassword(ctx context.Context, accountID, newPassword string) error {
	hash, err := c.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := c.store.UpdatePasswordHash(ctx, accountID, hash, c.now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("credential store: update password: %w", err)
	}
	return nil
}

// HashPassword applies the password policy and hashes the result.
func (c *CredentialStore) HashPassword(password string) (string, error) {
	if err := c.policy.Validate(password); err != nil {
		return "", err
	}
	hash, err := c.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("credential store: hash password: %w", err)
	}
	return hash, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
