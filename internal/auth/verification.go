package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/store"
	"github.com/charlesng35/staffhub/pkg/crypto"
	"github.com/charlesng35/staffhub/pkg/metrics"
)

const (
	// DefaultEmailVerifyTTL bounds how long an email confirmation link stays valid.
	DefaultEmailVerifyTTL = time.Hour
	// DefaultPasswordResetTTL bounds how long a password reset link stays valid.
	DefaultPasswordResetTTL = 10 * time.Minute
	// DefaultVerificationTokenBytes yields 256 bits of entropy.
	DefaultVerificationTokenBytes = 32
)

// IssuedToken is the plaintext token handed to the mailer. Only its digest is stored.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// VerificationOption customises a VerificationTokenManager.
type VerificationOption func(*VerificationTokenManager)

// WithVerificationClock overrides the clock used for expiry.
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(m *VerificationTokenManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithEmailVerifyTTL overrides the email confirmation lifetime.
func WithEmailVerifyTTL(ttl time.Duration) VerificationOption {
	return func(m *VerificationTokenManager) {
		if ttl > 0 {
			m.ttls[models.PurposeEmailVerify] = ttl
		}
	}
}

// WithPasswordResetTTL overrides the password reset lifetime.
func WithPasswordResetTTL(ttl time.Duration) VerificationOption {
	return func(m *VerificationTokenManager) {
		if ttl > 0 {
			m.ttls[models.PurposePasswordReset] = ttl
		}
	}
}

// WithTokenBytes overrides the random byte count. Values below 32 are ignored.
func WithTokenBytes(n int) VerificationOption {
	return func(m *VerificationTokenManager) {
		if n >= DefaultVerificationTokenBytes {
			m.tokenBytes = n
		}
	}
}

// VerificationTokenManager issues and redeems single-use, time-boxed tokens.
type VerificationTokenManager struct {
	store      store.Store
	ttls       map[models.TokenPurpose]time.Duration
	tokenBytes int
	now        func() time.Time
}

// NewVerificationTokenManager constructs a manager backed by st.
func NewVerificationTokenManager(st store.Store, opts ...VerificationOption) (*VerificationTokenManager, error) {
	if st == nil {
		return nil, errors.New("verification: store is required")
	}

	m := &VerificationTokenManager{
		store: st,
		ttls: map[models.TokenPurpose]time.Duration{
			models.PurposeEmailVerify:   DefaultEmailVerifyTTL,
			models.PurposePasswordReset: DefaultPasswordResetTTL,
		},
		tokenBytes: DefaultVerificationTokenBytes,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the configured lifetime for purpose.
func (m *VerificationTokenManager) TTL(purpose models.TokenPurpose) time.Duration {
	return m.ttls[purpose]
}

// Issue stores a fresh token for the account, replacing any live token with
// the same purpose.
func (m *VerificationTokenManager) Issue(ctx context.Context, accountID string, purpose models.TokenPurpose) (IssuedToken, error) {
	ttl, ok := m.ttls[purpose]
	if !ok {
		return IssuedToken{}, fmt.Errorf("verification: unsupported purpose %q", purpose)
	}
	if strings.TrimSpace(accountID) == "" {
		return IssuedToken{}, errors.New("verification: account id is required")
	}

	token, err := crypto.GenerateToken(m.tokenBytes)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("verification: generate token: %w", err)
	}

	expiresAt := m.now().UTC().Add(ttl)
	record := &models.VerificationToken{
		AccountID: accountID,
		Purpose:   purpose,
		TokenHash: crypto.HashToken(token),
		ExpiresAt: expiresAt,
	}
	if err := m.store.SaveVerificationToken(ctx, record); err != nil {
		return IssuedToken{}, fmt.Errorf("verification: save token: %w", err)
	}

	return IssuedToken{Token: token, ExpiresAt: expiresAt}, nil
}

// Redeem consumes token for purpose and applies effect in the same storage
// transaction. Unknown, consumed, expired and wrong-purpose tokens are
// indistinguishable to the caller.
func (m *VerificationTokenManager) Redeem(ctx context.Context, token string, purpose models.TokenPurpose, effect store.RedeemEffect) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.TokenRedemptions.WithLabelValues(string(purpose), "invalid").Inc()
		return "", ErrInvalidOrExpiredToken
	}

	accountID, err := m.store.ConsumeVerificationToken(ctx, crypto.HashToken(token), purpose, m.now().UTC(), effect)
	switch {
	case err == nil:
		metrics.TokenRedemptions.WithLabelValues(string(purpose), "success").Inc()
		return accountID, nil
	case errors.Is(err, store.ErrTokenNotFound):
		metrics.TokenRedemptions.WithLabelValues(string(purpose), "invalid").Inc()
		return "", ErrInvalidOrExpiredToken
	case errors.Is(err, store.ErrTokenExpired):
		metrics.TokenRedemptions.WithLabelValues(string(purpose), "expired").Inc()
		return "", ErrInvalidOrExpiredToken
	default:
		metrics.TokenRedemptions.WithLabelValues(string(purpose), "error").Inc()
		return "", fmt.Errorf("verification: consume token: %w", err)
	}
}
