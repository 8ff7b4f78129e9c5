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

// SessionMetadata captures contextual information about the client.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

// TokenPair represents an access token and refresh token pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Session is the result of a successful refresh.
type Session struct {
	Tokens  *TokenPair
	Account *models.Account
	Profile *models.EmployeeProfile
}

// SessionIssuer mints and rotates token pairs. Access tokens are verified
// statelessly; refresh tokens must also be a current member of the account's
// stored set.
type SessionIssuer struct {
	store store.Store
	jwt   *JWTService
	gate  *ApprovalGate
	now   func() time.Time
}

// NewSessionIssuer constructs a SessionIssuer. When gate is non-nil, refresh
// is refused for accounts that could no longer sign in.
func NewSessionIssuer(st store.Store, jwtService *JWTService, gate *ApprovalGate) (*SessionIssuer, error) {
	if st == nil {
		return nil, errors.New("session issuer: store is required")
	}
	if jwtService == nil {
		return nil, errors.New("session issuer: jwt service is required")
	}
	return &SessionIssuer{store: st, jwt: jwtService, gate: gate, now: jwtService.now}, nil
}

// Issue mints a token pair for the account and records the refresh token.
func (s *SessionIssuer) Issue(ctx context.Context, account *models.Account, profile *models.EmployeeProfile, meta SessionMetadata) (*TokenPair, error) {
	if account == nil || profile == nil {
		return nil, errors.New("session issuer: account and profile are required")
	}

	pair, err := s.mint(account, profile)
	if err != nil {
		return nil, err
	}

	if err := s.store.AddRefreshToken(ctx, s.refreshRecord(account.ID, pair, meta)); err != nil {
		return nil, fmt.Errorf("session issuer: store refresh token: %w", err)
	}

	metrics.SessionsIssued.Inc()
	return pair, nil
}

// Refresh validates the presented refresh token and rotates it. A token that
// was already rotated, revoked or never issued fails with ErrInvalidRefreshToken.
func (s *SessionIssuer) Refresh(ctx context.Context, refreshToken string, meta SessionMetadata) (*Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		metrics.RefreshRotations.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidRefreshToken
	}

	account, err := s.store.GetAccountByID(ctx, claims.AccountID())
	if err != nil {
		return nil, s.refreshLookupError(err, "account")
	}
	profile, err := s.store.GetProfileByAccountID(ctx, account.ID)
	if err != nil {
		return nil, s.refreshLookupError(err, "profile")
	}

	if s.gate != nil {
		if err := s.gate.CanLogin(account, profile); err != nil {
			metrics.RefreshRotations.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidRefreshToken
		}
	}

	pair, err := s.mint(account, profile)
	if err != nil {
		metrics.RefreshRotations.WithLabelValues("error").Inc()
		return nil, err
	}

	err = s.store.RotateRefreshToken(ctx, account.ID, crypto.HashToken(refreshToken), s.refreshRecord(account.ID, pair, meta))
	switch {
	case err == nil:
	case errors.Is(err, store.ErrTokenNotFound):
		metrics.RefreshRotations.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidRefreshToken
	default:
		metrics.RefreshRotations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("session issuer: rotate refresh token: %w", err)
	}

	metrics.RefreshRotations.WithLabelValues("success").Inc()
	return &Session{Tokens: pair, Account: account, Profile: profile}, nil
}

// RevokeAll invalidates every refresh token held by the account.
func (s *SessionIssuer) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	if strings.TrimSpace(accountID) == "" {
		return 0, errors.New("session issuer: account id is required")
	}
	revoked, err := s.store.RevokeRefreshTokens(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("session issuer: revoke refresh tokens: %w", err)
	}
	return revoked, nil
}

// ValidateAccessToken verifies an access token without touching the store.
func (s *SessionIssuer) ValidateAccessToken(token string) (*Claims, error) {
	return s.jwt.ValidateAccessToken(token)
}

func (s *SessionIssuer) mint(account *models.Account, profile *models.EmployeeProfile) (*TokenPair, error) {
	input := TokenInput{AccountID: account.ID, Email: account.Email, Role: string(profile.Role)}

	access, accessExp, err := s.jwt.GenerateAccessToken(input)
	if err != nil {
		return nil, fmt.Errorf("session issuer: generate access token: %w", err)
	}
	refresh, refreshExp, err := s.jwt.GenerateRefreshToken(input)
	if err != nil {
		return nil, fmt.Errorf("session issuer: generate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *SessionIssuer) refreshRecord(accountID string, pair *TokenPair, meta SessionMetadata) *models.RefreshToken {
	return &models.RefreshToken{
		AccountID: accountID,
		TokenHash: crypto.HashToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt.UTC(),
		UserAgent: truncate(strings.TrimSpace(meta.UserAgent), 255),
		IPAddress: truncate(strings.TrimSpace(meta.IPAddress), 64),
	}
}

func (s *SessionIssuer) refreshLookupError(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		metrics.RefreshRotations.WithLabelValues("invalid").Inc()
		return ErrInvalidRefreshToken
	}
	metrics.RefreshRotations.WithLabelValues("error").Inc()
	return fmt.Errorf("session issuer: load %s: %w", what, err)
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
