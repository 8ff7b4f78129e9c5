package app

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/charlesng35/staffhub/internal/auth"
	"github.com/charlesng35/staffhub/pkg/crypto"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	access := c.JWT.AccessTTL
	if access <= 0 {
		access = auth.DefaultAccessTokenTTL
	}
	refresh := c.JWT.RefreshTTL
	if refresh <= 0 {
		refresh = auth.DefaultRefreshTokenTTL
	}

	return auth.JWTConfig{
		Secret:          c.JWT.Secret,
		Issuer:          strings.TrimSpace(c.JWT.Issuer),
		AccessTokenTTL:  access,
		RefreshTokenTTL: refresh,
	}
}

// VerificationOptions converts token settings into VerificationTokenManager options.
// Zero values keep the manager's defaults.
func (c AuthConfig) VerificationOptions() []auth.VerificationOption {
	var opts []auth.VerificationOption
	if c.Tokens.EmailVerifyTTL > 0 {
		opts = append(opts, auth.WithEmailVerifyTTL(c.Tokens.EmailVerifyTTL))
	}
	if c.Tokens.PasswordResetTTL > 0 {
		opts = append(opts, auth.WithPasswordResetTTL(c.Tokens.PasswordResetTTL))
	}
	if c.Tokens.Length > 0 {
		opts = append(opts, auth.WithTokenBytes(c.Tokens.Length))
	}
	return opts
}

// TokenTTLs returns the effective verification token lifetimes.
func (c AuthConfig) TokenTTLs() (confirm, reset time.Duration) {
	confirm = c.Tokens.EmailVerifyTTL
	if confirm <= 0 {
		confirm = auth.DefaultEmailVerifyTTL
	}
	reset = c.Tokens.PasswordResetTTL
	if reset <= 0 {
		reset = auth.DefaultPasswordResetTTL
	}
	return confirm, reset
}

// PasswordHasher builds the configured password hasher.
func (c AuthConfig) PasswordHasher() (crypto.PasswordHasher, error) {
	cost := c.Password.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return crypto.NewPasswordHasher(c.Password.Algorithm, cost)
}

// ApprovalGateConfig converts AuthConfig into ApprovalGate parameters.
func (c AuthConfig) ApprovalGateConfig() auth.ApprovalConfig {
	return auth.ApprovalConfig{AutoActivate: c.Approval.AutoActivate}
}
