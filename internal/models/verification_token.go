package models

import "time"

// TokenPurpose scopes a verification token to a single flow.
type TokenPurpose string

const (
	PurposeEmailVerify   TokenPurpose = "email_verify"
	PurposePasswordReset TokenPurpose = "password_reset"
)

// VerificationToken stores the hash of a single-use, time-boxed secret. At most
// one row exists per account and purpose.
type VerificationToken struct {
	BaseModel

	AccountID string       `gorm:"size:36;not null;uniqueIndex:idx_verification_account_purpose" json:"account_id"`
	Purpose   TokenPurpose `gorm:"size:32;not null;uniqueIndex:idx_verification_account_purpose" json:"purpose"`
	TokenHash string       `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time    `gorm:"not null;index" json:"expires_at"`
}
