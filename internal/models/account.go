package models

import (
	"strings"
	"time"
)

// Account is the authentication identity: a normalised email, a password hash
// and the verification state of the mailbox.
type Account struct {
	BaseModel

	Email             string     `gorm:"uniqueIndex;size:320;not null" json:"email"`
	PasswordHash      string     `gorm:"not null" json:"-"`
	EmailVerified     bool       `gorm:"not null;default:false" json:"email_verified"`
	EmailVerifiedAt   *time.Time `json:"email_verified_at,omitempty"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`

	Profile *EmployeeProfile `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
