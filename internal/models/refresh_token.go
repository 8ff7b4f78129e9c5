package models

import "time"

// RefreshToken is one member of an account's set of currently valid refresh
// tokens. Only the SHA-256 digest of the signed token is stored.
type RefreshToken struct {
	BaseModel

	AccountID string    `gorm:"size:36;not null;index" json:"account_id"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
}
