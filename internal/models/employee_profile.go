package models

import "time"

// Role names an employee's organisational privilege level.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// ProfileStatus is the approval state of an employee profile.
type ProfileStatus string

const (
	StatusPending  ProfileStatus = "pending"
	StatusActive   ProfileStatus = "active"
	StatusRejected ProfileStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ProfileStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusRejected:
		return true
	default:
		return false
	}
}

// EmployeeProfile is the organisational identity linked 1:1 to an Account.
type EmployeeProfile struct {
	BaseModel

	AccountID       string        `gorm:"uniqueIndex;size:36;not null" json:"account_id"`
	FullName        string        `gorm:"not null" json:"full_name"`
	Role            Role          `gorm:"size:32;not null;index" json:"role"`
	Department      *string       `json:"department,omitempty"`
	Position        *string       `json:"position,omitempty"`
	Status          ProfileStatus `gorm:"size:32;not null;index" json:"status"`
	StatusChangedAt *time.Time    `json:"status_changed_at,omitempty"`
	StatusChangedBy *string       `gorm:"size:36" json:"status_changed_by,omitempty"`

	Account *Account `gorm:"foreignKey:AccountID" json:"-"`
}
