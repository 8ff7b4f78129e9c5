package auth

import "errors"

var (
	// ErrDuplicateEmail is returned when the normalised email is already registered.
	ErrDuplicateEmail = errors.New("auth: duplicate email")
	// ErrInvalidCredentials is returned when an email/password pair does not match.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrEmailNotVerified blocks sign-in until the mailbox is confirmed.
	ErrEmailNotVerified = errors.New("auth: email not verified")
	// ErrPendingApproval blocks sign-in until an administrator approves the profile.
	ErrPendingApproval = errors.New("auth: pending approval")
	// ErrAccountRejected blocks sign-in for rejected profiles.
	ErrAccountRejected = errors.New("auth: account rejected")
	// ErrInvalidOrExpiredToken covers unknown, consumed, expired and wrong-purpose verification tokens.
	ErrInvalidOrExpiredToken = errors.New("auth: invalid or expired token")
	// ErrInvalidRefreshToken covers forged, expired and already rotated refresh tokens.
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
	// ErrWeakPassword is wrapped with the violated rule.
	ErrWeakPassword = errors.New("auth: weak password")
	// ErrInvalidInput is wrapped with a description of the malformed field.
	ErrInvalidInput = errors.New("auth: invalid input")
	// ErrNotFound is returned when the referenced account or profile does not exist.
	ErrNotFound = errors.New("auth: not found")
	// ErrInvalidTransition is returned when a profile is not in a state that allows the change.
	ErrInvalidTransition = errors.New("auth: invalid status transition")
)
