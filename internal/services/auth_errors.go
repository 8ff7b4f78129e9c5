package services

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/staffhub/internal/auth"
	apperrors "github.com/charlesng35/staffhub/pkg/errors"
	"github.com/charlesng35/staffhub/pkg/logger"
)

var errCurrentPasswordMismatch = apperrors.New("INVALID_CREDENTIALS", "Current password is incorrect", 400)

var authErrorMap = []struct {
	sentinel error
	appErr   *apperrors.AppError
}{
	{auth.ErrDuplicateEmail, apperrors.ErrDuplicateEmail},
	{auth.ErrInvalidCredentials, apperrors.ErrInvalidCredentials},
	{auth.ErrEmailNotVerified, apperrors.ErrEmailNotVerified},
	{auth.ErrPendingApproval, apperrors.ErrPendingApproval},
	{auth.ErrAccountRejected, apperrors.ErrAccountRejected},
	{auth.ErrInvalidOrExpiredToken, apperrors.ErrInvalidOrExpiredToken},
	{auth.ErrInvalidRefreshToken, apperrors.ErrInvalidRefreshToken},
	{auth.ErrNotFound, apperrors.ErrNotFound},
	{auth.ErrInvalidTransition, apperrors.ErrInvalidStatusTransition},
}

// translateAuthError maps domain errors to the public taxonomy. Anything
// unrecognised is logged and reported as an internal error.
func translateAuthError(err error, op string) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	for _, mapping := range authErrorMap {
		if errors.Is(err, mapping.sentinel) {
			return mapping.appErr
		}
	}

	for _, sentinel := range []error{auth.ErrWeakPassword, auth.ErrInvalidInput} {
		if errors.Is(err, sentinel) {
			return apperrors.NewValidation(detail(err, sentinel))
		}
	}

	logger.WithModule("auth").Error("unexpected error", zap.String("op", op), zap.Error(err))
	return apperrors.ErrInternalServer.WithInternal(err)
}

// detail strips the sentinel prefix from a wrapped error and capitalises the rest.
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error())
	msg = strings.TrimSpace(strings.TrimPrefix(msg, ":"))
	if msg == "" {
		return apperrors.ErrValidation.Message
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
