package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if err.Code != ErrInternalServer.Code {
		t.Fatalf("expected wrapped errors to be internal, got %s", err.Code)
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestCopiesStillMatchKind(t *testing.T) {
	err := fmt.Errorf("signin: %w", ErrPendingApproval.WithInternal(stdErrors.New("status pending")))

	if !stdErrors.Is(err, ErrPendingApproval) {
		t.Fatal("expected wrapped copy to match ErrPendingApproval")
	}
	if stdErrors.Is(err, ErrAccountRejected) {
		t.Fatal("did not expect copy to match a different kind")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("password must be at least 8 characters long")
	if err.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", err.Code)
	}
	if err.Message != "password must be at least 8 characters long" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
	if ErrValidation.Message != "Invalid request" {
		t.Fatal("expected base validation error to remain unchanged")
	}
}

func TestTaxonomyStatusCodes(t *testing.T) {
	cases := map[*AppError]int{
		ErrDuplicateEmail:        http.StatusBadRequest,
		ErrInvalidCredentials:    http.StatusUnauthorized,
		ErrEmailNotVerified:      http.StatusBadRequest,
		ErrPendingApproval:       http.StatusForbidden,
		ErrAccountRejected:       http.StatusForbidden,
		ErrInvalidOrExpiredToken: http.StatusBadRequest,
		ErrInvalidRefreshToken:   http.StatusUnauthorized,
		ErrNotFound:              http.StatusNotFound,
		ErrInternalServer:        http.StatusInternalServerError,
	}
	for err, status := range cases {
		if err.StatusCode != status {
			t.Fatalf("%s: expected status %d, got %d", err.Code, status, err.StatusCode)
		}
	}
}
