package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/staffhub/internal/auth"
	"github.com/charlesng35/staffhub/internal/events"
	"github.com/charlesng35/staffhub/internal/models"
	apperrors "github.com/charlesng35/staffhub/pkg/errors"
)

func TestEmployeeServiceListFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.activeEmployee(t, "one@example.com")
	h.signUp(t, "two@example.com")
	h.signUp(t, "three@example.com")

	all, total, err := h.employees.List(ctx, EmployeeListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, all, 3)
	for _, view := range all {
		require.NotEmpty(t, view.Email)
		require.NotEmpty(t, view.ProfileID)
	}

	pending, total, err := h.employees.List(ctx, EmployeeListOptions{Status: models.StatusPending})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, pending, 2)

	page, total, err := h.employees.List(ctx, EmployeeListOptions{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, page, 1)

	_, _, err = h.employees.List(ctx, EmployeeListOptions{Status: "archived"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestEmployeeServiceGet(t *testing.T) {
	h := newHarness(t)
	created := h.signUp(t, "get@example.com")

	view, err := h.employees.Get(context.Background(), created.Account.ProfileID)
	require.NoError(t, err)
	require.Equal(t, "get@example.com", view.Email)
	require.Equal(t, created.Account.ID, view.ID)

	_, err = h.employees.Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = h.employees.Get(context.Background(), " ")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEmployeeServiceOverride(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.signUp(t, "move@example.com")

	role := models.RoleAdmin
	view, err := h.employees.Override(ctx, created.Account.ProfileID, "", auth.ProfileOverride{
		Role:       &role,
		Department: ptr(" Platform "),
	}, auth.SessionMetadata{UserAgent: "test-agent"})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, view.Role)
	require.Equal(t, "Platform", *view.Department)
	require.Equal(t, models.StatusPending, view.Status)

	require.Contains(t, h.publisher.types(), events.TypeEmployeeUpdated)

	logs, _, err := h.audit.List(ctx, AuditListOptions{Action: "employee.override"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "test-agent", logs[0].UserAgent)
	require.JSONEq(t, `{"role":"admin","department":"Platform"}`, string(logs[0].Metadata))

	_, err = h.employees.Override(ctx, created.Account.ProfileID, "", auth.ProfileOverride{}, auth.SessionMetadata{})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	bogus := models.ProfileStatus("archived")
	_, err = h.employees.Override(ctx, created.Account.ProfileID, "", auth.ProfileOverride{Status: &bogus}, auth.SessionMetadata{})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = h.employees.Override(ctx, "00000000-0000-0000-0000-000000000000", "", auth.ProfileOverride{Role: &role}, auth.SessionMetadata{})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
