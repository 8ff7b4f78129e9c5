package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/staffhub/internal/models"
)

func newTestGate(t *testing.T, autoActivate bool, clock *testClock) *ApprovalGate {
	t.Helper()
	gate, err := NewApprovalGate(newTestStore(t), ApprovalConfig{AutoActivate: autoActivate, Clock: clock.Now})
	require.NoError(t, err)
	return gate
}

func TestApprovalInitialStatus(t *testing.T) {
	clock := newTestClock()

	strict := newTestGate(t, false, clock)
	require.Equal(t, models.StatusActive, strict.InitialStatus(models.RoleAdmin))
	require.Equal(t, models.StatusPending, strict.InitialStatus(models.RoleEmployee))

	relaxed := newTestGate(t, true, clock)
	require.True(t, relaxed.AutoActivate())
	require.Equal(t, models.StatusActive, relaxed.InitialStatus(models.RoleEmployee))
}

func TestApprovalCanLogin(t *testing.T) {
	gate := newTestGate(t, false, newTestClock())

	cases := []struct {
		name     string
		verified bool
		status   models.ProfileStatus
		want     error
	}{
		{"verified active", true, models.StatusActive, nil},
		{"unverified active", false, models.StatusActive, ErrEmailNotVerified},
		{"unverified pending", false, models.StatusPending, ErrEmailNotVerified},
		{"unverified rejected", false, models.StatusRejected, ErrEmailNotVerified},
		{"verified pending", true, models.StatusPending, ErrPendingApproval},
		{"verified rejected", true, models.StatusRejected, ErrAccountRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.CanLogin(&models.Account{EmailVerified: tc.verified}, &models.EmployeeProfile{Status: tc.status})
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}

	require.ErrorIs(t, gate.CanLogin(nil, nil), ErrNotFound)
}

func TestApprovalTransitions(t *testing.T) {
	st := newTestStore(t)
	clock := newTestClock()
	creds := newTestCredentials(t, st, clock)
	gate, err := NewApprovalGate(st, ApprovalConfig{Clock: clock.Now})
	require.NoError(t, err)
	ctx := context.Background()

	admin, _ := createTestAccount(t, creds, "admin@x.com", models.RoleAdmin, models.StatusActive)
	_, approvedProfile := createTestAccount(t, creds, "e1@x.com", models.RoleEmployee, models.StatusPending)
	_, rejectedProfile := createTestAccount(t, creds, "e2@x.com", models.RoleEmployee, models.StatusPending)

	approved, err := gate.Approve(ctx, approvedProfile.ID, admin.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, approved.Status)
	require.NotNil(t, approved.StatusChangedBy)
	require.Equal(t, admin.ID, *approved.StatusChangedBy)
	require.True(t, approved.StatusChangedAt.Equal(clock.Now()))

	rejected, err := gate.Reject(ctx, rejectedProfile.ID, admin.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.Status)

	// active and rejected are terminal for the normal flow.
	_, err = gate.Reject(ctx, approvedProfile.ID, admin.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = gate.Approve(ctx, rejectedProfile.ID, admin.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = gate.Approve(ctx, "00000000-0000-0000-0000-000000000000", admin.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApprovalOverride(t *testing.T) {
	st := newTestStore(t)
	clock := newTestClock()
	creds := newTestCredentials(t, st, clock)
	gate, err := NewApprovalGate(st, ApprovalConfig{Clock: clock.Now})
	require.NoError(t, err)
	ctx := context.Background()

	admin, _ := createTestAccount(t, creds, "admin@x.com", models.RoleAdmin, models.StatusActive)
	_, profile := createTestAccount(t, creds, "e@x.com", models.RoleEmployee, models.StatusRejected)

	active := models.StatusActive
	role := models.RoleAdmin
	position := " Lead "
	updated, err := gate.Override(ctx, profile.ID, admin.ID, ProfileOverride{Status: &active, Role: &role, Position: &position})
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, updated.Status)
	require.Equal(t, models.RoleAdmin, updated.Role)
	require.Equal(t, "Lead", *updated.Position)

	_, err = gate.Override(ctx, profile.ID, admin.ID, ProfileOverride{})
	require.ErrorIs(t, err, ErrInvalidInput)

	bogus := models.ProfileStatus("archived")
	_, err = gate.Override(ctx, profile.ID, admin.ID, ProfileOverride{Status: &bogus})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = gate.Override(ctx, "00000000-0000-0000-0000-000000000000", admin.ID, ProfileOverride{Role: &role})
	require.ErrorIs(t, err, ErrNotFound)
}
