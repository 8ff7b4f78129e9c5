package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/staffhub/internal/database/testutil"
	"github.com/charlesng35/staffhub/internal/store/gormstore"
)

func newAuditFixture(t *testing.T) (*AuditService, *testClock) {
	t.Helper()
	st, err := gormstore.New(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NoError(t, err)

	svc, err := NewAuditService(st)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	return svc, clock
}

func TestAuditServiceLogAndList(t *testing.T) {
	svc, clock := newAuditFixture(t)
	ctx := context.Background()

	actor := "3f6d7c8e-0000-4000-8000-000000000001"
	require.NoError(t, svc.Log(ctx, AuditEntry{
		ActorID:  actor,
		Action:   "employee.approve",
		Resource: "profile:p1",
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"status": "active"},
	}))
	clock.Advance(time.Minute)
	require.NoError(t, svc.Log(ctx, AuditEntry{
		Action: "auth.signup",
		Result: AuditResultSuccess,
	}))

	logs, total, err := svc.List(ctx, AuditListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, "auth.signup", logs[0].Action, "newest first")
	require.Nil(t, logs[0].ActorID)

	filtered, total, err := svc.List(ctx, AuditListOptions{ActorID: actor})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "employee.approve", filtered[0].Action)
	require.JSONEq(t, `{"status":"active"}`, string(filtered[0].Metadata))
}

func TestAuditServiceLogValidation(t *testing.T) {
	svc, _ := newAuditFixture(t)

	require.Error(t, svc.Log(context.Background(), AuditEntry{Result: AuditResultSuccess}))
	require.Error(t, svc.Log(context.Background(), AuditEntry{Action: "auth.signin"}))
}

func TestAuditServiceCleanupOlderThan(t *testing.T) {
	svc, clock := newAuditFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, AuditEntry{Action: "old", Result: AuditResultSuccess}))
	clock.Advance(40 * 24 * time.Hour)
	require.NoError(t, svc.Log(ctx, AuditEntry{Action: "new", Result: AuditResultSuccess}))

	removed, err := svc.CleanupOlderThan(ctx, 30)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	logs, _, err := svc.List(ctx, AuditListOptions{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "new", logs[0].Action)

	_, err = svc.CleanupOlderThan(ctx, 0)
	require.Error(t, err)
}
