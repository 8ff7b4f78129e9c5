package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/store"
	"github.com/charlesng35/staffhub/internal/store/storetest"
)

const testAccountID = "7f1d5a57-2b8e-4d55-9d0b-6f4f2a7c9e10"

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(db), mock
}

func TestCreateAccountMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO accounts`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := s.CreateAccount(context.Background(),
		&models.Account{Email: "Dup@Example.com", PasswordHash: "h"},
		&models.EmployeeProfile{FullName: "Dup", Role: models.RoleEmployee, Status: models.StatusPending})
	require.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func TestCreateAccountInsertsAccountAndProfile(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO accounts`).
		WithArgs(sqlmock.AnyArg(), "new@example.com", "h", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO employee_profiles`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	account := &models.Account{Email: " New@Example.com", PasswordHash: "h"}
	profile := &models.EmployeeProfile{FullName: "New", Role: models.RoleEmployee, Status: models.StatusPending}
	require.NoError(t, s.CreateAccount(context.Background(), account, profile))
	require.Equal(t, account.ID, profile.AccountID)
	require.Same(t, profile, account.Profile)
}

func TestConsumeVerificationTokenAppliesEffect(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM verification_tokens`).
		WithArgs("digest", models.PurposePasswordReset).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "expires_at"}).AddRow(testAccountID, now.Add(time.Minute)))
	mock.ExpectExec(`UPDATE accounts SET password_hash`).
		WithArgs("new-hash", now, now, testAccountID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE account_id`).
		WithArgs(testAccountID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	accountID, err := s.ConsumeVerificationToken(context.Background(), "digest", models.PurposePasswordReset, now,
		store.RedeemEffect{PasswordHash: "new-hash", RevokeRefreshTokens: true})
	require.NoError(t, err)
	require.Equal(t, testAccountID, accountID)
}

func TestConsumeVerificationTokenExpiredStillDeletes(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM verification_tokens`).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "expires_at"}).AddRow(testAccountID, now))
	mock.ExpectCommit()

	_, err := s.ConsumeVerificationToken(context.Background(), "digest", models.PurposeEmailVerify, now,
		store.RedeemEffect{MarkEmailVerified: true})
	require.ErrorIs(t, err, store.ErrTokenExpired)
}

func TestConsumeVerificationTokenMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM verification_tokens`).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "expires_at"}))
	mock.ExpectRollback()

	_, err := s.ConsumeVerificationToken(context.Background(), "digest", models.PurposeEmailVerify, time.Now(), store.RedeemEffect{})
	require.ErrorIs(t, err, store.ErrTokenNotFound)
}

func TestRotateRefreshTokenRejectsStaleHash(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE account_id = \$1 AND token_hash = \$2`).
		WithArgs(testAccountID, "old").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.RotateRefreshToken(context.Background(), testAccountID, "old", &models.RefreshToken{TokenHash: "next"})
	require.ErrorIs(t, err, store.ErrTokenNotFound)
}

func TestTransitionProfileStatusConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`UPDATE employee_profiles`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(testAccountID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := s.TransitionProfileStatus(context.Background(), testAccountID, models.StatusPending, models.StatusActive, "", time.Now())
	require.ErrorIs(t, err, store.ErrStatusConflict)
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	s, _ := newMockStore(t)
	ctx := context.Background()

	_, err := s.GetAccountByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetProfileByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, store.ErrNotFound)
	count, err := s.RevokeRefreshTokens(ctx, "not-a-uuid")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), " ")
	require.Error(t, err)
}

// TestPostgresConformance runs the shared store contract against a live
// database when STAFFHUB_TEST_POSTGRES_DSN is set.
func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("STAFFHUB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STAFFHUB_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := Open(ctx, dsn)
		require.NoError(t, err)
		_, err = s.db.ExecContext(ctx, `TRUNCATE audit_logs, refresh_tokens, verification_tokens, employee_profiles, accounts`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
