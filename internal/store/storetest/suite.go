// Package storetest holds the behavioural contract every store.Store adapter
// must satisfy. Adapter packages call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/store"
)

// Factory returns an empty, migrated store. It must register its own cleanup.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores produced by factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAccountAndLookup", testCreateAccountAndLookup},
		{"DuplicateEmailIgnoresCase", testDuplicateEmailIgnoresCase},
		{"LookupMissing", testLookupMissing},
		{"VerificationTokenSingleUse", testVerificationTokenSingleUse},
		{"VerificationTokenReplacedOnReissue", testVerificationTokenReplacedOnReissue},
		{"VerificationTokenExpired", testVerificationTokenExpired},
		{"VerificationTokenPurposeMismatch", testVerificationTokenPurposeMismatch},
		{"VerificationTokenConcurrentRedeem", testVerificationTokenConcurrentRedeem},
		{"ResetEffectRevokesRefreshTokens", testResetEffectRevokesRefreshTokens},
		{"TransitionProfileStatus", testTransitionProfileStatus},
		{"OverrideProfile", testOverrideProfile},
		{"RefreshTokenRotation", testRefreshTokenRotation},
		{"RefreshTokenConcurrentRotation", testRefreshTokenConcurrentRotation},
		{"ListProfilesAndAdmins", testListProfilesAndAdmins},
		{"AuditTrail", testAuditTrail},
		{"PurgeExpiredTokens", testPurgeExpiredTokens},
		{"PasswordAndLastLogin", testPasswordAndLastLogin},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, factory(t))
		})
	}
}

var baseTime = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func seedAccount(t *testing.T, s store.Store, email string, role models.Role, status models.ProfileStatus) (*models.Account, *models.EmployeeProfile) {
	t.Helper()

	account := &models.Account{Email: email, PasswordHash: "hash:" + email}
	profile := &models.EmployeeProfile{FullName: "Employee " + email, Role: role, Status: status}
	require.NoError(t, s.CreateAccount(context.Background(), account, profile))
	require.NotEmpty(t, account.ID)
	require.NotEmpty(t, profile.ID)
	require.Equal(t, account.ID, profile.AccountID)
	return account, profile
}

func testCreateAccountAndLookup(t *testing.T, s store.Store) {
	ctx := context.Background()
	account, profile := seedAccount(t, s, "Jane.Doe@Example.com", models.RoleEmployee, models.StatusPending)
	require.Equal(t, "jane.doe@example.com", account.Email)

	byEmail, err := s.GetAccountByEmail(ctx, "JANE.DOE@example.COM")
	require.NoError(t, err)
	require.Equal(t, account.ID, byEmail.ID)
	require.False(t, byEmail.EmailVerified)

	byID, err := s.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "jane.doe@example.com", byID.Email)

	gotProfile, err := s.GetProfileByAccountID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, profile.ID, gotProfile.ID)
	require.Equal(t, models.StatusPending, gotProfile.Status)

	gotProfile, err = s.GetProfileByID(ctx, profile.ID)
	require.NoError(t, err)
	require.Equal(t, account.ID, gotProfile.AccountID)
}

func testDuplicateEmailIgnoresCase(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedAccount(t, s, "a@x.com", models.RoleEmployee, models.StatusPending)

	err := s.CreateAccount(ctx,
		&models.Account{Email: "A@X.COM", PasswordHash: "other"},
		&models.EmployeeProfile{FullName: "Dup", Role: models.RoleEmployee, Status: models.StatusPending})
	require.ErrorIs(t, err, store.ErrDuplicateEmail)

	profiles, total, err := s.ListProfiles(ctx, store.ProfileFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, profiles, 1)
}

func testLookupMissing(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetAccountByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetAccountByID(ctx, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetProfileByID(ctx, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func saveToken(t *testing.T, s store.Store, accountID, hash string, purpose models.TokenPurpose, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, s.SaveVerificationToken(context.Background(), &models.VerificationToken{
		AccountID: accountID,
		Purpose:   purpose,
		TokenHash: hash,
		ExpiresAt: expiresAt,
	}))
}

func testVerificationTokenSingleUse(t *testing.T, s store.Store) {
	ctx := context.Background()
	account, _ := seedAccount(t, s, "verify@example.com", models.RoleEmployee, models.StatusPending)
	saveToken(t, s, account.ID, hashOf("v1"), models.PurposeEmailVerify, baseTime.Add(time.Hour))

	id, err := s.ConsumeVerificationToken(ctx, hashOf("v1"), models.PurposeEmailVerify, baseTime, store.RedeemEffect{MarkEmailVerified: true})
	require.NoError(t, err)
	require.Equal(t, account.ID, id)

	reloaded, err := s.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, reloaded.EmailVerified)
	require.NotNil(t, reloaded.EmailVerifiedAt)

	_, err = s.ConsumeVerificationToken(ctx, hashOf("v1"), models.PurposeEmailVerify, baseTime, store.RedeemEffect{MarkEmailVerified: true})
	require.ErrorIs(t, err, store.ErrTokenNotFound)
}

func testVerificationTokenReplacedOnReissue(t *testing.T, s store.Store) {
	ctx := context.Background()
	account, _ := seedAccount(t, s, "reissue@example.com", models.RoleEmployee, models.StatusPending)
	saveToken(t, s, account.ID, hashOf("first"), models.PurposeEmailVerify, baseTime.Add(time.Hour))
	saveToken(t, s, account.ID, hashOf("reset"), models.PurposePasswordReset, baseTime.Add(10*time.Minute))
	saveToken(t, s, account.ID, hashOf("second"), models.PurposeEmailVerify, baseTime.Add(time.Hour))

	_, err := s.ConsumeVerificationToken(ctx, hashOf("first"), models.PurposeEmailVerify, baseTime, store.RedeemEffect{})
	require.ErrorIs(t, err, store.ErrTokenNotFound)

	id, err := s.ConsumeVerificationToken(ctx, hashOf("second"), models.PurposeEmailVerify, baseTime, store.RedeemEffect{})
	require.NoError(t, err)
	require.Equal(t, account.ID, id)

	// Tokens of another purpose are unaffected by reissue.
	id, err = s.ConsumeVerificationToken(ctx, hashOf("reset"), models.PurposePasswordReset, baseTime, store.RedeemEffect{})
	require.NoError(t, err)
	require.Equal(t, account.ID, id)
}

func testVerificationTokenExpired(t *testing.T, s store.Store) {
	ctx := context.Background()
	account, _ := seedAccount(t, s, "expired@example.com", models.RoleEmployee, models.StatusPending)
	saveToken(t, s, account.ID, hashOf("old"), models.PurposePasswordReset, baseTime.Add(10*time.Minute))

	_, err := s.ConsumeVerificationToken(ctx, hashOf("old"), models.PurposePasswordReset, baseTime.Add(11*time.Minute), store.RedeemEffect{PasswordHash: "new-hash"})
	require.ErrorIs(t, err, store.ErrTokenExpired)

	reloaded, err := s.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "hash:expired@example.com", reloaded.PasswordHash)

	_, err = s.ConsumeVerificationToken(ctx, hashOf("old"), models.PurposePasswordReset, baseTime, store.RedeemEffect{})
	require.ErrorIs(t, err, store.ErrTokenNotFound)
}

func testVerificationTokenPurposeMismatch(t *testing.T, s store.Store) {
	ctx := context.Background()
	account, _ := seedAccount(t, s, "purpose@example.com", models.RoleEmployee, models.StatusPending)
	saveToken(t, s, account.ID, hashOf("verify"), models.PurposeEmailVerify, baseTime.Add(time.Hour))

	_, err := s.ConsumeVerificationToken(ctx, hashOf("verify"), models.PurposePasswordReset, baseTime, store.RedeemEffect{PasswordHash: "x"})
	require.ErrorIs(t, err, store.ErrTokenNotFound)

	_, err = s.ConsumeVerificationToken(ctx, hashOf("verify"), models.PurposeEmailVerify, baseTime, store.RedeemEffect{})
	require.NoError(t, err)
}

func testVerificationTokenConcurrentRedeem(t *testing.T, s store.Store) {
	ctx := context.Background()
	account, _ := seedAccount(t, s, "race@example.com", models.RoleEmployee, models.StatusPending)
	saveToken(t, s, account.ID, hashOf("race"), models.PurposeEmailVerify, baseTime.Add(time.Hour))

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.ConsumeVerificationToken(ctx, hashOf("race"), models.PurposeEmailVerify, baseTime, store.RedeemEffect{MarkEmailVerified: true}); err == nil {
				successes.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, successes.Load())
}

func testResetEffectRevokesRefreshTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	account, _ := seedAccount(t, s, "reset@example.com", models.RoleEmployee, models.StatusActive)
	for _, raw := range []string{"r1", "r2"} {
		require.NoError(t, s.AddRefreshToken(ctx, &models.RefreshToken{AccountID: account.ID, TokenHash: hashOf(raw), ExpiresAt: baseTime.Add(24 * time.Hour)}))
	}
	saveToken(t, s, account.ID, hashOf("reset"), models.PurposePasswordReset, baseTime.Add(10*time.Minute))

	_, err := s.ConsumeVerificationToken(ctx, hashOf("reset"), models.PurposePasswordReset, baseTime, store.RedeemEffect{
		PasswordHash:        "rehashed",
		RevokeRefreshTokens: true,
	})
	require.NoError(t, err)

	reloaded, err := s.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "rehashed", reloaded.PasswordHash)
	require.NotNil(t, reloaded.PasswordChangedAt)

	count, err := s.CountRefreshTokens(ctx, account.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func testTransitionProfileStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	admin, _ := seedAccount(t, s, "boss@example.com", models.RoleAdmin, models.StatusActive)
	_, profile := seedAccount(t, s, "worker@example.com", models.RoleEmployee, models.StatusPending)

	updated, err := s.TransitionProfileStatus(ctx, profile.ID, models.StatusPending, models.StatusActive, admin.ID, baseTime)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, updated.Status)
	require.NotNil(t, updated.StatusChangedBy)
	require.Equal(t, admin.ID, *updated.StatusChangedBy)

	_, err = s.TransitionProfileStatus(ctx, profile.ID, models.StatusPending, models.StatusRejected, admin.ID, baseTime)
	require.ErrorIs(t, err, store.ErrStatusConflict)

	_, err = s.TransitionProfileStatus(ctx, "00000000-0000-0000-0000-000000000000", models.StatusPending, models.StatusActive, admin.ID, baseTime)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testOverrideProfile(t *testing.T, s store.Store) {
	ctx := context.Background()
	admin, _ := seedAccount(t, s, "root@example.com", models.RoleAdmin, models.StatusActive)
	_, profile := seedAccount(t, s, "override@example.com", models.RoleEmployee, models.StatusRejected)

	role := models.RoleAdmin
	status := models.StatusActive
	department := "Finance"
	updated, err := s.OverrideProfile(ctx, profile.ID, store.ProfileOverride{
		Role:       &role,
		Status:     &status,
		Department: &department,
		ActorID:    admin.ID,
		At:         baseTime,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, updated.Role)
	require.Equal(t, models.StatusActive, updated.Status)
	require.NotNil(t, updated.Department)
	require.Equal(t, "Finance", *updated.Department)

	_, err = s.OverrideProfile(ctx, "00000000-0000-0000-0000-000000000000", store.ProfileOverride{Role: &role})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testRefreshTokenRotation(t *testing.T, s store.Store) {
	ctx := context.Background()
	account, _ := seedAccount(t, s, "rotate@example.com", models.RoleEmployee, models.StatusActive)
	require.NoError(t, s.AddRefreshToken(ctx, &models.RefreshToken{AccountID: account.ID, TokenHash: hashOf("gen1"), ExpiresAt: baseTime.Add(time.Hour)}))

	require.NoError(t, s.RotateRefreshToken(ctx, account.ID, hashOf("gen1"), &models.RefreshToken{TokenHash: hashOf("gen2"), ExpiresAt: baseTime.Add(time.Hour)}))

	err := s.RotateRefreshToken(ctx, account.ID, hashOf("gen1"), &models.RefreshToken{TokenHash: hashOf("gen3"), ExpiresAt: baseTime.Add(time.Hour)})
	require.ErrorIs(t, err, store.ErrTokenNotFound)

	count, err := s.CountRefreshTokens(ctx, account.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	revoked, err := s.RevokeRefreshTokens(ctx, account.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, revoked)

	err = s.RotateRefreshToken(ctx, account.ID, hashOf("gen2"), &models.RefreshToken{TokenHash: hashOf("gen4"), ExpiresAt: baseTime.Add(time.Hour)})
	require.ErrorIs(t, err, store.ErrTokenNotFound)
}

func testRefreshTokenConcurrentRotation(t *testing.T, s store.Store) {
	ctx := context.Background()
	account, _ := seedAccount(t, s, "rotate-race@example.com", models.RoleEmployee, models.StatusActive)
	require.NoError(t, s.AddRefreshToken(ctx, &models.RefreshToken{AccountID: account.ID, TokenHash: hashOf("shared"), ExpiresAt: baseTime.Add(time.Hour)}))

	const workers = 6
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			next := &models.RefreshToken{TokenHash: hashOf("next-" + string(rune('a'+i))), ExpiresAt: baseTime.Add(time.Hour)}
			if err := s.RotateRefreshToken(ctx, account.ID, hashOf("shared"), next); err == nil {
				successes.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, successes.Load())
	count, err := s.CountRefreshTokens(ctx, account.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func testListProfilesAndAdmins(t *testing.T, s store.Store) {
	ctx := context.Background()
	admin, _ := seedAccount(t, s, "admin@example.com", models.RoleAdmin, models.StatusActive)
	seedAccount(t, s, "unverified-admin@example.com", models.RoleAdmin, models.StatusActive)
	seedAccount(t, s, "p1@example.com", models.RoleEmployee, models.StatusPending)
	seedAccount(t, s, "p2@example.com", models.RoleEmployee, models.StatusPending)
	seedAccount(t, s, "r1@example.com", models.RoleEmployee, models.StatusRejected)

	saveToken(t, s, admin.ID, hashOf("admin-verify"), models.PurposeEmailVerify, baseTime.Add(time.Hour))
	_, err := s.ConsumeVerificationToken(ctx, hashOf("admin-verify"), models.PurposeEmailVerify, baseTime, store.RedeemEffect{MarkEmailVerified: true})
	require.NoError(t, err)

	pending, total, err := s.ListProfiles(ctx, store.ProfileFilter{Status: models.StatusPending, Limit: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, pending, 1)

	second, _, err := s.ListProfiles(ctx, store.ProfileFilter{Status: models.StatusPending, Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.NotEqual(t, pending[0].ID, second[0].ID)

	admins, total, err := s.ListProfiles(ctx, store.ProfileFilter{Role: models.RoleAdmin})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, admins, 2)
	for _, profile := range admins {
		require.NotNil(t, profile.Account)
		require.Equal(t, profile.AccountID, profile.Account.ID)
		require.Contains(t, []string{"admin@example.com", "unverified-admin@example.com"}, profile.Account.Email)
	}

	emails, err := s.ListActiveAdminEmails(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"admin@example.com"}, emails)

	count, err := s.CountAdmins(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func testAuditTrail(t *testing.T, s store.Store) {
	ctx := context.Background()
	admin, _ := seedAccount(t, s, "auditor@example.com", models.RoleAdmin, models.StatusActive)

	for i, action := range []string{"employee.approve", "employee.reject", "employee.approve"} {
		require.NoError(t, s.RecordAudit(ctx, &models.AuditLog{
			ActorID:   &admin.ID,
			Action:    action,
			Resource:  "employee:" + string(rune('a'+i)),
			Result:    "success",
			Metadata:  []byte(`{"reason":"test"}`),
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, total, err := s.ListAudit(ctx, store.AuditFilter{Action: "employee.approve"})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, entries, 2)
	require.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt), "expected newest first")

	purged, err := s.PurgeAuditBefore(ctx, baseTime.Add(90*time.Second))
	require.NoError(t, err)
	require.EqualValues(t, 2, purged)

	_, total, err = s.ListAudit(ctx, store.AuditFilter{ActorID: admin.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func testPurgeExpiredTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	account, _ := seedAccount(t, s, "purge@example.com", models.RoleEmployee, models.StatusActive)
	saveToken(t, s, account.ID, hashOf("stale"), models.PurposeEmailVerify, baseTime.Add(-time.Minute))
	saveToken(t, s, account.ID, hashOf("fresh"), models.PurposePasswordReset, baseTime.Add(time.Minute))
	require.NoError(t, s.AddRefreshToken(ctx, &models.RefreshToken{AccountID: account.ID, TokenHash: hashOf("old-refresh"), ExpiresAt: baseTime.Add(-time.Hour)}))
	require.NoError(t, s.AddRefreshToken(ctx, &models.RefreshToken{AccountID: account.ID, TokenHash: hashOf("new-refresh"), ExpiresAt: baseTime.Add(time.Hour)}))

	result, err := s.PurgeExpiredTokens(ctx, baseTime)
	require.NoError(t, err)
	require.EqualValues(t, 1, result.VerificationTokens)
	require.EqualValues(t, 1, result.RefreshTokens)

	_, err = s.ConsumeVerificationToken(ctx, hashOf("fresh"), models.PurposePasswordReset, baseTime, store.RedeemEffect{})
	require.NoError(t, err)
}

func testPasswordAndLastLogin(t *testing.T, s store.Store) {
	ctx := context.Background()
	account, _ := seedAccount(t, s, "login@example.com", models.RoleEmployee, models.StatusActive)

	require.NoError(t, s.UpdatePasswordHash(ctx, account.ID, "new-hash", baseTime))
	require.NoError(t, s.TouchLastLogin(ctx, account.ID, baseTime.Add(time.Minute)))

	reloaded, err := s.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "new-hash", reloaded.PasswordHash)
	require.NotNil(t, reloaded.LastLoginAt)
	require.True(t, reloaded.LastLoginAt.Equal(baseTime.Add(time.Minute)))

	err = s.UpdatePasswordHash(ctx, "00000000-0000-0000-0000-000000000000", "x", baseTime)
	require.ErrorIs(t, err, store.ErrNotFound)
}
