package auth

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/store"
)

func newTestVerification(t *testing.T, st store.Store, clock *testClock, opts ...VerificationOption) *VerificationTokenManager {
	t.Helper()
	opts = append([]VerificationOption{WithVerificationClock(clock.Now)}, opts...)
	mgr, err := NewVerificationTokenManager(st, opts...)
	require.NoError(t, err)
	return mgr
}

func TestVerificationIssueUsesPurposeTTL(t *testing.T) {
	st := newTestStore(t)
	clock := newTestClock()
	account, _ := createTestAccount(t, newTestCredentials(t, st, clock), "a@x.com", models.RoleEmployee, models.StatusPending)
	mgr := newTestVerification(t, st, clock)
	ctx := context.Background()

	verify, err := mgr.Issue(ctx, account.ID, models.PurposeEmailVerify)
	require.NoError(t, err)
	require.True(t, verify.ExpiresAt.Equal(clock.Now().Add(time.Hour)))

	raw, err := base64.RawURLEncoding.DecodeString(verify.Token)
	require.NoError(t, err)
	require.Len(t, raw, 32)

	reset, err := mgr.Issue(ctx, account.ID, models.PurposePasswordReset)
	require.NoError(t, err)
	require.True(t, reset.ExpiresAt.Equal(clock.Now().Add(10*time.Minute)))
	require.NotEqual(t, verify.Token, reset.Token)

	_, err = mgr.Issue(ctx, account.ID, models.TokenPurpose("magic_link"))
	require.Error(t, err)
}

func TestVerificationRedeemIsSingleUse(t *testing.T) {
	st := newTestStore(t)
	clock := newTestClock()
	account, _ := createTestAccount(t, newTestCredentials(t, st, clock), "a@x.com", models.RoleEmployee, models.StatusPending)
	mgr := newTestVerification(t, st, clock)
	ctx := context.Background()

	issued, err := mgr.Issue(ctx, account.ID, models.PurposeEmailVerify)
	require.NoError(t, err)

	accountID, err := mgr.Redeem(ctx, issued.Token, models.PurposeEmailVerify, store.RedeemEffect{MarkEmailVerified: true})
	require.NoError(t, err)
	require.Equal(t, account.ID, accountID)

	reloaded, err := st.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, reloaded.EmailVerified)

	_, err = mgr.Redeem(ctx, issued.Token, models.PurposeEmailVerify, store.RedeemEffect{MarkEmailVerified: true})
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestVerificationReissueInvalidatesPriorToken(t *testing.T) {
	st := newTestStore(t)
	clock := newTestClock()
	account, _ := createTestAccount(t, newTestCredentials(t, st, clock), "a@x.com", models.RoleEmployee, models.StatusPending)
	mgr := newTestVerification(t, st, clock)
	ctx := context.Background()

	first, err := mgr.Issue(ctx, account.ID, models.PurposeEmailVerify)
	require.NoError(t, err)
	second, err := mgr.Issue(ctx, account.ID, models.PurposeEmailVerify)
	require.NoError(t, err)

	_, err = mgr.Redeem(ctx, first.Token, models.PurposeEmailVerify, store.RedeemEffect{})
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, err = mgr.Redeem(ctx, second.Token, models.PurposeEmailVerify, store.RedeemEffect{})
	require.NoError(t, err)
}

func TestVerificationResetTokenExpiresAfterTenMinutes(t *testing.T) {
	st := newTestStore(t)
	clock := newTestClock()
	account, _ := createTestAccount(t, newTestCredentials(t, st, clock), "a@x.com", models.RoleEmployee, models.StatusActive)
	mgr := newTestVerification(t, st, clock)
	ctx := context.Background()

	issued, err := mgr.Issue(ctx, account.ID, models.PurposePasswordReset)
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)

	_, err = mgr.Redeem(ctx, issued.Token, models.PurposePasswordReset, store.RedeemEffect{PasswordHash: "unused"})
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	reloaded, err := st.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotEqual(t, "unused", reloaded.PasswordHash)
}

func TestVerificationCustomTTL(t *testing.T) {
	st := newTestStore(t)
	clock := newTestClock()
	account, _ := createTestAccount(t, newTestCredentials(t, st, clock), "a@x.com", models.RoleEmployee, models.StatusPending)
	mgr := newTestVerification(t, st, clock, WithEmailVerifyTTL(5*time.Minute), WithPasswordResetTTL(time.Minute))
	require.Equal(t, 5*time.Minute, mgr.TTL(models.PurposeEmailVerify))
	require.Equal(t, time.Minute, mgr.TTL(models.PurposePasswordReset))

	issued, err := mgr.Issue(context.Background(), account.ID, models.PurposeEmailVerify)
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)
	_, err = mgr.Redeem(context.Background(), issued.Token, models.PurposeEmailVerify, store.RedeemEffect{})
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestVerificationRejectsWrongPurposeAndGarbage(t *testing.T) {
	st := newTestStore(t)
	clock := newTestClock()
	account, _ := createTestAccount(t, newTestCredentials(t, st, clock), "a@x.com", models.RoleEmployee, models.StatusPending)
	mgr := newTestVerification(t, st, clock)
	ctx := context.Background()

	issued, err := mgr.Issue(ctx, account.ID, models.PurposeEmailVerify)
	require.NoError(t, err)

	_, err = mgr.Redeem(ctx, issued.Token, models.PurposePasswordReset, store.RedeemEffect{})
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, err = mgr.Redeem(ctx, "", models.PurposeEmailVerify, store.RedeemEffect{})
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, err = mgr.Redeem(ctx, "forged", models.PurposeEmailVerify, store.RedeemEffect{})
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	// The mismatched attempt must not have burned the token.
	_, err = mgr.Redeem(ctx, issued.Token, models.PurposeEmailVerify, store.RedeemEffect{})
	require.NoError(t, err)
}

func TestVerificationConcurrentRedeemSucceedsOnce(t *testing.T) {
	st := newTestStore(t)
	clock := newTestClock()
	account, _ := createTestAccount(t, newTestCredentials(t, st, clock), "a@x.com", models.RoleEmployee, models.StatusPending)
	mgr := newTestVerification(t, st, clock)
	ctx := context.Background()

	issued, err := mgr.Issue(ctx, account.ID, models.PurposeEmailVerify)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		failures  atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Redeem(ctx, issued.Token, models.PurposeEmailVerify, store.RedeemEffect{MarkEmailVerified: true})
			if err == nil {
				successes.Add(1)
				return
			}
			if err == ErrInvalidOrExpiredToken {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, successes.Load())
	require.EqualValues(t, 7, failures.Load())
}
