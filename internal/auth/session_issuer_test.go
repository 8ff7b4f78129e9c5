package auth

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

type issuerFixture struct {
	store  store.Store
	clock  *testClock
	creds  *CredentialStore
	gate   *ApprovalGate
	issuer *SessionIssuer
}

func newIssuerFixture(t *testing.T) *issuerFixture {
	t.Helper()
	st := newTestStore(t)
	clock := newTestClock()

	jwtService, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "staffhub", Clock: clock.Now})
	require.NoError(t, err)
	gate, err := NewApprovalGate(st, ApprovalConfig{Clock: clock.Now})
	require.NoError(t, err)
	issuer, err := NewSessionIssuer(st, jwtService, gate)
	require.NoError(t, err)

	return &issuerFixture{
		store:  st,
		clock:  clock,
		creds:  newTestCredentials(t, st, clock),
		gate:   gate,
		issuer: issuer,
	}
}

func (f *issuerFixture) activeAccount(t *testing.T, email string) (*models.Account, *models.EmployeeProfile) {
	t.Helper()
	account, profile := createTestAccount(t, f.creds, email, models.RoleEmployee, models.StatusActive)
	markVerified(t, f.store, account.ID, f.clock.Now())
	account.EmailVerified = true
	return account, profile
}

func markVerified(t *testing.T, st store.Store, accountID string, now time.Time) {
	t.Helper()
	verifier, err := NewVerificationTokenManager(st, WithVerificationClock(func() time.Time { return now }))
	require.NoError(t, err)
	issued, err := verifier.Issue(context.Background(), accountID, models.PurposeEmailVerify)
	require.NoError(t, err)
	_, err = verifier.Redeem(context.Background(), issued.Token, models.PurposeEmailVerify, store.RedeemEffect{MarkEmailVerified: true})
	require.NoError(t, err)
}

func TestSessionIssuerIssue(t *testing.T) {
	f := newIssuerFixture(t)
	account, profile := f.activeAccount(t, "a@x.com")

	pair, err := f.issuer.Issue(context.Background(), account, profile, SessionMetadata{IPAddress: " 10.0.0.1 ", UserAgent: "unit-test"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.True(t, pair.AccessExpiresAt.Equal(f.clock.Now().Add(15*time.Minute)))
	require.True(t, pair.RefreshExpiresAt.Equal(f.clock.Now().Add(7*24*time.Hour)))

	claims, err := f.issuer.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, account.ID, claims.AccountID())
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, string(models.RoleEmployee), claims.Role)

	count, err := f.store.CountRefreshTokens(context.Background(), account.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestSessionIssuerRefreshRotatesAndRejectsReplay(t *testing.T) {
	f := newIssuerFixture(t)
	ctx := context.Background()
	account, profile := f.activeAccount(t, "a@x.com")

	pair, err := f.issuer.Issue(ctx, account, profile, SessionMetadata{})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)

	session, err := f.issuer.Refresh(ctx, pair.RefreshToken, SessionMetadata{})
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, session.Tokens.RefreshToken)
	require.NotEqual(t, pair.AccessToken, session.Tokens.AccessToken)
	require.Equal(t, account.ID, session.Account.ID)

	_, err = f.issuer.Refresh(ctx, pair.RefreshToken, SessionMetadata{})
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = f.issuer.Refresh(ctx, session.Tokens.RefreshToken, SessionMetadata{})
	require.NoError(t, err)
}

func TestSessionIssuerRefreshRejectsAccessTokenAndGarbage(t *testing.T) {
	f := newIssuerFixture(t)
	ctx := context.Background()
	account, profile := f.activeAccount(t, "a@x.com")

	pair, err := f.issuer.Issue(ctx, account, profile, SessionMetadata{})
	require.NoError(t, err)

	_, err = f.issuer.Refresh(ctx, pair.AccessToken, SessionMetadata{})
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = f.issuer.Refresh(ctx, "not-a-jwt", SessionMetadata{})
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = f.issuer.ValidateAccessToken(pair.RefreshToken)
	require.ErrorIs(t, err, ErrWrongTokenType)
}

func TestSessionIssuerRefreshExpired(t *testing.T) {
	f := newIssuerFixture(t)
	ctx := context.Background()
	account, profile := f.activeAccount(t, "a@x.com")

	pair, err := f.issuer.Issue(ctx, account, profile, SessionMetadata{})
	require.NoError(t, err)

	f.clock.Advance(7*24*time.Hour + time.Second)
	_, err = f.issuer.Refresh(ctx, pair.RefreshToken, SessionMetadata{})
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestSessionIssuerRevokeAll(t *testing.T) {
	f := newIssuerFixture(t)
	ctx := context.Background()
	account, profile := f.activeAccount(t, "a@x.com")

	first, err := f.issuer.Issue(ctx, account, profile, SessionMetadata{})
	require.NoError(t, err)
	second, err := f.issuer.Issue(ctx, account, profile, SessionMetadata{})
	require.NoError(t, err)

	revoked, err := f.issuer.RevokeAll(ctx, account.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, revoked)

	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		_, err = f.issuer.Refresh(ctx, token, SessionMetadata{})
		require.ErrorIs(t, err, ErrInvalidRefreshToken)
	}

	// Access tokens stay valid until expiry; they are stateless.
	_, err = f.issuer.ValidateAccessToken(first.AccessToken)
	require.NoError(t, err)
}

func TestSessionIssuerRefreshRefusedAfterRejection(t *testing.T) {
	f := newIssuerFixture(t)
	ctx := context.Background()
	account, profile := f.activeAccount(t, "a@x.com")
	admin, _ := createTestAccount(t, f.creds, "admin@x.com", models.RoleAdmin, models.StatusActive)

	pair, err := f.issuer.Issue(ctx, account, profile, SessionMetadata{})
	require.NoError(t, err)

	rejected := models.StatusRejected
	_, err = f.gate.Override(ctx, profile.ID, admin.ID, ProfileOverride{Status: &rejected})
	require.NoError(t, err)

	_, err = f.issuer.Refresh(ctx, pair.RefreshToken, SessionMetadata{})
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestSessionIssuerConcurrentRefreshSucceedsOnce(t *testing.T) {
	f := newIssuerFixture(t)
	ctx := context.Background()
	account, profile := f.activeAccount(t, "a@x.com")

	pair, err := f.issuer.Issue(ctx, account, profile, SessionMetadata{})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.issuer.Refresh(ctx, pair.RefreshToken, SessionMetadata{}); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, successes.Load())
	count, err := f.store.CountRefreshTokens(ctx, account.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}
