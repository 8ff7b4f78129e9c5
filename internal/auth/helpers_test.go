package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/charlesng35/staffhub/internal/database/testutil"
	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/store"
	"github.com/charlesng35/staffhub/internal/store/gormstore"
	"github.com/charlesng35/staffhub/pkg/crypto"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 2, 2, 8, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := gormstore.New(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NoError(t, err)
	return st
}

func newTestCredentials(t *testing.T, st store.Store, clock *testClock) *CredentialStore {
	t.Helper()
	creds, err := NewCredentialStore(st, CredentialConfig{
		Hasher: crypto.NewBcryptHasher(bcrypt.MinCost),
		Clock:  clock.Now,
	})
	require.NoError(t, err)
	return creds
}

func createTestAccount(t *testing.T, creds *CredentialStore, email string, role models.Role, status models.ProfileStatus) (*models.Account, *models.EmployeeProfile) {
	t.Helper()
	account, profile, err := creds.Create(context.Background(), NewAccount{
		Email:    email,
		Password: "pw123456",
		FullName: "Test " + email,
		Role:     role,
	}, status)
	require.NoError(t, err)
	return account, profile
}
