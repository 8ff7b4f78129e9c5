package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/charlesng35/staffhub/internal/auth"
	"github.com/charlesng35/staffhub/internal/database/testutil"
	"github.com/charlesng35/staffhub/internal/events"
	"github.com/charlesng35/staffhub/internal/notify"
	"github.com/charlesng35/staffhub/internal/store"
	"github.com/charlesng35/staffhub/internal/store/gormstore"
	"github.com/charlesng35/staffhub/pkg/crypto"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
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

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) messages(template notify.TemplateID, to string) []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Message
	for _, msg := range n.sent {
		if msg.Template != template {
			continue
		}
		for _, addr := range msg.To {
			if addr == to {
				out = append(out, msg)
				break
			}
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type harness struct {
	store      store.Store
	clock      *testClock
	notifier   *recordingNotifier
	dispatcher *notify.Dispatcher
	publisher  *recordingPublisher
	audit      *AuditService
	auth       *AuthService
	employees  *EmployeeService
}

type harnessOption func(*AuthDeps, *auth.ApprovalConfig)

func withAutoActivate() harnessOption {
	return func(_ *AuthDeps, cfg *auth.ApprovalConfig) { cfg.AutoActivate = true }
}

func withAdminSignup() harnessOption {
	return func(deps *AuthDeps, _ *auth.ApprovalConfig) { deps.AllowAdminSignup = true }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	st, err := gormstore.New(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)}

	creds, err := auth.NewCredentialStore(st, auth.CredentialConfig{
		Hasher: crypto.NewBcryptHasher(bcrypt.MinCost),
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	tokens, err := auth.NewVerificationTokenManager(st, auth.WithVerificationClock(clock.Now))
	require.NoError(t, err)

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret: "services-test-secret",
		Issuer: "staffhub-test",
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	deps := AuthDeps{}
	approvalCfg := auth.ApprovalConfig{Clock: clock.Now}
	for _, opt := range opts {
		opt(&deps, &approvalCfg)
	}

	gate, err := auth.NewApprovalGate(st, approvalCfg)
	require.NoError(t, err)

	sessions, err := auth.NewSessionIssuer(st, jwtService, gate)
	require.NoError(t, err)

	audit, err := NewAuditService(st)
	require.NoError(t, err)
	audit.now = clock.Now

	notifier := &recordingNotifier{}
	dispatcher := notify.NewDispatcher(notifier, notify.DispatcherConfig{Timeout: time.Second})
	publisher := &recordingPublisher{}

	deps.Store = st
	deps.Credentials = creds
	deps.Tokens = tokens
	deps.Gate = gate
	deps.Sessions = sessions
	deps.Dispatcher = dispatcher
	deps.Events = publisher
	deps.Audit = audit
	deps.Clock = clock.Now

	authService, err := NewAuthService(deps)
	require.NoError(t, err)

	employees, err := NewEmployeeService(st, gate, publisher, audit)
	require.NoError(t, err)

	return &harness{
		store:      st,
		clock:      clock,
		notifier:   notifier,
		dispatcher: dispatcher,
		publisher:  publisher,
		audit:      audit,
		auth:       authService,
		employees:  employees,
	}
}

// drain waits for background notifications.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.dispatcher.Wait(ctx))
}

// lastToken returns the token carried by the most recent template sent to addr.
func (h *harness) lastToken(t *testing.T, template notify.TemplateID, addr string) string {
	t.Helper()
	h.drain(t)
	msgs := h.notifier.messages(template, addr)
	require.NotEmpty(t, msgs, "no %s message for %s", template, addr)
	token := msgs[len(msgs)-1].Vars[notify.VarToken]
	require.NotEmpty(t, token)
	return token
}

func (h *harness) signUp(t *testing.T, email string) *SignUpResult {
	t.Helper()
	result, err := h.auth.SignUp(context.Background(), SignUpInput{
		Email:    email,
		Password: "Passw0rd!",
		FullName: "Test Employee",
	})
	require.NoError(t, err)
	return result
}

// activeEmployee signs up, confirms and approves an employee.
func (h *harness) activeEmployee(t *testing.T, email string) *SignUpResult {
	t.Helper()
	result := h.signUp(t, email)
	_, err := h.auth.ConfirmEmail(context.Background(), h.lastToken(t, notify.TemplateConfirmEmail, result.Account.Email), auth.SessionMetadata{})
	require.NoError(t, err)
	_, err = h.auth.ApproveEmployee(context.Background(), result.Account.ProfileID, "", auth.SessionMetadata{})
	require.NoError(t, err)
	return result
}
