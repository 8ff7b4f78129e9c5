package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/staffhub/internal/api"
	"github.com/charlesng35/staffhub/internal/app"
	iauth "github.com/charlesng35/staffhub/internal/auth"
	sharedtestutil "github.com/charlesng35/staffhub/internal/database/testutil"
	"github.com/charlesng35/staffhub/internal/events"
	"github.com/charlesng35/staffhub/internal/middleware"
	"github.com/charlesng35/staffhub/internal/notify"
	"github.com/charlesng35/staffhub/internal/services"
	"github.com/charlesng35/staffhub/internal/store/gormstore"
	"github.com/charlesng35/staffhub/pkg/crypto"
	"github.com/charlesng35/staffhub/pkg/response"
)

// DefaultPassword satisfies the default password policy.
const DefaultPassword = "Passw0rd!"

// Clock is a manually advanced time source shared by every component of an Env.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RecordingNotifier captures every delivered notification.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

// Send records msg.
func (n *RecordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

// Messages returns the notifications of the given template addressed to addr.
func (n *RecordingNotifier) Messages(template notify.TemplateID, addr string) []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Message
	for _, msg := range n.sent {
		if msg.Template != template {
			continue
		}
		for _, to := range msg.To {
			if to == addr {
				out = append(out, msg)
				break
			}
		}
	}
	return out
}

// Option customises the configuration used by NewEnv.
type Option func(*app.Config)

// WithAutoActivate skips the approval gate for new employees.
func WithAutoActivate() Option {
	return func(cfg *app.Config) { cfg.Auth.Approval.AutoActivate = true }
}

// WithRateLimit sets the per-client request budget of the auth routes.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(cfg *app.Config) {
		cfg.RateLimit.Requests = requests
		cfg.RateLimit.Window = window
	}
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T          *testing.T
	DB         *gorm.DB
	Router     *gin.Engine
	Clock      *Clock
	Notifier   *RecordingNotifier
	Dispatcher *notify.Dispatcher
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
			},
		},
		RateLimit: app.RateLimitConfig{Requests: 1000, Window: time.Minute},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	st, err := gormstore.New(db)
	require.NoError(t, err)

	clock := &Clock{now: time.Now().UTC().Truncate(time.Second)}

	creds, err := iauth.NewCredentialStore(st, iauth.CredentialConfig{
		Hasher: crypto.NewBcryptHasher(bcrypt.MinCost),
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	tokens, err := iauth.NewVerificationTokenManager(st,
		append(cfg.Auth.VerificationOptions(), iauth.WithVerificationClock(clock.Now))...)
	require.NoError(t, err)

	jwtCfg := cfg.Auth.JWTServiceConfig()
	jwtCfg.Clock = clock.Now
	jwtSvc, err := iauth.NewJWTService(jwtCfg)
	require.NoError(t, err)

	gateCfg := cfg.Auth.ApprovalGateConfig()
	gateCfg.Clock = clock.Now
	gate, err := iauth.NewApprovalGate(st, gateCfg)
	require.NoError(t, err)

	sessions, err := iauth.NewSessionIssuer(st, jwtSvc, gate)
	require.NoError(t, err)

	auditSvc, err := services.NewAuditService(st)
	require.NoError(t, err)

	notifier := &RecordingNotifier{}
	dispatcher := notify.NewDispatcher(notifier, notify.DispatcherConfig{Timeout: time.Second})
	publisher := events.NewLogPublisher()

	authSvc, err := services.NewAuthService(services.AuthDeps{
		Store:            st,
		Credentials:      creds,
		Tokens:           tokens,
		Gate:             gate,
		Sessions:         sessions,
		Dispatcher:       dispatcher,
		Events:           publisher,
		Audit:            auditSvc,
		AllowAdminSignup: cfg.Auth.Signup.AllowAdmin,
		Clock:            clock.Now,
	})
	require.NoError(t, err)

	employees, err := services.NewEmployeeService(st, gate, publisher, auditSvc)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		Config:    cfg,
		Auth:      authSvc,
		Employees: employees,
		Audit:     auditSvc,
		Tokens:    sessions,
		Health:    st,
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:          t,
		DB:         db,
		Router:     router,
		Clock:      clock,
		Notifier:   notifier,
		Dispatcher: dispatcher,
	}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.T, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, path, &buf)
	require.NoError(e.T, err)
	req.RemoteAddr = "192.0.2.10:41000"

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Do performs a request and decodes the envelope, asserting the status code.
func (e *Env) Do(method, path string, body any, token string, status int) APIResponse {
	e.T.Helper()
	w := e.Request(method, path, body, token)
	require.Equal(e.T, status, w.Code, w.Body.String())
	return DecodeResponse(e.T, w)
}

// Drain waits for background notifications to be delivered.
func (e *Env) Drain() {
	e.T.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(e.T, e.Dispatcher.Wait(ctx))
}

// LatestToken returns the token carried by the newest notification of template sent to addr.
func (e *Env) LatestToken(template notify.TemplateID, addr string) string {
	e.T.Helper()
	e.Drain()
	msgs := e.Notifier.Messages(template, addr)
	require.NotEmpty(e.T, msgs, "no %s notification for %s", template, addr)
	token := msgs[len(msgs)-1].Vars[notify.VarToken]
	require.NotEmpty(e.T, token)
	return token
}

// Account mirrors the account view returned by the API.
type Account struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	EmailVerified bool    `json:"email_verified"`
	ProfileID     string  `json:"profile_id"`
	FullName      string  `json:"full_name"`
	Role          string  `json:"role"`
	Department    *string `json:"department"`
	Position      *string `json:"position"`
	Status        string  `json:"status"`
}

// Session mirrors the session payload returned by login, refresh and confirm.
type Session struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type"`
	ExpiresIn    int     `json:"expires_in"`
	Account      Account `json:"account"`
}

// ConfirmResult mirrors the confirm-email payload.
type ConfirmResult struct {
	Message string   `json:"message"`
	Status  string   `json:"status"`
	Session *Session `json:"session"`
}

// SignUp registers an account and returns it.
func (e *Env) SignUp(email, password, role string) Account {
	e.T.Helper()

	payload := map[string]string{
		"email":     email,
		"password":  password,
		"full_name": "Test Employee",
	}
	if role != "" {
		payload["role"] = role
	}
	resp := e.Do(http.MethodPost, "/api/auth/signup", payload, "", http.StatusCreated)

	var result struct {
		Message string  `json:"message"`
		Account Account `json:"account"`
	}
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Account.ID)
	return result.Account
}

// Confirm redeems the latest confirmation token sent to email.
func (e *Env) Confirm(email string) ConfirmResult {
	e.T.Helper()

	token := e.LatestToken(notify.TemplateConfirmEmail, email)
	resp := e.Do(http.MethodPost, "/api/auth/confirm/"+token, nil, "", http.StatusOK)

	var result ConfirmResult
	DecodeInto(e.T, resp.Data, &result)
	return result
}

// Login signs in and returns the issued session.
func (e *Env) Login(email, password string) Session {
	e.T.Helper()

	resp := e.Do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "", http.StatusOK)

	var session Session
	DecodeInto(e.T, resp.Data, &session)
	require.NotEmpty(e.T, session.AccessToken)
	require.NotEmpty(e.T, session.RefreshToken)
	require.Equal(e.T, "Bearer", session.TokenType)
	return session
}

// CreateAdmin registers the first administrator, confirms it and returns its session.
func (e *Env) CreateAdmin(email string) Session {
	e.T.Helper()

	e.SignUp(email, DefaultPassword, "admin")
	confirmed := e.Confirm(email)
	require.NotNil(e.T, confirmed.Session, "admin confirmation should sign in")
	return *confirmed.Session
}

// CreateEmployee registers and confirms an employee, leaving the profile pending.
func (e *Env) CreateEmployee(email string) Account {
	e.T.Helper()

	account := e.SignUp(email, DefaultPassword, "")
	e.Confirm(email)
	return account
}

// CreateActiveEmployee registers, confirms and approves an employee.
func (e *Env) CreateActiveEmployee(adminToken, email string) Account {
	e.T.Helper()

	account := e.CreateEmployee(email)
	resp := e.Do(http.MethodPost, "/api/employees/"+account.ProfileID+"/approve", nil, adminToken, http.StatusOK)

	var approved Account
	DecodeInto(e.T, resp.Data, &approved)
	require.Equal(e.T, "active", approved.Status)
	return approved
}
