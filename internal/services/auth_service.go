package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/staffhub/internal/auth"
	"github.com/charlesng35/staffhub/internal/events"
	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/notify"
	"github.com/charlesng35/staffhub/internal/store"
	apperrors "github.com/charlesng35/staffhub/pkg/errors"
	"github.com/charlesng35/staffhub/pkg/logger"
	"github.com/charlesng35/staffhub/pkg/metrics"
)

// Client-facing messages for flows that succeed without issuing a session.
const (
	MessageSignUpPending    = "Account created. Check your email to confirm your address."
	MessageAwaitingApproval = "Email confirmed. Your account is awaiting administrator approval."
	MessageAccountRejected  = "Email confirmed. Your account request was rejected."
	MessageConfirmationSent = "A new confirmation link has been sent."
	MessageAlreadyVerified  = "Your email address is already confirmed."
	MessageForgotPassword   = "If an account exists for that email, a reset link has been sent."
	MessagePasswordReset    = "Your password has been reset. Please sign in again."
	MessageSignedOut        = "Signed out from all sessions."
)

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Store       store.Store
	Credentials *auth.CredentialStore
	Tokens      *auth.VerificationTokenManager
	Gate        *auth.ApprovalGate
	Sessions    *auth.SessionIssuer
	Dispatcher  *notify.Dispatcher
	Events      events.Publisher
	Audit       *AuditService
	// AllowAdminSignup lets anyone register as admin. The first admin may always sign up.
	AllowAdminSignup bool
	Clock            func() time.Time
}

// SignUpInput is the payload for self-registration.
type SignUpInput struct {
	Email      string
	Password   string
	FullName   string
	Role       models.Role
	Department *string
	Position   *string
	IPAddress  string
	UserAgent  string
}

// SignUpResult reports a completed registration. No tokens are issued.
type SignUpResult struct {
	Message string
	Account AccountView
}

// SignInInput carries credentials and client metadata.
type SignInInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// SessionResult is returned whenever a new token pair is issued.
type SessionResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Account          AccountView
}

// ConfirmResult reports the outcome of an email confirmation. Session is set
// only when the account may sign in immediately.
type ConfirmResult struct {
	Message string
	Status  models.ProfileStatus
	Session *SessionResult
}

// ResendResult reports whether a new confirmation link was sent.
type ResendResult struct {
	Message         string
	AlreadyVerified bool
}

// AccountView is the public projection of an account and its profile.
type AccountView struct {
	ID            string               `json:"id"`
	Email         string               `json:"email"`
	EmailVerified bool                 `json:"email_verified"`
	ProfileID     string               `json:"profile_id"`
	FullName      string               `json:"full_name"`
	Role          models.Role          `json:"role"`
	Department    *string              `json:"department,omitempty"`
	Position      *string              `json:"position,omitempty"`
	Status        models.ProfileStatus `json:"status"`
	LastLoginAt   *time.Time           `json:"last_login_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// AuthService is the single entry point for identity flows. Every error it
// returns is an *apperrors.AppError.
type AuthService struct {
	store            store.Store
	credentials      *auth.CredentialStore
	tokens           *auth.VerificationTokenManager
	gate             *auth.ApprovalGate
	sessions         *auth.SessionIssuer
	dispatcher       *notify.Dispatcher
	events           events.Publisher
	audit            *AuditService
	allowAdminSignup bool
	now              func() time.Time
	log              *zap.Logger
}

// NewAuthService validates deps and constructs the facade.
func NewAuthService(deps AuthDeps) (*AuthService, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("auth service: store is required")
	case deps.Credentials == nil:
		return nil, errors.New("auth service: credential store is required")
	case deps.Tokens == nil:
		return nil, errors.New("auth service: verification token manager is required")
	case deps.Gate == nil:
		return nil, errors.New("auth service: approval gate is required")
	case deps.Sessions == nil:
		return nil, errors.New("auth service: session issuer is required")
	}

	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = notify.NewDispatcher(nil, notify.DispatcherConfig{})
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NewLogPublisher()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &AuthService{
		store:            deps.Store,
		credentials:      deps.Credentials,
		tokens:           deps.Tokens,
		gate:             deps.Gate,
		sessions:         deps.Sessions,
		dispatcher:       dispatcher,
		events:           publisher,
		audit:            deps.Audit,
		allowAdminSignup: deps.AllowAdminSignup,
		now:              clock,
		log:              logger.WithModule("auth"),
	}, nil
}

// SignUp registers an account and profile, then sends the confirmation email
// and, for profiles awaiting approval, an approval request to every active admin.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (*SignUpResult, error) {
	ctx = ensureContext(ctx)

	role := input.Role
	if role == "" {
		role = models.RoleEmployee
	}
	if role == models.RoleAdmin && !s.allowAdminSignup {
		admins, err := s.store.CountAdmins(ctx)
		if err != nil {
			return nil, translateAuthError(err, "signup")
		}
		if admins > 0 {
			return nil, apperrors.ErrForbidden.WithMessage("Administrator accounts cannot be self-registered")
		}
	}

	account, profile, err := s.credentials.Create(ctx, auth.NewAccount{
		Email:      input.Email,
		Password:   input.Password,
		FullName:   input.FullName,
		Role:       role,
		Department: input.Department,
		Position:   input.Position,
	}, s.gate.InitialStatus(role))
	if err != nil {
		return nil, translateAuthError(err, "signup")
	}

	// The account exists from here on; delivery problems must not fail the request.
	s.sendConfirmation(ctx, account, profile)

	if profile.Status == models.StatusPending {
		s.requestApproval(ctx, account, profile)
	}

	event := events.New(events.TypeEmployeeRegistered, account.ID)
	event.ProfileID = profile.ID
	event.Data = map[string]any{"role": string(profile.Role), "status": string(profile.Status)}
	s.publish(ctx, event)

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:   account.ID,
		Action:    "auth.signup",
		Resource:  "account:" + account.ID,
		Result:    AuditResultSuccess,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Metadata:  map[string]any{"role": string(profile.Role), "status": string(profile.Status)},
	})

	return &SignUpResult{Message: MessageSignUpPending, Account: newAccountView(account, profile)}, nil
}

// SignIn authenticates by email and password. Unknown emails and wrong
// passwords produce the same error.
func (s *AuthService) SignIn(ctx context.Context, input SignInInput) (*SessionResult, error) {
	ctx = ensureContext(ctx)

	account, ok, err := s.credentials.VerifyPassword(ctx, input.Email, input.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, translateAuthError(err, "signin")
	}
	if !ok {
		metrics.AuthAttempts.WithLabelValues("invalid_credentials").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	profile, err := s.store.GetProfileByAccountID(ctx, account.ID)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, translateAuthError(lookupError(err), "signin")
	}

	if err := s.gate.CanLogin(account, profile); err != nil {
		metrics.AuthAttempts.WithLabelValues(attemptResult(err)).Inc()
		return nil, translateAuthError(err, "signin")
	}

	meta := auth.SessionMetadata{IPAddress: input.IPAddress, UserAgent: input.UserAgent}
	result, err := s.issueSession(ctx, account, profile, meta)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return result, nil
}

// ConfirmEmail redeems an email_verify token. When the account may now sign
// in, a session is issued straight away.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string, meta auth.SessionMetadata) (*ConfirmResult, error) {
	ctx = ensureContext(ctx)

	accountID, err := s.tokens.Redeem(ctx, token, models.PurposeEmailVerify, store.RedeemEffect{MarkEmailVerified: true})
	if err != nil {
		return nil, translateAuthError(err, "confirm_email")
	}

	account, profile, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, translateAuthError(err, "confirm_email")
	}

	event := events.New(events.TypeEmployeeEmailVerified, account.ID)
	event.ProfileID = profile.ID
	s.publish(ctx, event)

	result := &ConfirmResult{Status: profile.Status}
	switch err := s.gate.CanLogin(account, profile); {
	case err == nil:
		session, err := s.issueSession(ctx, account, profile, meta)
		if err != nil {
			return nil, err
		}
		result.Session = session
		result.Message = "Email confirmed."
	case errors.Is(err, auth.ErrAccountRejected):
		result.Message = MessageAccountRejected
	default:
		result.Message = MessageAwaitingApproval
	}
	return result, nil
}

// ResendConfirmation issues a fresh email_verify token, invalidating the previous one.
func (s *AuthService) ResendConfirmation(ctx context.Context, email string) (*ResendResult, error) {
	ctx = ensureContext(ctx)

	account, err := s.store.GetAccountByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, translateAuthError(lookupError(err), "resend_confirmation")
	}
	if account.EmailVerified {
		return &ResendResult{Message: MessageAlreadyVerified, AlreadyVerified: true}, nil
	}

	profile, err := s.store.GetProfileByAccountID(ctx, account.ID)
	if err != nil {
		return nil, translateAuthError(lookupError(err), "resend_confirmation")
	}

	issued, err := s.tokens.Issue(ctx, account.ID, models.PurposeEmailVerify)
	if err != nil {
		return nil, translateAuthError(err, "resend_confirmation")
	}
	s.dispatcher.Dispatch(ctx, notify.Message{
		To:       []string{account.Email},
		Template: notify.TemplateConfirmEmail,
		Vars:     map[string]string{notify.VarName: profile.FullName, notify.VarToken: issued.Token},
	})

	return &ResendResult{Message: MessageConfirmationSent}, nil
}

// ForgotPassword sends a reset link when the email is known. The caller always
// receives the same message.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) string {
	ctx = ensureContext(ctx)

	account, err := s.store.GetAccountByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("forgot password lookup failed", zap.Error(err))
		}
		return MessageForgotPassword
	}

	issued, err := s.tokens.Issue(ctx, account.ID, models.PurposePasswordReset)
	if err != nil {
		s.log.Warn("failed to issue password reset token", zap.String("account_id", account.ID), zap.Error(err))
		return MessageForgotPassword
	}

	vars := map[string]string{notify.VarToken: issued.Token}
	if profile, err := s.store.GetProfileByAccountID(ctx, account.ID); err == nil {
		vars[notify.VarName] = profile.FullName
	}
	s.dispatcher.Dispatch(ctx, notify.Message{
		To:       []string{account.Email},
		Template: notify.TemplatePasswordReset,
		Vars:     vars,
	})
	return MessageForgotPassword
}

// ResetPassword redeems a password_reset token, replacing the password and
// revoking every refresh token in the same transaction. A password that fails
// policy is rejected before the token is touched.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string, meta auth.SessionMetadata) error {
	ctx = ensureContext(ctx)

	hash, err := s.credentials.HashPassword(newPassword)
	if err != nil {
		return translateAuthError(err, "reset_password")
	}

	accountID, err := s.tokens.Redeem(ctx, token, models.PurposePasswordReset, store.RedeemEffect{
		PasswordHash:        hash,
		RevokeRefreshTokens: true,
	})
	if err != nil {
		return translateAuthError(err, "reset_password")
	}

	s.passwordChanged(ctx, accountID, "auth.password_reset", meta)
	return nil
}

// UpdatePassword changes the password of an authenticated account. Every
// refresh token is revoked and a fresh pair is issued to the caller.
func (s *AuthService) UpdatePassword(ctx context.Context, accountID, currentPassword, newPassword string, meta auth.SessionMetadata) (*SessionResult, error) {
	ctx = ensureContext(ctx)

	account, profile, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, translateAuthError(err, "update_password")
	}
	if !s.credentials.CheckPassword(account, currentPassword) {
		return nil, errCurrentPasswordMismatch
	}
	if currentPassword == newPassword {
		return nil, apperrors.NewValidation("New password must differ from the current password")
	}

	if err := s.credentials.SetPassword(ctx, account.ID, newPassword); err != nil {
		return nil, translateAuthError(err, "update_password")
	}
	if _, err := s.sessions.RevokeAll(ctx, account.ID); err != nil {
		return nil, translateAuthError(err, "update_password")
	}

	s.passwordChanged(ctx, account.ID, "auth.password_update", meta)
	return s.issueSession(ctx, account, profile, meta)
}

// SignOut revokes every refresh token of the account. Outstanding access
// tokens stay valid until they expire.
func (s *AuthService) SignOut(ctx context.Context, accountID string, meta auth.SessionMetadata) error {
	ctx = ensureContext(ctx)

	revoked, err := s.sessions.RevokeAll(ctx, accountID)
	if err != nil {
		return translateAuthError(err, "signout")
	}

	s.publish(ctx, events.New(events.TypeSignedOut, accountID))
	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:   accountID,
		Action:    "auth.signout",
		Resource:  "account:" + accountID,
		Result:    AuditResultSuccess,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Metadata:  map[string]any{"revoked": revoked},
	})
	return nil
}

// Refresh rotates a refresh token into a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta auth.SessionMetadata) (*SessionResult, error) {
	ctx = ensureContext(ctx)

	session, err := s.sessions.Refresh(ctx, refreshToken, meta)
	if err != nil {
		return nil, translateAuthError(err, "refresh")
	}
	return newSessionResult(session.Tokens, session.Account, session.Profile), nil
}

// Me returns the caller's account and profile.
func (s *AuthService) Me(ctx context.Context, accountID string) (*AccountView, error) {
	ctx = ensureContext(ctx)

	account, profile, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, translateAuthError(err, "me")
	}
	view := newAccountView(account, profile)
	return &view, nil
}

// ApproveEmployee activates a pending profile and notifies the employee.
func (s *AuthService) ApproveEmployee(ctx context.Context, profileID, actorID string, meta auth.SessionMetadata) (*AccountView, error) {
	return s.decide(ctx, profileID, actorID, meta, models.StatusActive)
}

// RejectEmployee rejects a pending profile and notifies the employee.
func (s *AuthService) RejectEmployee(ctx context.Context, profileID, actorID string, meta auth.SessionMetadata) (*AccountView, error) {
	return s.decide(ctx, profileID, actorID, meta, models.StatusRejected)
}

func (s *AuthService) decide(ctx context.Context, profileID, actorID string, meta auth.SessionMetadata, to models.ProfileStatus) (*AccountView, error) {
	ctx = ensureContext(ctx)

	action, template, eventType := "employee.approve", notify.TemplateAccountApproved, events.TypeEmployeeApproved
	transition := s.gate.Approve
	if to == models.StatusRejected {
		action, template, eventType = "employee.reject", notify.TemplateAccountRejected, events.TypeEmployeeRejected
		transition = s.gate.Reject
	}

	profile, err := transition(ctx, profileID, actorID)
	if err != nil {
		recordAudit(s.audit, ctx, AuditEntry{
			ActorID:   actorID,
			Action:    action,
			Resource:  "profile:" + strings.TrimSpace(profileID),
			Result:    AuditResultFailure,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return nil, translateAuthError(err, action)
	}

	account, err := s.store.GetAccountByID(ctx, profile.AccountID)
	if err != nil {
		return nil, translateAuthError(lookupError(err), action)
	}

	s.dispatcher.Dispatch(ctx, notify.Message{
		To:       []string{account.Email},
		Template: template,
		Vars:     map[string]string{notify.VarName: profile.FullName},
	})

	event := events.New(eventType, account.ID)
	event.ProfileID = profile.ID
	event.ActorID = actorID
	s.publish(ctx, event)

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:   actorID,
		Action:    action,
		Resource:  "profile:" + profile.ID,
		Result:    AuditResultSuccess,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Metadata:  map[string]any{"account_id": account.ID, "status": string(profile.Status)},
	})

	view := newAccountView(account, profile)
	return &view, nil
}

func (s *AuthService) issueSession(ctx context.Context, account *models.Account, profile *models.EmployeeProfile, meta auth.SessionMetadata) (*SessionResult, error) {
	pair, err := s.sessions.Issue(ctx, account, profile, meta)
	if err != nil {
		return nil, translateAuthError(err, "issue_session")
	}

	at := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, account.ID, at); err != nil {
		s.log.Warn("failed to record last login", zap.String("account_id", account.ID), zap.Error(err))
	} else {
		account.LastLoginAt = &at
	}

	return newSessionResult(pair, account, profile), nil
}

func (s *AuthService) loadAccount(ctx context.Context, accountID string) (*models.Account, *models.EmployeeProfile, error) {
	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, nil, lookupError(err)
	}
	profile, err := s.store.GetProfileByAccountID(ctx, account.ID)
	if err != nil {
		return nil, nil, lookupError(err)
	}
	return account, profile, nil
}

func (s *AuthService) sendConfirmation(ctx context.Context, account *models.Account, profile *models.EmployeeProfile) {
	issued, err := s.tokens.Issue(ctx, account.ID, models.PurposeEmailVerify)
	if err != nil {
		s.log.Warn("failed to issue confirmation token", zap.String("account_id", account.ID), zap.Error(err))
		return
	}
	s.dispatcher.Dispatch(ctx, notify.Message{
		To:       []string{account.Email},
		Template: notify.TemplateConfirmEmail,
		Vars:     map[string]string{notify.VarName: profile.FullName, notify.VarToken: issued.Token},
	})
}

func (s *AuthService) requestApproval(ctx context.Context, account *models.Account, profile *models.EmployeeProfile) {
	admins, err := s.store.ListActiveAdminEmails(ctx)
	if err != nil {
		s.log.Warn("failed to list administrators", zap.Error(err))
		return
	}
	for _, admin := range admins {
		if admin == account.Email {
			continue
		}
		s.dispatcher.Dispatch(ctx, notify.Message{
			To:       []string{admin},
			Template: notify.TemplateApprovalRequest,
			Vars: map[string]string{
				notify.VarEmployee: displayName(profile.FullName, account.Email),
				notify.VarEmail:    account.Email,
			},
		})
	}
}

func (s *AuthService) passwordChanged(ctx context.Context, accountID, action string, meta auth.SessionMetadata) {
	if account, profile, err := s.loadAccount(ctx, accountID); err == nil {
		s.dispatcher.Dispatch(ctx, notify.Message{
			To:       []string{account.Email},
			Template: notify.TemplatePasswordChanged,
			Vars:     map[string]string{notify.VarName: profile.FullName},
		})
	} else {
		s.log.Warn("failed to load account for password notice", zap.String("account_id", accountID), zap.Error(err))
	}

	s.publish(ctx, events.New(events.TypePasswordChanged, accountID))
	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:   accountID,
		Action:    action,
		Resource:  "account:" + accountID,
		Result:    AuditResultSuccess,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish event", zap.String("type", event.Type), zap.Error(err))
	}
}

// lookupError converts store misses into the auth sentinel.
func lookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return auth.ErrNotFound
	}
	return err
}

func attemptResult(err error) string {
	switch {
	case errors.Is(err, auth.ErrEmailNotVerified):
		return "email_not_verified"
	case errors.Is(err, auth.ErrPendingApproval):
		return "pending_approval"
	case errors.Is(err, auth.ErrAccountRejected):
		return "rejected"
	default:
		return "error"
	}
}

func newSessionResult(pair *auth.TokenPair, account *models.Account, profile *models.EmployeeProfile) *SessionResult {
	return &SessionResult{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Account:          newAccountView(account, profile),
	}
}

func newAccountView(account *models.Account, profile *models.EmployeeProfile) AccountView {
	view := AccountView{
		ID:            account.ID,
		Email:         account.Email,
		EmailVerified: account.EmailVerified,
		LastLoginAt:   account.LastLoginAt,
		CreatedAt:     account.CreatedAt,
	}
	if profile != nil {
		view.ProfileID = profile.ID
		view.FullName = profile.FullName
		view.Role = profile.Role
		view.Department = profile.Department
		view.Position = profile.Position
		view.Status = profile.Status
	}
	return view
}
