// Package pgstore implements store.Store with hand-written SQL over the pgx
// database/sql driver. The schema is managed by embedded goose migrations.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/store"
	"github.com/charlesng35/staffhub/internal/store/pgstore/migrations"
)

const (
	accountColumns = `id, email, password_hash, email_verified, email_verified_at, password_changed_at, last_login_at, created_at, updated_at`
	profileColumns = `id, account_id, full_name, role, department, position, status, status_changed_at, status_changed_by, created_at, updated_at`
	auditColumns   = `id, actor_id, action, resource, result, ip_address, user_agent, metadata, created_at`
)

// Store is the PostgreSQL store.Store adapter.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects using the pgx driver, verifies connectivity and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("pgstore: dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an existing connection pool without running migrations.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("pgstore: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.EmailVerified, &a.EmailVerifiedAt,
		&a.PasswordChangedAt, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanProfile(row rowScanner) (*models.EmployeeProfile, error) {
	var p models.EmployeeProfile
	if err := row.Scan(&p.ID, &p.AccountID, &p.FullName, &p.Role, &p.Department, &p.Position,
		&p.Status, &p.StatusChangedAt, &p.StatusChangedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account, profile *models.EmployeeProfile) error {
	if account == nil || profile == nil {
		return errors.New("pgstore: account and profile are required")
	}

	now := s.now().UTC()
	account.EnsureID()
	account.Email = models.NormalizeEmail(account.Email)
	account.CreatedAt, account.UpdatedAt = now, now
	profile.EnsureID()
	profile.AccountID = account.ID
	profile.CreatedAt, profile.UpdatedAt = now, now

	return withTx(ctx, s.db, func(tx DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, email, password_hash, email_verified, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			account.ID, account.Email, account.PasswordHash, account.EmailVerified, now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicateEmail
			}
			return fmt.Errorf("pgstore: insert account: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO employee_profiles (id, account_id, full_name, role, department, position, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			profile.ID, profile.AccountID, profile.FullName, profile.Role, profile.Department, profile.Position,
			profile.Status, now, now)
		if err != nil {
			return fmt.Errorf("pgstore: insert profile: %w", err)
		}
		account.Profile = profile
		return nil
	})
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, translateNoRows(err, "get account")
	}
	return account, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, models.NormalizeEmail(email))
	account, err := scanAccount(row)
	if err != nil {
		return nil, translateNoRows(err, "get account by email")
	}
	return account, nil
}

func (s *Store) GetProfileByID(ctx context.Context, id string) (*models.EmployeeProfile, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM employee_profiles WHERE id = $1`, id)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, translateNoRows(err, "get profile")
	}
	return profile, nil
}

func (s *Store) GetProfileByAccountID(ctx context.Context, accountID string) (*models.EmployeeProfile, error) {
	if !validID(accountID) {
		return nil, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM employee_profiles WHERE account_id = $1`, accountID)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, translateNoRows(err, "get profile by account")
	}
	return profile, nil
}

func (s *Store) ListProfiles(ctx context.Context, filter store.ProfileFilter) ([]models.EmployeeProfile, int64, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employee_profiles`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgstore: count profiles: %w", err)
	}

	offset, limit := store.NormalizePage(filter.Offset, filter.Limit)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT p.%s, a.%s
		FROM (SELECT * FROM employee_profiles%s ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d) p
		JOIN accounts a ON a.id = p.account_id
		ORDER BY p.created_at ASC, p.id ASC`,
		strings.ReplaceAll(profileColumns, ", ", ", p."),
		strings.ReplaceAll(accountColumns, ", ", ", a."),
		where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgstore: list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.EmployeeProfile
	for rows.Next() {
		var (
			p models.EmployeeProfile
			a models.Account
		)
		if err := rows.Scan(&p.ID, &p.AccountID, &p.FullName, &p.Role, &p.Department, &p.Position,
			&p.Status, &p.StatusChangedAt, &p.StatusChangedBy, &p.CreatedAt, &p.UpdatedAt,
			&a.ID, &a.Email, &a.PasswordHash, &a.EmailVerified, &a.EmailVerifiedAt,
			&a.PasswordChangedAt, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgstore: scan profile: %w", err)
		}
		p.Account = &a
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgstore: list profiles: %w", err)
	}
	return profiles, total, nil
}

func (s *Store) ListActiveAdminEmails(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.email
		FROM accounts a
		JOIN employee_profiles p ON p.account_id = a.id
		WHERE p.role = $1 AND p.status = $2 AND a.email_verified
		ORDER BY a.email ASC`, models.RoleAdmin, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list admin emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("pgstore: scan admin email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func (s *Store) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employee_profiles WHERE role = $1`, models.RoleAdmin).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgstore: count admins: %w", err)
	}
	return count, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, hash string, changedAt time.Time) error {
	if !validID(accountID) {
		return store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET password_hash = $1, password_changed_at = $2, updated_at = $2
		WHERE id = $3`, hash, changedAt, accountID)
	if err != nil {
		return fmt.Errorf("pgstore: update password: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) TouchLastLogin(ctx context.Context, accountID string, at time.Time) error {
	if !validID(accountID) {
		return store.ErrNotFound
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_login_at = $1 WHERE id = $2`, at, accountID); err != nil {
		return fmt.Errorf("pgstore: touch last login: %w", err)
	}
	return nil
}

func (s *Store) SaveVerificationToken(ctx context.Context, token *models.VerificationToken) error {
	if token == nil {
		return errors.New("pgstore: token is required")
	}
	now := s.now().UTC()
	token.EnsureID()
	token.CreatedAt, token.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_tokens (id, account_id, purpose, token_hash, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (account_id, purpose) DO UPDATE
		SET id = EXCLUDED.id, token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at`,
		token.ID, token.AccountID, token.Purpose, token.TokenHash, token.ExpiresAt, now)
	if err != nil {
		return fmt.Errorf("pgstore: save verification token: %w", err)
	}
	return nil
}

func (s *Store) ConsumeVerificationToken(ctx context.Context, tokenHash string, purpose models.TokenPurpose, now time.Time, effect store.RedeemEffect) (string, error) {
	var (
		accountID string
		expired   bool
	)

	err := withTx(ctx, s.db, func(tx DBTX) error {
		var expiresAt time.Time
		// DELETE ... RETURNING is the compare-and-clear; a concurrent
		// transaction blocks on the row lock and then sees no row.
		err := tx.QueryRowContext(ctx, `
			DELETE FROM verification_tokens
			WHERE token_hash = $1 AND purpose = $2
			RETURNING account_id, expires_at`, tokenHash, purpose).Scan(&accountID, &expiresAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrTokenNotFound
			}
			return fmt.Errorf("pgstore: consume verification token: %w", err)
		}

		if !expiresAt.After(now) {
			expired = true
			return nil
		}
		return applyRedeemEffect(ctx, tx, accountID, now, effect)
	})
	if err != nil {
		return "", err
	}
	if expired {
		return "", store.ErrTokenExpired
	}
	return accountID, nil
}

func applyRedeemEffect(ctx context.Context, tx DBTX, accountID string, now time.Time, effect store.RedeemEffect) error {
	var (
		sets []string
		args []any
	)
	if effect.MarkEmailVerified {
		args = append(args, now)
		sets = append(sets, fmt.Sprintf("email_verified = TRUE, email_verified_at = $%d", len(args)))
	}
	if effect.PasswordHash != "" {
		args = append(args, effect.PasswordHash, now)
		sets = append(sets, fmt.Sprintf("password_hash = $%d, password_changed_at = $%d", len(args)-1, len(args)))
	}
	if len(sets) > 0 {
		args = append(args, now, accountID)
		query := fmt.Sprintf(`UPDATE accounts SET %s, updated_at = $%d WHERE id = $%d`,
			strings.Join(sets, ", "), len(args)-1, len(args))
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("pgstore: apply token effect: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
	}
	if effect.RevokeRefreshTokens {
		if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1`, accountID); err != nil {
			return fmt.Errorf("pgstore: revoke refresh tokens: %w", err)
		}
	}
	return nil
}

func (s *Store) TransitionProfileStatus(ctx context.Context, profileID string, from, to models.ProfileStatus, actorID string, at time.Time) (*models.EmployeeProfile, error) {
	if !validID(profileID) {
		return nil, store.ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE employee_profiles
		SET status = $1, status_changed_at = $2, status_changed_by = $3, updated_at = $2
		WHERE id = $4 AND status = $5
		RETURNING `+profileColumns,
		to, at, nullableID(actorID), profileID, from)
	profile, err := scanProfile(row)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pgstore: transition profile: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM employee_profiles WHERE id = $1)`, profileID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("pgstore: check profile: %w", err)
	}
	if !exists {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrStatusConflict
}

func (s *Store) OverrideProfile(ctx context.Context, profileID string, override store.ProfileOverride) (*models.EmployeeProfile, error) {
	if !validID(profileID) {
		return nil, store.ErrNotFound
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if override.Role != nil {
		add("role", *override.Role)
	}
	if override.Status != nil {
		add("status", *override.Status)
		add("status_changed_at", override.At)
		add("status_changed_by", nullableID(override.ActorID))
	}
	if override.Department != nil {
		add("department", *override.Department)
	}
	if override.Position != nil {
		add("position", *override.Position)
	}
	if len(sets) == 0 {
		return s.GetProfileByID(ctx, profileID)
	}
	add("updated_at", s.now().UTC())
	args = append(args, profileID)

	query := fmt.Sprintf(`UPDATE employee_profiles SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), profileColumns)
	profile, err := scanProfile(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, translateNoRows(err, "override profile")
	}
	return profile, nil
}

func (s *Store) AddRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token == nil {
		return errors.New("pgstore: refresh token is required")
	}
	return insertRefreshToken(ctx, s.db, token, s.now().UTC())
}

func insertRefreshToken(ctx context.Context, db DBTX, token *models.RefreshToken, now time.Time) error {
	token.EnsureID()
	token.CreatedAt, token.UpdatedAt = now, now
	_, err := db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, account_id, token_hash, expires_at, user_agent, ip_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		token.ID, token.AccountID, token.TokenHash, token.ExpiresAt, token.UserAgent, token.IPAddress, now)
	if err != nil {
		return fmt.Errorf("pgstore: insert refresh token: %w", err)
	}
	return nil
}

func (s *Store) RotateRefreshToken(ctx context.Context, accountID, oldHash string, next *models.RefreshToken) error {
	if next == nil {
		return errors.New("pgstore: next refresh token is required")
	}
	if !validID(accountID) {
		return store.ErrTokenNotFound
	}
	return withTx(ctx, s.db, func(tx DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1 AND token_hash = $2`, accountID, oldHash)
		if err != nil {
			return fmt.Errorf("pgstore: rotate refresh token: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("pgstore: rotate refresh token: %w", err)
		}
		if affected == 0 {
			return store.ErrTokenNotFound
		}
		next.AccountID = accountID
		return insertRefreshToken(ctx, tx, next, s.now().UTC())
	})
}

func (s *Store) RevokeRefreshTokens(ctx context.Context, accountID string) (int64, error) {
	if !validID(accountID) {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("pgstore: revoke refresh tokens: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) CountRefreshTokens(ctx context.Context, accountID string) (int64, error) {
	if !validID(accountID) {
		return 0, nil
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE account_id = $1`, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgstore: count refresh tokens: %w", err)
	}
	return count, nil
}

func (s *Store) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	if entry == nil {
		return errors.New("pgstore: audit entry is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	var actor any
	if entry.ActorID != nil {
		actor = nullableID(*entry.ActorID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, actor, entry.Action, entry.Resource, entry.Result, entry.IPAddress, entry.UserAgent,
		entry.Metadata, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: record audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, int64, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ActorID != "" {
		if !validID(filter.ActorID) {
			return nil, 0, nil
		}
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgstore: count audit: %w", err)
	}

	offset, limit := store.NormalizePage(filter.Offset, filter.Limit)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		auditColumns, where, len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgstore: list audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Resource, &e.Result, &e.IPAddress, &e.UserAgent, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgstore: scan audit: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgstore: list audit: %w", err)
	}
	return entries, total, nil
}

func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (store.PurgeResult, error) {
	var result store.PurgeResult

	res, err := s.db.ExecContext(ctx, `DELETE FROM verification_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return result, fmt.Errorf("pgstore: purge verification tokens: %w", err)
	}
	if result.VerificationTokens, err = res.RowsAffected(); err != nil {
		return result, err
	}

	res, err = s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return result, fmt.Errorf("pgstore: purge refresh tokens: %w", err)
	}
	if result.RefreshTokens, err = res.RowsAffected(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Store) PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pgstore: purge audit: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func translateNoRows(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return fmt.Errorf("pgstore: %s: %w", op, err)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullableID(id string) any {
	if !validID(id) {
		return nil
	}
	return id
}
