// Package gormstore implements store.Store on top of GORM so the identity core
// can run on SQLite, PostgreSQL or MySQL.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/store"
)

// Store is the GORM backed store.Store adapter.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an open GORM handle. Schema migration is the caller's concern.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("gormstore: db is required")
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for components that share the connection,
// such as the database backed cache.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account, profile *models.EmployeeProfile) error {
	if account == nil || profile == nil {
		return errors.New("gormstore: account and profile are required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account.Email = models.NormalizeEmail(account.Email)
		account.Profile = nil
		if err := tx.Create(account).Error; err != nil {
			if isUniqueConstraintError(err) {
				return store.ErrDuplicateEmail
			}
			return fmt.Errorf("gormstore: create account: %w", err)
		}

		profile.AccountID = account.ID
		if err := tx.Create(profile).Error; err != nil {
			return fmt.Errorf("gormstore: create profile: %w", err)
		}
		account.Profile = profile
		return nil
	})
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, translateNotFound(err, "get account")
	}
	return &account, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&account).Error; err != nil {
		return nil, translateNotFound(err, "get account by email")
	}
	return &account, nil
}

func (s *Store) GetProfileByID(ctx context.Context, id string) (*models.EmployeeProfile, error) {
	var profile models.EmployeeProfile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, translateNotFound(err, "get profile")
	}
	return &profile, nil
}

func (s *Store) GetProfileByAccountID(ctx context.Context, accountID string) (*models.EmployeeProfile, error) {
	var profile models.EmployeeProfile
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error; err != nil {
		return nil, translateNotFound(err, "get profile by account")
	}
	return &profile, nil
}

func (s *Store) ListProfiles(ctx context.Context, filter store.ProfileFilter) ([]models.EmployeeProfile, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.EmployeeProfile{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gormstore: count profiles: %w", err)
	}

	offset, limit := store.NormalizePage(filter.Offset, filter.Limit)
	var profiles []models.EmployeeProfile
	if err := query.Preload("Account").Order("created_at ASC").Order("id ASC").Offset(offset).Limit(limit).Find(&profiles).Error; err != nil {
		return nil, 0, fmt.Errorf("gormstore: list profiles: %w", err)
	}
	return profiles, total, nil
}

func (s *Store) ListActiveAdminEmails(ctx context.Context) ([]string, error) {
	var emails []string
	err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Joins("JOIN employee_profiles ON employee_profiles.account_id = accounts.id").
		Where("employee_profiles.role = ? AND employee_profiles.status = ? AND accounts.email_verified = ?",
			models.RoleAdmin, models.StatusActive, true).
		Order("accounts.email ASC").
		Pluck("accounts.email", &emails).Error
	if err != nil {
		return nil, fmt.Errorf("gormstore: list admin emails: %w", err)
	}
	return emails, nil
}

func (s *Store) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.EmployeeProfile{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("gormstore: count admins: %w", err)
	}
	return count, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, hash string, changedAt time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"password_hash":       hash,
			"password_changed_at": changedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("gormstore: update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) TouchLastLogin(ctx context.Context, accountID string, at time.Time) error {
	if err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		UpdateColumn("last_login_at", at).Error; err != nil {
		return fmt.Errorf("gormstore: touch last login: %w", err)
	}
	return nil
}

func (s *Store) SaveVerificationToken(ctx context.Context, token *models.VerificationToken) error {
	if token == nil {
		return errors.New("gormstore: token is required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ? AND purpose = ?", token.AccountID, token.Purpose).
			Delete(&models.VerificationToken{}).Error; err != nil {
			return fmt.Errorf("gormstore: replace verification token: %w", err)
		}
		if err := tx.Create(token).Error; err != nil {
			return fmt.Errorf("gormstore: save verification token: %w", err)
		}
		return nil
	})
}

func (s *Store) ConsumeVerificationToken(ctx context.Context, tokenHash string, purpose models.TokenPurpose, now time.Time, effect store.RedeemEffect) (string, error) {
	var (
		accountID string
		expired   bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.VerificationToken
		if err := tx.Where("token_hash = ? AND purpose = ?", tokenHash, purpose).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrTokenNotFound
			}
			return fmt.Errorf("gormstore: find verification token: %w", err)
		}

		// The conditional delete is the compare-and-clear: only one
		// transaction can observe an affected row.
		res := tx.Where("id = ? AND token_hash = ?", token.ID, tokenHash).Delete(&models.VerificationToken{})
		if res.Error != nil {
			return fmt.Errorf("gormstore: consume verification token: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return store.ErrTokenNotFound
		}

		if !token.ExpiresAt.After(now) {
			expired = true
			return nil
		}

		if err := applyRedeemEffect(tx, token.AccountID, now, effect); err != nil {
			return err
		}
		accountID = token.AccountID
		return nil
	})
	if err != nil {
		return "", err
	}
	if expired {
		return "", store.ErrTokenExpired
	}
	return accountID, nil
}

func applyRedeemEffect(tx *gorm.DB, accountID string, now time.Time, effect store.RedeemEffect) error {
	updates := map[string]any{}
	if effect.MarkEmailVerified {
		updates["email_verified"] = true
		updates["email_verified_at"] = now
	}
	if effect.PasswordHash != "" {
		updates["password_hash"] = effect.PasswordHash
		updates["password_changed_at"] = now
	}
	if len(updates) > 0 {
		res := tx.Model(&models.Account{}).Where("id = ?", accountID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("gormstore: apply token effect: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
	}
	if effect.RevokeRefreshTokens {
		if err := tx.Where("account_id = ?", accountID).Delete(&models.RefreshToken{}).Error; err != nil {
			return fmt.Errorf("gormstore: revoke refresh tokens: %w", err)
		}
	}
	return nil
}

func (s *Store) TransitionProfileStatus(ctx context.Context, profileID string, from, to models.ProfileStatus, actorID string, at time.Time) (*models.EmployeeProfile, error) {
	var profile models.EmployeeProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.EmployeeProfile{}).
			Where("id = ? AND status = ?", profileID, from).
			Updates(map[string]any{
				"status":            to,
				"status_changed_at": at,
				"status_changed_by": nullableString(actorID),
			})
		if res.Error != nil {
			return fmt.Errorf("gormstore: transition profile: %w", res.Error)
		}

		if err := tx.Where("id = ?", profileID).First(&profile).Error; err != nil {
			return translateNotFound(err, "reload profile")
		}
		if res.RowsAffected == 0 {
			return store.ErrStatusConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *Store) OverrideProfile(ctx context.Context, profileID string, override store.ProfileOverride) (*models.EmployeeProfile, error) {
	updates := map[string]any{}
	if override.Role != nil {
		updates["role"] = *override.Role
	}
	if override.Status != nil {
		updates["status"] = *override.Status
		updates["status_changed_at"] = override.At
		updates["status_changed_by"] = nullableString(override.ActorID)
	}
	if override.Department != nil {
		updates["department"] = *override.Department
	}
	if override.Position != nil {
		updates["position"] = *override.Position
	}

	var profile models.EmployeeProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", profileID).First(&profile).Error; err != nil {
			return translateNotFound(err, "get profile")
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&profile).Updates(updates).Error; err != nil {
			return fmt.Errorf("gormstore: override profile: %w", err)
		}
		return tx.Where("id = ?", profileID).First(&profile).Error
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *Store) AddRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token == nil {
		return errors.New("gormstore: refresh token is required")
	}
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("gormstore: add refresh token: %w", err)
	}
	return nil
}

func (s *Store) RotateRefreshToken(ctx context.Context, accountID, oldHash string, next *models.RefreshToken) error {
	if next == nil {
		return errors.New("gormstore: next refresh token is required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("account_id = ? AND token_hash = ?", accountID, oldHash).Delete(&models.RefreshToken{})
		if res.Error != nil {
			return fmt.Errorf("gormstore: rotate refresh token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return store.ErrTokenNotFound
		}
		next.AccountID = accountID
		if err := tx.Create(next).Error; err != nil {
			return fmt.Errorf("gormstore: insert rotated refresh token: %w", err)
		}
		return nil
	})
}

func (s *Store) RevokeRefreshTokens(ctx context.Context, accountID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("gormstore: revoke refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) CountRefreshTokens(ctx context.Context, accountID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).Where("account_id = ?", accountID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("gormstore: count refresh tokens: %w", err)
	}
	return count, nil
}

func (s *Store) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	if entry == nil {
		return errors.New("gormstore: audit entry is required")
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("gormstore: record audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gormstore: count audit: %w", err)
	}

	offset, limit := store.NormalizePage(filter.Offset, filter.Limit)
	var entries []models.AuditLog
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("gormstore: list audit: %w", err)
	}
	return entries, total, nil
}

func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (store.PurgeResult, error) {
	var result store.PurgeResult

	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.VerificationToken{})
	if res.Error != nil {
		return result, fmt.Errorf("gormstore: purge verification tokens: %w", res.Error)
	}
	result.VerificationTokens = res.RowsAffected

	res = s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return result, fmt.Errorf("gormstore: purge refresh tokens: %w", res.Error)
	}
	result.RefreshTokens = res.RowsAffected
	return result, nil
}

func (s *Store) PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("gormstore: purge audit: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translateNotFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return fmt.Errorf("gormstore: %s: %w", op, err)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
