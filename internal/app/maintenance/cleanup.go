package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/staffhub/internal/store"
	"github.com/charlesng35/staffhub/pkg/logger"
	"github.com/charlesng35/staffhub/pkg/metrics"
)

const (
	defaultAuditRetentionDays = 90
	defaultTokenSpec          = "@hourly"
	defaultAuditSpec          = "@daily"
	defaultCacheSpec          = "@hourly"
)

// Job names reported in logs and metrics.
const (
	JobTokens = "tokens"
	JobAudit  = "audit"
	JobCache  = "cache"
)

// TokenPurger removes expired verification and refresh tokens. Redemption
// already rejects expired rows, so purging only reclaims space.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, now time.Time) (store.PurgeResult, error)
}

// AuditPruner enforces audit log retention.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// CachePurger removes expired cache entries.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance tasks such as purging expired
// tokens, pruning stale audit logs and removing expired cache rows.
type Cleaner struct {
	tokens    TokenPurger
	audit     AuditPruner
	cache     CachePurger
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int

	tokenSchedule string
	auditSchedule string
	cacheSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithCachePurger enables cleanup of a database-backed cache.
func WithCachePurger(p CachePurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = p
	}
}

// WithTokenSchedule overrides the cron specification for token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache cleanup.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(tokens TokenPurger, audit AuditPruner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		tokens:        tokens,
		audit:         audit,
		now:           time.Now,
		retention:     defaultAuditRetentionDays,
		tokenSchedule: defaultTokenSpec,
		auditSchedule: defaultAuditSpec,
		cacheSchedule: defaultCacheSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

func (c *Cleaner) enabled() bool {
	return c.tokens != nil || c.audit != nil || c.cache != nil
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled() {
		return nil
	}

	jobs := []struct {
		spec    string
		enabled bool
		run     func(context.Context) error
	}{
		{c.tokenSchedule, c.tokens != nil, c.purgeTokens},
		{c.auditSchedule, c.audit != nil && c.retention > 0, c.pruneAudit},
		{c.cacheSchedule, c.cache != nil, c.purgeCache},
	}

	for _, job := range jobs {
		if !job.enabled {
			continue
		}
		run := job.run
		if _, err := c.cron.AddFunc(job.spec, func() {
			_ = run(context.Background())
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.tokens != nil {
		errs = multierr.Append(errs, c.purgeTokens(ctx))
	}
	if c.audit != nil && c.retention > 0 {
		errs = multierr.Append(errs, c.pruneAudit(ctx))
	}
	if c.cache != nil {
		errs = multierr.Append(errs, c.purgeCache(ctx))
	}
	return errs
}

func (c *Cleaner) purgeTokens(ctx context.Context) error {
	result, err := c.tokens.PurgeExpiredTokens(ctx, c.now().UTC())
	return c.record(JobTokens, err,
		zap.Int64("verification_tokens", result.VerificationTokens),
		zap.Int64("refresh_tokens", result.RefreshTokens))
}

func (c *Cleaner) pruneAudit(ctx context.Context) error {
	removed, err := c.audit.CleanupOlderThan(ctx, c.retention)
	return c.record(JobAudit, err, zap.Int64("removed", removed), zap.Int("retention_days", c.retention))
}

func (c *Cleaner) purgeCache(ctx context.Context) error {
	removed, err := c.cache.PurgeExpired(ctx)
	return c.record(JobCache, err, zap.Int64("removed", removed))
}

func (c *Cleaner) record(job string, err error, fields ...zap.Field) error {
	if err != nil {
		metrics.MaintenanceRuns.WithLabelValues(job, "error").Inc()
		c.log.Warn("maintenance job failed", zap.String("job", job), zap.Error(err))
		return err
	}
	metrics.MaintenanceRuns.WithLabelValues(job, "success").Inc()
	c.log.Debug("maintenance job completed", append(fields, zap.String("job", job))...)
	return nil
}
