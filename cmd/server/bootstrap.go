package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/staffhub/internal/api"
	"github.com/charlesng35/staffhub/internal/app"
	"github.com/charlesng35/staffhub/internal/app/maintenance"
	iauth "github.com/charlesng35/staffhub/internal/auth"
	"github.com/charlesng35/staffhub/internal/cache"
	"github.com/charlesng35/staffhub/internal/database"
	"github.com/charlesng35/staffhub/internal/events"
	"github.com/charlesng35/staffhub/internal/middleware"
	"github.com/charlesng35/staffhub/internal/notify"
	"github.com/charlesng35/staffhub/internal/services"
	"github.com/charlesng35/staffhub/internal/store"
	"github.com/charlesng35/staffhub/internal/store/gormstore"
	"github.com/charlesng35/staffhub/internal/store/pgstore"
	"github.com/charlesng35/staffhub/pkg/logger"
	"github.com/charlesng35/staffhub/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	Store      store.Store
	DB         *gorm.DB // nil with the pgx adapter
	Redis      *cache.RedisStore
	Dispatcher *notify.Dispatcher
	Publisher  events.Publisher
	Cleaner    *maintenance.Cleaner
	RateStore  middleware.RateStore
	Router     *gin.Engine
}

// bootstrapRuntime initialises storage, caches, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background()); shutdownErr != nil {
				log.Warn("partial bootstrap cleanup failed", zap.Error(shutdownErr))
			}
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.Store, stack.DB, err = openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var cachePurger maintenance.CachePurger
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to local rate limiting", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	switch {
	case stack.Redis != nil:
		stack.RateStore = middleware.NewCacheRateStore(stack.Redis)
	case stack.DB != nil:
		dbCache := cache.NewDatabaseStore(stack.DB)
		stack.RateStore = middleware.NewCacheRateStore(dbCache)
		cachePurger = dbCache
	default:
		stack.RateStore = middleware.NewMemoryRateStore()
	}

	hasher, err := cfg.Auth.PasswordHasher()
	if err != nil {
		return nil, fmt.Errorf("initialise password hasher: %w", err)
	}
	credentials, err := iauth.NewCredentialStore(stack.Store, iauth.CredentialConfig{Hasher: hasher})
	if err != nil {
		return nil, fmt.Errorf("initialise credential store: %w", err)
	}

	tokens, err := iauth.NewVerificationTokenManager(stack.Store, cfg.Auth.VerificationOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initialise verification tokens: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	gate, err := iauth.NewApprovalGate(stack.Store, cfg.Auth.ApprovalGateConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise approval gate: %w", err)
	}

	sessions, err := iauth.NewSessionIssuer(stack.Store, jwtSvc, gate)
	if err != nil {
		return nil, fmt.Errorf("initialise session issuer: %w", err)
	}

	auditSvc, err := services.NewAuditService(stack.Store)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return nil, err
	}
	stack.Dispatcher = notify.NewDispatcher(notifier, cfg.Email.DispatcherConfig())
	stack.Publisher = newPublisher(cfg, log)

	authSvc, err := services.NewAuthService(services.AuthDeps{
		Store:            stack.Store,
		Credentials:      credentials,
		Tokens:           tokens,
		Gate:             gate,
		Sessions:         sessions,
		Dispatcher:       stack.Dispatcher,
		Events:           stack.Publisher,
		Audit:            auditSvc,
		AllowAdminSignup: cfg.Auth.Signup.AllowAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}

	employeeSvc, err := services.NewEmployeeService(stack.Store, gate, stack.Publisher, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise employee service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.Store, auditSvc,
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
			maintenance.WithTokenSchedule(cfg.Maintenance.Schedule),
			maintenance.WithCacheSchedule(cfg.Maintenance.Schedule),
			maintenance.WithCachePurger(cachePurger),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:    cfg,
		Auth:      authSvc,
		Employees: employeeSvc,
		Audit:     auditSvc,
		Tokens:    sessions,
		Health:    stack.Store,
		RateStore: stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, waits for queued notifications and
// releases resources. The HTTP server must already be stopped.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}
	if s.Dispatcher != nil {
		errs = multierr.Append(errs, s.Dispatcher.Wait(ctx))
	}
	if s.Publisher != nil {
		errs = multierr.Append(errs, s.Publisher.Close())
	}
	if s.Redis != nil {
		errs = multierr.Append(errs, s.Redis.Close())
	}
	if s.Store != nil {
		errs = multierr.Append(errs, s.Store.Close())
	}
	return errs
}

func openStore(ctx context.Context, cfg *app.Config) (store.Store, *gorm.DB, error) {
	log := logger.WithModule("database")

	switch adapter := cfg.Database.AdapterName(); adapter {
	case app.AdapterGorm:
		dbCfg := cfg.Database.ConnectionConfig()
		db, err := database.Open(dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := database.AutoMigrateAndSeed(db); err != nil {
			closeDatabase(db, log)
			return nil, nil, fmt.Errorf("auto-migrate database: %w", err)
		}
		st, err := gormstore.New(db)
		if err != nil {
			closeDatabase(db, log)
			return nil, nil, err
		}
		log.Info("database connected", zap.String("adapter", adapter), zap.String("driver", strings.ToLower(dbCfg.Driver)))
		return st, db, nil

	case app.AdapterPgx:
		driver := strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
		if driver != "postgres" && driver != "postgresql" {
			return nil, nil, fmt.Errorf("database adapter %q requires the postgres driver, got %q", adapter, cfg.Database.Driver)
		}
		dsn, err := cfg.Database.PostgresDSN()
		if err != nil {
			return nil, nil, fmt.Errorf("build postgres dsn: %w", err)
		}
		st, err := pgstore.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		log.Info("database connected", zap.String("adapter", adapter))
		return st, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database adapter %q", cfg.Database.Adapter)
	}
}

func newNotifier(cfg *app.Config, log *zap.Logger) (notify.Notifier, error) {
	if !cfg.Email.SMTP.Enabled {
		log.Info("smtp disabled; notifications are written to the log")
		return notify.NewLogNotifier(), nil
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise smtp mailer: %w", err)
	}
	notifier, err := notify.NewMailNotifier(mailer, cfg.MailNotifierConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise mail notifier: %w", err)
	}
	return notifier, nil
}

func newPublisher(cfg *app.Config, log *zap.Logger) events.Publisher {
	if !cfg.Events.Kafka.Enabled {
		return events.NewLogPublisher()
	}

	publisher, err := events.NewKafkaPublisher(cfg.Events.KafkaPublisherConfig())
	if err != nil {
		log.Warn("kafka unavailable; lifecycle events are written to the log", zap.Error(err))
		return events.NewLogPublisher()
	}
	log.Info("kafka publisher ready", zap.Strings("brokers", cfg.Events.Kafka.Brokers))
	return publisher
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
