package main

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"gastos/internal/domain/expense"
	"gastos/internal/domain/profile"
	"gastos/internal/infrastructure/localcache"
	"gastos/internal/infrastructure/postgres"
	"gastos/internal/infrastructure/postgres/listener"
	"gastos/internal/infrastructure/postgrest"
	httphandlers "gastos/internal/interfaces/http"
	"gastos/internal/interfaces/scheduler"
	"gastos/internal/shared/auth"
	"gastos/internal/shared/config"
)

type categoryCache interface {
	expense.CategoryCache
	io.Closer
}

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB       *postgres.DB
	Cache    categoryCache
	Listener *listener.ExpenseListener
	Pool     *scheduler.WorkerPool
	Poller   *scheduler.Poller
	Registry *expense.Registry

	// Handlers
	ExpenseHandler *httphandlers.ExpenseHandler
	ProfileHandler *httphandlers.ProfileHandler

	// Auth
	JWT *auth.JWT
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config, log *logrus.Logger) (_ *Dependencies, err error) {
	deps := &Dependencies{}
	defer func() {
		if err != nil {
			deps.Close()
		}
	}()

	if cfg.HasDatabase() {
		deps.DB, err = postgres.New(cfg.Database.ConnectionString(), postgres.PoolOptions{})
		if err != nil {
			return nil, err
		}
		log.Info("Connected to database")
	}

	var (
		expenses   expense.Repository
		categories expense.CategoryRepository
		profiles   profile.Repository
	)
	switch cfg.Backend.Kind {
	case config.BackendPostgREST:
		client, err := postgrest.NewClient(cfg.Backend.SupabaseURL, cfg.Backend.ServiceKey)
		if err != nil {
			return nil, err
		}
		expenses = postgrest.NewExpenseRepository(client)
		categories = postgrest.NewCategoryRepository(client)
		profiles = postgrest.NewProfileRepository(client)
	default:
		expenses = postgres.NewExpenseRepository(deps.DB)
		categories = postgres.NewCategoryRepository(deps.DB)
		profiles = postgres.NewProfileRepository(deps.DB)
	}
	log.WithField("backend", cfg.Backend.Kind).Info("Expense backend configured")

	if path := cfg.Store.LocalCachePath; path != "" {
		cache, err := localcache.OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open local category cache: %w", err)
		}
		deps.Cache = cache
		log.WithField("path", path).Info("Local category cache opened")
	} else {
		deps.Cache = localcache.NewMemory()
		log.Warn("LOCAL_CACHE_PATH not set, category names cached in memory only")
	}

	deps.Pool = scheduler.NewWorkerPool(scheduler.Options{
		Workers:    cfg.Refresh.Workers,
		QueueSize:  cfg.Refresh.QueueSize,
		JobTimeout: cfg.Refresh.Timeout,
		Logger:     log,
	})
	deps.Pool.Start()

	storeDeps := expense.Deps{
		Expenses:   expenses,
		Categories: expense.NewCategoryResolver(categories, cfg.Store.CategoryTables...),
		Cache:      deps.Cache,
		Scheduler:  deps.Pool,
		Logger:     log,
		PageSize:   cfg.Store.PageSize,
		OnMutation: func(m expense.Mutation) {
			if m.State == expense.MutationRolledBack {
				log.WithError(m.Err).WithFields(logrus.Fields{
					"kind":       m.Kind,
					"expense_id": m.ExpenseID,
				}).Warn("Expense mutation rolled back")
			}
		},
	}

	if cfg.Realtime.Enabled {
		if deps.DB != nil {
			deps.Listener = listener.NewExpenseListener(cfg.Database.ConnectionString(), cfg.Realtime.Channel, log)
			storeDeps.Changefeed = deps.Listener
		} else {
			log.Warn("Realtime needs a database connection; expenses refresh on demand only")
		}
	}

	deps.Registry = expense.NewRegistry(storeDeps).WithIdleTTL(cfg.Store.IdleTTL)

	if interval := cfg.Refresh.Interval; interval > 0 {
		registry := deps.Registry
		deps.Poller = scheduler.NewPoller(deps.Pool, interval, func() []scheduler.RefreshTarget {
			var targets []scheduler.RefreshTarget
			for _, s := range registry.Observed() {
				targets = append(targets, scheduler.RefreshTarget{UserID: s.UserID(), Refresh: s.Refresh})
			}
			return targets
		}, log)
		deps.Poller.Start()
	}

	deps.ExpenseHandler = httphandlers.NewExpenseHandler(deps.Registry, cfg.Timezone, log)
	deps.ProfileHandler = httphandlers.NewProfileHandler(profile.NewService(profiles, log), log)
	deps.JWT = auth.NewJWT(cfg.JWT.Secret)

	return deps, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Poller != nil {
		d.Poller.Shutdown()
	}
	if d.Pool != nil {
		d.Pool.Shutdown(10 * time.Second)
	}
	if d.Listener != nil {
		d.Listener.Close()
	}
	if d.Cache != nil {
		d.Cache.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
