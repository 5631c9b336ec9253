// Package main is the entrypoint of the presença engine worker.
//
// The worker owns the write side of the carência pipeline:
//   - periodic recompute sweeps over every active turma
//   - report cache invalidation driven by recompute events
//
// Read-side consumers (report frontends, exports) talk to the same
// PostgreSQL snapshot and Redis cache this worker maintains.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/presenca-hub/presenca-engine/config"
	"github.com/presenca-hub/presenca-engine/internal/application/command"
	"github.com/presenca-hub/presenca-engine/internal/application/eventhandler"
	"github.com/presenca-hub/presenca-engine/internal/domain/carencia"
	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
	"github.com/presenca-hub/presenca-engine/internal/infrastructure/messaging"
	"github.com/presenca-hub/presenca-engine/internal/infrastructure/persistence/postgres"
	"github.com/presenca-hub/presenca-engine/internal/infrastructure/persistence/redis"
	"github.com/presenca-hub/presenca-engine/internal/infrastructure/scheduler"
	"github.com/presenca-hub/presenca-engine/internal/infrastructure/scheduler/jobs"
	"github.com/presenca-hub/presenca-engine/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	logLevel := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		logLevel = logger.LevelDebug
	}
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logLevel,
		AddCaller: true,
	})

	log.Info("starting presença engine worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolSettings{
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.MigrateOnStart {
		log.Info("checking database migrations")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (cache + recompute lock, optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache *redis.Cache
		locker     carencia.PeriodLocker
	)

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis", logger.String("host", cfg.Redis.Host))
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, falling back to in-process locking", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			locker = redis.NewPeriodLock(redisCache)
			log.Info("Redis connection established")
		}
	}

	if locker == nil {
		// Single-process deployments do not need a distributed lock.
		locker = newLocalPeriodLock()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus")
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. REPOSITORIES AND HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories and handlers")
	attendanceRepo := postgres.NewAttendanceRepository(dbConn)
	catalogRepo := postgres.NewCatalogRepository(dbConn)
	carenciaRepo := postgres.NewCarenciaRepository(dbConn)

	recomputeHandler := command.NewRecomputePeriodHandler(
		attendanceRepo,
		catalogRepo,
		carenciaRepo,
		locker,
		eventBus,
		log,
		command.RecomputePeriodConfig{
			LockTTL:                  cfg.Engine.LockTTL,
			DefaultMinimumPercentage: cfg.Engine.DefaultMinimumPercentage,
		},
	)

	// Cache invalidation reacts to recompute and threshold events. Without
	// Redis there is nothing to invalidate.
	if redisCache != nil {
		invalidator := eventhandler.NewOnPeriodRecomputedHandler(redisCache, log)
		subscribe := func(ev shared.Event) error {
			return invalidator.Handle(ctx, ev)
		}
		if err := eventBus.Subscribe(shared.EventPeriodRecomputed, subscribe); err != nil {
			return fmt.Errorf("failed to subscribe cache invalidator: %w", err)
		}
		if err := eventBus.Subscribe(shared.EventThresholdChanged, subscribe); err != nil {
			return fmt.Errorf("failed to subscribe cache invalidator: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		log.Info("initializing scheduler",
			logger.Duration("recompute_interval", cfg.Scheduler.RecomputeInterval),
		)
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:   log,
			Timezone: cfg.App.Location,
		})

		sweepJob := jobs.NewRecomputePeriodsJob(
			catalogRepo,
			recomputeHandler,
			log,
			jobs.RecomputePeriodsConfig{
				Timezone:           cfg.App.Location,
				PerTurmaTimeout:    cfg.Scheduler.PerTurmaTimeout,
				DiscardManualState: cfg.Engine.DiscardManualState,
			},
		)

		if err := sched.Register(sweepJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RecomputeInterval)); err != nil {
			return fmt.Errorf("failed to register recompute job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler")
			_ = sched.Stop()
		}()
	} else {
		log.Warn("scheduler disabled, periods will only recompute on demand")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("presença engine worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))
	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	// Deferred closers run in reverse order: scheduler, bus, Redis, database.
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCAL PERIOD LOCK
// ══════════════════════════════════════════════════════════════════════════════

// localPeriodLock is a process-local PeriodLocker used when Redis is
// unavailable. TTL expiry keeps a crashed goroutine from wedging a period
// forever, mirroring the Redis lock's crash guard.
type localPeriodLock struct {
	mu    sync.Mutex
	holds map[string]time.Time
}

func newLocalPeriodLock() *localPeriodLock {
	return &localPeriodLock{holds: make(map[string]time.Time)}
}

func (l *localPeriodLock) Acquire(_ context.Context, periodKey string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, held := l.holds[periodKey]; held && time.Now().Before(expiry) {
		return false, nil
	}
	l.holds[periodKey] = time.Now().Add(ttl)
	return true, nil
}

func (l *localPeriodLock) Release(_ context.Context, periodKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.holds, periodKey)
	return nil
}
