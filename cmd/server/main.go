// Package main is the entry point for the Courseware Hub server.
//
// The architecture follows Clean Architecture and DDD:
//   - Domain: course content, modules, and student state, no external deps
//   - Application: use case orchestration (Commands/Queries, module loader)
//   - Infrastructure: repositories, caches, the grading queue client
//   - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/campus-hub/courseware-hub/config"
	"github.com/campus-hub/courseware-hub/internal/application/command"
	"github.com/campus-hub/courseware-hub/internal/application/eventhandler"
	"github.com/campus-hub/courseware-hub/internal/application/query"
	"github.com/campus-hub/courseware-hub/internal/application/runtime"
	"github.com/campus-hub/courseware-hub/internal/domain/studentstate"
	"github.com/campus-hub/courseware-hub/internal/domain/xmodule"
	"github.com/campus-hub/courseware-hub/internal/infrastructure/contentstore"
	"github.com/campus-hub/courseware-hub/internal/infrastructure/external/xqueue"
	"github.com/campus-hub/courseware-hub/internal/infrastructure/messaging"
	"github.com/campus-hub/courseware-hub/internal/infrastructure/persistence/postgres"
	"github.com/campus-hub/courseware-hub/internal/infrastructure/persistence/redis"
	"github.com/campus-hub/courseware-hub/internal/infrastructure/render"
	"github.com/campus-hub/courseware-hub/internal/infrastructure/scheduler"
	"github.com/campus-hub/courseware-hub/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/campus-hub/courseware-hub/internal/interface/http"
	"github.com/campus-hub/courseware-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLI
// ══════════════════════════════════════════════════════════════════════════════

var envFile string

func main() {
	root := &cobra.Command{
		Use:           "courseware-hub",
		Short:         "Courseware Hub - online course module runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load")

	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	var rollback bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), rollback)
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last applied migration")

	return cmd
}

// loadConfig loads the env file (if present) and the application config.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATE
// ══════════════════════════════════════════════════════════════════════════════

func runMigrate(ctx context.Context, rollback bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)

	if rollback {
		log.Info("rolling back last migration")
		return migrator.Rollback(ctx)
	}

	log.Info("running database migrations")
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	applied := 0
	for _, m := range status {
		if m.IsApplied {
			applied++
		}
	}
	log.Info("migrations completed",
		logger.Int("applied", applied),
		logger.Int("total", len(status)),
	)

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVE
// ══════════════════════════════════════════════════════════════════════════════

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg)
	log.Info("starting Courseware Hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ─────────────────────────────────────────────────────────────────────────
	// Database
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("running database migrations")
	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	studentRepo := postgres.NewStudentRepository(dbConn)
	var stateRepo studentstate.Repository = postgres.NewStudentModuleRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// Redis: state cache, sessions, TOC cache
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache   *redis.Cache
		sessionStore *redis.SessionStore
		tocCache     query.TOCCache
	)
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis")
		redisCache, err = redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   3,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolTimeout:  cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisCache.Close()

		sessionStore = redis.NewSessionStore(redisCache)
		stateRepo = redis.NewCachedStateRepository(stateRepo, redis.NewStateCache(redisCache))
		if cfg.Features.IsEnabled(config.FeatureTOCCache, nil) {
			tocCache = redis.NewTOCCache(redisCache)
		}
	} else if cfg.IsProduction() {
		return errors.New("REDIS_DISABLED is not supported in production: sessions need Redis")
	}

	if sessionStore == nil {
		return errors.New("session store unavailable: enable Redis")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Course content and module runtime
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("loading course content", logger.String("dir", cfg.Courseware.ContentDir))
	store, err := contentstore.NewFSStore(cfg.Courseware.ContentDir, log)
	if err != nil {
		return fmt.Errorf("failed to load course content: %w", err)
	}

	renderer, err := render.NewTemplateRenderer(cfg.Courseware.TemplateDir, log)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	var reloadSchedule scheduler.Schedule
	switch {
	case cfg.Courseware.ReloadCron != "":
		reloadSchedule, err = scheduler.ParseCronExpression(cfg.Courseware.ReloadCron)
		if err != nil {
			return fmt.Errorf("invalid COURSEWARE_RELOAD_CRON: %w", err)
		}
	case cfg.Courseware.ReloadInterval > 0:
		reloadSchedule = scheduler.NewIntervalSchedule(cfg.Courseware.ReloadInterval)
	}
	if reloadSchedule != nil {
		sched := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig())
		if err := sched.Register(jobs.NewReloadContentJob(store), reloadSchedule); err != nil {
			return fmt.Errorf("failed to register content reload job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
		log.Info("content reload scheduled",
			logger.String("schedule", reloadSchedule.String()),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus and tracking
	// ─────────────────────────────────────────────────────────────────────────
	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()

	if cfg.Features.IsEnabled(config.FeatureTrackingEvents, nil) {
		if err := bus.SubscribeAll(messaging.NewTrackingLogHandler(log)); err != nil {
			return fmt.Errorf("failed to subscribe tracking log: %w", err)
		}
	}

	dispatcher := messaging.NewDispatcherBuilder(bus).Build()
	dispatcher.Use(messaging.RecoveryMiddleware(slog.Default()))

	gradeAudit := eventhandler.NewOnGradeChangedHandler(log, eventhandler.DefaultGradeChangedConfig())
	if err := dispatcher.Register(gradeAudit.EventType(), "grade_audit", gradeAudit.Handle); err != nil {
		return fmt.Errorf("failed to register grade audit: %w", err)
	}

	queueWatch := eventhandler.NewOnQueueRejectedHandler(log, eventhandler.DefaultQueueRejectedConfig())
	if err := dispatcher.Register(queueWatch.EventType(), "queue_rejected_watch", queueWatch.Handle); err != nil {
		return fmt.Errorf("failed to register queue rejection watcher: %w", err)
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start event dispatcher: %w", err)
	}
	defer dispatcher.Stop()

	tracker := messaging.NewEventTracker(bus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// Grading queue
	// ─────────────────────────────────────────────────────────────────────────
	var queue runtime.QueueClient
	if cfg.XQueue.BaseURL != "" && cfg.Features.IsEnabled(config.FeatureExternalGrading, nil) {
		queueCfg := xqueue.DefaultConfig(cfg.XQueue.BaseURL)
		queueCfg.DefaultQueue = cfg.XQueue.DefaultQueue
		queueCfg.Timeout = cfg.XQueue.RequestTimeout
		queue = xqueue.NewClient(queueCfg, log)
		log.Info("grading queue enabled", logger.String("base_url", cfg.XQueue.BaseURL))
	} else {
		log.Info("grading queue disabled; externally graded problems will report unavailable")
	}

	loader := runtime.NewLoader(store, xmodule.DefaultRegistry(), stateRepo, runtime.Options{
		RootURL:    cfg.Courseware.RootURL,
		CacheDepth: cfg.Courseware.CacheDepth,
		Debug:      cfg.App.Debug,
		StaffDebug: cfg.Courseware.StaffDebug && cfg.Features.IsEnabled(config.FeatureStaffHistograms, nil),
		Renderer:   renderer,
		Tracker:    tracker,
		Queue:      queue,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.IdleTimeout = cfg.Server.IdleTimeout
	serverCfg.EnableCORS = cfg.Server.EnableCORS
	serverCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.Server.RateLimitPerMinute

	deps := httpserver.Dependencies{
		DispatchHandler:       command.NewDispatchModuleHandler(loader, bus, log),
		QueueCallbackHandler:  command.NewQueueCallbackHandler(loader, studentRepo, bus, log),
		RegisterHandler:       command.NewRegisterStudentHandler(studentRepo, bus, log),
		LoginHandler:          command.NewLoginStudentHandler(studentRepo, sessionStore, bus, cfg.Courseware.SessionTTL, log),
		ListCoursesHandler:    query.NewListCoursesHandler(store),
		GetTOCHandler:         query.NewGetTOCHandler(loader, tocCache),
		GetSectionHandler:     query.NewGetSectionHandler(loader),
		RenderModuleHandler:   query.NewRenderModuleHandler(loader, bus),
		GradeHistogramHandler: query.NewGradeHistogramHandler(stateRepo),
		Sessions:              sessionStore,
		Students:              studentRepo,
		Logger:                log,
		Database:              dbConn,
	}
	if redisCache != nil {
		deps.Cache = redisCache
	}

	server := httpserver.NewServer(serverCfg, deps)
	serverErr := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
