package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrocomice/agroaccess/internal/app"
	"github.com/agrocomice/agroaccess/internal/auth"
	"github.com/agrocomice/agroaccess/internal/observability"
	"github.com/agrocomice/agroaccess/internal/platform/cache"
	"github.com/agrocomice/agroaccess/internal/platform/db"
	"github.com/agrocomice/agroaccess/internal/profiles"
	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/roles"
	"github.com/agrocomice/agroaccess/internal/seed"
	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/store/memory"
	"github.com/agrocomice/agroaccess/internal/users"
	"github.com/agrocomice/agroaccess/jobs"
)

// storage bundles the repositories selected by STORE_DRIVER.
type storage struct {
	profiles profiles.Repository
	roles    roles.Repository
	users    users.Repository
	audit    shared.Auditor
	pool     *pgxpool.Pool
}

func (s storage) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func openStorage(ctx context.Context, cfg *app.Config, logger *slog.Logger) (storage, error) {
	if cfg.StoreDriver == app.StoreDriverMemory {
		store := memory.New()
		st := storage{profiles: store.Profiles(), roles: store.Roles(), users: store.Users()}
		if cfg.SeedDefaults {
			res, err := seed.Apply(ctx, seed.Target{Profiles: st.profiles, Roles: st.roles, Users: st.users},
				seed.Options{Password: cfg.SeedPassword})
			if err != nil {
				return storage{}, err
			}
			logger.Info("seeded memory store",
				slog.Int("profiles", res.Profiles),
				slog.Int("roles", res.Roles),
				slog.Int("users", res.Users),
			)
		}
		logger.Warn("memory store selected, data is lost on exit")
		return st, nil
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return storage{}, err
	}
	if cfg.PGAutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return storage{}, err
		}
		logger.Info("schema migrated")
	}
	return storage{
		profiles: profiles.NewRepository(pool),
		roles:    roles.NewRepository(pool),
		users:    users.NewRepository(pool),
		audit:    shared.NewAuditLogger(pool),
		pool:     pool,
	}, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("open storage", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer st.close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "agroaccess_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	profileService := profiles.NewService(st.profiles, st.roles, st.audit, logger)
	roleService := roles.NewService(st.roles, st.profiles, st.users, st.audit, logger)
	userService := users.NewService(st.users, roleService, cfg.RemovalMode(), st.audit, logger)
	resolver := rbac.NewResolver(roleService, profileService, metrics)
	rbacMiddleware := rbac.Middleware{Logger: logger, Observer: metrics}

	authService := auth.NewService(st.users, resolver, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	// The worker reads PostgreSQL, so scans are only offered for that driver.
	var scanEnqueuer jobs.ScanEnqueuer
	if cfg.StoreDriver == app.StoreDriverPostgres {
		jobClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		scanEnqueuer = jobClient
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       auth.NewHandler(logger, authService, sessionManager, csrfManager),
		UsersHandler:      users.NewHandler(logger, userService, rbacMiddleware),
		RolesHandler:      roles.NewHandler(logger, roleService, rbacMiddleware),
		ProfilesHandler:   profiles.NewHandler(logger, profileService, rbacMiddleware),
		NavigationHandler: rbac.NewNavigationHandler(),
		JobHandler:        jobs.NewHandler(inspector, scanEnqueuer, logger),
		Metrics:           metrics,
		AccessLog:         !cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
