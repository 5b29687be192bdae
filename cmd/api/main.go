package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rbac-admin/internal/audit"
	"rbac-admin/internal/config"
	"rbac-admin/internal/guard"
	"rbac-admin/internal/httpapi"
	"rbac-admin/internal/identity"
	"rbac-admin/internal/rbac"
	"rbac-admin/internal/reporting"
	"rbac-admin/internal/session"
	"rbac-admin/pkg/logger"
	"rbac-admin/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

// sessionState is satisfied by both the memory and the Redis state stores.
type sessionState interface {
	session.Ledger
	session.Revocations
}

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	for _, w := range cfg.Warnings() {
		log.Warn("config", "warning", w)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Directory + audit storage
	var (
		repo     rbac.Repository
		auditLog audit.Repository
		db       *sql.DB
	)
	switch cfg.Directory.Driver {
	case config.DriverPostgres:
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxConns: cfg.DB.MaxConns})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		repo = rbac.NewPostgresRepo(db)
		auditLog = audit.NewPostgresRepo(db)
	default:
		mem := rbac.NewMemoryRepo()
		if err := rbac.Seed(rootCtx, mem, cfg.Directory.SeedAdminID); err != nil {
			log.Error("directory seed failed", "err", err)
			os.Exit(1)
		}
		repo = mem
		auditLog = audit.NewMemoryRepo()
	}

	// Rotation ledger + revocation list
	var (
		state sessionState
		rdb   *redis.Client
	)
	switch cfg.Session.State {
	case config.StateRedis:
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		state = session.NewRedisState(rdb)
	default:
		state = session.NewMemoryState()
	}

	backend := identity.NewClient(cfg.Identity.BaseURL, nil, cfg.Identity.Timeout)

	sealer, err := session.NewSealer(cfg.Session.Secret, cfg.Session.Issuer)
	if err != nil {
		log.Error("session sealer init failed", "err", err)
		os.Exit(1)
	}
	sessions, err := session.NewManager(session.Options{
		Backend:     backend,
		Rotator:     session.NewRotator(backend, state, cfg.Session.RotationTimeout, cfg.Session.RotationGrace),
		Sealer:      sealer,
		Revocations: state,
		Lifetimes: session.Lifetimes{
			Access:  cfg.Session.AccessLifetime,
			Refresh: cfg.Session.RefreshLifetime,
		},
		Margin: cfg.Session.RefreshMargin,
		Cookie: session.CookieOptions{
			Name:   cfg.Session.CookieName,
			Secure: cfg.IsProduction(),
		},
	})
	if err != nil {
		log.Error("session manager init failed", "err", err)
		os.Exit(1)
	}

	auditSvc := audit.NewService(auditLog)
	resolver := rbac.NewResolver(repo)

	g := guard.New(sessions, guard.Options{
		LoginPath:         cfg.Routes.LoginPath,
		LandingPath:       cfg.Routes.LandingPath,
		ProtectedPrefixes: cfg.Routes.ProtectedPrefixes,
		OnExpired: func(c *gin.Context, st *session.Store, err error) {
			auditSvc.SessionExpired(c.Request.Context(), st.Credential().SessionID, c.ClientIP(),
				c.Request.URL.Path, string(session.KindOf(err)))
		},
	})
	gate := rbac.NewGate(resolver, func(c *gin.Context, userID, path string) {
		auditSvc.AccessDenied(c.Request.Context(), userID, c.ClientIP(), path)
	})

	h := httpapi.Handlers{
		Sessions:    sessions,
		Resolver:    resolver,
		Directory:   rbac.NewService(repo),
		Audit:       auditSvc,
		Reports:     reporting.NewService(auditLog),
		LoginPath:   cfg.Routes.LoginPath,
		LandingPath: cfg.Routes.LandingPath,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(g.Middleware())

	registerRoutes(r, routeDeps{
		handlers: h,
		guard:    g,
		gate:     gate,
		limiter:  httpapi.NewLoginLimiter(cfg.Login.RatePerMinute),
		health:   healthCheck(db, rdb),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening",
			"addr", srv.Addr,
			"env", cfg.App.Env,
			"directory", cfg.Directory.Driver,
			"session_state", cfg.Session.State,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// healthCheck pings whichever stores are configured.
func healthCheck(db *sql.DB, rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if db != nil {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
		}
		if rdb != nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				return err
			}
		}
		return nil
	}
}
