package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"tasktrack/config"
	"tasktrack/internal/admin"
	"tasktrack/internal/auth"
	"tasktrack/internal/db"
	"tasktrack/internal/health"
	"tasktrack/internal/logs"
	"tasktrack/internal/middleware"
	"tasktrack/internal/notify"
	"tasktrack/internal/realtime"
	"tasktrack/internal/repo"
	"tasktrack/internal/tasks"
	"tasktrack/internal/usage"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server

	hub       *realtime.Hub
	scheduler *notify.Scheduler
	redis     *auth.RedisRevocations

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) error {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	/* 2) DB */
	d, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("db open failed: %w", err)
	}
	if err := db.Migrate(d); err != nil {
		return fmt.Errorf("db migrate failed: %w", err)
	}
	a.db = d

	profiles := repo.NewProfileStore(d)
	sessions := repo.NewSessionStore(d)
	taskStore := repo.NewTaskStore(d)
	usageStore := repo.NewUsageStore(d)
	auditStore := repo.NewAuditStore(d)

	/* 3) Отзыв токенов: redis, если задан адрес, иначе память */
	var revoked auth.Revocations = auth.NewMemRevocations()
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rr, err := auth.NewRedisRevocations(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.redis = rr
		revoked = rr
		logs.Logger.Infof("token revocations in redis %s", cfg.Redis.Addr)
	}

	authSvc := auth.NewService(profiles, sessions, revoked, auth.Options{
		Secret:          []byte(cfg.Auth.JWTSecret),
		AccessTTL:       cfg.Auth.AccessTTL,
		RefreshTTL:      cfg.Auth.RefreshTTL,
		MinPasswordLen:  cfg.Auth.MinPasswordLen,
		SuperAdminEmail: cfg.Auth.SuperAdminEmail,
	})

	a.hub = realtime.NewHub()
	taskSvc := tasks.NewService(taskStore, a.hub)
	usageSvc := usage.NewService(usageStore, a.hub)

	/* 4) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	/* 5) Health */
	deps := map[string]health.Pinger{}
	if a.redis != nil {
		deps["redis"] = a.redis
	}
	health.RegisterRoutesWithDB(a.Router, d, deps) // /healthz, /readyz

	/* 6) API */
	auth.RegisterRoutes(a.Router, auth.NewHandler(authSvc))

	api := a.Router.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware(authSvc))
	tasks.RegisterRoutes(api, tasks.NewHandler(taskSvc))
	usage.RegisterRoutes(api, usage.NewHandler(usageSvc))
	api.HandleFunc("/realtime", realtime.Handler(a.hub, func(r *http.Request) string {
		return auth.FromContext(r.Context()).UserID
	}, 25*time.Second)).Methods(http.MethodGet)
	admin.Attach(api, admin.Dependencies{
		Profiles: profiles,
		Tasks:    taskStore,
		Usage:    usageStore,
		Audit:    auditStore,
		Hub:      a.hub,
		Gate:     admin.NewGate(cfg.Auth.RefreshTTL),
	})

	/* 7) Фоновые задания */
	notifier := notify.NewNotifier(taskStore, cfg.Notify.DueSoonWindow, newHubSink(a.hub))
	if token := cfg.Notify.TelegramToken; token != "" {
		tg, err := notify.NewTelegramSink(token, profiles)
		if err != nil {
			// без telegram сервис работает, напоминания остаются в realtime
			logs.Logger.Warnf("telegram disabled: %v", err)
		} else {
			notifier.AddSink(tg)
		}
	}
	a.scheduler = notify.NewScheduler(time.Local)
	if _, err := a.scheduler.Every(cfg.Notify.ScanInterval, "due_soon", func(ctx context.Context) error {
		n, err := notifier.Scan(ctx)
		if n > 0 {
			logs.Logger.Debugf("due soon: %d reminders", n)
		}
		return err
	}); err != nil {
		return err
	}
	if _, err := a.scheduler.Every(time.Hour, "session_sweep", func(ctx context.Context) error {
		n, err := authSvc.SweepExpired(ctx)
		if n > 0 {
			logs.Logger.Infof("swept %d auth sessions", n)
		}
		return err
	}); err != nil {
		return err
	}

	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := rt.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
	return nil
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	// WriteTimeout не ставим: /api/v1/realtime держит поток открытым.
	// BaseContext отменяется по сигналу, и SSE-потоки закрываются сами.
	// CORS снаружи роутера: preflight OPTIONS не совпадает ни с одним маршрутом
	handler := middleware.CORS(a.cfg.CORS.AllowedOrigins)(a.Router)
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return a.ctx },
	}

	errc := make(chan error, 1)
	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	a.scheduler.Start()

	var runErr error
	select {
	case <-a.ctx.Done():
	case err := <-errc:
		runErr = fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	a.scheduler.Stop()
	a.close()
	return runErr
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logs.Logger.Warnf("redis close: %v", err)
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
