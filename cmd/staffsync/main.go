package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/MrEthical07/staffsync"
	"github.com/MrEthical07/staffsync/internal/config"
	"github.com/MrEthical07/staffsync/internal/httpapi"
	"github.com/MrEthical07/staffsync/live"
	promexport "github.com/MrEthical07/staffsync/metrics/export/prometheus"
	"github.com/MrEthical07/staffsync/notify"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting staffsync", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage.Backend))

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	be, err := openBackend(rootCtx, cfg.Storage)
	if err != nil {
		log.Error("storage_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
		defer cancel()
		if cerr := be.close(closeCtx); cerr != nil {
			log.Warn("storage_close_failed", slog.String("err", cerr.Error()))
		}
	}()

	builder := staffsync.New().
		WithConfig(cfg.EngineConfig()).
		WithUserProvider(be.users).
		WithAuditSink(staffsync.NewSlogSink(log.With(slog.String("component", "audit")))).
		WithLogger(log)
	if be.redis != nil {
		builder.WithRedis(be.redis)
	}
	engine, err := builder.Build()
	if err != nil {
		log.Error("engine_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer engine.Close()

	if err := seedAdmin(rootCtx, engine, be, cfg.Seed); err != nil {
		log.Error("seed_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	hub := notify.NewHub(notify.WithHubLogger(log))
	svc := notify.NewService(be.notifications, hub)

	var ready atomic.Bool

	apiHandler := httpapi.NewRouter(httpapi.Options{
		Auth:          engine,
		Notifications: svc,
		Perms:         engine.Roles(),
		Live: live.NewHandler(hub, engine.Roles(), live.Config{
			QueueSize:      cfg.Live.QueueSize,
			WriteTimeout:   cfg.Live.WriteTimeout,
			OriginPatterns: cfg.Live.OriginPatterns,
		}),
		Metrics: promexport.Handler(promexport.NewRegistry(promexport.NewCollector(engine, promexport.WithHub(hub)))),
		Ready:   ready.Load,
		Logger:  log,
		Timeout: cfg.Timeouts.Request,
		Cookies: httpapi.CookieConfig{
			Access:   cfg.Auth.AccessCookie,
			Refresh:  cfg.Auth.RefreshCookie,
			Insecure: cfg.Auth.InsecureCookies,
		},
	})

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           apiHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	ready.Store(true)
	log.Info("staffsync_ready")

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	log.Info("service_stopped",
		slog.Uint64("hub_delivered", hub.Stats().Delivered),
		slog.Uint64("audit_dropped", engine.AuditDropped()),
	)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case envLocal:
		fallthrough
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
