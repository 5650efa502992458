package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/config"
	"github.com/albepe01/NetworkSecurity-Project/internal/handler"
	"github.com/albepe01/NetworkSecurity-Project/internal/limiter"
	"github.com/albepe01/NetworkSecurity-Project/internal/logger"
	"github.com/albepe01/NetworkSecurity-Project/internal/metrics"
	"github.com/albepe01/NetworkSecurity-Project/internal/middleware"
	"github.com/albepe01/NetworkSecurity-Project/internal/router"
	"github.com/albepe01/NetworkSecurity-Project/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/acme/autocert"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.Environment, os.Stderr)
	slog.SetDefault(log)
	log.Info("starting decision service", "env", cfg.Server.Environment, "policy", cfg.Decision.Policy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 3. Pipeline
	svc, err := service.New(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error("shutdown audit", "error", err)
		}
	}()

	// 4. Handlers
	handlers := router.Handlers{
		DecideEndpoint: cfg.Server.DecideEndpoint,
		Decision:       handler.NewDecisionHandler(svc.Engine, svc.Catalog, svc.Corpus, log),
		Catalog:        handler.NewCatalogHandler(svc.Catalog, svc.Engine.Policy()),
		System:         handler.NewSystemHandler(svc.Reader),
		Metrics:        m.Handler(),
	}
	if svc.Stream != nil {
		handlers.Audit = handler.NewAuditHandler(svc.Reader, svc.Stream, log)
	}
	if svc.WAFRules != nil {
		handlers.Rules = handler.NewRuleHandler(svc.RuleSource, svc.WAFRules, cfg.WAF.AnomalyThreshold, log)
	}
	if cfg.Auth.JWTSecret != "" {
		handlers.Protect = middleware.Auth(cfg.Auth.JWTSecret)
	} else {
		log.Warn("JWT_SECRET not set, decision endpoint is unauthenticated")
	}

	// 5. Middleware Chain
	rl := limiter.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	go sweep(ctx, rl, cfg.RateLimit.Window)

	finalHandler := middleware.Chain(router.Setup(handlers),
		middleware.RequestLogger(log, m),
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.RateLimit(rl),
	)

	// 6. Start Server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  90 * time.Second,
	}

	if svc.Stream != nil {
		// end live streams so Shutdown does not wait on them
		srv.RegisterOnShutdown(func() { svc.Stream.Close() })
	}

	var redirect *http.Server
	if len(cfg.TLS.Hosts) > 0 {
		certManager := autocert.Manager{
			Prompt: autocert.AcceptTOS,
			HostPolicy: func(ctx context.Context, host string) error {
				if slices.Contains(cfg.TLS.Hosts, host) {
					return nil
				}
				return fmt.Errorf("host %s not allowed", host)
			},
			Cache: autocert.DirCache(cfg.TLS.CacheDir),
		}
		srv.Addr = ":443"
		srv.TLSConfig = &tls.Config{
			GetCertificate: certManager.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		}
		redirect = &http.Server{Addr: ":80", Handler: certManager.HTTPHandler(nil), ReadTimeout: 15 * time.Second}
	}

	errCh := make(chan error, 2)
	go func() {
		if redirect == nil {
			log.Info("http server listening", "addr", srv.Addr, "decide", cfg.Server.DecideEndpoint)
			errCh <- srv.ListenAndServe()
			return
		}
		log.Info("https server listening", "addr", srv.Addr, "hosts", cfg.TLS.Hosts)
		errCh <- srv.ListenAndServeTLS("", "")
	}()
	if redirect != nil {
		go func() { errCh <- redirect.ListenAndServe() }()
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if redirect != nil {
		redirect.Shutdown(shutdownCtx)
	}
	return srv.Shutdown(shutdownCtx)
}

func sweep(ctx context.Context, rl *limiter.RateLimiter, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.Sweep()
		}
	}
}
