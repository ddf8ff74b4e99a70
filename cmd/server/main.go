package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ignite/membership-admin/internal/api"
	"github.com/ignite/membership-admin/internal/app"
	"github.com/ignite/membership-admin/internal/pkg/logger"
	"github.com/ignite/membership-admin/internal/service/geography"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env, err := app.Setup(ctx, app.ConfigPath())
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer env.Close()
	cfg := env.Config

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		logger.Error("pre-flight check failed", "error", err)
		os.Exit(1)
	}
	if cfg.API.Token == "" {
		logger.Warn("api.token is empty: every /api/v1 request will be rejected")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := api.RegisterMetrics(reg); err != nil {
		logger.Error("register api metrics", "error", err)
		os.Exit(1)
	}
	if err := geography.RegisterMetrics(reg); err != nil {
		logger.Error("register geography metrics", "error", err)
		os.Exit(1)
	}

	router := api.SetupRoutes(
		api.NewHandlers(env.Members, env.Resolver),
		api.NewHealthChecker(env.DB, env.Redis),
		api.RouterConfig{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Token:          cfg.API.Token,
			Gatherer:       reg,
		},
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", addr, "driver", env.Driver, "redis", env.Redis != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
