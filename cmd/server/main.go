package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/veranemoloko/vidbatch/internal/api/http"
	cfgpkg "github.com/veranemoloko/vidbatch/internal/config"
	"github.com/veranemoloko/vidbatch/internal/fetcher"
	repo "github.com/veranemoloko/vidbatch/internal/repository"
	svc "github.com/veranemoloko/vidbatch/internal/service"
	"github.com/veranemoloko/vidbatch/internal/worker"
)

func main() {

	cfg, err := cfgpkg.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfgpkg.SetupLogger(cfg)
	slog.Info("configuration loaded successfully", "env", cfg.Environment)

	jobStorage, err := repo.NewJobStorage(cfg.StateFile)
	if err != nil {
		slog.Error("failed to initialize job repository", "error", err)
		os.Exit(1)
	}

	ytdlp := fetcher.NewYtDlp(cfg.YtDlpPath, cfg.FormatSelector, slog.Default())
	jobWorker := worker.NewJobWorker(jobStorage, ytdlp, cfg.WorkDir, slog.Default())
	jobService := svc.NewJobService(jobStorage, ytdlp, jobWorker, cfg, slog.Default())

	if err := jobService.RecoverJobs(context.Background()); err != nil {
		slog.Error("failed to recover unfinished jobs", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := h.NewRouter(jobService, cfg, slog.Default())
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  cfg.HTTPTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go jobService.RunRetention(ctx, max(cfg.JobRetention/4, time.Second))

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	} else {
		slog.Info("server stopped gracefully")
	}

	if err := jobService.Shutdown(shutdownCtx); err != nil {
		slog.Error("jobs did not stop in time", "error", err)
	}
}
