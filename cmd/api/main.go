package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"paperchat/internal/api"
	"paperchat/internal/app"
	"paperchat/internal/config"
	"paperchat/internal/pipeline"
	"paperchat/internal/rag"
	"paperchat/internal/util"
	"paperchat/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	if err := run(cfg, logger); err != nil {
		logger.Error("paperchat api exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := app.Validate(cfg); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := util.EnsureDir(cfg.UploadDir); err != nil {
		return err
	}
	if err := util.EnsureDir(cfg.DataOutRoot); err != nil {
		return err
	}
	backends, err := app.OpenBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	prompts, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return err
	}
	pm, err := app.NewProviders(cfg, backends, logger)
	if err != nil {
		return err
	}

	// jobs outlive the request that queued them and stop after the server
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	var dispatcher pipeline.Dispatcher
	var local *pipeline.LocalDispatcher
	if strings.EqualFold(cfg.PipelineMode, "temporal") {
		tc, err := client.Dial(client.Options{
			HostPort: cfg.TemporalAddress,
			Logger:   tlog.NewStructuredLogger(logger),
		})
		if err != nil {
			return err
		}
		defer tc.Close()
		dispatcher = workflows.NewTemporalDispatcher(tc, cfg.TemporalTaskQueue, logger)
	} else {
		local = pipeline.NewLocalDispatcher(jobCtx, app.NewProcessor(cfg, backends, pm, logger), cfg.MaxConcurrentJobs, logger)
		dispatcher = local
	}

	reconciler := pipeline.NewReconciler(backends.Documents, backends.Vectors, dispatcher, logger)
	startup := reconciler
	if local != nil {
		// nothing has been dispatched by this process yet
		startup = reconciler.WithGrace(0)
	}
	if report, err := startup.Reconcile(ctx); err != nil {
		logger.Warn("startup reconcile failed", "error", err)
	} else {
		logger.Info("startup reconcile", "checked", report.Checked, "completed", len(report.Completed), "failed", len(report.Failed), "missing_files", len(report.Missing))
	}

	engine := rag.NewEngine(pm, pm, backends.Vectors, prompts, rag.Options{
		TopK:            cfg.TopK,
		MaxContextChars: cfg.MaxContextChars,
	}, logger)
	srv := api.NewServer(api.Deps{
		Config:     cfg,
		Documents:  backends.Documents,
		Vectors:    backends.Vectors,
		Sessions:   backends.Sessions,
		Dispatcher: dispatcher,
		Reconciler: reconciler,
		Engine:     engine,
		Logger:     logger,
		Health:     backends.Ping,
	})

	httpSrv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("paperchat api listening",
			"addr", cfg.APIAddr,
			"prefix", cfg.APIPrefix,
			"store", cfg.StoreBackend,
			"sessions", cfg.SessionBackend,
			"pipeline", cfg.PipelineMode,
			"llm_providers", cfg.LLMProviders,
			"embed_providers", cfg.EmbedProviders)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	cancelJobs()
	if local != nil {
		local.Wait()
	}
	return nil
}
