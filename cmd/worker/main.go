package main

import (
	"context"
	"log/slog"
	"os"

	"paperchat/internal/activities"
	"paperchat/internal/app"
	"paperchat/internal/config"
	"paperchat/internal/util"
	"paperchat/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	cfg.PipelineMode = "temporal"
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	if err := run(cfg, logger); err != nil {
		logger.Error("paperchat worker exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := app.Validate(cfg); err != nil {
		return err
	}
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalAddress,
		Logger:   tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return err
	}
	defer c.Close()

	backends, err := app.OpenBackends(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()
	pm, err := app.NewProviders(cfg, backends, logger)
	if err != nil {
		return err
	}
	staging := app.StagingRoot(cfg)
	if err := util.EnsureDir(staging); err != nil {
		return err
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.MaxConcurrentJobs,
	})
	workflows.Register(w)
	activities.Register(w, activities.New(app.NewProcessor(cfg, backends, pm, logger), backends.Documents, staging))

	logger.Info("paperchat worker listening",
		"temporal", cfg.TemporalAddress,
		"queue", cfg.TemporalTaskQueue,
		"llm_providers", cfg.LLMProviders,
		"embed_providers", cfg.EmbedProviders)
	return w.Run(worker.InterruptCh())
}
