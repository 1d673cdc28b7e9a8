// Package cli implements paperchatctl, the administrative command line.
package cli

import (
	"context"
	"log/slog"

	"paperchat/internal/app"
	"paperchat/internal/config"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

var (
	cfg    config.Config
	logger *slog.Logger

	// replaced in tests
	openBackends = app.OpenBackends
	dialTemporal = func(c config.Config, l *slog.Logger) (client.Client, error) {
		return client.Dial(client.Options{HostPort: c.TemporalAddress, Logger: tlog.NewStructuredLogger(l)})
	}
)

var rootCmd = &cobra.Command{
	Use:           "paperchatctl",
	Short:         "Administer a paperchat deployment",
	Long:          `Run schema migrations, repair document status and manage stored documents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg = config.Load()
		logger = cfg.NewLogger()
		return app.Validate(cfg)
	},
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
