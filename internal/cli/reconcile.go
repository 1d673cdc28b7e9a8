package cli

import (
	"context"
	"errors"
	"strings"

	"paperchat/internal/pipeline"
	"paperchat/internal/workflows"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair documents whose status disagrees with stored chunks",
	Long: `Marks interrupted documents as failed and completes documents whose chunks
were fully stored. Completed documents whose uploaded file is gone are failed
too. With the local pipeline the API server runs jobs in its own
process, so this command only runs when --assume-idle confirms nothing is
processing.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

var assumeIdle bool

func init() {
	reconcileCmd.Flags().BoolVar(&assumeIdle, "assume-idle", false, "Treat every processing document as not running")
	rootCmd.AddCommand(reconcileCmd)
}

// idleDispatcher reports nothing as running.
type idleDispatcher struct{}

func (idleDispatcher) Dispatch(context.Context, pipeline.Job) error {
	return errors.New("dispatch is not available from the command line")
}

func (idleDispatcher) Running(context.Context, string) (bool, error) { return false, nil }

func runReconcile(cmd *cobra.Command, _ []string) error {
	var dispatcher pipeline.Dispatcher
	grace := pipeline.DefaultReconcileGrace
	if strings.EqualFold(cfg.PipelineMode, "temporal") {
		tc, err := dialTemporal(cfg, logger)
		if err != nil {
			return err
		}
		defer tc.Close()
		dispatcher = workflows.NewTemporalDispatcher(tc, cfg.TemporalTaskQueue, logger)
	} else {
		if !assumeIdle {
			return errors.New("local pipeline: stop the API server and pass --assume-idle")
		}
		dispatcher = idleDispatcher{}
		grace = 0
	}

	b, err := openBackends(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	report, err := pipeline.NewReconciler(b.Documents, b.Vectors, dispatcher, logger).WithGrace(grace).Reconcile(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Checked %d documents\n", report.Checked)
	for _, id := range report.Completed {
		cmd.Printf("  completed %s\n", id)
	}
	for _, id := range report.Failed {
		cmd.Printf("  failed    %s\n", id)
	}
	for _, id := range report.Missing {
		cmd.Printf("  missing   %s\n", id)
	}
	for _, id := range report.Skipped {
		cmd.Printf("  skipped   %s (updated recently)\n", id)
	}
	return nil
}
