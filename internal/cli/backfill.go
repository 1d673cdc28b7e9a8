package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"paperchat/internal/workflows"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Reprocess failed documents through Temporal",
	Args:  cobra.NoArgs,
	RunE:  runBackfill,
}

var (
	backfillOwner       string
	backfillConcurrency int
	backfillWait        bool
)

func init() {
	backfillCmd.Flags().StringVar(&backfillOwner, "owner", "", "Only retry documents of this owner")
	backfillCmd.Flags().IntVar(&backfillConcurrency, "concurrency", 3, "Documents reprocessed at once")
	backfillCmd.Flags().BoolVar(&backfillWait, "wait", false, "Wait for the backfill to finish and print the result")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	if !strings.EqualFold(cfg.PipelineMode, "temporal") {
		return errors.New("backfill requires PAPERCHAT_PIPELINE=temporal")
	}
	tc, err := dialTemporal(cfg, logger)
	if err != nil {
		return err
	}
	defer tc.Close()

	run, err := tc.ExecuteWorkflow(cmd.Context(), client.StartWorkflowOptions{
		ID:        fmt.Sprintf("backfill-%d", time.Now().Unix()),
		TaskQueue: cfg.TemporalTaskQueue,
	}, workflows.BackfillWorkflow, workflows.BackfillInput{
		Owner:         backfillOwner,
		MaxConcurrent: backfillConcurrency,
	})
	if err != nil {
		return fmt.Errorf("start backfill: %w", err)
	}
	cmd.Printf("Started backfill workflow %s (run %s)\n", run.GetID(), run.GetRunID())
	if !backfillWait {
		return nil
	}
	var result workflows.BackfillResult
	if err := run.Get(cmd.Context(), &result); err != nil {
		return err
	}
	cmd.Printf("Retried %d documents: %d completed, %d failed\n", result.Total, result.Completed, result.Failed)
	return nil
}
