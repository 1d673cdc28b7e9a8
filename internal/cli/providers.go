package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"paperchat/internal/storage"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect embedding and llm providers",
}

var providersUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Summarize recorded provider calls",
	Long:  `Summarize the provider calls recorded in the llm_calls table. Requires the postgres store.`,
	Args:  cobra.NoArgs,
	RunE:  runProvidersUsage,
}

var usageSince time.Duration

func init() {
	providersUsageCmd.Flags().DurationVar(&usageSince, "since", 24*time.Hour, "Only count calls newer than this")
	providersCmd.AddCommand(providersUsageCmd)
	rootCmd.AddCommand(providersCmd)
}

func runProvidersUsage(cmd *cobra.Command, _ []string) error {
	b, err := openBackends(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()
	if b.DB == nil {
		return errors.New("provider usage is only recorded with the postgres store")
	}

	rows, err := storage.NewLLMAuditRepo(b.DB).Summary(cmd.Context(), time.Now().Add(-usageSince))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		cmd.Println("No provider calls recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tOPERATION\tCALLS\tFAILED\tAVG LATENCY")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", r.ProviderName, r.Model, r.Operation, r.Calls, r.Failed, r.AvgLatency)
	}
	return tw.Flush()
}
