package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending Postgres migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if !strings.EqualFold(cfg.StoreBackend, "postgres") {
		return errors.New("migrate requires PAPERCHAT_STORE=postgres")
	}
	// opening the postgres backend applies pending migrations
	b, err := openBackends(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()
	cmd.Println("Schema is up to date.")
	return nil
}
