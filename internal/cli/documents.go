package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"paperchat/internal/pipeline"
	"paperchat/internal/util"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage stored documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document with its chunks, sessions and files",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

var listOwner string

func init() {
	documentsListCmd.Flags().StringVar(&listOwner, "owner", "", "Only list documents of this owner")
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	b, err := openBackends(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	docs, err := b.Documents.List(cmd.Context(), listOwner)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tOWNER\tSTATUS\tPAGES\tCHUNKS\tUPLOADED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			d.DocumentID, util.Truncate(d.Filename, 40), d.Owner, d.Status, d.TotalPages, d.TotalChunks, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	b, err := openBackends(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	doc, err := b.Documents.Get(cmd.Context(), args[0])
	if errors.Is(err, util.ErrNotFound) {
		return fmt.Errorf("document %s not found", args[0])
	}
	if err != nil {
		return err
	}
	if err := pipeline.Purge(cmd.Context(), b.Documents, b.Vectors, b.Sessions, doc, cfg.DataOutRoot, logger); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted %s (%s)\n", doc.DocumentID, doc.Filename)
	return nil
}
