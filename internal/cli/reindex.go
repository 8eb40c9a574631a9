package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed every stored transcript with the configured model",
	Long: `Re-embed every stored transcript with the configured embedding model and
replace the stored embeddings. Run this after changing embedding.provider,
embedding.model or embedding.dimension.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(os.Stderr, "Reindexing stored transcripts...")
	startTime := time.Now()

	if err := a.svc.Reindex(ctx, newProgress("Embedding")); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	stats, err := a.svc.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reindexed %d videos with %s (D=%d) in %s\n",
		stats.Indexed, stats.Model, stats.Dimension, formatDuration(time.Since(startTime)))
	return nil
}
