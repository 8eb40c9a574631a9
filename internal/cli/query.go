package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search stored videos by transcript similarity",
	Long: `Embed the query text and return the most similar stored videos, best first.
Scores are cosine similarities in [-1, 1].

Examples:
  vidsearch query -q "feline pets"
  vidsearch query -q "cooking pasta" -k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.svc.Query(ctx, queryText, queryTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(out, "%d. %s  (score %.4f)\n", i+1, displayTitle(r.Record.Title, r.Record.Filename), r.Score)
		fmt.Fprintf(out, "   id: %s\n", r.Record.ID)
		if len(r.Record.Tags) > 0 {
			fmt.Fprintf(out, "   tags: %s\n", strings.Join(r.Record.Tags, ", "))
		}
		fmt.Fprintf(out, "   %s\n\n", snippet(r.Record.Transcript, 160))
	}
	return nil
}

func displayTitle(title, filename string) string {
	if title != "" {
		return title
	}
	if filename != "" {
		return filename
	}
	return "(untitled)"
}

// snippet shortens text to at most n runes on a word boundary.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	cut := string(runes[:n])
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
