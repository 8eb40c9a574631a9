package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"vidsearch/internal/adapter/fs"
	"vidsearch/internal/usecase"
)

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Ingest every analysis document under a directory",
	Long: `Walk a directory for analysis documents (import.includes / import.excludes
globs, default **/*.json) and ingest each one. A document that fails to
decode or ingest is reported and skipped.

Examples:
  vidsearch import ./analyses
  vidsearch import              # import from --dir`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := GetConfig()
	importer := usecase.NewImportUseCase(
		fs.NewWalker(cfg.Import.Includes, cfg.Import.Excludes),
		fs.OSReader{},
		a.svc,
		logger,
	)

	fmt.Fprintf(os.Stderr, "Importing %s...\n", path)
	startTime := time.Now()

	result, err := importer.Import(ctx, path, newProgress("Importing"))
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nImport complete in %s:\n", formatDuration(time.Since(startTime)))
	fmt.Fprintf(out, "  Files found:     %d\n", result.FilesFound)
	fmt.Fprintf(out, "  Videos imported: %d\n", result.Imported)
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "  Errors:          %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "    - %s\n", e.Error())
		}
	}
	return nil
}
