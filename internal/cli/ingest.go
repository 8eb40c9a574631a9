package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vidsearch/internal/domain"
	"vidsearch/internal/usecase"
)

var (
	ingestFile        string
	ingestFilename    string
	ingestTitle       string
	ingestDescription string
	ingestTranscript  string
	ingestTags        []string
	ingestEntities    []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store one analysed video",
	Long: `Store one analysed video and index its transcript. The analysis is read
from a JSON document (--file) or given with flags.

Examples:
  vidsearch ingest --file clip.analysis.json
  vidsearch ingest --filename clip.mp4 --title "Clip" --transcript "hello world" --tag demo`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "analysis JSON document")
	ingestCmd.Flags().StringVar(&ingestFilename, "filename", "", "original video filename")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "video title")
	ingestCmd.Flags().StringVar(&ingestDescription, "description", "", "video description")
	ingestCmd.Flags().StringVar(&ingestTranscript, "transcript", "", "video transcript")
	ingestCmd.Flags().StringSliceVar(&ingestTags, "tag", nil, "tag (repeatable)")
	ingestCmd.Flags().StringSliceVar(&ingestEntities, "entity", nil, "entity (repeatable)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	var names []string
	var docs []domain.AnalysisFields

	if ingestFile != "" {
		data, err := os.ReadFile(ingestFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", ingestFile, err)
		}
		fallback := strings.TrimSuffix(filepath.Base(ingestFile), filepath.Ext(ingestFile))
		names, docs, err = usecase.DecodeDocuments(data, fallback)
		if err != nil {
			return err
		}
		if ingestFilename != "" && len(names) == 1 {
			names[0] = ingestFilename
		}
	} else {
		if ingestTranscript == "" {
			return fmt.Errorf("either --file or --transcript is required")
		}
		names = []string{ingestFilename}
		docs = []domain.AnalysisFields{{
			Title:       ingestTitle,
			Description: ingestDescription,
			Tags:        ingestTags,
			Transcript:  ingestTranscript,
			Entities:    ingestEntities,
		}}
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	for i, fields := range docs {
		id, err := a.svc.Ingest(ctx, names[i], fields)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", names[i], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
