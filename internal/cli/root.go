package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vidsearch/config"
	"vidsearch/internal/logging"
)

var (
	cfgFile    string
	cfg        *config.Config
	rootDir    string
	logger     *slog.Logger
	closeLog   func() error
	logLevel   string
	backendArg string
)

var rootCmd = &cobra.Command{
	Use:   "vidsearch",
	Short: "Store analysed videos and search them by transcript similarity",
	Long: `vidsearch persists video analysis results (title, description, tags,
transcript, entities), embeds each transcript and answers similarity queries
over the stored videos.

Example usage:
  vidsearch import ./analyses          # Ingest every analysis document under a directory
  vidsearch query -q "feline pets"     # Find the closest videos
  vidsearch serve                      # Expose the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if err := godotenv.Load(filepath.Join(rootDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if backendArg != "" {
			cfg.Store.Backend = backendArg
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, closeLog, err = logging.Setup(cfg.Logging, os.Stderr)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closeLog != nil {
			return closeLog()
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./vidsearch.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&backendArg, "backend", "", "record store backend: bolt, json, memory, postgres")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
