package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vidsearch/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API over HTTP",
	Long: `Serve ingest, search and lookup over HTTP until interrupted.

Endpoints:
  GET  /health
  POST /videos         ingest one analysis document
  GET  /videos         list stored videos
  GET  /videos/{id}    fetch one video
  POST /search         {"query": "...", "k": 5}
  GET  /stats

When the environment variable named by server.api_key_env is set, every
endpoint except /health requires a matching X-API-Key header.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := GetConfig()
	srvCfg := cfg.Server
	if serveAddr != "" {
		srvCfg.Addr = serveAddr
	}

	srv := server.New(a.svc, srvCfg, os.Getenv(srvCfg.APIKeyEnv), logger)
	return srv.Run(ctx)
}
