package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/retention-insights/internal/logging"
	"github.com/jonathan/retention-insights/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server that starts analysis runs in the background and exposes their
stage logs, a live progress stream and the final report.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	orch, closeModel, err := newOrchestrator(ctx, cfg, st)
	if err != nil {
		return err
	}
	defer closeModel()

	srv, err := server.New(server.Config{Port: servePort}, st, orch, logging.WithComponent("http"))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}
