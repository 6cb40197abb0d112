package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"spacebot-echo-show/internal/config"
	"spacebot-echo-show/internal/directive"
	"spacebot-echo-show/internal/prompt"
	"spacebot-echo-show/internal/server"
	"spacebot-echo-show/internal/turn"
	"spacebot-echo-show/internal/webhook"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP adapter the voice skill calls",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&port, "port", "", "listen port (default $PORT or 8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(settings)
	if err != nil {
		return err
	}

	srvCfg := config.LoadServer()
	if port != "" {
		srvCfg.Port = port
	}
	s := server.NewServer(srvCfg, settings, orch, logger)

	addr := ":" + srvCfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.Bool("configured", settings.Configured()))
	return http.ListenAndServe(addr, s.Router())
}

// loadSettings tolerates a missing webhook base so the adapter can still
// answer with its not-configured prompt.
func loadSettings() (config.Settings, error) {
	settings, err := config.Load()
	if errors.Is(err, config.ErrNotConfigured) {
		logger.Warn("SPACEBOT_WEBHOOK_BASE is not set")
		return settings, nil
	}
	return settings, err
}

func newOrchestrator(settings config.Settings) (*turn.Orchestrator, error) {
	prompts, err := prompt.NewBuilder()
	if err != nil {
		return nil, fmt.Errorf("load prompt instructions: %w", err)
	}
	extractor, err := directive.NewExtractor(logger)
	if err != nil {
		return nil, fmt.Errorf("compile directive schema: %w", err)
	}
	client := webhook.NewClient(settings, webhook.WithLogger(logger))
	return turn.New(settings, client, prompts, extractor, logger), nil
}
