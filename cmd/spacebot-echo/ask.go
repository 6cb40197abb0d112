package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"spacebot-echo-show/internal/config"
	"spacebot-echo-show/internal/server"
	"spacebot-echo-show/internal/types"
)

var askFlags struct {
	user   string
	device string
	app    string
	visual bool
}

var askCmd = &cobra.Command{
	Use:   "ask <utterance...>",
	Short: "Run one turn from the command line and print the response",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askFlags.user, "user", "cli-user", "user id")
	askCmd.Flags().StringVar(&askFlags.device, "device", "cli-device", "device id")
	askCmd.Flags().StringVar(&askFlags.app, "app", "cli-app", "app id")
	askCmd.Flags().BoolVar(&askFlags.visual, "visual", true, "device supports visual rendering")
}

func runAsk(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(settings)
	if err != nil {
		return err
	}
	s := server.NewServer(config.LoadServer(), settings, orch, logger)

	resp := s.Respond(context.Background(), types.TurnRequest{
		AppID:                         askFlags.app,
		UserID:                        askFlags.user,
		DeviceID:                      askFlags.device,
		RequestID:                     uuid.NewString(),
		Utterance:                     strings.Join(args, " "),
		DeviceSupportsVisualRendering: askFlags.visual,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
