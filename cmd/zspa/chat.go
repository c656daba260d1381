package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/0x-stone/zspa/pkg/runner"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run turns from stdin as JSON lines",
	Long: `Reads one turn per line from stdin and writes every event as a JSON line to stdout.
A line is either a plain message or a JSON turn request; session_id defaults to --session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		seed, _ := cmd.Flags().GetString("seed")
		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx, cfg, logger, seed)
		if err != nil {
			return err
		}
		defer a.Close()

		logger.Info("Chat session started", "session_id", sessionID)
		err = runner.NewJSONHandler(cmd.InOrStdin(), cmd.OutOrStdout()).Serve(ctx, a.runtime, sessionID)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("session", "", "Default session id (random when empty)")
	chatCmd.Flags().String("seed", "", "JSON file of fundraisers to load into the catalog")
}
