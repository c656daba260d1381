package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0x-stone/zspa/pkg/adapters/memory"
	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/persistence/middleware"
	"github.com/0x-stone/zspa/pkg/ports"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persistent sessions",
	Long:  `List, inspect, and remove sessions held by the configured session store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := getStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		sessions, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Sessions:")
		for _, s := range sessions {
			fmt.Fprintln(out, "- "+s)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state of a session",
	Long:  `Prints the session state as JSON. Refund addresses, memos and deposit details are masked unless --reveal is set.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		store, closeStore, err := getStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		state, err := store.Load(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", sessionID, err)
		}
		if reveal, _ := cmd.Flags().GetBool("reveal"); !reveal {
			if state, err = auditCopy(cmd.Context(), state); err != nil {
				return err
			}
		}

		// Pretty print JSON
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling state: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := getStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		failed := 0
		for _, sessionID := range args {
			if err := store.Delete(cmd.Context(), sessionID); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", sessionID, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", sessionID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d sessions not removed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionInspectCmd.Flags().Bool("reveal", false, "Print the state without masking")
}

// getStore opens the configured session store, decrypting when a key is set.
func getStore(cmd *cobra.Command) (ports.StateStore, func() error, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, _, closer, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, closer, nil
}

// auditCopy passes st through the PII middleware into a scratch store.
func auditCopy(ctx context.Context, st *domain.State) (*domain.State, error) {
	pii, err := middleware.NewPIIMiddleware(auditPatterns)
	if err != nil {
		return nil, err
	}
	scratch := middleware.Chain(memory.NewStore(), pii)
	// The scratch store starts empty, so it must not see a stale version.
	clone := *st
	clone.Version = 0
	if err := scratch.Save(ctx, st.SessionID, &clone); err != nil {
		return nil, fmt.Errorf("failed to mask session: %w", err)
	}
	masked, err := scratch.Load(ctx, st.SessionID)
	if err != nil {
		return nil, err
	}
	masked.Version = st.Version
	return masked, nil
}

var auditPatterns = append([]string{`^deposit_address$`}, middleware.DefaultPIIPatterns...)
