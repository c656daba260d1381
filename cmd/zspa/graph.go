package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/0x-stone/zspa/internal/logging"
	"github.com/0x-stone/zspa/pkg/graph"
	"github.com/0x-stone/zspa/pkg/session"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the conversation graph",
	Long: `Prints the node/edge table of the conversation graph, or a Mermaid diagram (graph TD) with --mermaid.
With --session the nodes recorded in that session's history are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		asMermaid, _ := cmd.Flags().GetBool("mermaid")
		sessionID, _ := cmd.Flags().GetString("session")

		a, err := newApp(cmd.Context(), cfg, logging.NewNop(), "")
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if asMermaid {
			var overlay *graph.Overlay
			if sessionID != "" {
				overlay, err = sessionOverlay(cmd.Context(), a.sessions, sessionID)
				if err != nil {
					return err
				}
				logger.Debug("Graph overlay", "session_id", sessionID, "current", overlay.CurrentNode)
			}
			fmt.Fprint(out, a.graph.Mermaid(overlay))
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "ENTRY\t%s\n\n", a.graph.Entry())
		fmt.Fprintln(tw, "FROM\tTO\tKIND")
		for _, e := range a.graph.Edges() {
			kind := "edge"
			if e.Conditional {
				kind = "route"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.From, e.To, kind)
		}
		if forks := a.graph.Forks(); len(forks) > 0 {
			fmt.Fprintln(tw)
			for _, f := range forks {
				fmt.Fprintf(tw, "FORK\t%s\n", f)
			}
		}
		return tw.Flush()
	},
}

// sessionOverlay marks the nodes recorded in the session's message log.
func sessionOverlay(ctx context.Context, sessions *session.Manager, sessionID string) (*graph.Overlay, error) {
	st, err := sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %q: %w", sessionID, err)
	}
	overlay := &graph.Overlay{}
	seen := map[string]bool{}
	for _, m := range st.Messages.Snapshot() {
		if m.Node == "" {
			continue
		}
		overlay.CurrentNode = m.Node
		if !seen[m.Node] {
			seen[m.Node] = true
			overlay.VisitedNodes = append(overlay.VisitedNodes, m.Node)
		}
	}
	return overlay, nil
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("mermaid", false, "Print a Mermaid diagram instead of the edge table")
	graphCmd.Flags().String("session", "", "Highlight the nodes recorded in this session (with --mermaid)")
}
