// Command incidentdesk serves the ServiceNow incident assistant over HTTP
// and offers one-shot access to it from the terminal.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var opts overrides

	root := &cobra.Command{
		Use:   "incidentdesk",
		Short: "Chat assistant for ServiceNow incidents",
		Long: `incidentdesk answers natural-language questions about ServiceNow
incidents. A reasoning model decides which ServiceNow tools to call, the
results are folded back into the conversation, and the final answer is
returned as JSON or streamed as server-sent events.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(root.PersistentFlags())

	root.AddCommand(
		buildServeCmd(&opts),
		buildAskCmd(&opts),
		buildToolsCmd(&opts),
		buildConfigCmd(&opts),
	)
	return root
}
