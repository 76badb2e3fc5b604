package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/incidentdesk/kernel"
	"github.com/tailored-agentic-units/incidentdesk/server"
)

type sweeper interface {
	Run(ctx context.Context)
}

func buildServeCmd(opts *overrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP chat server",
		Example: `  incidentdesk serve --config incidentdesk.yaml
  incidentdesk serve --addr :9000 --static-dir ./frontend/dist`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd.ErrOrStderr())
		},
	}
	opts.bindServe(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, cfg Config, logOut io.Writer) error {
	logger, err := newLogger(logOut, cfg.LogLevel)
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	if s, ok := rt.kernel.Sessions().(sweeper); ok {
		go s.Run(ctx)
	}

	srv, err := server.New(&cfg.Server, rt.kernel,
		server.WithObserver(rt.observer),
		server.WithMetrics(rt.metrics, rt.registry),
	)
	if err != nil {
		return err
	}

	logger.Info("starting incidentdesk",
		"version", version,
		"addr", srv.Config().Addr,
		"agent", rt.kernel.Agent().ID(),
		"servicenow", cfg.ServiceNow.Instance,
	)
	return srv.ListenAndServe(ctx)
}

func buildAskCmd(opts *overrides) *cobra.Command {
	var (
		sessionID string
		showTools bool
	)

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Run one exchange and print the reply",
		Example: `  incidentdesk ask "What is the status of INC0010001?"
  incidentdesk ask --session ops-7 --show-tools "Assign it to Network"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			out := rt.kernel.Exchange(cmd.Context(), sessionID, strings.Join(args, " "))
			printOutcome(cmd.OutOrStdout(), out, showTools)
			if out.Status != kernel.StatusDone {
				return fmt.Errorf("exchange %s", out.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", server.DefaultSessionID, "Session id to continue")
	cmd.Flags().BoolVar(&showTools, "show-tools", false, "Print the tool calls made during the exchange")
	return cmd
}

func printOutcome(w io.Writer, out kernel.Outcome, showTools bool) {
	fmt.Fprintln(w, out.Reply)
	if !showTools || len(out.ToolCalls) == 0 {
		return
	}

	fmt.Fprintln(w, "\nTool calls:")
	for i, tc := range out.ToolCalls {
		fmt.Fprintf(w, "  [%d] %s(%s)\n", i+1, tc.Name, tc.Arguments)
		result := tc.Result
		if len(result) > 200 {
			result = result[:200] + "..."
		}
		if tc.IsError {
			fmt.Fprintf(w, "      error: %s\n", result)
		} else {
			fmt.Fprintf(w, "      -> %s\n", result)
		}
	}
	fmt.Fprintf(w, "\nIterations: %d  Elapsed: %s\n", out.Iterations, out.Elapsed.Round(time.Millisecond))
}

func buildToolsCmd(opts *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cfg.Observer = "noop"
			cfg.Agent.Provider = "mock"
			cfg.ActiveAgent = ""

			logger, err := newLogger(io.Discard, cfg.LogLevel)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDESCRIPTION")
			for _, tool := range rt.kernel.Catalog() {
				desc, _, _ := strings.Cut(tool.Description, "\n")
				fmt.Fprintf(tw, "%s\t%s\n", tool.Name, desc)
			}
			return tw.Flush()
		},
	}
}

func buildConfigCmd(opts *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			redact(&cfg)

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

const masked = "********"

func redact(cfg *Config) {
	mask := func(s *string) {
		if *s != "" {
			*s = masked
		}
	}
	mask(&cfg.ServiceNow.Password)
	mask(&cfg.Agent.APIKey)
	for name, a := range cfg.Agents {
		mask(&a.APIKey)
		cfg.Agents[name] = a
	}
}
