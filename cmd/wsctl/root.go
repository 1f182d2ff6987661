package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/wsctl/internal/config"
	"github.com/rickgao/wsctl/internal/connection"
	"github.com/rickgao/wsctl/internal/console"
	"github.com/rickgao/wsctl/internal/inspect"
	"github.com/rickgao/wsctl/internal/logging"
	"github.com/rickgao/wsctl/internal/metrics"
	"github.com/rickgao/wsctl/internal/transport"
	"github.com/rickgao/wsctl/internal/version"
)

type options struct {
	configPath string
	logLevel   string
	noPrompt   bool
	noInspect  bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "wsctl",
		Short:         "Interactive multi-connection WebSocket client",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "wsctl: %v\n", err)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to config file (defaults apply when empty)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.noPrompt, "no-prompt", false, "do not print the command prompt")
	cmd.Flags().BoolVar(&opts.noInspect, "no-inspect", false, "disable the HTTP inspection server")

	cmd.AddCommand(newVersionCmd(), newConnectionsCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "wsctl "+version.String())
		},
	}
}

func run(parent context.Context, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.LoadAndValidate(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// Logs go to stderr so console output stays readable.
	logger := logging.New(cfg.Logging, stderr).With("instance_id", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting wsctl",
		"version", version.Version,
		"commit", version.Commit,
		"config", opts.configPath,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, cfg.Instance.ID)

	endpoint := transport.NewEndpoint(cfg.Transport.Endpoint(), logger.With("component", "transport"))
	ctrl, err := connection.NewController(endpoint,
		connection.WithLogger(logger),
		connection.WithMetrics(m),
		connection.WithCloseCode(cfg.Shutdown.CloseCode),
	)
	if err != nil {
		return fmt.Errorf("start controller: %w", err)
	}

	sigCtx, stopSignals := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	// Quitting the console ends the run just like a signal does.
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Inspect.IsEnabled() && !opts.noInspect {
		server := inspect.NewServer(inspect.Config{
			Addr:        cfg.Inspect.Addr,
			MetricsPath: cfg.Inspect.MetricsPath,
			InstanceID:  cfg.Instance.ID,
		}, ctrl,
			inspect.WithStats(endpoint),
			inspect.WithGatherer(reg),
			inspect.WithLogger(logger),
		)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return console.New(ctrl, stdin, stdout, !opts.noPrompt, logger).Run(gctx)
	})

	runErr := g.Wait()
	if sigCtx.Err() != nil {
		logger.Info("received shutdown signal")
	}

	logger.Info("shutting down...", "timeout", cfg.Shutdown.Timeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer shutdownCancel()
	shutdownErr := ctrl.Shutdown(shutdownCtx)

	logger.Info("wsctl stopped")
	return errors.Join(runErr, shutdownErr)
}
