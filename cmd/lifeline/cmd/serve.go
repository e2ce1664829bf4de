package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/lifeline/internal/api"
	"github.com/hugo-lorenzo-mato/lifeline/internal/config"
	"github.com/hugo-lorenzo-mato/lifeline/internal/core"
	"github.com/hugo-lorenzo-mato/lifeline/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/lifeline/internal/iomux"
	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
	"github.com/hugo-lorenzo-mato/lifeline/internal/supervise"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervision host with the status API",
	Long: `Run the lifeline supervision host.

The host serves the status API as a supervised unit: crashes consume the
configured retry budget and an exhausted budget ends the process with a
diagnostic report. SIGINT and SIGTERM run the two-phase termination
protocol against every live unit before exiting cleanly.

Examples:
  # Run with defaults (127.0.0.1:8640)
  lifeline serve

  # Run on a custom address with one automatic restart
  lifeline serve --addr 0.0.0.0:9000 --retry-budget 1`,
	RunE: runServe,
}

var (
	serveAddr   string
	serveBudget int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Status API listen address (default: server.addr)")
	serveCmd.Flags().IntVar(&serveBudget, "retry-budget", -1,
		"Retry budget for the API unit (default: supervise.default_retry_budget)")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveBudget >= 0 {
		cfg.Supervise.DefaultRetryBudget = serveBudget
	}

	// All log lines go through the error-stream multiplexer so they keep
	// their order relative to the fatal-path console message and reach
	// every registered sink.
	mux := iomux.Stderr()
	logger := newLoggerTo(cfg, mux)

	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		mux.AddSink(f)
		logger.Info("log sink attached", "file", cfg.Log.File)
	}

	ix, err := openIndex(cfg)
	if err != nil {
		return fmt.Errorf("opening artifact index: %w", err)
	}
	if ix != nil {
		defer ix.Close()
	}

	// Configured artifact locations must exist before the first capture;
	// a writer on the fatal path does not get a second chance.
	if dir := artifactDir(cfg); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			logger.Warn("cannot create artifact directory", "dir", dir, "error", err)
		}
	}

	diag := diagnostics.NewWriter(diagnostics.WriterConfig{
		ResolveDir: func() (string, error) {
			if cfg.Diagnostics.Dir != "" {
				return cfg.Diagnostics.Dir, nil
			}
			return cfg.Paths.Logs, nil
		},
		IncludeEnv: cfg.Diagnostics.IncludeEnv,
		Logger:     logger,
		Console:    mux,
		Index:      ix,
	})

	runner := supervise.NewRunner(supervise.RunnerConfig{
		Logger: logger,
		Diag:   diag,
		Termination: supervise.Options{
			GracefulTimeout: cfg.Supervise.GracefulTimeout,
			PollInterval:    cfg.Supervise.PollInterval,
			HardTimeout:     cfg.Supervise.HardTimeout,
		},
	})

	server := api.NewServer(runner, diag,
		api.WithLogger(logger.WithComponent("api")),
		api.WithArtifactIndex(ix),
	)

	// From here on failures are process-fatal through the diagnostic
	// writer: report written, message on the console, exit status 1.
	// Interrupts come back as a clean shutdown and exit 0.
	diag.CatchFatal(func() error {
		return superviseAPI(cfg, logger, runner, server)
	})
	return nil
}

// superviseAPI runs the status API as a supervised unit and blocks until
// the unit stops or a termination signal arrives.
func superviseAPI(cfg *config.Config, logger *logging.Logger, runner *supervise.Runner, server *api.Server) error {
	unit := runner.Go("status-api", cfg.Supervise.DefaultRetryBudget, func(ctx context.Context) error {
		return server.ListenAndServe(ctx, cfg.Server.Addr)
	})

	if !quiet {
		fmt.Printf("Status API on %s (ctrl-c to stop)\n", cfg.Server.Addr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("signal received, shutting down", "signal", sig.String())
		if err := runner.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutting down units: %w", err)
		}
		logger.Info("all units stopped")
		return core.ErrInterrupted
	case <-unit.Done():
		logger.Info("status API stopped")
		return nil
	}
}
