package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/roach88/landledger/internal/config"
	"github.com/roach88/landledger/internal/engine"
	"github.com/roach88/landledger/internal/httpapi"
	"github.com/roach88/landledger/internal/metrics"
	"github.com/roach88/landledger/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	EnvFiles        []string
	Database        string // overrides LANDLEDGER_DB_PATH
	Addr            string // overrides LANDLEDGER_HTTP_ADDR
	ShutdownTimeout time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Long: `Open the ledger database and serve the HTTP API.

Configuration is read from LANDLEDGER_* environment variables. A .env file in
the working directory is loaded first when present; --env-file names other
files instead. LANDLEDGER_OWNER is required.

The engine settles against in-process reference assets, funded through the
/v1/assets routes. Prometheus metrics are served at /metrics.

Examples:
  LANDLEDGER_OWNER=admin landledger serve
  landledger serve --env-file ./prod.env --addr :9090
  landledger serve --db /var/lib/landledger/ledger.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "env files to load instead of .env")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides LANDLEDGER_DB_PATH)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides LANDLEDGER_HTTP_ADDR)")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.EnvFiles...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr(), cfg.LogLevel)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// Startup completes even if a signal is already pending.
	collector := metrics.NewCollector("")
	ledgers, err := openLedger(context.WithoutCancel(ctx), cfg, st, engine.WithLogger(logger), engine.WithObserver(collector))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	handler := httpapi.New(ledgers.engine, httpapi.Options{
		Token:     ledgers.token,
		Deed:      ledgers.deed,
		Metrics:   collector.Handler(),
		RateLimit: rate.Limit(cfg.RateLimit),
		RateBurst: cfg.RateBurst,
		Logger:    logger,
	})

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	logger.Info("serving", "addr", ln.Addr().String(), "owner", ledgers.engine.Owner())

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "http server failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown", err)
	}
	logger.Info("stopped")
	return nil
}
