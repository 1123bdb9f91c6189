package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/macropower/rulelimits/pkg/host"
	"github.com/macropower/rulelimits/pkg/kv"
	"github.com/macropower/rulelimits/pkg/log"
	"github.com/macropower/rulelimits/pkg/mcp"
	"github.com/macropower/rulelimits/pkg/reconcile"
)

const (
	serveExamples = `  # Expose metrics and check once at startup:
  rulelimits serve

  # Re-check whenever the rule engine state changes:
  rulelimits serve --watch

  # Serve MCP over stdio for an agent:
  rulelimits serve --mcp-address stdio

  # Serve MCP over HTTP next to metrics:
  rulelimits serve --mcp-address :9091`

	mcpStdio = "stdio"
)

type ServeArgs struct {
	*RootArgs

	MetricsAddress string
	MCPAddress     string
	Watch          bool
	MinInterval    time.Duration
	LogBuffer      int
}

func NewServeArgs(rootArgs *RootArgs) *ServeArgs {
	return &ServeArgs{RootArgs: rootArgs}
}

func (sa *ServeArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sa.MetricsAddress, "metrics-address", ":9090", "Address to serve Prometheus metrics on, empty to disable")
	cmd.Flags().StringVar(&sa.MCPAddress, "mcp-address", "", `Address to serve MCP on, "stdio" for stdio, empty to disable`)
	cmd.Flags().BoolVarP(&sa.Watch, "watch", "w", false, "Watch the rule engine state and check on every change")
	cmd.Flags().DurationVar(&sa.MinInterval, "min-interval", time.Second, "Minimum time between checks triggered by --watch")
	cmd.Flags().IntVar(&sa.LogBuffer, "log-buffer", log.DefaultRingCapacity, "Number of log records kept for MCP diagnostics")
}

func NewServeCmd(rootArgs *RootArgs) *cobra.Command {
	sa := NewServeArgs(rootArgs)

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run checks in the background and serve metrics and MCP",
		Example: serveExamples,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, sa)
		},
	}
	sa.AddFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, sa *ServeArgs) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ring := log.NewRing(sa.LogBuffer)

	logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), sa.LogLevel, sa.LogFormat)
	if err != nil {
		return fmt.Errorf("create log handler: %w", err)
	}

	lvl, err := log.GetLevel(sa.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}

	// The ring always holds JSON so diagnostics are machine readable.
	slog.SetDefault(slog.New(log.Fanout(logHandler, log.CreateHandler(ring, lvl, log.FormatJSON))))

	cfg, err := loadConfig(sa.ConfigPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	a.checkLogged(ctx)

	errs := make(chan error, 4)
	running := 0

	start := func(name string, fn func(context.Context) error) {
		running++

		go func() {
			err := fn(ctx)
			if err != nil {
				err = fmt.Errorf("%s: %w", name, err)
			}

			errs <- err
		}()
	}

	if sa.MetricsAddress != "" {
		start("metrics", func(ctx context.Context) error {
			return serveMetrics(ctx, sa.MetricsAddress, reg)
		})
	}

	if sa.MCPAddress != "" {
		addr := sa.MCPAddress
		if addr == mcpStdio {
			addr = ""
		}

		server := mcp.NewServer(addr, a.service,
			mcp.WithUpdate(a.apply),
			mcp.WithRules(cfg.Alerts.All()),
			mcp.WithRing(ring),
		)

		start("mcp", server.Serve)
	}

	if sa.Watch {
		start("watch", func(ctx context.Context) error {
			return a.watch(ctx, sa.MinInterval)
		})
	}

	if running == 0 {
		slog.InfoContext(ctx, "nothing to serve, exiting")
		return nil
	}

	// The first failure stops everything else.
	var firstErr error
	for range running {
		err := <-errs
		if err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	return firstErr
}

func serveMetrics(ctx context.Context, address string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	server := &http.Server{
		Addr:    address,
		Handler: mux,

		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			slog.Error("shutdown metrics server", slog.Any("err", err))
		}
	}()

	slog.InfoContext(ctx, "serving metrics", slog.String("address", address))

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}

	return nil
}

// checkLogged runs a full pass and logs the outcome. A host state without a
// configuration result is not an error: the engine has not applied yet.
func (a *app) checkLogged(ctx context.Context) {
	report, err := a.check(ctx)
	if errors.Is(err, host.ErrNoResult) {
		slog.InfoContext(ctx, "no configuration result recorded yet", slog.String("path", a.host.Path()))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "check failed", slog.Any("err", err))
		return
	}

	if report.Broken {
		slog.WarnContext(ctx, "filters diverged",
			log.IDs("expected", report.Expected),
			log.IDs("actual", report.Actual),
			log.IDs("disabled", report.FiltersToDisable),
		)
	}

	// Refresh quota metrics.
	_, err = a.service.Limits(ctx)
	if err != nil && !errors.Is(err, reconcile.ErrNoConfiguration) {
		slog.WarnContext(ctx, "compute limits", slog.Any("err", err))
	}
}

// watch checks whenever the host state changes, at most once per interval.
// Divergence records written by other processes are logged as well.
func (a *app) watch(ctx context.Context, interval time.Duration) error {
	changed := make(chan struct{}, 1)
	notify := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}

	errs := make(chan error, 2)

	go func() {
		errs <- a.host.Watch(ctx, notify)
	}()

	if fs, ok := a.store.(*kv.File); ok {
		go func() {
			errs <- fs.Watch(ctx, func(key string) {
				if key == a.records.Key() {
					slog.InfoContext(ctx, "divergence record changed", slog.String("key", key))
				}
			})
		}()
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)

	slog.InfoContext(ctx, "watching host state", slog.String("path", a.host.Path()))

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errs:
			if err != nil {
				return err
			}

		case <-changed:
			err := limiter.Wait(ctx)
			if err != nil {
				// Only fails once ctx is done.
				return nil //nolint:nilerr // Shutting down.
			}

			slog.DebugContext(ctx, "host state changed")
			a.checkLogged(ctx)
		}
	}
}
