package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/macropower/rulelimits/api/v1beta1/configs"
	"github.com/macropower/rulelimits/pkg/config"
	"github.com/macropower/rulelimits/pkg/divergence"
	"github.com/macropower/rulelimits/pkg/drift"
	"github.com/macropower/rulelimits/pkg/filter"
	"github.com/macropower/rulelimits/pkg/host"
	"github.com/macropower/rulelimits/pkg/kv"
	"github.com/macropower/rulelimits/pkg/log"
	"github.com/macropower/rulelimits/pkg/metrics"
	"github.com/macropower/rulelimits/pkg/quota"
	"github.com/macropower/rulelimits/pkg/reconcile"
)

// loadConfig reads the configuration at path, or the default path when
// empty. A missing file yields the defaults.
func loadConfig(path string) (*configs.Config, error) {
	if path == "" {
		path = configs.GetPath()
	}

	cl, err := config.NewLoaderFromFile(path, configs.New, configs.DefaultValidator)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("no config file, using defaults", slog.String("path", path))

		return configs.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	err = cl.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	cfg, err := cl.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	return cfg, nil
}

// app wires the configured components into a [reconcile.Service].
type app struct {
	cfg      *configs.Config
	store    kv.Store
	closer   io.Closer
	registry *filter.Registry
	host     *host.File
	records  *divergence.Store
	service  *reconcile.Service
}

// newApp opens the configured storage and builds the service. Metrics are
// registered with reg when it is non-nil.
func newApp(ctx context.Context, cfg *configs.Config, reg prometheus.Registerer) (*app, error) {
	store, closer, err := cfg.Storage.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	registry := filter.NewRegistry(cfg.Filters.Catalog, filter.WithStore(store))

	err = registry.Load(ctx)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("load filter state: %w", err)
	}

	h := host.NewFile(cfg.Host.StatePath)
	records := divergence.NewStore(store, divergence.WithKey(cfg.Storage.Key))

	prefix := cfg.Filters.RulesetPrefix
	boundary := cfg.Filters.CustomFiltersStartID

	calc := quota.NewCalculator(registry, h,
		quota.WithPrefix(prefix),
		quota.WithCustomFiltersStartID(boundary),
		quota.WithLimits(*cfg.Limits),
	)
	detector := drift.NewDetector(registry, registry, h, records,
		drift.WithPrefix(prefix),
		drift.WithCustomFiltersStartID(boundary),
	)

	var opts []reconcile.ServiceOpt
	if reg != nil {
		opts = append(opts, reconcile.WithMetrics(metrics.New(reg)))
	}

	return &app{
		cfg:      cfg,
		store:    store,
		closer:   closer,
		registry: registry,
		host:     h,
		records:  records,
		service:  reconcile.NewService(calc, detector, records, opts...),
	}, nil
}

// Close releases the storage connection.
func (a *app) Close() error {
	err := a.closer.Close()
	if err != nil {
		return fmt.Errorf("close storage: %w", err)
	}

	return nil
}

func closeApp(a *app) {
	err := a.Close()
	if err != nil {
		slog.Error("close", slog.Any("err", err))
	}
}

// reload hands the configuration result recorded in the host state to the
// service.
func (a *app) reload(ctx context.Context) error {
	result, err := a.host.Result(ctx)
	if err != nil {
		return fmt.Errorf("reload configuration result: %w", err)
	}

	a.service.SetResult(result)

	return nil
}

// apply reloads the configuration result and runs a pass with mode. It is
// the [reconcile.UpdateFunc] of every pass, so a re-apply after divergence
// reloads without starting another pass.
func (a *app) apply(ctx context.Context, mode reconcile.CheckMode) error {
	err := a.reload(ctx)
	if err != nil {
		return err
	}

	_, err = a.service.CheckAndReconcile(ctx, mode, a.apply)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped by the service.
	}

	return nil
}

// check reloads and runs a full pass, returning its report.
func (a *app) check(ctx context.Context) (*drift.Report, error) {
	err := a.reload(ctx)
	if err != nil {
		return nil, err
	}

	report, err := a.service.CheckAndReconcile(ctx, reconcile.CheckModeFull, a.apply)
	if err != nil {
		return report, err //nolint:wrapcheck // Already wrapped by the service.
	}

	log.WithContext(ctx).DebugContext(ctx, "check complete",
		slog.Bool("broken", report.Broken),
		slog.Bool("healed", report.Healed),
	)

	return report, nil
}
