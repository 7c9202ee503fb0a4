package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"inventorycore/internal/attachments"
	"inventorycore/internal/blob"
	"inventorycore/internal/core"
	"inventorycore/internal/logging"
	"inventorycore/internal/settings"
	"inventorycore/internal/syncfeed"
)

// rootOptions holds the persistent flags. Empty values keep the settings.
type rootOptions struct {
	configFile string
	storage    string
	sqlitePath string
	logLevel   string
	metrics    bool
}

type app struct {
	settings settings.Settings
	logger   *zap.Logger
	store    core.PersistentStore
	feed     *syncfeed.RedisFeed
	registry *prometheus.Registry
	svc      *core.Service
}

func openApp(ctx context.Context, opts rootOptions) (*app, error) {
	cfg, err := settings.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.storage != "" {
		cfg.Storage.Driver = opts.storage
	}
	if opts.sqlitePath != "" {
		cfg.Storage.SQLitePath = opts.sqlitePath
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a := &app{settings: *cfg, logger: logger, registry: prometheus.NewRegistry()}

	a.store, err = core.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	metrics, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		_ = a.store.Close()
		return nil, err
	}
	serviceOpts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(core.NewZapTracer(logging.Module(logger, "trace"))),
	}
	if cfg.Feed.RedisAddr != "" {
		a.feed, err = syncfeed.Open(ctx, cfg.Feed)
		if err != nil {
			_ = a.store.Close()
			return nil, err
		}
		serviceOpts = append(serviceOpts, core.WithChangeFeed(a.feed))
	}
	a.svc = core.NewService(a.store, serviceOpts...)
	return a, nil
}

// attachments opens the blob store on demand so that record commands do
// not touch it.
func (a *app) attachments(ctx context.Context) (*attachments.Service, error) {
	blobs, err := blob.Open(ctx, a.settings.Blob)
	if err != nil {
		return nil, err
	}
	return attachments.New(a.store, blobs, a.logger), nil
}

func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	if a.feed != nil {
		errs = append(errs, a.feed.Close())
	}
	errs = append(errs, a.store.Close())
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
