// Package bootstrap turns a loaded config into the runtime pieces shared by
// the flatfile binaries.
package bootstrap

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jkramsay/flat-file-manager/internal/config"
	"github.com/jkramsay/flat-file-manager/internal/ddl"
	"github.com/jkramsay/flat-file-manager/internal/flatfile"
	"github.com/jkramsay/flat-file-manager/internal/logging"
	"github.com/jkramsay/flat-file-manager/internal/metrics"
	"github.com/jkramsay/flat-file-manager/internal/metrics/datadog"
	"github.com/jkramsay/flat-file-manager/internal/metrics/prompush"
	"github.com/jkramsay/flat-file-manager/internal/profile"
	"github.com/jkramsay/flat-file-manager/internal/store"
	_ "github.com/jkramsay/flat-file-manager/internal/store/all"
	"github.com/jkramsay/flat-file-manager/internal/tabular"
)

// Logger builds the process logger and reports config warnings through it.
func Logger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	for _, iss := range config.Lint(cfg) {
		if iss.Severity == config.SeverityWarning {
			log.Warn("config warning", zap.String("path", iss.Path), zap.String("message", iss.Message))
		}
	}
	return log, nil
}

// Metrics installs the configured metrics backend. "none" keeps the no-op
// default.
func Metrics(c config.MetricsConfig, log *zap.Logger) error {
	var b metrics.Backend
	switch c.Backend {
	case "", "none":
		return nil
	case "prometheus":
		pb, err := prompush.NewBackend(c.Job, c.PushgatewayURL)
		if err != nil {
			return err
		}
		b = pb
	case "datadog":
		ns := c.Namespace
		if ns != "" && !strings.HasSuffix(ns, ".") {
			ns += "."
		}
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       c.DatadogAddr,
			Namespace:  ns,
			GlobalTags: []string{"job:" + c.Job},
		})
		if err != nil {
			return err
		}
		b = db
	default:
		return errors.Errorf("unknown metrics backend %q", c.Backend)
	}
	metrics.SetBackend(b)
	log.Info("metrics backend installed", zap.String("backend", c.Backend))
	return nil
}

// Service builds the profiling service from cfg.
func Service(cfg *config.Config, log *zap.Logger) *flatfile.Service {
	return flatfile.New(flatfile.Options{
		Loader: tabular.LoaderOptions{Delimiter: cfg.Loader.DelimiterRune()},
		Profile: profile.Options{
			Seed:           cfg.Profile.SampleSeed,
			SampleSize:     cfg.Profile.SampleSize,
			DateSampleSize: cfg.Profile.DateSampleSize,
		},
		Schema:     cfg.Warehouse.Schema,
		CopyPrefix: cfg.Warehouse.CopyPrefix,
		IAMRole:    cfg.Warehouse.IAMRole,
		Region:     cfg.Warehouse.Region,
		Layout:     Layout(cfg.Warehouse),
		Job:        cfg.Metrics.Job,
		Logger:     log,
	})
}

// Layout converts the warehouse table settings. An unknown merge strategy,
// which Validate rejects, is treated as none.
func Layout(w config.WarehouseConfig) flatfile.Layout {
	ms, _ := ddl.ParseMergeStrategy(w.MergeStrategy)
	return flatfile.Layout{
		DistKey:            w.DistKey,
		SortKeys:           w.SortKeys,
		MergeStrategy:      ms,
		UniqueColumns:      w.UniqueColumns,
		LastModifiedColumn: w.LastModifiedColumn,
	}
}

// Store opens the configured descriptor store.
func Store(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	return store.New(ctx, store.Config{Kind: c.Kind, Path: c.Path, Bucket: c.Bucket})
}
