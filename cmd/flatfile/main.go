// Command flatfile profiles delimited files and prints their inferred
// schema, warehouse DDL or rows.
//
// Usage:
//
//	flatfile [-config cfg.yaml] [-ddl|-records] [-store] [-apply] [-workers N] [-list files.txt] FILE|URL...
//
// http(s) URLs are fetched with retries. The default output is the descriptor JSON of each file. Files are profiled
// concurrently; output keeps the argument order.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jkramsay/flat-file-manager/internal/bootstrap"
	"github.com/jkramsay/flat-file-manager/internal/config"
	"github.com/jkramsay/flat-file-manager/internal/datasource/file"
	"github.com/jkramsay/flat-file-manager/internal/datasource/httpds"
	"github.com/jkramsay/flat-file-manager/internal/ddl"
	"github.com/jkramsay/flat-file-manager/internal/descriptor"
	"github.com/jkramsay/flat-file-manager/internal/flatfile"
	"github.com/jkramsay/flat-file-manager/internal/logging"
	"github.com/jkramsay/flat-file-manager/internal/metrics"
	"github.com/jkramsay/flat-file-manager/internal/tabular"
	"github.com/jkramsay/flat-file-manager/internal/warehouse"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "flatfile:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	ddl        bool
	records    bool
	store      bool
	apply      bool
	workers    int
	list       string
	files      []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("flatfile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "YAML config file (environment only when empty)")
	fs.BoolVar(&o.ddl, "ddl", false, "print DROP/CREATE/COPY statements instead of the descriptor")
	fs.BoolVar(&o.records, "records", false, "print the rows as JSON instead of the descriptor")
	fs.BoolVar(&o.store, "store", false, "persist descriptors to the configured store")
	fs.BoolVar(&o.apply, "apply", false, "apply DROP/CREATE to the warehouse (also enabled by warehouse.apply_ddl)")
	fs.IntVar(&o.workers, "workers", runtime.NumCPU(), "files profiled concurrently")
	fs.StringVar(&o.list, "list", "", "file with one input path per line")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.ddl && o.records {
		return o, errors.New("-ddl and -records are mutually exclusive")
	}
	o.files = fs.Args()
	if o.list != "" {
		listed, err := file.ReadList(o.list)
		if err != nil {
			return o, err
		}
		o.files = append(o.files, listed...)
	}
	if len(o.files) == 0 {
		return o, errors.New("no input files")
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	log, err := bootstrap.Logger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck
	if err := bootstrap.Metrics(cfg.Metrics, log); err != nil {
		return err
	}
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", zap.Error(err))
		}
	}()

	svc := bootstrap.Service(cfg, log)

	client := httpds.NewClient(httpds.Config{MaxRetries: 2})
	results := make([]*descriptor.FileDescriptor, len(o.files))
	tables := make([]*tabular.Table, len(o.files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, path := range o.files {
		i, path := i, path
		g.Go(func() error {
			var (
				tbl *tabular.Table
				src = flatfile.Source{Path: path}
				err error
			)
			if httpds.IsURL(path) {
				src.OriginalName = httpds.NameFromURL(path)
				tbl, err = svc.LoadSource(gctx, client.Source(path), path)
			} else {
				tbl, err = svc.Load(gctx, path)
			}
			if err != nil {
				return errors.Wrapf(err, "load %s", path)
			}
			d, err := svc.Profile(gctx, tbl, src)
			if err != nil {
				return errors.Wrapf(err, "profile %s", path)
			}
			results[i], tables[i] = d, tbl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if o.store {
		st, err := bootstrap.Store(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()
		for _, d := range results {
			if err := svc.Persist(ctx, st, d); err != nil {
				return err
			}
		}
	}

	if o.apply || cfg.Warehouse.ApplyDDL {
		if err := apply(ctx, cfg, svc, results, log); err != nil {
			return err
		}
	}

	return write(stdout, o, svc, results, tables)
}

func apply(ctx context.Context, cfg *config.Config, svc *flatfile.Service, results []*descriptor.FileDescriptor, log *zap.Logger) error {
	if cfg.Warehouse.DSN == "" {
		return errors.New("-apply requires warehouse.dsn")
	}
	wh, err := warehouse.Open(ctx, cfg.Warehouse.DSN, log)
	if err != nil {
		return err
	}
	defer wh.Close()
	return applyAll(ctx, wh, svc, results, cfg.Metrics.Job, log)
}

type warehouseClient interface {
	Apply(ctx context.Context, tbl *ddl.Table) error
	LastModified(ctx context.Context, tbl *ddl.Table) (time.Time, bool, error)
}

// applyAll recreates each table. When a last-modified column is configured
// the existing high-water mark is logged first, since the drop discards it.
func applyAll(ctx context.Context, wh warehouseClient, svc *flatfile.Service, results []*descriptor.FileDescriptor, job string, log *zap.Logger) error {
	for _, d := range results {
		tbl, err := svc.Table(d)
		if err != nil {
			return err
		}
		if tbl.ColumnCount() == 0 {
			log.Warn("nothing to apply", zap.String("file", d.FileName))
			continue
		}
		if col := tbl.LastModifiedColumn(); col != "" {
			ts, ok, err := wh.LastModified(ctx, tbl)
			switch {
			case err != nil:
				log.Warn("last modified unavailable",
					zap.String("table", tbl.QualifiedName()),
					zap.String("error", logging.SanitizeError(err)))
			case ok:
				log.Info("replacing table",
					zap.String("table", tbl.QualifiedName()),
					zap.String("column", col),
					zap.Time("last_modified", ts))
			}
		}
		start := time.Now()
		err = wh.Apply(ctx, tbl)
		metrics.RecordStep(job, "apply", err, time.Since(start))
		if err != nil {
			return err
		}
	}
	return nil
}

func write(w io.Writer, o options, svc *flatfile.Service, results []*descriptor.FileDescriptor, tables []*tabular.Table) error {
	for i, d := range results {
		switch {
		case o.ddl:
			st, err := svc.Statements(d)
			if err != nil {
				return errors.Wrapf(err, "render ddl for %s", o.files[i])
			}
			if len(results) > 1 {
				fmt.Fprintf(w, "-- %s\n", o.files[i])
			}
			fmt.Fprint(w, st.String())
		case o.records:
			if err := writeJSON(w, flatfile.Records(tables[i])); err != nil {
				return err
			}
		default:
			if err := writeJSON(w, d); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode json")
}
