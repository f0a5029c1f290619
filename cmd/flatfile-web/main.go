// Command flatfile-web serves the flat-file upload form and JSON API.
//
// Usage:
//
//	flatfile-web [-config cfg.yaml] [-addr :8080]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jkramsay/flat-file-manager/internal/bootstrap"
	"github.com/jkramsay/flat-file-manager/internal/config"
	"github.com/jkramsay/flat-file-manager/internal/datasource/file"
	"github.com/jkramsay/flat-file-manager/internal/metrics"
	"github.com/jkramsay/flat-file-manager/internal/webui"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (environment only when empty)")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *addr); err != nil {
		fmt.Fprintln(os.Stderr, "flatfile-web:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
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

	st, err := bootstrap.Store(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := webui.NewServer(
		webui.Config{Addr: cfg.Server.Addr},
		bootstrap.Service(cfg, log),
		st,
		file.NewUploads(cfg.Upload.Dir, cfg.Upload.MaxBytes),
		log,
	)
	log.Info("listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("store", cfg.Store.Kind),
		zap.String("upload_dir", cfg.Upload.Dir))
	return srv.ListenAndServe(ctx)
}
