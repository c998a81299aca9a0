package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flanksource/commons/logger"

	"github.com/thereceipt/label-engine/internal/api"
	"github.com/thereceipt/label-engine/internal/config"
	"github.com/thereceipt/label-engine/internal/export"
	"github.com/thereceipt/label-engine/internal/fonts"
	"github.com/thereceipt/label-engine/internal/jobs"
	"github.com/thereceipt/label-engine/internal/printer"
	"github.com/thereceipt/label-engine/internal/renderer"
	"github.com/thereceipt/label-engine/internal/store"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", getenv("LABEL_CONFIG", "label-engine.yaml"), "path to the YAML config file")
	port := flag.String("port", "", "listen port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(configPath, port string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return err
	}
	printers, err := printer.NewManager(cfg.Printers)
	if err != nil {
		return err
	}

	var reg *fonts.Registry
	if cfg.FontsDir != "" {
		reg = fonts.NewRegistry(cfg.FontsDir)
	}
	r := renderer.New(reg, renderer.WithAssetsDir(cfg.AssetsDir))
	exporter := export.New(r, cfg.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := jobs.New(1)
	queue.Start(ctx)
	defer queue.Stop()

	server := api.NewServer(st, r, exporter, queue, printers, api.Options{
		PreviewDPI:     cfg.PreviewDPI,
		PrintDPI:       cfg.PrintDPI,
		MaxDPI:         cfg.MaxDPI,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%s", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("label engine %s listening on %s (data: %s, %d printers)", Version, httpServer.Addr, dataDirLabel(cfg.DataDir), len(cfg.Printers))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func dataDirLabel(dir string) string {
	if dir == "" {
		return "in memory"
	}
	return dir
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
