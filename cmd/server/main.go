package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Simplici0/costcalc/internal/config"
	"github.com/Simplici0/costcalc/internal/estimate"
	"github.com/Simplici0/costcalc/internal/geometry"
	"github.com/Simplici0/costcalc/internal/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Development: cfg.IsDev(),
	})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, closeSource, err := newDatasetSource(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeSource(); cerr != nil {
			lg.Warn("failed to close dataset source", zap.Error(cerr))
		}
	}()

	tokens, generated, err := newTokenSigner(cfg.TokenSecret)
	if err != nil {
		return err
	}
	if generated {
		lg.Warn("TOKEN_SECRET is not set; recalculation links will not survive a restart")
	}

	loader := geometry.NewLoader(newGeometryReader(cfg), cfg.UploadDir, cfg.GeometryParseTimeout, lg)
	srv, err := newServer(estimate.NewService(loader, source, lg), tokens, cfg.UploadMaxBytes, lg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		lg.Info("listening",
			zap.String("addr", httpServer.Addr),
			zap.String("dataset", cfg.DatasetDriver),
			zap.String("geometry_reader", cfg.GeometryReader),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		lg.Info("shutting down", zap.String("signal", sig.String()))
	}

	sdCtx, sdCancel := context.WithTimeout(ctx, shutdownTimeout)
	defer sdCancel()

	if err := httpServer.Shutdown(sdCtx); err != nil {
		return err
	}
	lg.Info("server stopped")
	return nil
}
