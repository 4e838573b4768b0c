package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invledger/pkg/catalog"
	"invledger/pkg/config"
	"invledger/pkg/diag"
	"invledger/pkg/ocr"
	"invledger/pkg/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; everything can come from the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "err", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	config.SetupLogging(os.Stdout, cfg.LogLevel)
	if cfg.InsecureSecret() {
		slog.Warn("JWT_SECRET not set, using development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// `invledger-server migrate` runs AutoMigrate and seeding, then exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		cfg.AutoMigrate = true
		if _, err := initStore(ctx, cfg); err != nil {
			slog.Error("migration failed", "err", err)
			os.Exit(1)
		}
		fmt.Println("migration and seeding completed")
		return
	}

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	st, err := initStore(ctx, cfg)
	if err != nil {
		return err
	}

	catalogs := catalog.NewFileProvider(cfg.CatalogPath)
	if cfg.CatalogWatch {
		go func() {
			if err := catalogs.Watch(ctx); err != nil {
				slog.Warn("catalog watch stopped", "path", cfg.CatalogPath, "err", err)
			}
		}()
	}

	var opts []reconcile.Option
	if cfg.DiagDir != "" {
		sink, err := diag.NewDir(cfg.DiagDir)
		if err != nil {
			return err
		}
		opts = append(opts, reconcile.WithSink(sink))
		slog.Info("diagnostics enabled", "dir", cfg.DiagDir)
	}
	engine, err := ocr.NewEngine(cfg.Engine, catalogs, cfg.QuantityIsolation, cfg.ItemIsolation, opts...)
	if err != nil {
		return err
	}

	srv := &server{
		engine:    engine,
		catalogs:  catalogs,
		jwtSecret: cfg.JWTSecret,
		maxUpload: cfg.MaxUploadBytes,
	}
	if st != nil {
		srv.store = st
	}

	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	srv.setupRoutes(r)

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "port", cfg.Port, "catalog", cfg.CatalogPath, "items", catalogs.Catalog().Len(), "tesseract", ocr.Version())
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
