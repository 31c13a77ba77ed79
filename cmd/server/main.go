package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyaneshwarpardhi/funnelquery/internal/api"
	"github.com/gyaneshwarpardhi/funnelquery/internal/config"
	"github.com/gyaneshwarpardhi/funnelquery/internal/engine"
	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
	"github.com/gyaneshwarpardhi/funnelquery/internal/store"
	"github.com/gyaneshwarpardhi/funnelquery/internal/store/postgres"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/funnel.yaml", "Path to funnel YAML config")
	dbURL := flag.String("db-url", "", "Postgres URL for pass persistence (optional)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Build initial funnel graph ────────────────────────────────────────────
	g, err := funnel.Build(cfg)
	if err != nil {
		slog.Error("failed to build funnel graph", "err", err)
		os.Exit(1)
	}
	slog.Info("funnel graph built", "funnel", g.ID(), "nodes", g.NodeCount(), "edges", g.EdgeCount())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Store (optional) ──────────────────────────────────────────────────────
	var st store.Store
	if *dbURL != "" {
		pool, err := pgxpool.New(ctx, *dbURL)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg := postgres.New(pool)
		if err := pg.CreateSchema(ctx); err != nil {
			slog.Error("failed to create schema", "err", err)
			os.Exit(1)
		}
		if err := pg.SaveFunnel(ctx, g); err != nil {
			slog.Error("failed to persist funnel", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("postgres store ready")
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	eng := engine.New(ctx, cfg, g)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		newGraph, err := funnel.Build(newCfg)
		if err != nil {
			slog.Warn("hot-reload skipped: funnel build failed", "err", err)
			return
		}
		eng.Swap(newCfg, newGraph)
		slog.Info("funnel hot-reloaded", "funnel", newGraph.ID(), "nodes", newGraph.NodeCount(), "edges", newGraph.EdgeCount())
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(eng, loader, st)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel() // stop compile workers
	eng.Shutdown()
	slog.Info("goodbye")
}
