package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/antozhu/manhunt/internal/config"
	"github.com/antozhu/manhunt/internal/events"
	"github.com/antozhu/manhunt/internal/game/anticheat"
	"github.com/antozhu/manhunt/internal/game/assign"
	"github.com/antozhu/manhunt/internal/game/coordinator"
	"github.com/antozhu/manhunt/internal/game/kill"
	"github.com/antozhu/manhunt/internal/game/proximity"
	"github.com/antozhu/manhunt/internal/game/safezone"
	"github.com/antozhu/manhunt/internal/game/shrink"
	"github.com/antozhu/manhunt/internal/httpapi"
	"github.com/antozhu/manhunt/internal/scheduler"
	"github.com/antozhu/manhunt/internal/store"
	"github.com/antozhu/manhunt/internal/store/memstore"
)

const ConfigPath = "config/server.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil && err != context.Canceled {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	dev := flag.Bool("dev", false, "run on the in-memory store, no postgres needed")
	flag.Parse()

	// .env is optional; real deployments configure via YAML and env.
	_ = godotenv.Load()

	cfgPath := ConfigPath
	if p := os.Getenv("MANHUNT_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(log)
	slog.Info("manhunt server starting", "bind", cfg.Addr(), "dev", *dev || cfg.DevMode)

	var st store.Store
	if *dev || cfg.DevMode {
		st = memstore.New()
		slog.Info("using in-memory store")
	} else {
		pg, err := store.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pg.Close()
		if err := store.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database connected, migrations applied")
		st = pg
	}

	hub := events.NewHub()
	cheat := anticheat.NewValidator()
	zones := safezone.NewService(st)
	prox := proximity.NewService(st, zones, hub)
	eng := assign.NewEngine(st)
	coord := coordinator.New(st, eng, cheat, prox, hub, log)
	pipe := kill.NewPipeline(st, zones, eng, cheat, hub)
	zone := shrink.NewEngine(st)
	damage := shrink.NewDamager(st, eng)

	sched := scheduler.New(st, zone, damage, prox, hub, nil, cfg.TickInterval(), log)

	api := httpapi.NewServer(st, coord, pipe, zones, prox, zone, hub, log, httpapi.Options{
		RequestTimeout: cfg.RequestTimeout(),
		CORSOrigins:    cfg.CORSOrigins,
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http listening", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
