package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fleet-view/internal/api"
	"fleet-view/internal/config"
	"fleet-view/internal/link"
	"fleet-view/internal/mapview"
	"fleet-view/internal/observability"
	"fleet-view/internal/optimizer"
	"fleet-view/internal/orders"
	"fleet-view/internal/render"
	"fleet-view/internal/server"
	"fleet-view/internal/store"
	"fleet-view/internal/telemetry"
	"fleet-view/internal/viewport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel)
	logger.Info("Starting fleet-view...", "http", cfg.HTTPAddr, "render_port", cfg.RenderPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fleet-view stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// Redis antes que todo: es la fuente del resync
	rdb, err := store.Dial(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	snapshot := store.NewRedisSnapshot(rdb)

	var src orders.Source = orders.Static(nil)
	if cfg.DatabaseURL != "" {
		db, err := orders.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		src = orders.NewPostgresSource(db)
	}

	opt, closeOpt, err := newOptimizer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeOpt()

	bc := server.NewBroadcaster(logger)
	if _, err := bc.Listen(":" + cfg.RenderPort); err != nil {
		return err
	}

	refit, err := viewport.ParsePolicy(cfg.ViewportRefit)
	if err != nil {
		return err
	}
	view := mapview.New(render.NewStream(bc, logger), opt, mapview.Config{
		Refit:   refit,
		Padding: cfg.ViewportPadding,
	}, logger)
	defer view.Close()

	// el ingestor existe sólo tras Attach; los canales no arrancan antes
	var ingestor *telemetry.Ingestor
	resync := func(ctx context.Context) {
		recs, err := snapshot.Load(ctx)
		if err != nil {
			logger.Warn("resync snapshot unavailable", "error", err)
			return
		}
		ingestor.ResyncRecords(recs)
	}

	var (
		subs     []telemetry.Subscriber
		channels []api.Channel
		runners  []func(context.Context) error
	)
	if cfg.TelemetryAddr != "" {
		c := link.NewClient(cfg.TelemetryAddr, logger)
		c.OnConnect = resync
		subs, channels, runners = append(subs, c), append(channels, c), append(runners, c.Run)
	}
	if cfg.RedisPubSub {
		rc := link.NewRedisChannel(rdb, cfg.RedisPrefix,
			[]string{telemetry.EventVehicleUpdate, telemetry.EventVehicleResync}, logger)
		rc.OnConnect = resync
		subs, channels, runners = append(subs, rc), append(channels, rc), append(runners, rc.Run)
	}
	if len(subs) == 0 {
		logger.Warn("no telemetry channel configured")
	}

	ingestor = view.Attach(subs...)
	resync(ctx)

	if list, err := src.List(ctx); err != nil {
		logger.Warn("initial order load failed", "error", err)
	} else if err := view.SetOrders(list); err != nil {
		return err
	}

	e := api.NewRouter(&api.Handler{View: view, Orders: src, Channels: channels, Logger: logger})

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error { return r(gctx) })
	}
	g.Go(func() error { return bc.Serve(gctx) })
	g.Go(func() error {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.Shutdown(sctx)
	})
	return g.Wait()
}

func newOptimizer(cfg config.Config, logger *slog.Logger) (optimizer.Optimizer, func(), error) {
	switch {
	case cfg.GRPCServer != "":
		c, err := optimizer.NewGRPCClient(cfg.GRPCServer, logger)
		if err != nil {
			return nil, func() {}, err
		}
		return optimizer.WithTimeout(c, cfg.OptimizerTimeout), func() { _ = c.Close() }, nil
	case cfg.OptimizerURL != "":
		return optimizer.NewHTTPClient(cfg.OptimizerURL, cfg.OptimizerTimeout, logger), func() {}, nil
	}
	logger.Warn("no optimizer configured; POST /optimize will fail")
	return nil, func() {}, nil
}
