// Command counterd runs the front counter: the checkout and replenishment
// scan flows behind the HTTP API used by the scanning page.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ahinestrog/frontcounter/internal/bill"
	"github.com/ahinestrog/frontcounter/internal/catalog"
	"github.com/ahinestrog/frontcounter/internal/checkout"
	"github.com/ahinestrog/frontcounter/internal/config"
	"github.com/ahinestrog/frontcounter/internal/httpapi"
	"github.com/ahinestrog/frontcounter/internal/logging"
	"github.com/ahinestrog/frontcounter/internal/receipt"
	"github.com/ahinestrog/frontcounter/internal/replenish"
	"github.com/ahinestrog/frontcounter/internal/rpc"
	"github.com/ahinestrog/frontcounter/internal/scan"
	"github.com/ahinestrog/frontcounter/internal/telemetry"
)

var version = "dev"

const feedBuffer = 16

func main() {
	cfg := config.Load()
	logger := logging.Setup("counterd", cfg.LogLevel, cfg.LogPretty)
	must(cfg.ValidateCounter())
	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("store", cfg.StoreAddr).
		Dur("checkout_cooldown", cfg.CheckoutCooldown).
		Dur("replenish_cooldown", cfg.ReplenishCooldown).
		Msg("starting counter")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.Options{
		ServiceName: "counterd",
		Version:     version,
		Endpoint:    cfg.OtelEndpoint,
		AuthHeader:  cfg.OtelAuthHeader,
		Insecure:    cfg.OtelInsecure,
	})
	must(err)
	defer func() { _ = shutdownTracing(context.Background()) }()

	client, err := rpc.Dial(cfg.StoreAddr, cfg.RPCTimeout)
	must(err)
	defer client.Close()

	resolver := catalog.NewCachedResolver(client, newCache(ctx, cfg, logger), logger)

	co := checkout.New(resolver, client, receipt.NewTextRenderer("FRONT COUNTER"),
		checkout.Config{ScanLabel: cfg.ScanLabel, NoticeTTL: cfg.NoticeTTL, FailureTTL: cfg.FailureNoticeTTL},
		checkout.WithNumbers(bill.NewNumberGenerator(cfg.BillPrefix, nil)),
		checkout.WithInvalidator(resolver),
		checkout.WithLogger(logger),
	)
	rp := replenish.New(resolver, client,
		replenish.Config{ScanLabel: cfg.ScanLabel, NoticeTTL: cfg.NoticeTTL, FailureTTL: cfg.FailureNoticeTTL},
		replenish.WithInvalidator(resolver),
		replenish.WithLogger(logger),
	)

	coLane := newLane("checkout", cfg.CheckoutCooldown, co.HandleScan, logger)
	rpLane := newLane("replenish", cfg.ReplenishCooldown, rp.HandleScan, logger)
	coLane.Session.Start(ctx)
	rpLane.Session.Start(ctx)

	app := httpapi.NewApp(co, coLane, rp, rpLane, client, logger)
	app.Ping = client.Ping
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app, cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Warn().Msg("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		err := srv.Shutdown(sctx)
		// Closing the sessions waits for any scan still being resolved.
		_ = coLane.Session.Close()
		_ = rpLane.Session.Close()
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("counter stopped with error")
	}
	log.Info().Msg("counter stopped")
}

func newLane(name string, cooldown time.Duration, handle scan.Handler, logger zerolog.Logger) httpapi.Lane {
	feed := scan.NewFeed(feedBuffer)
	s := scan.NewSession(name, scan.NewFilter(cooldown), feed.Open, handle, scan.WithLogger(logger))
	return httpapi.Lane{Session: s, Feed: feed}
}

func newCache(ctx context.Context, cfg config.Config, logger zerolog.Logger) catalog.Cache {
	if cfg.RedisAddr == "" {
		return catalog.NewLRUCache(cfg.CacheSize, cfg.CacheTTL)
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, using in-process cache")
		_ = rdb.Close()
		return catalog.NewLRUCache(cfg.CacheSize, cfg.CacheTTL)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("catalog cache on redis")
	return catalog.NewRedisCache(rdb, cfg.CacheTTL)
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
