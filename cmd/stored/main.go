// Command stored serves the product catalog, orders and stock over gRPC.
package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ahinestrog/frontcounter/internal/config"
	"github.com/ahinestrog/frontcounter/internal/events"
	"github.com/ahinestrog/frontcounter/internal/logging"
	"github.com/ahinestrog/frontcounter/internal/rpc"
	"github.com/ahinestrog/frontcounter/internal/store"
	"github.com/ahinestrog/frontcounter/internal/telemetry"
)

var version = "dev"

const dbCheckInterval = 10 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.Setup("stored", cfg.LogLevel, cfg.LogPretty)
	must(cfg.ValidateStore())
	log.Info().
		Str("addr", cfg.StoreListen).
		Str("db", cfg.DBPath).
		Str("events", cfg.EventsDriver).
		Msg("starting store service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.Options{
		ServiceName: "stored",
		Version:     version,
		Endpoint:    cfg.OtelEndpoint,
		AuthHeader:  cfg.OtelAuthHeader,
		Insecure:    cfg.OtelInsecure,
	})
	must(err)
	defer func() { _ = shutdownTracing(context.Background()) }()

	repo, err := store.NewRepository(cfg.DBPath)
	must(err)
	defer repo.Close()
	must(repo.Ping(ctx))
	if cfg.Seed {
		must(repo.Seed(ctx))
		log.Info().Int("products", len(store.SeedProducts)).Msg("seeded catalog")
	}

	pub, err := events.Open(events.Options{
		Driver:      cfg.EventsDriver,
		AMQPURL:     cfg.RabbitURL,
		Exchange:    cfg.EventsExchange,
		KafkaBroker: cfg.KafkaBroker,
		KafkaTopic:  cfg.KafkaTopic,
	})
	must(err)
	defer pub.Close()

	svc := store.NewService(repo, pub, logger)

	lis, err := net.Listen("tcp", cfg.StoreListen)
	must(err)
	srv := grpc.NewServer(grpc.UnaryInterceptor(rpc.LoggingInterceptor(logger)))
	rpc.RegisterStoreServer(srv, rpc.NewServer(svc))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", lis.Addr().String()).Msg("gRPC listening")
		return srv.Serve(lis)
	})
	g.Go(func() error {
		watchDB(gctx, repo, hs)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Warn().Msg("shutting down...")
		hs.Shutdown()
		srv.GracefulStop()
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		log.Error().Err(err).Msg("store service stopped with error")
	}
	log.Info().Msg("store service stopped")
}

// watchDB reports the store NOT_SERVING while the database cannot be reached.
func watchDB(ctx context.Context, repo *store.Repository, hs *health.Server) {
	t := time.NewTicker(dbCheckInterval)
	defer t.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		err := repo.Ping(ctx)
		if ok := err == nil; ok != serving {
			serving = ok
			st := healthpb.HealthCheckResponse_SERVING
			if !ok {
				st = healthpb.HealthCheckResponse_NOT_SERVING
				log.Error().Err(err).Msg("database unreachable")
			} else {
				log.Info().Msg("database reachable again")
			}
			hs.SetServingStatus("", st)
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
