package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spooky-finn/orderbook-gateway/config"
	"github.com/spooky-finn/orderbook-gateway/domain"
	promclient "github.com/spooky-finn/orderbook-gateway/infrastructure/prometheus"
	redisrelay "github.com/spooky-finn/orderbook-gateway/infrastructure/redis"
	"github.com/spooky-finn/orderbook-gateway/provider"
	"github.com/spooky-finn/orderbook-gateway/relay"
	"github.com/spooky-finn/orderbook-gateway/rpc"
	"github.com/spooky-finn/orderbook-gateway/transport"
	"github.com/spooky-finn/orderbook-gateway/usecase"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(conf.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connManager := provider.NewConnectionManager(conf)
	directory := domain.NewInstrumentDirectory(connManager.InstrumentsAPI(), conf.Directory.TTL)
	hub := transport.NewHub()

	sinks := []relay.Sink{hub}
	if conf.Redis.Addr != "" {
		client, err := redisrelay.Connect(ctx, conf.Redis.Addr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", conf.Redis.Addr).Msg("failed to connect to redis")
		}
		publisher := redisrelay.NewPublisher(client, conf.Redis.ChannelPrefix, conf.Redis.SnapshotTTL)
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}
	dispatcher := relay.NewDispatcher(conf.Relay.Buffer, sinks...)

	librarian := usecase.NewLibrarian(directory, func(symbol string) usecase.Tracker {
		return connManager.NewTracker(symbol)
	}, dispatcher)
	maid := usecase.NewLibrarianMaid(librarian, conf.Registry.SweepInterval)
	snapshots := usecase.NewOrderBookSnapshotUseCase(directory, librarian, connManager.SyncAPI())

	endpoint := transport.NewEndpoint(librarian, hub)
	httpServer := transport.NewServer(conf.HTTP.Addr, transport.NewRouter(directory, endpoint))
	metricsServer := promclient.NewServer(conf.Metrics.Addr)
	grpcServer := rpc.NewServer(rpc.Dependencies{
		Instruments: directory,
		Snapshots:   snapshots,
		Registry:    librarian,
		Hub:         hub,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return maid.Run(gctx) })
	g.Go(func() error { return listenAndServe("http", httpServer) })
	g.Go(func() error { return listenAndServe("metrics", metricsServer) })
	g.Go(func() error {
		lis, err := net.Listen("tcp", conf.GRPC.Addr)
		if err != nil {
			return err
		}
		log.Info().Str("addr", conf.GRPC.Addr).Msg("grpc server listening")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http server shutdown")
		}
		endpoint.CloseAll()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown")
		}
		stopGRPC(shutdownCtx, grpcServer)
		librarian.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("gateway stopped with error")
	}
	log.Info().Msg("gateway stopped")
}

func listenAndServe(name string, srv *http.Server) error {
	log.Info().Str("addr", srv.Addr).Msgf("%s server listening", name)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// stopGRPC drains in-flight calls; open order book streams are cut when ctx expires.
func stopGRPC(ctx context.Context, srv *grpc.Server) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		srv.Stop()
	}
}
