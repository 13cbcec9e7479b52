package rpc

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spooky-finn/orderbook-gateway/domain"
	"github.com/spooky-finn/orderbook-gateway/transport"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

var logger = log.With().Str("component", "rpc").Logger()

type InstrumentQuery interface {
	Search(ctx context.Context, prefix string) ([]string, error)
	Lookup(ctx context.Context, input string) (*domain.Instrument, error)
}

type SnapshotQuery interface {
	GetOrderBookSnapshot(ctx context.Context, input string, limit int) (*domain.OrderBookSnapshot, error)
}

type Dependencies struct {
	Instruments InstrumentQuery
	Snapshots   SnapshotQuery
	Registry    transport.Subscriber
	Hub         *transport.Hub
	Validation  *ValidationServiceConfig
}

type server struct {
	UnimplementedOrderBookGatewayServer

	instruments              InstrumentQuery
	orderbookSnapshotUseCase SnapshotQuery
	registry                 transport.Subscriber
	hub                      *transport.Hub
	validationService        *ValidationService
}

func newServer(deps Dependencies) *server {
	return &server{
		instruments:              deps.Instruments,
		orderbookSnapshotUseCase: deps.Snapshots,
		registry:                 deps.Registry,
		hub:                      deps.Hub,
		validationService:        NewValidationService(deps.Validation),
	}
}

// NewServer builds the gRPC server with the gateway and health services
// registered.
func NewServer(deps Dependencies) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unaryLogger),
		grpc.ChainStreamInterceptor(streamLogger),
	)
	RegisterOrderBookGatewayServer(srv, newServer(deps))

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	return srv
}

func unaryLogger(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logger.Debug().
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("took", time.Since(start)).
		Msg("rpc")
	return resp, err
}

func streamLogger(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	logger.Debug().
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("took", time.Since(start)).
		Msg("stream")
	return err
}
