package rpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/spooky-finn/orderbook-gateway/domain"
	"github.com/spooky-finn/orderbook-gateway/usecase"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const streamBuffer = 64

func (s *server) ListInstruments(ctx context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error) {
	names, err := s.instruments.Search(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	values := make([]interface{}, len(names))
	for i, name := range names {
		values[i] = name
	}
	return structpb.NewList(values)
}

func (s *server) GetInstrument(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	instrument, err := s.instruments.Lookup(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"symbol":     instrument.Symbol,
		"tickSize":   instrument.TickSize.String(),
		"baseAsset":  instrument.BaseAsset,
		"quoteAsset": instrument.QuoteAsset,
	})
}

func (s *server) GetOrderBookSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.validationService.SnapshotRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	snapshot, err := s.orderbookSnapshotUseCase.GetOrderBookSnapshot(ctx, req.Symbol, req.MaxDepth)
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"source":       string(snapshot.Source),
		"symbol":       snapshot.Symbol,
		"lastUpdateId": snapshot.LastUpdateId,
		"bids":         levelsToValues(snapshot.Bids),
		"asks":         levelsToValues(snapshot.Asks),
	})
}

// StreamOrderBook registers the stream as a subscriber of its own and joins
// the hub group of the symbol until the client goes away.
func (s *server) StreamOrderBook(in *wrapperspb.StringValue, stream OrderBookGateway_StreamOrderBookServer) error {
	ctx := stream.Context()
	member := &streamMember{id: uuid.NewString(), queue: make(chan []byte, streamBuffer)}

	symbol, err := s.registry.Subscribe(ctx, member.id, in.GetValue())
	if err != nil {
		return toStatus(err)
	}
	defer s.registry.Unsubscribe(member.id)

	s.hub.Join(symbol, member)
	defer s.hub.Leave(member.id)

	logger.Debug().Str("subscriber", member.id).Str("symbol", symbol).Msg("order book stream opened")

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Str("subscriber", member.id).Str("symbol", symbol).Msg("order book stream closed")
			return nil
		case payload := <-member.queue:
			msg := &structpb.Struct{}
			if err := protojson.Unmarshal(payload, msg); err != nil {
				return status.Errorf(codes.Internal, "decode update: %v", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

type streamMember struct {
	id    string
	queue chan []byte
}

func (m *streamMember) ID() string {
	return m.id
}

func (m *streamMember) Send(payload []byte) bool {
	select {
	case m.queue <- payload:
		return true
	default:
		return false
	}
}

func levelsToValues(levels []domain.PriceLevel) []interface{} {
	values := make([]interface{}, len(levels))
	for i, level := range levels {
		values[i] = []interface{}{level.Price.String(), level.Quantity.String()}
	}
	return values
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInstrumentNotFound), errors.Is(err, usecase.ErrOrderBookNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
