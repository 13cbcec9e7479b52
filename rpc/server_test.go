package rpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/orderbook-gateway/domain"
	"github.com/spooky-finn/orderbook-gateway/transport"
	"github.com/spooky-finn/orderbook-gateway/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type fakeInstrumentsAPI struct{}

func (fakeInstrumentsAPI) ValidInstruments(ctx context.Context) ([]domain.Instrument, error) {
	return []domain.Instrument{
		{Symbol: "btcusdt", BaseAsset: "btc", QuoteAsset: "usdt", TickSize: decimal.RequireFromString("0.01")},
		{Symbol: "ethusdt", BaseAsset: "eth", QuoteAsset: "usdt", TickSize: domain.DefaultTickSize},
	}, nil
}

type fakeSnapshots struct {
	snapshot *domain.OrderBookSnapshot
	err      error
	limit    int
}

func (f *fakeSnapshots) GetOrderBookSnapshot(ctx context.Context, input string, limit int) (*domain.OrderBookSnapshot, error) {
	f.limit = limit
	return f.snapshot, f.err
}

type fakeRegistry struct {
	mu           sync.Mutex
	subscribed   map[string]string
	unsubscribed []string
}

func (r *fakeRegistry) Subscribe(ctx context.Context, subscriberID string, input string) (string, error) {
	symbol := domain.NormalizeSymbol(input)
	if symbol != "btcusdt" {
		return "", domain.ErrInstrumentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribed[subscriberID] = symbol
	return symbol, nil
}

func (r *fakeRegistry) Unsubscribe(subscriberID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribed = append(r.unsubscribed, subscriberID)
	return true
}

func (r *fakeRegistry) unsubscribedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.unsubscribed)
}

type rpcFixture struct {
	client    *OrderBookGatewayClient
	conn      *grpc.ClientConn
	hub       *transport.Hub
	registry  *fakeRegistry
	snapshots *fakeSnapshots
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()
	f := &rpcFixture{
		hub:       transport.NewHub(),
		registry:  &fakeRegistry{subscribed: make(map[string]string)},
		snapshots: &fakeSnapshots{},
	}

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(Dependencies{
		Instruments: domain.NewInstrumentDirectory(fakeInstrumentsAPI{}, time.Hour),
		Snapshots:   f.snapshots,
		Registry:    f.registry,
		Hub:         f.hub,
		Validation:  &ValidationServiceConfig{MaxDepth: 100},
	})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f.conn = conn
	f.client = NewOrderBookGatewayClient(conn)
	return f
}

func TestServer_ListInstruments(t *testing.T) {
	f := newRPCFixture(t)

	list, err := f.client.ListInstruments(context.Background(), wrapperspb.String("ETH"))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"ethusdt"}, list.AsSlice())

	list, err = f.client.ListInstruments(context.Background(), wrapperspb.String(""))
	require.NoError(t, err)
	assert.Len(t, list.GetValues(), 2)
}

func TestServer_GetInstrument(t *testing.T) {
	f := newRPCFixture(t)

	detail, err := f.client.GetInstrument(context.Background(), wrapperspb.String("BTCUSDT"))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"symbol":     "btcusdt",
		"tickSize":   "0.01",
		"baseAsset":  "btc",
		"quoteAsset": "usdt",
	}, detail.AsMap())

	_, err = f.client.GetInstrument(context.Background(), wrapperspb.String("btc"))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_GetOrderBookSnapshot(t *testing.T) {
	f := newRPCFixture(t)
	bids, err := domain.ParsePriceLevels([][]string{{"10", "1"}})
	require.NoError(t, err)
	f.snapshots.snapshot = &domain.OrderBookSnapshot{
		Source:       domain.OrderBookSource_LocalOrderBook,
		Symbol:       "btcusdt",
		LastUpdateId: 101,
		Bids:         bids,
		Asks:         []domain.PriceLevel{},
	}

	req, err := structpb.NewStruct(map[string]interface{}{"symbol": "btcusdt", "maxDepth": 5})
	require.NoError(t, err)

	resp, err := f.client.GetOrderBookSnapshot(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 5, f.snapshots.limit)
	assert.Equal(t, map[string]interface{}{
		"source":       "LocalOrderBook",
		"symbol":       "btcusdt",
		"lastUpdateId": float64(101),
		"bids":         []interface{}{[]interface{}{"10", "1"}},
		"asks":         []interface{}{},
	}, resp.AsMap())
}

func TestServer_GetOrderBookSnapshotErrors(t *testing.T) {
	f := newRPCFixture(t)

	tests := []struct {
		name string
		req  map[string]interface{}
		err  error
		code codes.Code
	}{
		{"missing symbol", map[string]interface{}{"maxDepth": 5}, nil, codes.InvalidArgument},
		{"fractional depth", map[string]interface{}{"symbol": "btcusdt", "maxDepth": 1.5}, nil, codes.InvalidArgument},
		{"depth over limit", map[string]interface{}{"symbol": "btcusdt", "maxDepth": 1000}, nil, codes.InvalidArgument},
		{"unknown instrument", map[string]interface{}{"symbol": "doge"}, domain.ErrInstrumentNotFound, codes.NotFound},
		{"no book", map[string]interface{}{"symbol": "btcusdt"}, usecase.ErrOrderBookNotFound, codes.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.snapshots.err = tt.err
			req, err := structpb.NewStruct(tt.req)
			require.NoError(t, err)

			_, err = f.client.GetOrderBookSnapshot(context.Background(), req)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestServer_StreamOrderBook(t *testing.T) {
	f := newRPCFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := f.client.StreamOrderBook(ctx, wrapperspb.String("BTCUSDT"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.hub.GroupSize("btcusdt") == 1 }, 2*time.Second, 5*time.Millisecond)
	f.hub.Broadcast("btcusdt", []byte(`{"type":"upd","symbol":"btcusdt","lastUpdateId":7,"bids":[["10","1"]],"asks":[]}`))

	msg, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "upd", msg.AsMap()["type"])
	assert.Equal(t, float64(7), msg.AsMap()["lastUpdateId"])

	cancel()
	require.Eventually(t, func() bool { return f.registry.unsubscribedCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.hub.GroupSize("btcusdt") == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_StreamOrderBookUnknownInstrument(t *testing.T) {
	f := newRPCFixture(t)

	stream, err := f.client.StreamOrderBook(context.Background(), wrapperspb.String("doge"))
	require.NoError(t, err)

	_, err = stream.Recv()
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_Health(t *testing.T) {
	f := newRPCFixture(t)

	resp, err := healthpb.NewHealthClient(f.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
