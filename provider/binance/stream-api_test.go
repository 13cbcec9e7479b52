package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spooky-finn/orderbook-gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStreamServer struct {
	*httptest.Server
	path      chan string
	subscribe chan WebSocketRequestModel
}

// newFakeStreamServer accepts one connection, records the SUBSCRIBE request
// and then writes frames in order. With hold set it keeps the connection
// open until the client goes away.
func newFakeStreamServer(t *testing.T, hold bool, frames ...string) *fakeStreamServer {
	s := &fakeStreamServer{
		path:      make(chan string, 1),
		subscribe: make(chan WebSocketRequestModel, 1),
	}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		s.path <- r.URL.Path

		var req WebSocketRequestModel
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		s.subscribe <- req

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		if hold {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
	}))
	return s
}

func (s *fakeStreamServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func receive(t *testing.T, stream <-chan *domain.OrderBookUpdate) (*domain.OrderBookUpdate, bool) {
	t.Helper()
	select {
	case update, ok := <-stream:
		return update, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream")
		return nil, false
	}
}

func TestBinanceStreamAPI_DepthDiffStream(t *testing.T) {
	srv := newFakeStreamServer(t, false,
		`{"result":null,"id":1}`,
		`{"e":"depthUpdate","E":1672515782136,"s":"BTCUSDT","U":157,"u":160,"b":[["0.0024","10"]],"a":[["0.0026","100"]]}`,
		` `,
		`{"e":"depthUpdate","E":1672515782236,"s":"BTCUSDT","U":161,"u":161,"b":[[0.0023,0]],"a":[]}`,
	)
	defer srv.Close()

	api := NewBinanceStreamAPI(NewBinanceStreamClient(srv.wsURL()))
	sub, err := api.DepthDiffStream(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, "btcusdt@depth", sub.Topic)
	assert.Equal(t, "/btcusdt@depth@100ms", <-srv.path)

	req := <-srv.subscribe
	assert.Equal(t, "SUBSCRIBE", req.Method)
	assert.Equal(t, []string{"btcusdt@depth"}, req.Params)

	first, ok := receive(t, sub.Stream)
	require.True(t, ok)
	assert.Equal(t, "btcusdt", first.Symbol)
	assert.Equal(t, int64(157), first.FirstUpdateID)
	assert.Equal(t, int64(160), first.LastUpdateID)
	assert.Equal(t, [][]string{{"0.0024", "10"}}, domain.SerializePriceLevels(first.Bids))
	assert.Equal(t, [][]string{{"0.0026", "100"}}, domain.SerializePriceLevels(first.Asks))

	second, ok := receive(t, sub.Stream)
	require.True(t, ok)
	assert.Equal(t, int64(161), second.LastUpdateID)
	assert.Equal(t, [][]string{{"0.0023", "0"}}, domain.SerializePriceLevels(second.Bids))
	assert.Empty(t, second.Asks)

	// server hung up
	_, ok = receive(t, sub.Stream)
	assert.False(t, ok)
}

func TestBinanceStreamAPI_UnsubscribeClosesStream(t *testing.T) {
	srv := newFakeStreamServer(t, true)
	defer srv.Close()

	api := NewBinanceStreamAPI(NewBinanceStreamClient(srv.wsURL()))
	sub, err := api.DepthDiffStream(context.Background(), "ethusdt")
	require.NoError(t, err)
	<-srv.subscribe

	sub.Unsubscribe()
	_, ok := receive(t, sub.Stream)
	assert.False(t, ok)
}

func TestBinanceStreamAPI_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	api := NewBinanceStreamAPI(NewBinanceStreamClient("ws" + strings.TrimPrefix(srv.URL, "http")))
	_, err := api.DepthDiffStream(context.Background(), "btcusdt")
	assert.Error(t, err)
}

func TestDecodeDepthUpdate(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		want    int64
		wantNil bool
		wantErr bool
	}{
		{
			name: "raw stream",
			msg:  `{"e":"depthUpdate","s":"BNBBTC","U":1,"u":2,"b":[],"a":[]}`,
			want: 2,
		},
		{
			name: "combined stream envelope",
			msg:  `{"stream":"bnbbtc@depth","data":{"e":"depthUpdate","s":"BNBBTC","U":5,"u":9,"b":[],"a":[]}}`,
			want: 9,
		},
		{
			name:    "subscribe reply",
			msg:     `{"result":null,"id":312}`,
			wantNil: true,
		},
		{
			name:    "other event type",
			msg:     `{"e":"trade","s":"BNBBTC"}`,
			wantNil: true,
		},
		{
			name:    "malformed",
			msg:     `{"e":"depthUpdate",`,
			wantErr: true,
		},
		{
			name:    "bad price level",
			msg:     `{"e":"depthUpdate","s":"BNBBTC","U":1,"u":2,"b":[["x","1"]],"a":[]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, err := DecodeDepthUpdate([]byte(tt.msg))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, update)
				return
			}
			require.NotNil(t, update)
			assert.Equal(t, "bnbbtc", update.Symbol)
			assert.Equal(t, tt.want, update.LastUpdateID)
		})
	}
}
