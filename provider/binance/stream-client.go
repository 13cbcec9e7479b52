package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var logger = log.With().Str("component", "binance").Logger()

const (
	binanceDefaultWebsocketEndpoint = "wss://stream.binance.com:9443/ws"

	handshakeTimeout = 5 * time.Second
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 4 << 20
)

// Message is the combined-stream envelope. Raw streams deliver Data directly.
type Message[T any] struct {
	Stream string `json:"stream"`
	Data   T      `json:"data"`
}

type WebSocketRequestModel struct {
	ReqId  int      `json:"id"`
	Params []string `json:"params"`
	Method string   `json:"method"`
}

// BinanceStreamClient dials one websocket connection per stream.
type BinanceStreamClient struct {
	endpoint string
	dialer   *websocket.Dialer
}

func NewBinanceStreamClient(endpoint string) *BinanceStreamClient {
	if endpoint == "" {
		endpoint = binanceDefaultWebsocketEndpoint
	}
	return &BinanceStreamClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Connect opens the raw stream and sends the SUBSCRIBE control message for topic.
func (c *BinanceStreamClient) Connect(ctx context.Context, stream string, topic string, reqID int) (*websocket.Conn, error) {
	url := fmt.Sprintf("%s/%s", c.endpoint, stream)

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(maxMessageSize)

	req := WebSocketRequestModel{
		Method: "SUBSCRIBE",
		ReqId:  reqID,
		Params: []string{topic},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(req); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send subscribe msg for topic=%s: %w", topic, err)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	logger.Debug().Str("url", url).Str("topic", topic).Msg("subscribed to stream")
	return conn, nil
}
