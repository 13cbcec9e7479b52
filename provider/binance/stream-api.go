package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spooky-finn/orderbook-gateway/config"
	"github.com/spooky-finn/orderbook-gateway/domain"
	"github.com/spooky-finn/orderbook-gateway/helpers"
)

const depthUpdateEvent = "depthUpdate"

type DepthUpdateData struct {
	Event         string              `json:"e"`
	EventTime     int64               `json:"E"`
	Symbol        string              `json:"s"`
	FirstUpdateId int64               `json:"U"`
	FinalUpdateId int64               `json:"u"`
	Bids          []domain.PriceLevel `json:"b"`
	Asks          []domain.PriceLevel `json:"a"`
}

type BinanceStreamAPI struct {
	streamClient *BinanceStreamClient
}

func NewBinanceStreamAPI(client *BinanceStreamClient) *BinanceStreamAPI {
	return &BinanceStreamAPI{
		streamClient: client,
	}
}

// DepthDiffStream connects to the diff feed of symbol. Unsubscribe, ctx
// cancellation and any read or decode error all close the connection and
// the stream channel.
func (bs *BinanceStreamAPI) DepthDiffStream(ctx context.Context, symbol string) (*domain.Subscription[*domain.OrderBookUpdate], error) {
	symbol = strings.ToLower(symbol)
	topic := fmt.Sprintf("%s@depth", symbol)

	conn, err := bs.streamClient.Connect(ctx, topic+"@100ms", topic, helpers.RandomReqID())
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-streamCtx.Done()
		_ = conn.Close()
	}()

	out := make(chan *domain.OrderBookUpdate)
	go func() {
		defer close(out)
		defer cancel()
		bs.read(streamCtx, conn, symbol, out)
	}()

	return &domain.Subscription[*domain.OrderBookUpdate]{
		Stream:      out,
		Unsubscribe: cancel,
		Topic:       topic,
	}, nil
}

func (bs *BinanceStreamAPI) read(ctx context.Context, conn *websocket.Conn, symbol string, out chan<- *domain.OrderBookUpdate) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Error().Err(err).Str("symbol", symbol).Msg("error occurred while receiving websocket data")
			}
			return
		}

		if len(bytes.TrimSpace(msg)) == 0 {
			if config.DebugMode {
				logger.Debug().Str("symbol", symbol).Msg("no websocket message")
			}
			continue
		}

		update, err := DecodeDepthUpdate(msg)
		if err != nil {
			logger.Error().Err(err).Str("symbol", symbol).Msg("error parsing websocket update")
			return
		}
		if update == nil {
			continue
		}

		select {
		case out <- update:
		case <-ctx.Done():
			return
		}
	}
}

// DecodeDepthUpdate parses a raw or combined-stream diff event. Control
// replies and other event types decode to nil without error.
func DecodeDepthUpdate(msg []byte) (*domain.OrderBookUpdate, error) {
	var envelope Message[json.RawMessage]
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	payload := msg
	if envelope.Stream != "" && len(envelope.Data) > 0 {
		payload = envelope.Data
	}

	var data DepthUpdateData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("unmarshal depth update: %w", err)
	}
	if data.Event != depthUpdateEvent {
		return nil, nil
	}

	return &domain.OrderBookUpdate{
		Symbol:        strings.ToLower(data.Symbol),
		EventTime:     data.EventTime,
		FirstUpdateID: data.FirstUpdateId,
		LastUpdateID:  data.FinalUpdateId,
		Bids:          data.Bids,
		Asks:          data.Asks,
	}, nil
}
