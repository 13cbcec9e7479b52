package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spooky-finn/orderbook-gateway/domain"
	promclient "github.com/spooky-finn/orderbook-gateway/infrastructure/prometheus"
)

var logger = log.With().Str("component", "relay").Logger()

const (
	DefaultBuffer = 1024
	UpdateType    = "upd"
)

// Sink receives encoded book updates. Broadcast runs on the sink's own
// lane, so a slow sink only delays itself.
type Sink interface {
	Name() string
	Broadcast(symbol string, payload []byte)
}

// Update is the payload pushed to subscribers.
type Update struct {
	Type         string     `json:"type"`
	Symbol       string     `json:"symbol"`
	LastUpdateId int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func NewUpdate(symbol string, snapshot *domain.OrderBookSnapshot) Update {
	return Update{
		Type:         UpdateType,
		Symbol:       symbol,
		LastUpdateId: snapshot.LastUpdateId,
		Bids:         domain.SerializePriceLevels(snapshot.Bids),
		Asks:         domain.SerializePriceLevels(snapshot.Asks),
	}
}

type message struct {
	symbol  string
	payload []byte
}

type lane struct {
	sink  Sink
	queue chan message
}

// Dispatcher fans rendered books out to every sink without ever blocking
// the caller. Full lanes drop the update.
type Dispatcher struct {
	lanes []*lane

	startOnce sync.Once
	wg        sync.WaitGroup
}

func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	d := &Dispatcher{}
	for _, sink := range sinks {
		d.lanes = append(d.lanes, &lane{
			sink:  sink,
			queue: make(chan message, buffer),
		})
	}
	return d
}

// Relay encodes the book once and offers it to every lane.
func (d *Dispatcher) Relay(symbol string, snapshot *domain.OrderBookSnapshot) {
	payload, err := json.Marshal(NewUpdate(symbol, snapshot))
	if err != nil {
		logger.Error().Err(err).Str("symbol", symbol).Msg("failed to encode book update")
		return
	}

	msg := message{symbol: symbol, payload: payload}
	for _, l := range d.lanes {
		select {
		case l.queue <- msg:
		default:
			promclient.RelayDroppedCounter.WithLabelValues(l.sink.Name()).Inc()
			logger.Debug().Str("sink", l.sink.Name()).Str("symbol", symbol).Msg("lane full, update dropped")
		}
	}
}

// Run drains every lane until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.startOnce.Do(func() {
		for _, l := range d.lanes {
			d.wg.Add(1)
			go func(l *lane) {
				defer d.wg.Done()
				l.drain(ctx)
			}(l)
		}
	})
	<-ctx.Done()
	d.wg.Wait()
	return nil
}

func (l *lane) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-l.queue:
			l.sink.Broadcast(msg.symbol, msg.payload)
		}
	}
}
