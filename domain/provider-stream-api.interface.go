package domain

import "context"

type ProviderSyncAPI interface {
	OrderBookSnapshot(ctx context.Context, symbol string, limit int) (*OrderBookSnapshot, error)
}

type ProviderInstrumentsAPI interface {
	ValidInstruments(ctx context.Context) ([]Instrument, error)
}

type ProviderStreamAPI interface {
	// DepthDiffStream opens the diff feed of symbol. The stream channel is
	// closed when the feed ends, whatever the reason.
	DepthDiffStream(ctx context.Context, symbol string) (*Subscription[*OrderBookUpdate], error)
}

type Subscription[T any] struct {
	Stream      <-chan T
	Unsubscribe func()
	Topic       string
}
