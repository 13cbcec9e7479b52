package usecase

import (
	"context"
	"errors"

	"github.com/spooky-finn/orderbook-gateway/domain"
)

// ProviderMaxDepth is the deepest snapshot the Binance depth endpoint serves.
const ProviderMaxDepth = 5000

type BookSnapshotter interface {
	Snapshot(symbol string, limit int) (*domain.OrderBookSnapshot, error)
}

type OrderBookSnapshotUseCase struct {
	resolver InstrumentResolver
	books    BookSnapshotter
	syncAPI  domain.ProviderSyncAPI
}

func NewOrderBookSnapshotUseCase(
	resolver InstrumentResolver,
	books BookSnapshotter,
	syncAPI domain.ProviderSyncAPI,
) *OrderBookSnapshotUseCase {
	return &OrderBookSnapshotUseCase{
		resolver: resolver,
		books:    books,
		syncAPI:  syncAPI,
	}
}

// GetOrderBookSnapshot returns the book of a live tracker, or the provider's
// snapshot when nobody tracks the instrument yet.
func (o *OrderBookSnapshotUseCase) GetOrderBookSnapshot(
	ctx context.Context, input string, limit int,
) (*domain.OrderBookSnapshot, error) {
	symbol, err := o.resolver.Resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	snapshot, err := o.books.Snapshot(symbol, limit)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, ErrOrderBookNotFound) {
		return nil, err
	}

	logger.Debug().Str("symbol", symbol).Msg("no live order book, provider snapshot returned")
	snapshot, err = o.syncAPI.OrderBookSnapshot(ctx, symbol, providerDepth(limit))
	if err != nil {
		return nil, err
	}

	// both sides price-descending, like tracker snapshots
	rendered := domain.NewOrderBookFromSnapshot(symbol, snapshot).TakeSnapshot(limit)
	rendered.Source = domain.OrderBookSource_Provider
	return rendered, nil
}

// providerDepth maps a render limit to the depth requested upstream; a
// non-positive limit asks for the whole book.
func providerDepth(limit int) int {
	if limit <= 0 || limit > ProviderMaxDepth {
		return ProviderMaxDepth
	}
	return limit
}
