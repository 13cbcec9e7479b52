package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spooky-finn/orderbook-gateway/domain"
	"github.com/spooky-finn/orderbook-gateway/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBooks struct {
	snapshot *domain.OrderBookSnapshot
	err      error
}

func (f *fakeBooks) Snapshot(symbol string, limit int) (*domain.OrderBookSnapshot, error) {
	return f.snapshot, f.err
}

type countingSyncAPI struct {
	snapshot *domain.OrderBookSnapshot
	calls    int
	limits   []int
}

func (c *countingSyncAPI) OrderBookSnapshot(ctx context.Context, symbol string, limit int) (*domain.OrderBookSnapshot, error) {
	c.calls++
	c.limits = append(c.limits, limit)
	return c.snapshot, nil
}

func TestOrderBookSnapshotUseCase_LiveBook(t *testing.T) {
	live := &domain.OrderBookSnapshot{Source: domain.OrderBookSource_LocalOrderBook, Symbol: "btcusdt", LastUpdateId: 42}
	syncAPI := &countingSyncAPI{}
	uc := usecase.NewOrderBookSnapshotUseCase(newFakeResolver("btcusdt"), &fakeBooks{snapshot: live}, syncAPI)

	snapshot, err := uc.GetOrderBookSnapshot(context.Background(), "BTCUSDT", 5)
	require.NoError(t, err)
	assert.Same(t, live, snapshot)
	assert.Equal(t, 0, syncAPI.calls)
}

func TestOrderBookSnapshotUseCase_FallsBackToProvider(t *testing.T) {
	syncAPI := &countingSyncAPI{snapshot: &domain.OrderBookSnapshot{
		Source:       domain.OrderBookSource_Provider,
		LastUpdateId: 9,
		Bids:         mustLevels(t, []string{"10", "1"}, []string{"9", "2"}),
		Asks:         mustLevels(t, []string{"11", "1"}, []string{"12", "2"}),
	}}
	uc := usecase.NewOrderBookSnapshotUseCase(newFakeResolver("btcusdt"), &fakeBooks{err: usecase.ErrOrderBookNotFound}, syncAPI)

	snapshot, err := uc.GetOrderBookSnapshot(context.Background(), "btcusdt", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, syncAPI.calls)
	assert.Equal(t, domain.OrderBookSource_Provider, snapshot.Source)
	assert.Equal(t, "btcusdt", snapshot.Symbol)
	assert.Equal(t, int64(9), snapshot.LastUpdateId)
	assert.Equal(t, [][]string{{"10", "1"}}, domain.SerializePriceLevels(snapshot.Bids))
	assert.Equal(t, [][]string{{"11", "1"}}, domain.SerializePriceLevels(snapshot.Asks))
}

func TestOrderBookSnapshotUseCase_ProviderDepth(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		upstream int
	}{
		{"WholeBook", 0, usecase.ProviderMaxDepth},
		{"Negative", -1, usecase.ProviderMaxDepth},
		{"Limited", 20, 20},
		{"AtMax", usecase.ProviderMaxDepth, usecase.ProviderMaxDepth},
		{"OverMax", usecase.ProviderMaxDepth + 1, usecase.ProviderMaxDepth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncAPI := &countingSyncAPI{snapshot: &domain.OrderBookSnapshot{
				LastUpdateId: 9,
				Bids:         mustLevels(t, []string{"10", "1"}, []string{"9", "2"}),
				Asks:         mustLevels(t, []string{"11", "1"}),
			}}
			uc := usecase.NewOrderBookSnapshotUseCase(newFakeResolver("btcusdt"), &fakeBooks{err: usecase.ErrOrderBookNotFound}, syncAPI)

			snapshot, err := uc.GetOrderBookSnapshot(context.Background(), "btcusdt", tt.limit)
			require.NoError(t, err)
			assert.Equal(t, []int{tt.upstream}, syncAPI.limits)
			if tt.limit <= 0 {
				assert.Len(t, snapshot.Bids, 2, "the whole book is rendered")
			}
		})
	}
}

func TestOrderBookSnapshotUseCase_UnknownInstrument(t *testing.T) {
	syncAPI := &countingSyncAPI{}
	uc := usecase.NewOrderBookSnapshotUseCase(newFakeResolver("btcusdt"), &fakeBooks{}, syncAPI)

	_, err := uc.GetOrderBookSnapshot(context.Background(), "dogeusdt", 1)
	assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)
	assert.Equal(t, 0, syncAPI.calls)
}

func TestOrderBookSnapshotUseCase_BookError(t *testing.T) {
	boom := errors.New("boom")
	uc := usecase.NewOrderBookSnapshotUseCase(newFakeResolver("btcusdt"), &fakeBooks{err: boom}, &countingSyncAPI{})

	_, err := uc.GetOrderBookSnapshot(context.Background(), "btcusdt", 1)
	assert.ErrorIs(t, err, boom)
}
