package binance

import "github.com/spooky-finn/orderbook-gateway/domain"

// BinanceDepthUpdateValidator enforces the diff stream continuity rules:
// each applied event must start no later than the book watermark + 1 and
// end no earlier than it.
type BinanceDepthUpdateValidator struct{}

func (v *BinanceDepthUpdateValidator) IsValidUpd(update *domain.OrderBookUpdate, orderBookLastUpdId int64) error {
	// Drop any event where u is <= lastUpdateId in the snapshot
	if update.LastUpdateID <= orderBookLastUpdId {
		return domain.ErrOrderBookUpdateIsOutdated
	}

	// The first processed event should have U <= lastUpdateId+1 AND u >= lastUpdateId+1,
	// every following one U == previous u+1, which is the same condition.
	if update.FirstUpdateID <= orderBookLastUpdId+1 {
		return nil
	}

	return domain.ErrOrderBookUpdateIsOutOfSequence
}
