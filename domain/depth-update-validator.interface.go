package domain

import "errors"

var (
	// The book missed events between its watermark and this update; it has to be resynchronized.
	ErrOrderBookUpdateIsOutOfSequence = errors.New("order book update is out of sequence")
	// should just skip them
	ErrOrderBookUpdateIsOutdated = errors.New("order book update is outdated")
)

type DepthUpdateValidator interface {
	// if return nil, the update is valid
	IsValidUpd(update *OrderBookUpdate, orderBookLastUpdId int64) error
}

// LooseDepthUpdateValidator only drops events already covered by the book.
// Gaps between events are not detected.
type LooseDepthUpdateValidator struct{}

func (v *LooseDepthUpdateValidator) IsValidUpd(update *OrderBookUpdate, orderBookLastUpdId int64) error {
	if update.LastUpdateID <= orderBookLastUpdId {
		return ErrOrderBookUpdateIsOutdated
	}
	return nil
}
