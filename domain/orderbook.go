package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type OrderBookSource string

const (
	OrderBookSource_Provider       OrderBookSource = "Provider"
	OrderBookSource_LocalOrderBook OrderBookSource = "LocalOrderBook"
)

// PriceLevel is a single (price, quantity) pair. On the wire it is a two
// element array whose members may be JSON strings or numbers.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func NewPriceLevel(price, quantity string) (PriceLevel, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return PriceLevel{}, fmt.Errorf("invalid price %q: %w", price, err)
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return PriceLevel{}, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	return PriceLevel{Price: p, Quantity: q}, nil
}

func (l *PriceLevel) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("price level %s: %w", b, err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("price level %s: expected [price, quantity]", b)
	}
	// members past the quantity are ignored
	if err := json.Unmarshal(raw[0], &l.Price); err != nil {
		return fmt.Errorf("price level %s: price: %w", b, err)
	}
	if err := json.Unmarshal(raw[1], &l.Quantity); err != nil {
		return fmt.Errorf("price level %s: quantity: %w", b, err)
	}
	return nil
}

func (l PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Price.String(), l.Quantity.String()})
}

// OrderBookSnapshot is a full-depth, point-in-time view of a book: either
// fetched from the provider or rendered from a local book. Rendered
// snapshots list both sides in price-descending order.
type OrderBookSnapshot struct {
	Source       OrderBookSource `json:"source"`
	Symbol       string          `json:"symbol"`
	LastUpdateId int64           `json:"lastUpdateId"`
	Bids         []PriceLevel    `json:"bids"`
	Asks         []PriceLevel    `json:"asks"`
}

// OrderBookUpdate is one diff event covering [FirstUpdateID, LastUpdateID].
// A zero quantity removes the level, anything else sets it.
type OrderBookUpdate struct {
	Symbol        string
	EventTime     int64
	FirstUpdateID int64
	LastUpdateID  int64
	Bids          []PriceLevel
	Asks          []PriceLevel
}

func NewOrderBookUpdate(bids, asks []PriceLevel, firstUpdateID, lastUpdateID int64) *OrderBookUpdate {
	return &OrderBookUpdate{
		Bids:          bids,
		Asks:          asks,
		FirstUpdateID: firstUpdateID,
		LastUpdateID:  lastUpdateID,
	}
}

// OrderBook holds one side map per direction keyed by the canonical price
// string. Levels are unordered; ordering happens in TakeSnapshot.
type OrderBook struct {
	Symbol string

	mu             sync.RWMutex
	lastUpdateID   int64
	lastUpdateTime time.Time
	bids           map[string]PriceLevel
	asks           map[string]PriceLevel
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   make(map[string]PriceLevel),
		asks:   make(map[string]PriceLevel),
	}
}

func NewOrderBookFromSnapshot(symbol string, snapshot *OrderBookSnapshot) *OrderBook {
	ob := NewOrderBook(symbol)
	ob.Reset(snapshot)
	return ob
}

// Reset replaces the whole book with the snapshot content.
func (ob *OrderBook) Reset(snapshot *OrderBookSnapshot) {
	bids := make(map[string]PriceLevel, len(snapshot.Bids))
	asks := make(map[string]PriceLevel, len(snapshot.Asks))
	updateDepth(bids, snapshot.Bids)
	updateDepth(asks, snapshot.Asks)

	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.bids = bids
	ob.asks = asks
	ob.lastUpdateID = snapshot.LastUpdateId
	ob.lastUpdateTime = time.Now()
}

// ApplyUpdate applies both sides of the update under one lock, so readers
// never observe a book where only one side reflects the event.
func (ob *OrderBook) ApplyUpdate(update *OrderBookUpdate) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	updateDepth(ob.bids, update.Bids)
	updateDepth(ob.asks, update.Asks)

	ob.lastUpdateID = update.LastUpdateID
	ob.lastUpdateTime = time.Now()
}

func (ob *OrderBook) LastUpdateID() int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastUpdateID
}

func (ob *OrderBook) LastUpdateTime() time.Time {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastUpdateTime
}

// Depth returns the number of levels on each side.
func (ob *OrderBook) Depth() (bids int, asks int) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return len(ob.bids), len(ob.asks)
}

// Level returns the level stored at price on the given side.
func (ob *OrderBook) Level(isAsks bool, price decimal.Decimal) (PriceLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	depth := ob.bids
	if isAsks {
		depth = ob.asks
	}
	level, ok := depth[price.String()]
	return level, ok
}

// TakeSnapshot renders a copy of the book, both sides sorted by price
// descending. A positive limit keeps that many levels per side, nearest
// to the spread.
func (ob *OrderBook) TakeSnapshot(limit int) *OrderBookSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return &OrderBookSnapshot{
		Source:       OrderBookSource_LocalOrderBook,
		Symbol:       ob.Symbol,
		LastUpdateId: ob.lastUpdateID,
		Bids:         LimitDepth(sortedDescending(ob.bids), limit, false),
		Asks:         LimitDepth(sortedDescending(ob.asks), limit, true),
	}
}

func updateDepth(depth map[string]PriceLevel, levels []PriceLevel) {
	for _, level := range levels {
		key := level.Price.String()
		if level.Quantity.IsZero() {
			delete(depth, key)
			continue
		}
		depth[key] = level
	}
}

func sortedDescending(depth map[string]PriceLevel) []PriceLevel {
	levels := make([]PriceLevel, 0, len(depth))
	for _, level := range depth {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Price.GreaterThan(levels[j].Price)
	})
	return levels
}

// LimitDepth keeps the limit levels of a price-descending side that are
// closest to the spread: the head for bids, the tail for asks.
func LimitDepth(depth []PriceLevel, limit int, isAsks bool) []PriceLevel {
	if limit <= 0 || len(depth) <= limit {
		return depth
	}
	if isAsks {
		return depth[len(depth)-limit:]
	}
	return depth[:limit]
}

// SerializePriceLevels converts levels to their canonical [price, quantity] strings.
func SerializePriceLevels(levels []PriceLevel) [][]string {
	result := make([][]string, len(levels))
	for i, level := range levels {
		result[i] = []string{level.Price.String(), level.Quantity.String()}
	}
	return result
}

// ParsePriceLevels is the inverse of SerializePriceLevels.
func ParsePriceLevels(depth [][]string) ([]PriceLevel, error) {
	result := make([]PriceLevel, len(depth))
	for i, level := range depth {
		if len(level) < 2 {
			return nil, fmt.Errorf("price level %v: expected [price, quantity]", level)
		}
		parsed, err := NewPriceLevel(level[0], level[1])
		if err != nil {
			return nil, err
		}
		result[i] = parsed
	}
	return result, nil
}
