package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spooky-finn/orderbook-gateway/domain"
	promclient "github.com/spooky-finn/orderbook-gateway/infrastructure/prometheus"
)

var logger = log.With().Str("component", "librarian").Logger()

var (
	ErrOrderBookNotFound = errors.New("order book not found")
	ErrLibrarianClosed   = errors.New("librarian is closed")
)

// Tracker is the per-instrument book maintainer the Librarian multiplexes
// subscribers onto.
type Tracker interface {
	Symbol() string
	Run(ctx context.Context) error
	SetTickHandler(h domain.TickHandler)
	Snapshot(limit int) (*domain.OrderBookSnapshot, bool)
	Done() <-chan struct{}
}

// TrackerFactory builds an unstarted tracker for a resolved symbol.
type TrackerFactory func(symbol string) Tracker

type InstrumentResolver interface {
	Resolve(ctx context.Context, input string) (string, error)
}

// Relay receives every rendered book. Implementations must not block.
type Relay interface {
	Relay(symbol string, snapshot *domain.OrderBookSnapshot)
}

type trackerEntry struct {
	tracker Tracker
	cancel  context.CancelFunc
}

func (e *trackerEntry) dead() bool {
	select {
	case <-e.tracker.Done():
		return true
	default:
		return false
	}
}

// Librarian maps subscribers to instruments and instruments to shared
// trackers. One mutex serializes Subscribe, Unsubscribe, Clean and Close.
type Librarian struct {
	resolver   InstrumentResolver
	newTracker TrackerFactory
	relay      Relay

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	subscriptions map[string]string
	trackers      map[string]*trackerEntry
	closed        bool
}

func NewLibrarian(resolver InstrumentResolver, newTracker TrackerFactory, relay Relay) *Librarian {
	ctx, cancel := context.WithCancel(context.Background())
	return &Librarian{
		resolver:   resolver,
		newTracker: newTracker,
		relay:      relay,

		ctx:    ctx,
		cancel: cancel,

		subscriptions: make(map[string]string),
		trackers:      make(map[string]*trackerEntry),
	}
}

// Subscribe points subscriberID at the instrument named by input, replacing
// any previous subscription, and makes sure a live tracker serves it.
// Unknown instruments return domain.ErrInstrumentNotFound and change nothing.
func (l *Librarian) Subscribe(ctx context.Context, subscriberID string, input string) (string, error) {
	symbol, err := l.resolver.Resolve(ctx, input)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return "", ErrLibrarianClosed
	}

	if previous, ok := l.subscriptions[subscriberID]; ok && previous != symbol {
		logger.Debug().Str("subscriber", subscriberID).Str("from", previous).Str("to", symbol).Msg("switching subscription")
	}
	l.subscriptions[subscriberID] = symbol
	l.ensureTracker(symbol)
	l.updateGauges()

	return symbol, nil
}

// Unsubscribe drops the subscription of subscriberID. The tracker is left
// for the next Clean.
func (l *Librarian) Unsubscribe(subscriberID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.subscriptions[subscriberID]; !ok {
		return false
	}
	delete(l.subscriptions, subscriberID)
	l.updateGauges()
	return true
}

// Clean stops every tracker no subscription references and recreates
// referenced trackers that have died. It returns the number of trackers
// stopped.
func (l *Librarian) Clean() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	referenced := make(map[string]struct{}, len(l.subscriptions))
	for _, symbol := range l.subscriptions {
		referenced[symbol] = struct{}{}
	}

	removed := 0
	var dead []string
	for symbol, entry := range l.trackers {
		if _, ok := referenced[symbol]; ok {
			if entry.dead() {
				dead = append(dead, symbol)
			}
			continue
		}
		l.stop(symbol, entry)
		removed++
	}
	for _, symbol := range dead {
		l.ensureTracker(symbol)
	}

	l.updateGauges()
	return removed
}

// Snapshot renders the book of a live tracker.
func (l *Librarian) Snapshot(symbol string, limit int) (*domain.OrderBookSnapshot, error) {
	symbol = domain.NormalizeSymbol(symbol)

	l.mu.Lock()
	entry, ok := l.trackers[symbol]
	l.mu.Unlock()

	if !ok || entry.dead() {
		return nil, ErrOrderBookNotFound
	}
	snapshot, ok := entry.tracker.Snapshot(limit)
	if !ok {
		return nil, ErrOrderBookNotFound
	}
	return snapshot, nil
}

// Close cancels every tracker and waits for them to release their feeds.
func (l *Librarian) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true

	entries := make([]*trackerEntry, 0, len(l.trackers))
	for symbol, entry := range l.trackers {
		l.stop(symbol, entry)
		entries = append(entries, entry)
	}
	l.subscriptions = make(map[string]string)
	l.updateGauges()
	l.mu.Unlock()

	l.cancel()
	for _, entry := range entries {
		<-entry.tracker.Done()
	}
	logger.Info().Int("trackers", len(entries)).Msg("librarian closed")
}

func (l *Librarian) SubscriptionOf(subscriberID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	symbol, ok := l.subscriptions[subscriberID]
	return symbol, ok
}

func (l *Librarian) SubscriptionsCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subscriptions)
}

func (l *Librarian) TrackersCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trackers)
}

func (l *Librarian) HasTracker(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.trackers[symbol]
	return ok
}

// ensureTracker must be called with l.mu held.
func (l *Librarian) ensureTracker(symbol string) {
	if entry, ok := l.trackers[symbol]; ok {
		if !entry.dead() {
			return
		}
		logger.Warn().Str("symbol", symbol).Msg("tracker is dead, recreating")
		l.stop(symbol, entry)
	}

	tracker := l.newTracker(symbol)
	tracker.SetTickHandler(l.onTick)

	ctx, cancel := context.WithCancel(l.ctx)
	l.trackers[symbol] = &trackerEntry{tracker: tracker, cancel: cancel}

	go func() {
		// failures are logged by the tracker itself
		_ = tracker.Run(ctx)
	}()
	logger.Info().Str("symbol", symbol).Msg("tracker started")
}

// stop must be called with l.mu held.
func (l *Librarian) stop(symbol string, entry *trackerEntry) {
	entry.tracker.SetTickHandler(nil)
	entry.cancel()
	delete(l.trackers, symbol)
	logger.Info().Str("symbol", symbol).Msg("tracker released")
}

func (l *Librarian) onTick(symbol string, snapshot *domain.OrderBookSnapshot) {
	if l.relay == nil {
		return
	}
	l.relay.Relay(symbol, snapshot)
}

func (l *Librarian) updateGauges() {
	promclient.OpenOrderBookTrackersGauge.Set(float64(len(l.trackers)))
	promclient.SubscriptionsGauge.Set(float64(len(l.subscriptions)))
}
