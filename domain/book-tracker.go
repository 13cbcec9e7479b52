package domain

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	promclient "github.com/spooky-finn/orderbook-gateway/infrastructure/prometheus"
)

var (
	ErrTrackerStarted = errors.New("tracker already started")
	ErrTooManyResyncs = errors.New("out of sequence updates limit reached")
	ErrFeedEnded      = errors.New("depth update feed ended")
)

const (
	DefaultSnapshotLimit    = 1000
	DefaultLatencyThreshold = 150 * time.Millisecond
	DefaultMaxResyncs       = 10
	DefaultResyncBackoff    = 100 * time.Millisecond
)

// TickHandler observes every applied update. It receives a rendered copy
// of the book and is called from the tracker goroutine, so it must not block.
type TickHandler func(symbol string, snapshot *OrderBookSnapshot)

type TrackerOptions struct {
	SnapshotLimit    int
	LatencyThreshold time.Duration
	MaxResyncs       int
	// ResyncBackoff spaces consecutive resyncs: the n-th one waits
	// (n-1)*ResyncBackoff before fetching a snapshot.
	ResyncBackoff time.Duration
}

// BookTracker maintains the order book of one instrument from a REST
// snapshot plus the diff feed.
type BookTracker struct {
	symbol    string
	syncAPI   ProviderSyncAPI
	streamAPI ProviderStreamAPI
	validator DepthUpdateValidator
	opts      TrackerOptions

	book   *OrderBook
	queue  *UpdateQueue
	onTick atomic.Pointer[TickHandler]

	started atomic.Bool
	synced  atomic.Bool
	done    chan struct{}

	resyncs int
}

func NewBookTracker(
	symbol string,
	stream ProviderStreamAPI,
	syncAPI ProviderSyncAPI,
	validator DepthUpdateValidator,
	opts TrackerOptions,
) *BookTracker {
	if opts.SnapshotLimit <= 0 {
		opts.SnapshotLimit = DefaultSnapshotLimit
	}
	if opts.MaxResyncs <= 0 {
		opts.MaxResyncs = DefaultMaxResyncs
	}
	if opts.ResyncBackoff <= 0 {
		opts.ResyncBackoff = DefaultResyncBackoff
	}
	if validator == nil {
		validator = &LooseDepthUpdateValidator{}
	}

	return &BookTracker{
		symbol:    symbol,
		syncAPI:   syncAPI,
		streamAPI: stream,
		validator: validator,
		opts:      opts,

		book:  NewOrderBook(symbol),
		queue: NewUpdateQueue(),
		done:  make(chan struct{}),
	}
}

func (t *BookTracker) Symbol() string {
	return t.symbol
}

// SetTickHandler registers the single observer; nil unregisters it.
func (t *BookTracker) SetTickHandler(h TickHandler) {
	if h == nil {
		t.onTick.Store(nil)
		return
	}
	t.onTick.Store(&h)
}

// Done is closed when Run has returned.
func (t *BookTracker) Done() <-chan struct{} {
	return t.done
}

// Snapshot renders the current book. It reports false until the first
// snapshot has been loaded.
func (t *BookTracker) Snapshot(limit int) (*OrderBookSnapshot, bool) {
	if !t.synced.Load() {
		return nil, false
	}
	return t.book.TakeSnapshot(limit), true
}

// Run drives the tracker until ctx is cancelled or the feed fails. The
// feed connection is released on every exit path.
func (t *BookTracker) Run(ctx context.Context) (err error) {
	if !t.started.CompareAndSwap(false, true) {
		return ErrTrackerStarted
	}
	defer close(t.done)
	defer func() {
		if err == nil || errors.Is(err, context.Canceled) {
			logger.Info().Str("symbol", t.symbol).Msg("tracker stopped")
			return
		}
		promclient.TrackerFailuresCounter.WithLabelValues(t.symbol).Inc()
		logger.Error().Err(err).Str("symbol", t.symbol).Msg("tracker terminated")
	}()

	ctx, cancel := context.WithCancel(ctx)

	subscription, err := t.streamAPI.DepthDiffStream(ctx, t.symbol)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to depth stream of %s: %w", t.symbol, err)
	}

	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		t.readFeed(ctx, subscription)
	}()
	defer func() {
		cancel()
		<-feedDone
		subscription.Unsubscribe()
	}()

	// The feed has to be live before the snapshot is taken, otherwise the
	// snapshot could predate the first buffered event.
	if err := t.queue.WaitReady(ctx); err != nil {
		return t.loopErr(err)
	}
	logger.Debug().Str("symbol", t.symbol).Msg("depth stream is live, fetching snapshot")

	if err := t.synchronize(ctx); err != nil {
		return err
	}

	for {
		update, err := t.queue.Pop(ctx)
		if err != nil {
			return t.loopErr(err)
		}
		if err := t.process(ctx, update); err != nil {
			return err
		}
	}
}

func (t *BookTracker) loopErr(err error) error {
	if errors.Is(err, ErrQueueClosed) {
		return fmt.Errorf("%w: %s", ErrFeedEnded, t.symbol)
	}
	return err
}

func (t *BookTracker) readFeed(ctx context.Context, subscription *Subscription[*OrderBookUpdate]) {
	defer t.queue.Close()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-subscription.Stream:
			if !ok {
				return
			}
			if update == nil {
				continue
			}

			now := time.Now()
			if !last.IsZero() && t.opts.LatencyThreshold > 0 {
				if gap := now.Sub(last); gap > t.opts.LatencyThreshold {
					promclient.AbnormalFeedDelayCounter.WithLabelValues(t.symbol).Inc()
					logger.Warn().Str("symbol", t.symbol).Dur("gap", gap).Msg("abnormal websocket delay")
				}
			}
			last = now

			t.queue.Push(update)
		}
	}
}

func (t *BookTracker) synchronize(ctx context.Context) error {
	snapshot, err := t.syncAPI.OrderBookSnapshot(ctx, t.symbol, t.opts.SnapshotLimit)
	if err != nil {
		return fmt.Errorf("fetch snapshot of %s: %w", t.symbol, err)
	}

	t.book.Reset(snapshot)
	t.synced.Store(true)

	logger.Info().Str("symbol", t.symbol).Int64("lastUpdateId", snapshot.LastUpdateId).Msg("received snapshot")
	return nil
}

func (t *BookTracker) process(ctx context.Context, update *OrderBookUpdate) error {
	for {
		err := t.validator.IsValidUpd(update, t.book.LastUpdateID())
		switch {
		case err == nil:
			t.book.ApplyUpdate(update)
			t.resyncs = 0
			promclient.AppliedUpdatesCounter.WithLabelValues(t.symbol).Inc()
			t.notify()
			return nil

		case errors.Is(err, ErrOrderBookUpdateIsOutdated):
			return nil

		case errors.Is(err, ErrOrderBookUpdateIsOutOfSequence):
			t.resyncs++
			if t.resyncs > t.opts.MaxResyncs {
				return fmt.Errorf("%w: %s", ErrTooManyResyncs, t.symbol)
			}
			promclient.ResyncCounter.WithLabelValues(t.symbol).Inc()
			logger.Warn().
				Str("symbol", t.symbol).
				Int64("bookLastUpdateId", t.book.LastUpdateID()).
				Int64("firstUpdateId", update.FirstUpdateID).
				Msg("sequence gap, resynchronizing from snapshot")

			if err := t.waitResync(ctx); err != nil {
				return err
			}
			if err := t.synchronize(ctx); err != nil {
				return err
			}

		default:
			return err
		}
	}
}

func (t *BookTracker) waitResync(ctx context.Context) error {
	delay := t.opts.ResyncBackoff * time.Duration(t.resyncs-1)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *BookTracker) notify() {
	h := t.onTick.Load()
	if h == nil {
		return
	}
	(*h)(t.symbol, t.book.TakeSnapshot(0))
}
