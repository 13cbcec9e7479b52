package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrInstrumentNotFound = errors.New("instrument not found")

const DefaultDirectoryTTL = time.Hour

// InstrumentDirectory caches the exchange's valid instruments. Many
// resolutions may read it concurrently, at most one refresh is in flight.
type InstrumentDirectory struct {
	api ProviderInstrumentsAPI
	ttl time.Duration
	now func() time.Time

	mu          sync.RWMutex
	instruments map[string]Instrument
	names       []string
	expiresAt   time.Time

	refresh singleflight.Group
}

func NewInstrumentDirectory(api ProviderInstrumentsAPI, ttl time.Duration) *InstrumentDirectory {
	if ttl <= 0 {
		ttl = DefaultDirectoryTTL
	}
	return &InstrumentDirectory{
		api: api,
		ttl: ttl,
		now: time.Now,
	}
}

// Resolve returns the normalized symbol when it exactly matches a known
// instrument, ErrInstrumentNotFound otherwise.
func (d *InstrumentDirectory) Resolve(ctx context.Context, input string) (string, error) {
	instrument, err := d.Lookup(ctx, input)
	if err != nil {
		return "", err
	}
	return instrument.Symbol, nil
}

func (d *InstrumentDirectory) Lookup(ctx context.Context, input string) (*Instrument, error) {
	symbol := NormalizeSymbol(input)

	instruments, _, err := d.load(ctx)
	if err != nil {
		return nil, err
	}

	instrument, ok := instruments[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInstrumentNotFound, symbol)
	}
	return &instrument, nil
}

// Search lists the symbols starting with prefix, sorted. An empty prefix lists everything.
func (d *InstrumentDirectory) Search(ctx context.Context, prefix string) ([]string, error) {
	prefix = NormalizeSymbol(prefix)

	_, names, err := d.load(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0)
	start := sort.SearchStrings(names, prefix)
	for _, name := range names[start:] {
		if !strings.HasPrefix(name, prefix) {
			break
		}
		result = append(result, name)
	}
	return result, nil
}

func (d *InstrumentDirectory) load(ctx context.Context) (map[string]Instrument, []string, error) {
	if instruments, names, ok := d.cached(); ok {
		return instruments, names, nil
	}

	// The fetch outlives a cancelled caller so other waiters still get the result.
	fetchCtx := context.WithoutCancel(ctx)
	ch := d.refresh.DoChan("instruments", func() (interface{}, error) {
		if _, _, ok := d.cached(); ok {
			return nil, nil
		}
		return nil, d.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, nil, res.Err
		}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.instruments, d.names, nil
}

func (d *InstrumentDirectory) cached() (map[string]Instrument, []string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.instruments == nil || !d.now().Before(d.expiresAt) {
		return nil, nil, false
	}
	return d.instruments, d.names, true
}

func (d *InstrumentDirectory) fetch(ctx context.Context) error {
	list, err := d.api.ValidInstruments(ctx)
	if err != nil {
		return fmt.Errorf("fetch valid instruments: %w", err)
	}

	instruments := make(map[string]Instrument, len(list))
	names := make([]string, 0, len(list))
	for _, instrument := range list {
		instrument.Symbol = NormalizeSymbol(instrument.Symbol)
		if instrument.Symbol == "" {
			continue
		}
		if _, dup := instruments[instrument.Symbol]; !dup {
			names = append(names, instrument.Symbol)
		}
		instruments[instrument.Symbol] = instrument
	}
	sort.Strings(names)

	d.mu.Lock()
	d.instruments = instruments
	d.names = names
	d.expiresAt = d.now().Add(d.ttl)
	d.mu.Unlock()

	logger.Info().Int("count", len(names)).Msg("instrument directory refreshed")
	return nil
}
