package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultTickSize is used when the exchange does not publish a price filter.
var DefaultTickSize = decimal.RequireFromString("0.001")

type Instrument struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	Status     string
	TickSize   decimal.Decimal
}

func NewInstrument(symbol, base, quote string, tickSize decimal.Decimal) (*Instrument, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol must not be empty")
	}
	if base != "" && base == quote {
		return nil, fmt.Errorf("base and quote must be different")
	}
	if !tickSize.IsPositive() {
		tickSize = DefaultTickSize
	}
	return &Instrument{
		Symbol:     symbol,
		BaseAsset:  strings.ToLower(base),
		QuoteAsset: strings.ToLower(quote),
		TickSize:   tickSize,
	}, nil
}

// NormalizeSymbol trims and case-folds raw user input.
func NormalizeSymbol(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// Join renders the pair with a separator, e.g. "btc_usdt". Instruments
// without asset metadata fall back to the bare symbol.
func (i *Instrument) Join(separator string) string {
	if i.BaseAsset == "" || i.QuoteAsset == "" {
		return i.Symbol
	}
	return fmt.Sprintf("%s%s%s", i.BaseAsset, separator, i.QuoteAsset)
}

func (i *Instrument) String() string {
	return i.Symbol
}
