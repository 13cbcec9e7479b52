package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/orderbook-gateway/domain"
)

const (
	binanceDefaultRestEndpoint = "https://api.binance.com"
	requestTimeout             = 10 * time.Second
	priceFilter                = "PRICE_FILTER"
)

// BinanceSyncAPI is the REST side: depth snapshots and exchange info.
type BinanceSyncAPI struct {
	endpoint    string
	permissions string
	client      *http.Client
}

type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api: status=%d code=%d msg=%s", e.Status, e.Code, e.Message)
}

type depthResponse struct {
	LastUpdateId int64               `json:"lastUpdateId"`
	Bids         []domain.PriceLevel `json:"bids"`
	Asks         []domain.PriceLevel `json:"asks"`
}

type exchangeInfoResponse struct {
	Symbols []symbolModel `json:"symbols"`
}

type symbolModel struct {
	Symbol     string        `json:"symbol"`
	Status     string        `json:"status"`
	BaseAsset  string        `json:"baseAsset"`
	QuoteAsset string        `json:"quoteAsset"`
	Filters    []filterModel `json:"filters"`
}

type filterModel struct {
	FilterType string `json:"filterType"`
	TickSize   string `json:"tickSize"`
}

func NewBinanceSyncAPI(endpoint string, permissions string) *BinanceSyncAPI {
	if endpoint == "" {
		endpoint = binanceDefaultRestEndpoint
	}
	return &BinanceSyncAPI{
		endpoint:    strings.TrimRight(endpoint, "/"),
		permissions: permissions,
		client:      &http.Client{Timeout: requestTimeout},
	}
}

func (api *BinanceSyncAPI) OrderBookSnapshot(ctx context.Context, symbol string, limit int) (*domain.OrderBookSnapshot, error) {
	query := url.Values{}
	query.Set("symbol", strings.ToUpper(symbol))
	query.Set("limit", strconv.Itoa(limit))

	var response depthResponse
	if err := api.get(ctx, "/api/v3/depth", query, &response); err != nil {
		return nil, fmt.Errorf("failed to get order book snapshot: %w", err)
	}

	return &domain.OrderBookSnapshot{
		Source:       domain.OrderBookSource_Provider,
		Symbol:       strings.ToLower(symbol),
		LastUpdateId: response.LastUpdateId,
		Bids:         response.Bids,
		Asks:         response.Asks,
	}, nil
}

func (api *BinanceSyncAPI) ValidInstruments(ctx context.Context) ([]domain.Instrument, error) {
	query := url.Values{}
	if api.permissions != "" {
		query.Set("permissions", fmt.Sprintf(`["%s"]`, api.permissions))
	}

	var response exchangeInfoResponse
	if err := api.get(ctx, "/api/v3/exchangeInfo", query, &response); err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	instruments := make([]domain.Instrument, 0, len(response.Symbols))
	for _, s := range response.Symbols {
		instruments = append(instruments, domain.Instrument{
			Symbol:     strings.ToLower(s.Symbol),
			BaseAsset:  strings.ToLower(s.BaseAsset),
			QuoteAsset: strings.ToLower(s.QuoteAsset),
			Status:     s.Status,
			TickSize:   s.tickSize(),
		})
	}
	return instruments, nil
}

func (s *symbolModel) tickSize() decimal.Decimal {
	for _, filter := range s.Filters {
		if filter.FilterType != priceFilter {
			continue
		}
		tick, err := decimal.NewFromString(filter.TickSize)
		if err == nil && tick.IsPositive() {
			return tick
		}
	}
	return domain.DefaultTickSize
}

func (api *BinanceSyncAPI) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := api.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := api.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return nil
}
