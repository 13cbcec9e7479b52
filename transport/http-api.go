package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/orderbook-gateway/domain"
)

// InstrumentQuery is the read side of the instrument directory.
type InstrumentQuery interface {
	Search(ctx context.Context, prefix string) ([]string, error)
	Lookup(ctx context.Context, input string) (*domain.Instrument, error)
}

type InstrumentDetail struct {
	Symbol     string          `json:"symbol"`
	TickSize   decimal.Decimal `json:"tickSize"`
	BaseAsset  string          `json:"baseAsset,omitempty"`
	QuoteAsset string          `json:"quoteAsset,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter serves the websocket endpoint and the instrument queries.
func NewRouter(instruments InstrumentQuery, ws http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/ws", ws)
	mux.HandleFunc("GET /symbols", func(w http.ResponseWriter, r *http.Request) {
		names, err := instruments.Search(r.Context(), r.URL.Query().Get("name"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, names)
	})
	mux.HandleFunc("GET /symbols/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		instrument, err := instruments.Lookup(r.Context(), r.PathValue("symbol"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, InstrumentDetail{
			Symbol:     instrument.Symbol,
			TickSize:   instrument.TickSize,
			BaseAsset:  instrument.BaseAsset,
			QuoteAsset: instrument.QuoteAsset,
		})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

// NewServer wraps the router in an http.Server; the caller owns its lifecycle.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInstrumentNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	logger.Error().Err(err).Msg("instrument query failed")
	writeJSON(w, http.StatusBadGateway, errorResponse{Error: "instrument directory unavailable"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("failed to write response")
	}
}
