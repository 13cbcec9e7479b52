package provider

import (
	"github.com/rs/zerolog/log"
	"github.com/spooky-finn/orderbook-gateway/config"
	"github.com/spooky-finn/orderbook-gateway/domain"
	"github.com/spooky-finn/orderbook-gateway/provider/binance"
)

var logger = log.With().Str("component", "conn-manager").Logger()

// ConnectionManager owns the exchange clients and builds trackers on top of them.
type ConnectionManager struct {
	BinanceWC        *binance.BinanceStreamClient
	BinanceSyncAPI   *binance.BinanceSyncAPI
	BinanceStreamAPI *binance.BinanceStreamAPI

	validator domain.DepthUpdateValidator
	opts      domain.TrackerOptions
}

func NewConnectionManager(conf *config.Config) *ConnectionManager {
	binanceStreamClient := binance.NewBinanceStreamClient(conf.Binance.StreamURL)

	var validator domain.DepthUpdateValidator = &binance.BinanceDepthUpdateValidator{}
	if conf.Tracker.SequencePolicy == config.SequencePolicyLoose {
		validator = &domain.LooseDepthUpdateValidator{}
	}

	logger.Info().
		Str("rest", conf.Binance.RestURL).
		Str("stream", conf.Binance.StreamURL).
		Str("sequencePolicy", conf.Tracker.SequencePolicy).
		Msg("connection manager ready")

	return &ConnectionManager{
		BinanceWC:        binanceStreamClient,
		BinanceSyncAPI:   binance.NewBinanceSyncAPI(conf.Binance.RestURL, conf.Binance.Permissions),
		BinanceStreamAPI: binance.NewBinanceStreamAPI(binanceStreamClient),

		validator: validator,
		opts: domain.TrackerOptions{
			SnapshotLimit:    conf.Binance.SnapshotLimit,
			LatencyThreshold: conf.Tracker.LatencyThreshold,
			MaxResyncs:       conf.Tracker.MaxResyncs,
			ResyncBackoff:    conf.Tracker.ResyncBackoff,
		},
	}
}

func (cm *ConnectionManager) StreamAPI() domain.ProviderStreamAPI {
	return cm.BinanceStreamAPI
}

func (cm *ConnectionManager) SyncAPI() domain.ProviderSyncAPI {
	return cm.BinanceSyncAPI
}

func (cm *ConnectionManager) InstrumentsAPI() domain.ProviderInstrumentsAPI {
	return cm.BinanceSyncAPI
}

// NewTracker builds an unstarted tracker for symbol.
func (cm *ConnectionManager) NewTracker(symbol string) *domain.BookTracker {
	return domain.NewBookTracker(symbol, cm.StreamAPI(), cm.SyncAPI(), cm.validator, cm.opts)
}
