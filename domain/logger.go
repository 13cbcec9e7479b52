package domain

import "github.com/rs/zerolog/log"

var logger = log.With().Str("component", "orderbook").Logger()
