package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var logger = log.With().Str("component", "redis").Logger()

const (
	DefaultChannelPrefix = "orderbook."
	DefaultSnapshotTTL   = time.Minute

	latestSuffix = ":latest"
	writeTimeout = 2 * time.Second
)

// Publisher is a relay sink that republishes book updates on Redis:
// PUBLISH on <prefix><symbol> and the latest payload under
// <prefix><symbol>:latest.
type Publisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewPublisher(client *redis.Client, prefix string, ttl time.Duration) *Publisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Publisher{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Connect dials addr and checks the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (p *Publisher) Name() string {
	return "redis"
}

func (p *Publisher) Channel(symbol string) string {
	return p.prefix + symbol
}

func (p *Publisher) LatestKey(symbol string) string {
	return p.prefix + symbol + latestSuffix
}

func (p *Publisher) Broadcast(symbol string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, p.Channel(symbol), payload)
	pipe.Set(ctx, p.LatestKey(symbol), payload, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error().Err(err).Str("symbol", symbol).Msg("failed to publish book update")
	}
}

// Latest returns the last payload published for symbol, if it has not expired.
func (p *Publisher) Latest(ctx context.Context, symbol string) ([]byte, bool, error) {
	payload, err := p.client.Get(ctx, p.LatestKey(symbol)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
