package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "price:"

type RedisAdapter struct {
	client *redis.Client
}

var _ port.PriceCache = (*RedisAdapter)(nil)

func NewRedisAdapter(ctx context.Context, addr, password string, db int) (*RedisAdapter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisAdapter{client: client}, nil
}

func priceKey(symbol model.CoinSymbol) string {
	return keyPrefix + symbol.String()
}

func (a *RedisAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// SetQuote stores the quote under price:{SYMBOL}; redis expires it after ttl.
func (a *RedisAdapter) SetQuote(ctx context.Context, quote model.Quote, ttl time.Duration) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}

	if err := a.client.Set(ctx, priceKey(quote.Symbol), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set quote in redis: %w", err)
	}
	return nil
}

func (a *RedisAdapter) GetQuote(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	data, err := a.client.Get(ctx, priceKey(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quote from redis: %w", err)
	}

	var quote model.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}
	return &quote, nil
}

func (a *RedisAdapter) Close() error {
	return a.client.Close()
}
