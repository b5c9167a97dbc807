package port

import (
	"context"
	"time"

	"bitbalance/internal/domain/model"
)

// PriceCache stores quotes for a limited time. Get returns nil, nil when
// there is no live entry.
type PriceCache interface {
	GetQuote(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error)
	SetQuote(ctx context.Context, quote model.Quote, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}
