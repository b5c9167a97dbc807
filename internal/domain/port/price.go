package port

import (
	"context"
	"errors"

	"bitbalance/internal/domain/model"
)

// ErrSourceUnavailable marks a lookup that failed because the source could
// not be reached or answered with a server-side failure. A source that
// answered but had no price for the symbol reports a plain miss instead.
var ErrSourceUnavailable = errors.New("price source unavailable")

// PriceProvider is the capability every pipeline stage implements: adapters,
// the resilience wrapper, the fallback chain, the cache and the snapshot
// store. A nil quote with a nil error means no price is available; errors are
// reserved for faults such as cancellation, an unreachable source
// (ErrSourceUnavailable) or a failed write.
type PriceProvider interface {
	TryGetPrice(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error)
}

// PriceProviderFunc adapts a function to PriceProvider.
type PriceProviderFunc func(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error)

func (f PriceProviderFunc) TryGetPrice(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	return f(ctx, symbol)
}

// SymbolTracker keeps the set of symbols the poller refreshes.
type SymbolTracker interface {
	Track(symbol model.CoinSymbol)
	TrackedSymbols(ctx context.Context) ([]model.CoinSymbol, error)
}

// Broadcaster pushes fire-and-forget events to live subscribers.
type Broadcaster interface {
	PublishPriceUpdated(symbol model.CoinSymbol, price model.Money)
	PublishSourceUsed(source string)
}

// Notifier delivers a triggered alert to its owner out of band.
type Notifier interface {
	Notify(ctx context.Context, alert model.Alert) error
}
