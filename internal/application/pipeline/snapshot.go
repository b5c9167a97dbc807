package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

// Saving persists every quote it passes through as the symbol's snapshot
// and starts tracking the symbol once the write succeeded.
//
// A failed write is returned as an error even though an inner cache may
// already hold the quote. The quote is still valid; the next lookup hits the
// cache, passes through Saving again and retries the write.
type Saving struct {
	inner   port.PriceProvider
	store   port.SnapshotStore
	tracker port.SymbolTracker
	logger  *slog.Logger
}

var _ port.PriceProvider = (*Saving)(nil)

func NewSaving(inner port.PriceProvider, store port.SnapshotStore, tracker port.SymbolTracker, logger *slog.Logger) *Saving {
	return &Saving{inner: inner, store: store, tracker: tracker, logger: logger}
}

func (s *Saving) TryGetPrice(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	q, err := s.inner.TryGetPrice(ctx, symbol)
	if err != nil || q == nil {
		return q, err
	}

	if err := s.store.UpsertSnapshot(ctx, model.SnapshotOf(*q)); err != nil {
		s.logger.Error("failed to save price snapshot", "symbol", symbol, "source", q.Source, "error", err)
		return nil, fmt.Errorf("failed to save snapshot for %s: %w", symbol, err)
	}

	s.tracker.Track(symbol)
	s.logger.Debug("price snapshot saved", "symbol", symbol, "source", q.Source, "price", q.Price.Amount())
	return q, nil
}
