package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

type PriceUseCase struct {
	chain   port.PriceProvider
	store   port.SnapshotStore
	tracker port.SymbolTracker
	logger  *slog.Logger
}

func NewPriceUseCase(chain port.PriceProvider, store port.SnapshotStore, tracker port.SymbolTracker, logger *slog.Logger) *PriceUseCase {
	return &PriceUseCase{
		chain:   chain,
		store:   store,
		tracker: tracker,
		logger:  logger,
	}
}

// GetLatestPrice asks the chain first and falls back to the last snapshot,
// marked stale. nil, nil means the symbol was never priced.
func (uc *PriceUseCase) GetLatestPrice(ctx context.Context, symbol model.CoinSymbol) (*model.LatestPrice, error) {
	q, err := uc.chain.TryGetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get price for %s: %w", symbol, err)
	}
	if q != nil {
		return &model.LatestPrice{
			Symbol:     q.Symbol,
			Price:      q.Price,
			Source:     q.Source,
			ObservedAt: q.ObservedAt,
		}, nil
	}

	snap, err := uc.store.GetSnapshot(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot for %s: %w", symbol, err)
	}
	if snap == nil {
		return nil, nil
	}

	uc.logger.Info("serving stale snapshot", "symbol", symbol, "source", snap.Source, "observed_at", snap.ObservedAt)
	return &model.LatestPrice{
		Symbol:     snap.Symbol,
		Price:      snap.Price,
		Source:     snap.Source,
		ObservedAt: snap.ObservedAt,
		Stale:      true,
	}, nil
}

// GetSnapshot returns the persisted snapshot without contacting any source.
func (uc *PriceUseCase) GetSnapshot(ctx context.Context, symbol model.CoinSymbol) (*model.PriceSnapshot, error) {
	return uc.store.GetSnapshot(ctx, symbol)
}

func (uc *PriceUseCase) TrackedSymbols(ctx context.Context) ([]model.CoinSymbol, error) {
	return uc.tracker.TrackedSymbols(ctx)
}
