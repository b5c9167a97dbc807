package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

// Tracker is the set of symbols the poller keeps fresh. On first read it
// merges in every symbol that already has a persisted snapshot.
type Tracker struct {
	store  port.SnapshotStore
	logger *slog.Logger

	mu       sync.RWMutex
	symbols  map[model.CoinSymbol]struct{}
	hydrated bool
}

var _ port.SymbolTracker = (*Tracker)(nil)

func NewTracker(store port.SnapshotStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:   store,
		logger:  logger,
		symbols: make(map[model.CoinSymbol]struct{}),
	}
}

func (t *Tracker) Track(symbol model.CoinSymbol) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.symbols[symbol]; ok {
		return
	}
	t.symbols[symbol] = struct{}{}
	t.logger.Debug("tracking symbol", "symbol", symbol)
}

// TrackedSymbols returns a sorted copy. A failed hydration is returned and
// retried on the next call.
func (t *Tracker) TrackedSymbols(ctx context.Context) ([]model.CoinSymbol, error) {
	t.mu.RLock()
	hydrated := t.hydrated
	t.mu.RUnlock()

	if !hydrated {
		if err := t.hydrate(ctx); err != nil {
			return nil, err
		}
	}

	t.mu.RLock()
	out := make([]model.CoinSymbol, 0, len(t.symbols))
	for s := range t.symbols {
		out = append(out, s)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (t *Tracker) hydrate(ctx context.Context) error {
	persisted, err := t.store.AllSymbols(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted symbols: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hydrated {
		return nil
	}
	for _, s := range persisted {
		t.symbols[s] = struct{}{}
	}
	t.hydrated = true
	t.logger.Info("tracker hydrated from snapshots", "persisted", len(persisted), "tracked", len(t.symbols))
	return nil
}
