package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

var ErrEmptyChain = errors.New("fallback chain has no stages")

// Stage is one named source in a fallback chain.
type Stage struct {
	Name     string
	Provider port.PriceProvider
}

// Fallback asks its stages in order and returns the first quote.
// The stage list is fixed at construction.
type Fallback struct {
	stages      []Stage
	broadcaster port.Broadcaster
	logger      *slog.Logger
}

var _ port.PriceProvider = (*Fallback)(nil)

// NewFallback copies stages. broadcaster may be nil.
func NewFallback(stages []Stage, broadcaster port.Broadcaster, logger *slog.Logger) (*Fallback, error) {
	if len(stages) == 0 {
		return nil, ErrEmptyChain
	}
	return &Fallback{
		stages:      append([]Stage(nil), stages...),
		broadcaster: broadcaster,
		logger:      logger,
	}, nil
}

// Names returns the stage names in visiting order.
func (f *Fallback) Names() []string {
	names := make([]string, len(f.stages))
	for i, s := range f.stages {
		names[i] = s.Name
	}
	return names
}

func (f *Fallback) TryGetPrice(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	for _, stage := range f.stages {
		q, err := stage.Provider.TryGetPrice(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("source failed, trying next", "source", stage.Name, "symbol", symbol, "error", err)
			continue
		}
		if q == nil {
			f.logger.Debug("source has no price, trying next", "source", stage.Name, "symbol", symbol)
			continue
		}

		if q.Source == "" {
			q.Source = stage.Name
		}
		if f.broadcaster != nil {
			f.broadcaster.PublishSourceUsed(stage.Name)
		}
		f.logger.Debug("price served", "source", stage.Name, "symbol", symbol)
		return q, nil
	}

	f.logger.Info("no source could price symbol", "symbol", symbol, "sources", len(f.stages))
	return nil, nil
}
