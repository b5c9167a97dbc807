package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"bitbalance/internal/domain/port"
)

// Options holds the tuning shared by every stage of a chain.
type Options struct {
	Retry    RetryPolicy
	Breaker  BreakerConfig
	CacheTTL time.Duration
}

// Deps are the collaborators a chain is wired to. Cache, Modes, Test and
// Broadcaster are optional.
type Deps struct {
	Store       port.SnapshotStore
	Tracker     port.SymbolTracker
	Cache       port.PriceCache
	Broadcaster port.Broadcaster
	Modes       ModeSource
	// Test serves prices while Modes reports test mode.
	Test   port.PriceProvider
	Logger *slog.Logger
}

// Build wraps each source in retries, chains them in the given order and
// puts the cache and the snapshot layer on top. With Modes and Test set the
// result switches to the test provider in test mode; that branch is neither
// cached nor persisted, since the cache and the store outlive the process's
// mode.
func Build(sources []Stage, deps Deps, opts Options) (port.PriceProvider, error) {
	stages := make([]Stage, 0, len(sources))
	for _, src := range sources {
		breaker := NewBreaker(src.Name, opts.Breaker, deps.Logger)
		stages = append(stages, Stage{
			Name:     src.Name,
			Provider: NewResilient(src.Name, src.Provider, opts.Retry, breaker, deps.Logger),
		})
	}

	live, err := NewFallback(stages, deps.Broadcaster, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build live chain: %w", err)
	}

	var chain port.PriceProvider = live
	if deps.Cache != nil {
		chain = NewCached(chain, deps.Cache, opts.CacheTTL, deps.Logger)
	}
	chain = NewSaving(chain, deps.Store, deps.Tracker, deps.Logger)

	if deps.Modes != nil && deps.Test != nil {
		test, err := NewFallback([]Stage{{Name: "mock", Provider: deps.Test}}, deps.Broadcaster, deps.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build test chain: %w", err)
		}
		chain = NewModeSwitch(deps.Modes, chain, test)
	}

	deps.Logger.Info("price chain built", "sources", live.Names(), "cache", deps.Cache != nil)
	return chain, nil
}
