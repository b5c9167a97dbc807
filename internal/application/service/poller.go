package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"bitbalance/internal/concurrency/worker"
	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

// PollerState is what the poller is doing right now.
type PollerState int32

const (
	PollerIdle PollerState = iota
	PollerCycle
)

func (s PollerState) String() string {
	if s == PollerCycle {
		return "cycle"
	}
	return "idle"
}

const (
	DefaultPollInterval       = 10 * time.Second
	DefaultMaxSymbolsPerCycle = 20
)

type PollerConfig struct {
	Interval           time.Duration
	MaxSymbolsPerCycle int
	Workers            int
}

// CycleReport summarizes one refresh cycle.
type CycleReport struct {
	Attempted int
	Updated   int
	Missed    int
	Failed    int
}

// Poller refreshes tracked symbols through the price chain on an interval
// and announces every fresh price.
type Poller struct {
	tracker     port.SymbolTracker
	pool        *worker.Pool
	broadcaster port.Broadcaster
	interval    time.Duration
	maxPerCycle int
	logger      *slog.Logger

	state  atomic.Int32
	cursor int // owned by the running loop

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

func NewPoller(chain port.PriceProvider, tracker port.SymbolTracker, broadcaster port.Broadcaster, cfg PollerConfig, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxSymbolsPerCycle <= 0 {
		cfg.MaxSymbolsPerCycle = DefaultMaxSymbolsPerCycle
	}
	return &Poller{
		tracker:     tracker,
		pool:        worker.NewPool(cfg.Workers, chain, logger),
		broadcaster: broadcaster,
		interval:    cfg.Interval,
		maxPerCycle: cfg.MaxSymbolsPerCycle,
		logger:      logger,
	}
}

func (p *Poller) State() PollerState {
	return PollerState(p.state.Load())
}

// Start runs the loop in a goroutine until Stop or ctx is done.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopped = make(chan struct{})

	p.logger.Info("price poller starting", "interval", p.interval.String(), "max_symbols_per_cycle", p.maxPerCycle)
	go func(done chan struct{}) {
		defer close(done)
		p.Run(ctx)
	}(p.stopped)
}

// Stop cancels the loop and waits for the current cycle to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, stopped := p.cancel, p.stopped
	p.cancel, p.stopped = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	p.logger.Info("price poller stopped")
}

// Run refreshes, then sleeps for the interval, until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poll loop started")

	for {
		if ctx.Err() != nil {
			p.logger.Info("poll loop cancelled by context")
			return
		}

		start := time.Now()
		report := p.RunCycle(ctx)
		if report.Attempted > 0 {
			p.logger.Info("poll cycle completed",
				"attempted", report.Attempted,
				"updated", report.Updated,
				"missed", report.Missed,
				"failed", report.Failed,
				"duration", time.Since(start))
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("poll loop cancelled by context")
			return
		case <-timer.C:
		}
	}
}

// RunCycle refreshes the next batch of tracked symbols and blocks until every
// lookup in the batch returned.
func (p *Poller) RunCycle(ctx context.Context) CycleReport {
	p.state.Store(int32(PollerCycle))
	defer p.state.Store(int32(PollerIdle))

	symbols, err := p.tracker.TrackedSymbols(ctx)
	if err != nil {
		p.logger.Error("failed to list tracked symbols", "error", err)
		return CycleReport{}
	}
	if len(symbols) == 0 {
		p.logger.Debug("no tracked symbols to refresh")
		return CycleReport{}
	}

	batch := p.nextBatch(symbols)
	report := CycleReport{Attempted: len(batch)}

	for _, r := range p.pool.FetchAll(ctx, batch) {
		switch {
		case r.Err != nil:
			report.Failed++
			p.logger.Warn("failed to refresh price", "symbol", r.Symbol, "error", r.Err)
		case r.Quote == nil:
			report.Missed++
			p.logger.Debug("no price this cycle", "symbol", r.Symbol)
		default:
			report.Updated++
			if p.broadcaster != nil {
				p.broadcaster.PublishPriceUpdated(r.Symbol, r.Quote.Price)
			}
		}
	}
	return report
}

// nextBatch takes up to maxPerCycle symbols starting at the cursor, wrapping
// around, so every tracked symbol gets its turn.
func (p *Poller) nextBatch(symbols []model.CoinSymbol) []model.CoinSymbol {
	n := len(symbols)
	if n <= p.maxPerCycle {
		p.cursor = 0
		return symbols
	}

	start := p.cursor % n
	batch := make([]model.CoinSymbol, 0, p.maxPerCycle)
	for i := 0; i < p.maxPerCycle; i++ {
		batch = append(batch, symbols[(start+i)%n])
	}
	p.cursor = (start + p.maxPerCycle) % n
	return batch
}
