package worker

import (
	"context"
	"log/slog"
	"sync"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

// Result is the outcome of one symbol lookup. Quote is nil on a miss.
type Result struct {
	Symbol model.CoinSymbol
	Quote  *model.Quote
	Err    error
}

// Pool looks up symbols through a provider with a fixed number of workers.
type Pool struct {
	workers  int
	provider port.PriceProvider
	logger   *slog.Logger
}

func NewPool(workers int, provider port.PriceProvider, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers:  workers,
		provider: provider,
		logger:   logger,
	}
}

// Start reads symbols from in and emits one Result per symbol processed.
// The returned channel is closed when in is drained or ctx is done and all
// workers have returned.
func (p *Pool) Start(ctx context.Context, in <-chan model.CoinSymbol) <-chan Result {
	out := make(chan Result)
	var wg sync.WaitGroup

	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func(id int) {
			defer wg.Done()
			p.workerLoop(ctx, id, in, out)
		}(i)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// FetchAll looks up every symbol and returns once all lookups finished.
func (p *Pool) FetchAll(ctx context.Context, symbols []model.CoinSymbol) []Result {
	in := make(chan model.CoinSymbol)
	go func() {
		defer close(in)
		for _, s := range symbols {
			select {
			case <-ctx.Done():
				return
			case in <- s:
			}
		}
	}()

	results := make([]Result, 0, len(symbols))
	for r := range p.Start(ctx, in) {
		results = append(results, r)
	}
	return results
}

func (p *Pool) workerLoop(ctx context.Context, id int, in <-chan model.CoinSymbol, out chan<- Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case symbol, ok := <-in:
			if !ok {
				return
			}
			r := p.processOne(ctx, id, symbol)

			select {
			case <-ctx.Done():
				return
			case out <- r:
			}
		}
	}
}

func (p *Pool) processOne(ctx context.Context, id int, symbol model.CoinSymbol) Result {
	q, err := p.provider.TryGetPrice(ctx, symbol)
	if err != nil {
		p.logger.Error("worker: price lookup failed", "worker", id, "symbol", symbol, "error", err)
	} else if q == nil {
		p.logger.Debug("worker: no price", "worker", id, "symbol", symbol)
	} else {
		p.logger.Debug("worker: priced", "worker", id, "symbol", symbol, "source", q.Source, "price", q.Price.Amount())
	}
	return Result{Symbol: symbol, Quote: q, Err: err}
}
