package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"bitbalance/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quote(symbol model.CoinSymbol, amount, source string) *model.Quote {
	return &model.Quote{
		Symbol:     symbol,
		Price:      model.MustMoney(amount, "USD"),
		Source:     source,
		ObservedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// scripted answers from a per-symbol price table and counts calls.
type scripted struct {
	mu     sync.Mutex
	prices map[model.CoinSymbol]string
	source string
	err    error
	calls  int
	// answers, when set, is consumed one per call before prices is used
	answers []*model.Quote
}

func (s *scripted) TryGetPrice(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.answers) > 0 {
		q := s.answers[0]
		s.answers = s.answers[1:]
		return q, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	amount, ok := s.prices[symbol]
	if !ok {
		return nil, nil
	}
	return quote(symbol, amount, s.source), nil
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	sources []string
	updates []model.CoinSymbol
}

func (b *recordingBroadcaster) PublishPriceUpdated(symbol model.CoinSymbol, _ model.Money) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, symbol)
}

func (b *recordingBroadcaster) PublishSourceUsed(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, source)
}

type fakeStore struct {
	mu        sync.Mutex
	snapshots map[model.CoinSymbol]model.PriceSnapshot
	failWrite bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: make(map[model.CoinSymbol]model.PriceSnapshot)}
}

func (s *fakeStore) AllSymbols(ctx context.Context) ([]model.CoinSymbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CoinSymbol
	for k := range s.snapshots {
		out = append(out, k)
	}
	return out, nil
}

func (s *fakeStore) UpsertSnapshot(ctx context.Context, snap model.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return errors.New("disk full")
	}
	s.snapshots[snap.Symbol] = snap
	return nil
}

func (s *fakeStore) GetSnapshot(ctx context.Context, symbol model.CoinSymbol) (*model.PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[symbol]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

type fakeTracker struct {
	mu      sync.Mutex
	tracked map[model.CoinSymbol]bool
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{tracked: make(map[model.CoinSymbol]bool)}
}

func (t *fakeTracker) Track(symbol model.CoinSymbol) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked[symbol] = true
}

func (t *fakeTracker) TrackedSymbols(ctx context.Context) ([]model.CoinSymbol, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.CoinSymbol
	for k := range t.tracked {
		out = append(out, k)
	}
	return out, nil
}

func (t *fakeTracker) Has(symbol model.CoinSymbol) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracked[symbol]
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[model.CoinSymbol]model.Quote
	ttls    map[model.CoinSymbol]time.Duration
	readErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[model.CoinSymbol]model.Quote),
		ttls:    make(map[model.CoinSymbol]time.Duration),
	}
}

func (c *fakeCache) GetQuote(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	q, ok := c.entries[symbol]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (c *fakeCache) SetQuote(ctx context.Context, q model.Quote, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[q.Symbol] = q
	c.ttls[q.Symbol] = ttl
	return nil
}

func (c *fakeCache) Ping(ctx context.Context) error { return nil }
func (c *fakeCache) Close() error                   { return nil }

type fixedMode model.DataMode

func (m fixedMode) GetCurrentMode() model.DataMode { return model.DataMode(m) }
