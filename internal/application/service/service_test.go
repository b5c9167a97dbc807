package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bitbalance/internal/adapter/broadcast"
	"bitbalance/internal/adapter/cache"
	"bitbalance/internal/adapter/storage"
	"bitbalance/internal/application/pipeline"
	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"

	"github.com/google/go-cmp/cmp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *storage.SQLAdapter {
	t.Helper()
	ctx := context.Background()
	s, err := storage.Open(ctx, storage.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSchema(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

func priceTable(source string, prices map[model.CoinSymbol]string) port.PriceProvider {
	return port.PriceProviderFunc(func(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
		amount, ok := prices[symbol]
		if !ok {
			return nil, nil
		}
		return &model.Quote{Symbol: symbol, Price: model.MustMoney(amount, "USD"), Source: source, ObservedAt: time.Now().UTC()}, nil
	})
}

type countingStore struct {
	port.SnapshotStore
	mu    sync.Mutex
	calls int
	fail  bool
	syms  []model.CoinSymbol
}

func (s *countingStore) AllSymbols(ctx context.Context) ([]model.CoinSymbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return nil, errors.New("db down")
	}
	return s.syms, nil
}

func TestTracker_HydratesOnce(t *testing.T) {
	store := &countingStore{syms: []model.CoinSymbol{"ETH", "ADA"}}
	tr := NewTracker(store, testLogger())
	tr.Track(model.BTC)
	tr.Track(model.BTC)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := tr.TrackedSymbols(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]model.CoinSymbol{"ADA", "BTC", "ETH"}, got); diff != "" {
			t.Fatalf("TrackedSymbols() mismatch (-want +got):\n%s", diff)
		}
	}
	if store.calls != 1 {
		t.Errorf("AllSymbols called %d times, want 1", store.calls)
	}
}

func TestTracker_RetriesFailedHydration(t *testing.T) {
	store := &countingStore{fail: true, syms: []model.CoinSymbol{"ETH"}}
	tr := NewTracker(store, testLogger())
	ctx := context.Background()

	if _, err := tr.TrackedSymbols(ctx); err == nil {
		t.Fatal("want hydration error")
	}

	store.fail = false
	got, err := tr.TrackedSymbols(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]model.CoinSymbol{"ETH"}, got); diff != "" {
		t.Errorf("TrackedSymbols() mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_ReturnsCopy(t *testing.T) {
	tr := NewTracker(&countingStore{}, testLogger())
	tr.Track(model.BTC)
	got, _ := tr.TrackedSymbols(context.Background())
	got[0] = "XXX"
	again, _ := tr.TrackedSymbols(context.Background())
	if again[0] != model.BTC {
		t.Errorf("tracker state changed through returned slice: %v", again)
	}
}

func TestTracker_ConcurrentTrackAndRead(t *testing.T) {
	const n = 50
	store := &countingStore{syms: []model.CoinSymbol{"ADA"}}
	tr := NewTracker(store, testLogger())
	ctx := context.Background()

	want := []model.CoinSymbol{"ADA"}
	for i := 0; i < n; i++ {
		want = append(want, model.CoinSymbol(fmt.Sprintf("C%02d", i)))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(sym model.CoinSymbol) {
			defer wg.Done()
			tr.Track(sym)
		}(want[i+1])
		go func() {
			defer wg.Done()
			if _, err := tr.TrackedSymbols(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := tr.TrackedSymbols(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TrackedSymbols() mismatch (-want +got):\n%s", diff)
	}
	if store.calls != 1 {
		t.Errorf("AllSymbols called %d times, want 1", store.calls)
	}
}

func TestPoller_CycleFallsBackAndAnnounces(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	tracker := NewTracker(store, testLogger())
	bc := broadcast.New(testLogger())
	events, unsubscribe := bc.Subscribe(16)
	defer unsubscribe()

	chain, err := pipeline.Build([]pipeline.Stage{
		{Name: "A", Provider: priceTable("", nil)},
		{Name: "B", Provider: priceTable("", map[model.CoinSymbol]string{model.BTC: "60000"})},
	}, pipeline.Deps{
		Store:       store,
		Tracker:     tracker,
		Cache:       cache.NewMemoryCache(),
		Broadcaster: bc,
		Logger:      testLogger(),
	}, pipeline.Options{})
	if err != nil {
		t.Fatal(err)
	}

	tracker.Track(model.BTC)
	tracker.Track(model.ETH)

	poller := NewPoller(chain, tracker, bc, PollerConfig{Interval: time.Hour, Workers: 2}, testLogger())
	report := poller.RunCycle(ctx)
	if report != (CycleReport{Attempted: 2, Updated: 1, Missed: 1}) {
		t.Errorf("report = %+v", report)
	}

	snap, err := store.GetSnapshot(ctx, model.BTC)
	if err != nil || snap == nil {
		t.Fatalf("BTC snapshot = %v, %v", snap, err)
	}
	if snap.Source != "B" || !snap.Price.Equal(model.MustMoney("60000", "USD")) {
		t.Errorf("BTC snapshot = %+v", snap)
	}
	if snap, _ := store.GetSnapshot(ctx, model.ETH); snap != nil {
		t.Errorf("ETH snapshot = %+v, want none", snap)
	}

	var updates []model.CoinSymbol
	for len(events) > 0 {
		if ev := <-events; ev.Type == model.EventPriceUpdated {
			updates = append(updates, ev.Symbol)
		}
	}
	if diff := cmp.Diff([]model.CoinSymbol{model.BTC}, updates); diff != "" {
		t.Errorf("price_updated events (-want +got):\n%s", diff)
	}
	if poller.State() != PollerIdle {
		t.Errorf("state after cycle = %s", poller.State())
	}
}

func TestPoller_RotatesThroughSymbols(t *testing.T) {
	tracker := NewTracker(&countingStore{}, testLogger())
	for _, s := range []model.CoinSymbol{"A", "B", "C", "D", "E"} {
		tracker.Track(s)
	}

	var mu sync.Mutex
	var seen []model.CoinSymbol
	chain := port.PriceProviderFunc(func(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, symbol)
		return nil, nil
	})

	poller := NewPoller(chain, tracker, nil, PollerConfig{MaxSymbolsPerCycle: 2, Workers: 1}, testLogger())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		poller.RunCycle(ctx)
	}

	if diff := cmp.Diff([]model.CoinSymbol{"A", "B", "C", "D", "E", "A"}, seen); diff != "" {
		t.Errorf("visit order mismatch (-want +got):\n%s", diff)
	}
}

func TestPoller_ErrorsDoNotAbortCycle(t *testing.T) {
	tracker := NewTracker(&countingStore{}, testLogger())
	tracker.Track("BAD")
	tracker.Track(model.BTC)

	chain := port.PriceProviderFunc(func(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
		if symbol == "BAD" {
			return nil, errors.New("snapshot write failed")
		}
		return &model.Quote{Symbol: symbol, Price: model.MustMoney("1", "USD"), Source: "x"}, nil
	})

	report := NewPoller(chain, tracker, nil, PollerConfig{}, testLogger()).RunCycle(context.Background())
	if report != (CycleReport{Attempted: 2, Updated: 1, Failed: 1}) {
		t.Errorf("report = %+v", report)
	}
}

func TestPoller_StopInterruptsSleep(t *testing.T) {
	tracker := NewTracker(&countingStore{}, testLogger())
	tracker.Track(model.BTC)

	cycles := make(chan struct{}, 8)
	chain := port.PriceProviderFunc(func(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
		cycles <- struct{}{}
		return nil, nil
	})

	poller := NewPoller(chain, tracker, nil, PollerConfig{Interval: time.Hour}, testLogger())
	poller.Start(context.Background())

	select {
	case <-cycles:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run")
	}

	done := make(chan struct{})
	go func() {
		poller.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not interrupt the sleep")
	}
	if len(cycles) != 0 {
		t.Errorf("%d extra cycles ran", len(cycles))
	}
}

func TestPoller_RunEndsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	poller := NewPoller(priceTable("x", nil), NewTracker(&countingStore{}, testLogger()), nil, PollerConfig{Interval: time.Hour}, testLogger())

	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []model.Alert
}

func (n *recordingNotifier) Notify(ctx context.Context, a model.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return nil
}

func TestAlertService_CreateValidates(t *testing.T) {
	svc := NewAlertService(newStore(t), priceTable("x", nil), nil, testLogger())
	ctx := context.Background()

	bad := []CreateAlertInput{
		{Symbol: "BTC", TargetAmount: "1", Direction: "above"},
		{PortfolioID: "p", Symbol: "BTC-USD", TargetAmount: "1", Direction: "above"},
		{PortfolioID: "p", Symbol: "BTC", TargetAmount: "-5", Direction: "above"},
		{PortfolioID: "p", Symbol: "BTC", TargetAmount: "abc", Direction: "above"},
		{PortfolioID: "p", Symbol: "BTC", TargetAmount: "1", Direction: "sideways"},
	}
	for _, in := range bad {
		if _, err := svc.CreateAlert(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("CreateAlert(%+v) error = %v, want ErrInvalidInput", in, err)
		}
	}

	a, err := svc.CreateAlert(ctx, CreateAlertInput{PortfolioID: "p", Symbol: "btc", TargetAmount: "45000", Direction: "price_above"})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == "" || a.Symbol != model.BTC || a.Direction != model.Above || a.TargetPrice.Currency() != "USD" || a.Triggered {
		t.Errorf("created alert = %+v", a)
	}
}

func TestAlertService_EvaluateAlerts(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	var calls sync.Map
	prices := port.PriceProviderFunc(func(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
		n, _ := calls.LoadOrStore(symbol, new(int))
		*n.(*int)++
		table := map[model.CoinSymbol]string{model.BTC: "46000", model.ETH: "2500"}
		amount, ok := table[symbol]
		if !ok {
			return nil, nil
		}
		return &model.Quote{Symbol: symbol, Price: model.MustMoney(amount, "USD"), Source: "x"}, nil
	})
	notifier := &recordingNotifier{}
	svc := NewAlertService(store, prices, notifier, testLogger())

	mk := func(symbol, amount, currency, dir string) model.Alert {
		a, err := svc.CreateAlert(ctx, CreateAlertInput{PortfolioID: "p", Symbol: symbol, TargetAmount: amount, Currency: currency, Direction: dir})
		if err != nil {
			t.Fatal(err)
		}
		return a
	}
	above := mk("BTC", "45000", "USD", "above")
	mk("BTC", "38000", "USD", "below")
	mk("BTC", "45000", "EUR", "above")
	mk("ETH", "3000", "USD", "above")
	mk("DOGE", "1", "USD", "above")

	triggered, err := svc.EvaluateAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(triggered) != 1 || triggered[0].ID != above.ID || !triggered[0].Triggered || triggered[0].TriggeredAt == nil {
		t.Fatalf("triggered = %+v, want only %s", triggered, above.ID)
	}
	if len(notifier.alerts) != 1 || notifier.alerts[0].ID != above.ID {
		t.Errorf("notified = %+v", notifier.alerts)
	}

	calls.Range(func(k, v any) bool {
		if n := *v.(*int); n != 1 {
			t.Errorf("%v priced %d times, want 1", k, n)
		}
		return true
	})

	again, err := svc.EvaluateAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 || len(notifier.alerts) != 1 {
		t.Errorf("second run triggered %d, notified %d; want 0 and 1", len(again), len(notifier.alerts))
	}

	active, _ := svc.ListAlerts(ctx, "p", true)
	if len(active) != 4 {
		t.Errorf("active alerts = %d, want 4", len(active))
	}
}

func TestAlertService_RemoveAlert(t *testing.T) {
	ctx := context.Background()
	svc := NewAlertService(newStore(t), priceTable("x", nil), nil, testLogger())

	a, err := svc.CreateAlert(ctx, CreateAlertInput{PortfolioID: "p", Symbol: "ETH", TargetAmount: "1", Direction: "below"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveAlert(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveAlert(ctx, a.ID); !errors.Is(err, storage.ErrAlertNotFound) {
		t.Errorf("RemoveAlert() twice error = %v, want ErrAlertNotFound", err)
	}
}

func TestModeService_Switch(t *testing.T) {
	ctx := context.Background()
	ms := NewModeService(model.LiveMode, testLogger())

	changed, err := ms.SwitchMode(ctx, model.LiveMode)
	if err != nil || changed {
		t.Fatalf("SwitchMode(live) = %v, %v; want no change", changed, err)
	}

	changed, err = ms.SwitchMode(ctx, model.TestMode)
	if err != nil || !changed {
		t.Fatalf("SwitchMode(test) = %v, %v", changed, err)
	}
	if got := ms.GetCurrentMode(); got != model.TestMode {
		t.Errorf("mode = %s, want test", got)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := ms.SwitchMode(cancelled, model.LiveMode); !errors.Is(err, context.Canceled) {
		t.Errorf("SwitchMode(cancelled) error = %v, want context.Canceled", err)
	}
	if got := ms.GetCurrentMode(); got != model.TestMode {
		t.Errorf("mode changed by a cancelled switch: %s", got)
	}
}
