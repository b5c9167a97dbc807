package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbalance/internal/domain/model"

	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T) *SQLAdapter {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	return s
}

func TestSQLAdapter_Snapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if snap, err := s.GetSnapshot(ctx, model.BTC); err != nil || snap != nil {
		t.Fatalf("GetSnapshot() on empty store = %v, %v", snap, err)
	}

	at := time.Date(2024, 3, 1, 10, 0, 0, 123, time.UTC)
	first := model.PriceSnapshot{Symbol: model.BTC, Price: model.MustMoney("60000.5", "USD"), Source: "coingecko", ObservedAt: at}
	if err := s.UpsertSnapshot(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := model.PriceSnapshot{Symbol: model.BTC, Price: model.MustMoney("61000", "USD"), Source: "binance", ObservedAt: at.Add(time.Minute)}
	if err := s.UpsertSnapshot(ctx, second); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertSnapshot(ctx, model.PriceSnapshot{Symbol: model.ETH, Price: model.MustMoney("3000", "USD"), Source: "mock", ObservedAt: at}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSnapshot(ctx, model.BTC)
	if err != nil || got == nil {
		t.Fatalf("GetSnapshot() = %v, %v", got, err)
	}
	if got.Source != "binance" || !got.Price.Equal(second.Price) || !got.ObservedAt.Equal(second.ObservedAt) {
		t.Errorf("GetSnapshot() = %+v, want %+v", got, second)
	}

	symbols, err := s.AllSymbols(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]model.CoinSymbol{model.BTC, model.ETH}, symbols); diff != "" {
		t.Errorf("AllSymbols() mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLAdapter_Alerts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	alerts := []model.Alert{
		{ID: "a1", PortfolioID: "p1", Symbol: model.BTC, TargetPrice: model.MustMoney("45000", "USD"), Direction: model.Above, CreatedAt: created},
		{ID: "a2", PortfolioID: "p1", Symbol: model.ETH, TargetPrice: model.MustMoney("2000", "USD"), Direction: model.Below, CreatedAt: created.Add(time.Second)},
		{ID: "a3", PortfolioID: "p2", Symbol: model.BTC, TargetPrice: model.MustMoney("70000", "USD"), Direction: model.Above, CreatedAt: created.Add(2 * time.Second)},
	}
	for _, a := range alerts {
		if err := s.CreateAlert(ctx, a); err != nil {
			t.Fatalf("CreateAlert(%s) error = %v", a.ID, err)
		}
	}

	ids := func(list []model.Alert) []string {
		var out []string
		for _, a := range list {
			out = append(out, a.ID)
		}
		return out
	}

	open, err := s.UntriggeredAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a1", "a2", "a3"}, ids(open)); diff != "" {
		t.Errorf("UntriggeredAlerts() mismatch (-want +got):\n%s", diff)
	}
	if !open[0].TargetPrice.Equal(alerts[0].TargetPrice) || open[0].Direction != model.Above || !open[0].CreatedAt.Equal(created) {
		t.Errorf("alert a1 read back as %+v", open[0])
	}

	firedAt := created.Add(time.Hour)
	if err := s.MarkAlertTriggered(ctx, "a1", firedAt); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkAlertTriggered(ctx, "a1", firedAt); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("second MarkAlertTriggered() error = %v, want ErrAlertNotFound", err)
	}

	all, _ := s.ListAlerts(ctx, "p1", false)
	if diff := cmp.Diff([]string{"a1", "a2"}, ids(all)); diff != "" {
		t.Errorf("ListAlerts(p1) mismatch (-want +got):\n%s", diff)
	}
	if !all[0].Triggered || all[0].TriggeredAt == nil || !all[0].TriggeredAt.Equal(firedAt) {
		t.Errorf("a1 = %+v, want triggered at %v", all[0], firedAt)
	}

	active, _ := s.ListAlerts(ctx, "", true)
	if diff := cmp.Diff([]string{"a2", "a3"}, ids(active)); diff != "" {
		t.Errorf("ListAlerts(active) mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeleteAlert(ctx, "a2"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteAlert(ctx, "a2"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("second DeleteAlert() error = %v, want ErrAlertNotFound", err)
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLAdapter{driver: DriverPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &SQLAdapter{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Error("Open(mysql) should fail")
	}
}
