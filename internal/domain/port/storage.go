package port

import (
	"context"
	"time"

	"bitbalance/internal/domain/model"
)

type SnapshotStore interface {
	// AllSymbols lists every symbol that has a snapshot.
	AllSymbols(ctx context.Context) ([]model.CoinSymbol, error)
	UpsertSnapshot(ctx context.Context, snapshot model.PriceSnapshot) error
	// GetSnapshot returns nil, nil when the symbol was never priced.
	GetSnapshot(ctx context.Context, symbol model.CoinSymbol) (*model.PriceSnapshot, error)
}

type AlertStore interface {
	CreateAlert(ctx context.Context, alert model.Alert) error
	ListAlerts(ctx context.Context, portfolioID string, activeOnly bool) ([]model.Alert, error)
	UntriggeredAlerts(ctx context.Context) ([]model.Alert, error)
	MarkAlertTriggered(ctx context.Context, id string, at time.Time) error
	DeleteAlert(ctx context.Context, id string) error
}

// StoragePort is the full database the service runs against.
type StoragePort interface {
	SnapshotStore
	AlertStore
	Ping(ctx context.Context) error
	Close() error
}
