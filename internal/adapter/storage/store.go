package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/lib/pq"
)

var ErrAlertNotFound = errors.New("alert not found")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLAdapter stores snapshots and alerts in postgres or sqlite. Queries are
// written with ? placeholders and rebound for postgres.
type SQLAdapter struct {
	db     *sql.DB
	driver string
}

var _ port.StoragePort = (*SQLAdapter)(nil)

func Open(ctx context.Context, driver, dsn string) (*SQLAdapter, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLAdapter{db: db, driver: driver}, nil
}

func (a *SQLAdapter) rebind(query string) string {
	if a.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS price_snapshots (
		symbol VARCHAR(10) PRIMARY KEY,
		amount TEXT NOT NULL,
		currency VARCHAR(5) NOT NULL,
		source VARCHAR(50) NOT NULL,
		observed_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id VARCHAR(36) PRIMARY KEY,
		portfolio_id VARCHAR(64) NOT NULL,
		symbol VARCHAR(10) NOT NULL,
		target_amount TEXT NOT NULL,
		target_currency VARCHAR(5) NOT NULL,
		direction VARCHAR(10) NOT NULL,
		triggered BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		triggered_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_untriggered ON alerts(triggered, symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_portfolio ON alerts(portfolio_id)`,
}

func (a *SQLAdapter) InitSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (a *SQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *SQLAdapter) UpsertSnapshot(ctx context.Context, s model.PriceSnapshot) error {
	_, err := a.db.ExecContext(ctx, a.rebind(`
		INSERT INTO price_snapshots (symbol, amount, currency, source, observed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			amount = excluded.amount,
			currency = excluded.currency,
			source = excluded.source,
			observed_at = excluded.observed_at`),
		s.Symbol.String(), s.Price.Amount().String(), s.Price.Currency(), s.Source, s.ObservedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

func (a *SQLAdapter) GetSnapshot(ctx context.Context, symbol model.CoinSymbol) (*model.PriceSnapshot, error) {
	var (
		amount, currency, source string
		observed                 int64
	)
	err := a.db.QueryRowContext(ctx,
		a.rebind(`SELECT amount, currency, source, observed_at FROM price_snapshots WHERE symbol = ?`),
		symbol.String(),
	).Scan(&amount, &currency, &source, &observed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	price, err := model.ParseMoney(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("corrupt snapshot for %s: %w", symbol, err)
	}
	return &model.PriceSnapshot{
		Symbol:     symbol,
		Price:      price,
		Source:     source,
		ObservedAt: time.Unix(0, observed).UTC(),
	}, nil
}

func (a *SQLAdapter) AllSymbols(ctx context.Context) ([]model.CoinSymbol, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT symbol FROM price_snapshots ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var out []model.CoinSymbol
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		out = append(out, model.CoinSymbol(s))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

func (a *SQLAdapter) CreateAlert(ctx context.Context, al model.Alert) error {
	var triggeredAt sql.NullInt64
	if al.TriggeredAt != nil {
		triggeredAt = sql.NullInt64{Int64: al.TriggeredAt.UnixNano(), Valid: true}
	}
	_, err := a.db.ExecContext(ctx, a.rebind(`
		INSERT INTO alerts (id, portfolio_id, symbol, target_amount, target_currency, direction, triggered, created_at, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		al.ID, al.PortfolioID, al.Symbol.String(),
		al.TargetPrice.Amount().String(), al.TargetPrice.Currency(),
		string(al.Direction), al.Triggered, al.CreatedAt.UnixNano(), triggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

const alertColumns = `id, portfolio_id, symbol, target_amount, target_currency, direction, triggered, created_at, triggered_at`

// ListAlerts filters by portfolio unless portfolioID is empty.
func (a *SQLAdapter) ListAlerts(ctx context.Context, portfolioID string, activeOnly bool) ([]model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	var args []any
	if portfolioID != "" {
		query += ` AND portfolio_id = ?`
		args = append(args, portfolioID)
	}
	if activeOnly {
		query += ` AND triggered = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at, id`
	return a.queryAlerts(ctx, query, args...)
}

func (a *SQLAdapter) UntriggeredAlerts(ctx context.Context) ([]model.Alert, error) {
	return a.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE triggered = ? ORDER BY created_at, id`, false)
}

func (a *SQLAdapter) queryAlerts(ctx context.Context, query string, args ...any) ([]model.Alert, error) {
	rows, err := a.db.QueryContext(ctx, a.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var (
			al                                  model.Alert
			symbol, amount, currency, direction string
			created                             int64
			triggeredAt                         sql.NullInt64
		)
		if err := rows.Scan(&al.ID, &al.PortfolioID, &symbol, &amount, &currency, &direction, &al.Triggered, &created, &triggeredAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		target, err := model.ParseMoney(amount, currency)
		if err != nil {
			return nil, fmt.Errorf("corrupt alert %s: %w", al.ID, err)
		}
		al.Symbol = model.CoinSymbol(symbol)
		al.TargetPrice = target
		al.Direction = model.Direction(direction)
		al.CreatedAt = time.Unix(0, created).UTC()
		if triggeredAt.Valid {
			at := time.Unix(0, triggeredAt.Int64).UTC()
			al.TriggeredAt = &at
		}
		out = append(out, al)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// MarkAlertTriggered flips an untriggered alert. An unknown or already
// triggered id is ErrAlertNotFound.
func (a *SQLAdapter) MarkAlertTriggered(ctx context.Context, id string, at time.Time) error {
	res, err := a.db.ExecContext(ctx,
		a.rebind(`UPDATE alerts SET triggered = ?, triggered_at = ? WHERE id = ? AND triggered = ?`),
		true, at.UnixNano(), id, false,
	)
	if err != nil {
		return fmt.Errorf("failed to mark alert triggered: %w", err)
	}
	return expectOne(res, id)
}

func (a *SQLAdapter) DeleteAlert(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, a.rebind(`DELETE FROM alerts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	return nil
}

func (a *SQLAdapter) Close() error {
	return a.db.Close()
}
