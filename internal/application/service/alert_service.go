package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"

	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("invalid input")

type CreateAlertInput struct {
	PortfolioID  string `json:"portfolio_id"`
	Symbol       string `json:"symbol"`
	TargetAmount string `json:"target_amount"`
	Currency     string `json:"currency"`
	Direction    string `json:"direction"`
}

// AlertService manages price alerts and evaluates them against current
// prices.
type AlertService struct {
	store    port.AlertStore
	prices   port.PriceProvider
	notifier port.Notifier
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewAlertService(store port.AlertStore, prices port.PriceProvider, notifier port.Notifier, logger *slog.Logger) *AlertService {
	return &AlertService{
		store:    store,
		prices:   prices,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *AlertService) CreateAlert(ctx context.Context, in CreateAlertInput) (model.Alert, error) {
	portfolio := strings.TrimSpace(in.PortfolioID)
	if portfolio == "" {
		return model.Alert{}, fmt.Errorf("%w: portfolio_id is required", ErrInvalidInput)
	}
	symbol, err := model.ParseCoinSymbol(in.Symbol)
	if err != nil {
		return model.Alert{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	currency := in.Currency
	if strings.TrimSpace(currency) == "" {
		currency = "USD"
	}
	target, err := model.ParseMoney(in.TargetAmount, currency)
	if err != nil {
		return model.Alert{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	direction, err := model.ParseDirection(in.Direction)
	if err != nil {
		return model.Alert{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	alert := model.Alert{
		ID:          s.newID(),
		PortfolioID: portfolio,
		Symbol:      symbol,
		TargetPrice: target,
		Direction:   direction,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return model.Alert{}, fmt.Errorf("failed to create alert: %w", err)
	}

	s.logger.Info("alert created", "id", alert.ID, "portfolio", portfolio, "symbol", symbol, "direction", direction, "target", target.Amount())
	return alert, nil
}

func (s *AlertService) ListAlerts(ctx context.Context, portfolioID string, activeOnly bool) ([]model.Alert, error) {
	alerts, err := s.store.ListAlerts(ctx, strings.TrimSpace(portfolioID), activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (s *AlertService) RemoveAlert(ctx context.Context, id string) error {
	if err := s.store.DeleteAlert(ctx, id); err != nil {
		return fmt.Errorf("failed to remove alert: %w", err)
	}
	s.logger.Info("alert removed", "id", id)
	return nil
}

// EvaluateAlerts checks every untriggered alert against the current price of
// its symbol, marks the ones that fire and notifies their owners. Each symbol
// is priced once. It returns the alerts triggered by this run.
func (s *AlertService) EvaluateAlerts(ctx context.Context) ([]model.Alert, error) {
	alerts, err := s.store.UntriggeredAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load untriggered alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil, nil
	}

	prices, err := s.currentPrices(ctx, alerts)
	if err != nil {
		return nil, err
	}

	var (
		triggered []model.Alert
		errs      []error
	)
	for _, alert := range alerts {
		price, ok := prices[alert.Symbol]
		if !ok {
			continue
		}

		fire, err := model.ShouldTrigger(alert, price)
		if err != nil {
			s.logger.Warn("alert skipped", "id", alert.ID, "symbol", alert.Symbol, "error", err)
			continue
		}
		if !fire {
			continue
		}

		at := s.now().UTC()
		if err := s.store.MarkAlertTriggered(ctx, alert.ID, at); err != nil {
			if ctx.Err() != nil {
				return triggered, ctx.Err()
			}
			s.logger.Error("failed to mark alert triggered", "id", alert.ID, "error", err)
			errs = append(errs, fmt.Errorf("alert %s: %w", alert.ID, err))
			continue
		}
		alert.Triggered = true
		alert.TriggeredAt = &at
		triggered = append(triggered, alert)

		s.logger.Info("alert triggered", "id", alert.ID, "symbol", alert.Symbol, "direction", alert.Direction,
			"target", alert.TargetPrice.Amount(), "price", price.Amount())

		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, alert); err != nil {
				s.logger.Warn("failed to notify alert owner", "id", alert.ID, "error", err)
			}
		}
	}

	return triggered, errors.Join(errs...)
}

func (s *AlertService) currentPrices(ctx context.Context, alerts []model.Alert) (map[model.CoinSymbol]model.Money, error) {
	prices := make(map[model.CoinSymbol]model.Money)
	seen := make(map[model.CoinSymbol]bool)

	for _, alert := range alerts {
		if seen[alert.Symbol] {
			continue
		}
		seen[alert.Symbol] = true

		q, err := s.prices.TryGetPrice(ctx, alert.Symbol)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("failed to price symbol for alerts", "symbol", alert.Symbol, "error", err)
			continue
		}
		if q == nil {
			s.logger.Debug("no price for alert symbol", "symbol", alert.Symbol)
			continue
		}
		prices[alert.Symbol] = q.Price
	}
	return prices, nil
}
