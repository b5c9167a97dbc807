package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidDirection = errors.New("invalid alert direction")

// Direction tells on which side of the target an alert fires.
type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
)

// ParseDirection accepts "above"/"below" and the longer "price_above" /
// "price_below" spellings used by older clients.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "above", "price_above", "priceabove":
		return Above, nil
	case "below", "price_below", "pricebelow":
		return Below, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// Alert is a target price on a coin owned by a portfolio. Once Triggered is
// set it stays set.
type Alert struct {
	ID          string     `json:"id"`
	PortfolioID string     `json:"portfolio_id"`
	Symbol      CoinSymbol `json:"symbol"`
	TargetPrice Money      `json:"target_price"`
	Direction   Direction  `json:"direction"`
	Triggered   bool       `json:"triggered"`
	CreatedAt   time.Time  `json:"created_at"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"`
}

// ShouldTrigger compares the current price with the alert target. Prices in
// another currency than the target are an error, never compared. A triggered
// alert never fires again.
func ShouldTrigger(alert Alert, current Money) (bool, error) {
	cmp, err := current.Compare(alert.TargetPrice)
	if err != nil {
		return false, fmt.Errorf("alert %s: %w", alert.ID, err)
	}
	if alert.Triggered {
		return false, nil
	}
	switch alert.Direction {
	case Above:
		return cmp > 0, nil
	case Below:
		return cmp < 0, nil
	default:
		return false, fmt.Errorf("alert %s: %w: %q", alert.ID, ErrInvalidDirection, alert.Direction)
	}
}
