package pipeline

import (
	"context"

	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
)

// ModeSource reports the current data mode.
type ModeSource interface {
	GetCurrentMode() model.DataMode
}

// ModeSwitch routes lookups to the live chain or the test chain.
type ModeSwitch struct {
	modes ModeSource
	live  port.PriceProvider
	test  port.PriceProvider
}

var _ port.PriceProvider = (*ModeSwitch)(nil)

func NewModeSwitch(modes ModeSource, live, test port.PriceProvider) *ModeSwitch {
	return &ModeSwitch{modes: modes, live: live, test: test}
}

func (m *ModeSwitch) TryGetPrice(ctx context.Context, symbol model.CoinSymbol) (*model.Quote, error) {
	if m.modes.GetCurrentMode() == model.TestMode {
		return m.test.TryGetPrice(ctx, symbol)
	}
	return m.live.TryGetPrice(ctx, symbol)
}
