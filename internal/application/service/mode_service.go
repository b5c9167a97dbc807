package service

import (
	"context"
	"log/slog"
	"sync"

	"bitbalance/internal/domain/model"
)

// ModeService holds the current data mode (live or test) of this process.
// Only the live branch of the price chain touches the cache and the store,
// so switching never has to clean up shared state.
type ModeService struct {
	currentMode model.DataMode
	mu          sync.RWMutex
	logger      *slog.Logger
}

func NewModeService(initial model.DataMode, logger *slog.Logger) *ModeService {
	return &ModeService{
		currentMode: initial,
		logger:      logger,
	}
}

// SwitchMode reports whether the mode changed.
func (s *ModeService) SwitchMode(ctx context.Context, mode model.DataMode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.currentMode == mode {
		return false, nil
	}

	s.logger.Info("mode_service: mode updated", "old", s.currentMode, "new", mode)
	s.currentMode = mode
	return true, nil
}

func (s *ModeService) GetCurrentMode() model.DataMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentMode
}
