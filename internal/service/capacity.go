package service

import (
	"context"
	"fmt"

	"gymbook/internal/domain"

	"github.com/rs/zerolog"
)

// CapacityManager владеет счетчиком занятых мест. Сравнение и изменение
// счетчика атомарны на уровне хранилища, поэтому менеджер не держит
// собственных блокировок.
type CapacityManager struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewCapacityManager(repo domain.Repository, logger *zerolog.Logger) *CapacityManager {
	return &CapacityManager{repo: repo, logger: logger}
}

// Reserve занимает одно место; при заполненном занятии возвращает
// database.ErrCapacityExceeded.
func (m *CapacityManager) Reserve(ctx context.Context, sessionID int64) error {
	if err := m.repo.ReserveSeat(ctx, sessionID); err != nil {
		return fmt.Errorf("reserve seat for session %d: %w", sessionID, err)
	}
	return nil
}

// Release освобождает одно место. Счетчик не уходит ниже нуля.
func (m *CapacityManager) Release(ctx context.Context, sessionID int64) error {
	if err := m.repo.ReleaseSeat(ctx, sessionID); err != nil {
		return fmt.Errorf("release seat for session %d: %w", sessionID, err)
	}
	return nil
}
