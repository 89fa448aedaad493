package registry

import (
	"context"
	"fmt"

	"github.com/elsanchez/smart-extract/internal/domain"
	"github.com/elsanchez/smart-extract/internal/repository"
)

// Local implementa Store sobre el repositorio SQLite del propio proceso
type Local struct {
	accounts repository.AccountRepository
	platform string
}

var _ Store = (*Local)(nil)

// NewLocal crea un Store local para una plataforma
func NewLocal(accounts repository.AccountRepository, platform string) *Local {
	return &Local{accounts: accounts, platform: platform}
}

func (l *Local) NextAccount(ctx context.Context) (*domain.Account, error) {
	return l.accounts.NextEligible(ctx, l.platform)
}

// UpdateAccount aplica el delta campo por campo
func (l *Local) UpdateAccount(ctx context.Context, u AccountUpdate) error {
	if u.Status != nil {
		if err := l.accounts.UpdateStatus(ctx, u.AccountID, *u.Status); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
	}
	if u.IsActive != nil {
		if err := l.accounts.SetActive(ctx, u.AccountID, *u.IsActive); err != nil {
			return fmt.Errorf("update is_active: %w", err)
		}
	}
	if u.UsageBump {
		if err := l.accounts.RecordUsage(ctx, u.AccountID); err != nil {
			return fmt.Errorf("bump usage: %w", err)
		}
	}
	return nil
}
