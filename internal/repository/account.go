package repository

import (
	"context"
	"errors"
	"time"

	"github.com/elsanchez/smart-extract/internal/domain"
)

// ErrNotFound indica que el registro pedido no existe
var ErrNotFound = errors.New("not found")

// AccountFilter restringe los listados de cuentas
type AccountFilter struct {
	Platform string
	Status   domain.HealthStatus
	Active   *bool
}

// AccountRepository define las operaciones sobre el pool de cuentas
type AccountRepository interface {
	// CRUD básico
	Create(ctx context.Context, acc *domain.Account) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter AccountFilter) ([]*domain.Account, error)

	// Rotación: la cuenta elegible usada hace más tiempo, o nil si no hay ninguna
	NextEligible(ctx context.Context, platform string) (*domain.Account, error)

	// Updates parciales
	RecordUsage(ctx context.Context, id int64) error
	UpdateStatus(ctx context.Context, id int64, status domain.HealthStatus) error
	SetActive(ctx context.Context, id int64, active bool) error
	Disable(ctx context.Context, id int64) error
	SetSessionID(ctx context.Context, id int64, sessionID string) error
	Reactivate(ctx context.Context, id int64) error

	// Cuentas rate_limited cuyo estado cambió antes de `before`
	ReviveRateLimited(ctx context.Context, before time.Time) (int64, error)

	CountByStatus(ctx context.Context) (map[domain.HealthStatus]int, error)
}
