// Package registry habla con el registro de cuentas: selección de la siguiente cuenta
// y escritura de uso y salud.
package registry

import (
	"context"

	"github.com/elsanchez/smart-extract/internal/domain"
)

// AccountUpdate es el delta que el core escribe en el registro. Los campos nil no se tocan.
type AccountUpdate struct {
	AccountID int64                `json:"accountId"`
	Status    *domain.HealthStatus `json:"status,omitempty"`
	UsageBump bool                 `json:"usageBump,omitempty"`
	IsActive  *bool                `json:"isActive,omitempty"`
}

// Store son las dos llamadas que el registro expone.
//
// NextAccount devuelve la cuenta elegible (status active, is_active) usada hace más tiempo,
// o nil si no hay ninguna. No reserva la cuenta.
type Store interface {
	NextAccount(ctx context.Context) (*domain.Account, error)
	UpdateAccount(ctx context.Context, update AccountUpdate) error
}
