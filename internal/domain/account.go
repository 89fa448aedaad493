package domain

import "time"

// HealthStatus clasifica si una cuenta puede usarse contra la plataforma
type HealthStatus string

const (
	HealthActive      HealthStatus = "active"
	HealthRateLimited HealthStatus = "rate_limited"
	HealthBanned      HealthStatus = "banned"
	HealthLoginFailed HealthStatus = "login_failed"
)

// Valid retorna true si el estado pertenece al conjunto conocido
func (s HealthStatus) Valid() bool {
	switch s {
	case HealthActive, HealthRateLimited, HealthBanned, HealthLoginFailed:
		return true
	}
	return false
}

// Account representa una cuenta del pool de rotación
type Account struct {
	ID              int64        `json:"id"`
	Platform        string       `json:"platform"`
	Username        string       `json:"username"`
	Secret          string       `json:"credential,omitempty"`
	ProxyURL        string       `json:"proxyUrl,omitempty"`
	SessionID       string       `json:"sessionId,omitempty"`
	Status          HealthStatus `json:"status"`
	IsActive        bool         `json:"isActive"`
	LastUsed        *time.Time   `json:"lastUsed,omitempty"`
	UsageCount      int64        `json:"usageCount"`
	StatusChangedAt *time.Time   `json:"statusChangedAt,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// Eligible indica si la cuenta puede ser seleccionada por la rotación
func (a *Account) Eligible() bool {
	return a.Status == HealthActive && a.IsActive
}

// Redacted devuelve una copia sin credenciales, apta para listados
func (a Account) Redacted() Account {
	a.Secret = ""
	a.SessionID = ""
	return a
}

// HealthTransition es el cambio de salud observado sobre una cuenta
type HealthTransition struct {
	AccountID  int64
	Status     HealthStatus
	Deactivate bool
}

// Plataformas soportadas
const (
	PlatformInstagram = "instagram"
)
