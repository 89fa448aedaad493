package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/elsanchez/smart-extract/internal/domain"
	"github.com/elsanchez/smart-extract/internal/repository"
)

// AccountRepository implementa repository.AccountRepository usando SQLite
type AccountRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// Compiletime check: asegura que implementa la interfaz
var _ repository.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository crea un nuevo repositorio de cuentas
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

const accountColumns = `id, platform, username, secret, proxy_url, session_id, status,
	is_active, last_used, usage_count, status_changed_at, created_at`

// accountRow mapea la tabla SQL a struct Go. last_used y status_changed_at van en milisegundos.
type accountRow struct {
	ID              int64          `db:"id"`
	Platform        string         `db:"platform"`
	Username        string         `db:"username"`
	Secret          string         `db:"secret"`
	ProxyURL        sql.NullString `db:"proxy_url"`
	SessionID       sql.NullString `db:"session_id"`
	Status          string         `db:"status"`
	IsActive        int            `db:"is_active"`
	LastUsed        sql.NullInt64  `db:"last_used"`
	UsageCount      int64          `db:"usage_count"`
	StatusChangedAt sql.NullInt64  `db:"status_changed_at"`
	CreatedAt       int64          `db:"created_at"`
}

// Create inserta una nueva cuenta
func (r *AccountRepository) Create(ctx context.Context, acc *domain.Account) (int64, error) {
	status := acc.Status
	if status == "" {
		status = domain.HealthActive
	}
	if !status.Valid() {
		return 0, fmt.Errorf("invalid status %q", status)
	}

	platform := acc.Platform
	if platform == "" {
		platform = domain.PlatformInstagram
	}

	query := `
		INSERT INTO accounts (platform, username, secret, proxy_url, session_id, status, is_active, created_at)
		VALUES (:platform, :username, :secret, :proxy_url, :session_id, :status, :is_active, :created_at)
	`

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"platform":   platform,
		"username":   acc.Username,
		"secret":     acc.Secret,
		"proxy_url":  nullString(acc.ProxyURL),
		"session_id": nullString(acc.SessionID),
		"status":     string(status),
		"is_active":  boolToInt(acc.IsActive),
		"created_at": r.now().Unix(),
	})
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// GetByID obtiene una cuenta por ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	var row accountRow

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %d: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	return accountRowToDomain(&row), nil
}

// Delete elimina una cuenta
func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return expectOneRow(result, id)
}

// List devuelve las cuentas que cumplen el filtro, ordenadas por id
func (r *AccountRepository) List(ctx context.Context, filter repository.AccountFilter) ([]*domain.Account, error) {
	qb := sq.Select(accountColumns).From("accounts").OrderBy("id ASC")

	if filter.Platform != "" {
		qb = qb.Where(sq.Eq{"platform": filter.Platform})
	}
	if filter.Status != "" {
		qb = qb.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Active != nil {
		qb = qb.Where(sq.Eq{"is_active": boolToInt(*filter.Active)})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var rows []accountRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return accountRowsToDomain(rows), nil
}

// NextEligible devuelve la cuenta activa usada hace más tiempo (nunca usadas primero).
// No reserva la cuenta: dos llamadas concurrentes pueden recibir la misma.
func (r *AccountRepository) NextEligible(ctx context.Context, platform string) (*domain.Account, error) {
	var row accountRow

	query := `
		SELECT ` + accountColumns + ` FROM accounts
		WHERE platform = ? AND status = 'active' AND is_active = 1
		ORDER BY last_used IS NOT NULL, last_used ASC, id ASC
		LIMIT 1
	`

	if err := r.db.GetContext(ctx, &row, query, platform); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Pool vacío (no es error)
		}
		return nil, fmt.Errorf("select next account: %w", err)
	}

	return accountRowToDomain(&row), nil
}

// RecordUsage avanza last_used e incrementa el contador de uso
func (r *AccountRepository) RecordUsage(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET last_used = ?, usage_count = usage_count + 1 WHERE id = ?
	`, r.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return expectOneRow(result, id)
}

// UpdateStatus cambia el estado de salud de la cuenta
func (r *AccountRepository) UpdateStatus(ctx context.Context, id int64, status domain.HealthStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET status = ?, status_changed_at = ? WHERE id = ?
	`, string(status), r.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return expectOneRow(result, id)
}

// SetActive habilita o deshabilita la cuenta sin tocar su estado de salud.
// Habilitarla borra una deshabilitación del operador.
func (r *AccountRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE accounts SET is_active = 0 WHERE id = ?`
	if active {
		query = `UPDATE accounts SET is_active = 1, disabled_by_operator = 0 WHERE id = ?`
	}
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return expectOneRow(result, id)
}

// Disable saca la cuenta de la rotación por decisión del operador; el reviver no la toca
func (r *AccountRepository) Disable(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE accounts SET is_active = 0, disabled_by_operator = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("disable account: %w", err)
	}
	return expectOneRow(result, id)
}

// SetSessionID guarda la cookie de sesión importada desde un navegador
func (r *AccountRepository) SetSessionID(ctx context.Context, id int64, sessionID string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE accounts SET session_id = ? WHERE id = ?`, nullString(sessionID), id)
	if err != nil {
		return fmt.Errorf("set session id: %w", err)
	}
	return expectOneRow(result, id)
}

// Reactivate devuelve la cuenta a active + is_active (acción del operador)
func (r *AccountRepository) Reactivate(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET status = 'active', is_active = 1, disabled_by_operator = 0, status_changed_at = ? WHERE id = ?
	`, r.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("reactivate account: %w", err)
	}
	return expectOneRow(result, id)
}

// ReviveRateLimited reactiva las cuentas rate_limited cuyo estado cambió antes de `before`.
// Las deshabilitadas por el operador se quedan como están.
func (r *AccountRepository) ReviveRateLimited(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET status = 'active', is_active = 1, status_changed_at = ?
		WHERE status = 'rate_limited' AND status_changed_at IS NOT NULL AND status_changed_at < ?
			AND disabled_by_operator = 0
	`, r.now().UnixMilli(), before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("revive rate limited: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}

// CountByStatus cuenta las cuentas por estado de salud
func (r *AccountRepository) CountByStatus(ctx context.Context) (map[domain.HealthStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}

	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM accounts GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}

	counts := map[domain.HealthStatus]int{
		domain.HealthActive:      0,
		domain.HealthRateLimited: 0,
		domain.HealthBanned:      0,
		domain.HealthLoginFailed: 0,
	}
	for _, row := range rows {
		counts[domain.HealthStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// Helper: conversión row → domain
func accountRowToDomain(row *accountRow) *domain.Account {
	acc := &domain.Account{
		ID:         row.ID,
		Platform:   row.Platform,
		Username:   row.Username,
		Secret:     row.Secret,
		ProxyURL:   row.ProxyURL.String,
		SessionID:  row.SessionID.String,
		Status:     domain.HealthStatus(row.Status),
		IsActive:   row.IsActive == 1,
		UsageCount: row.UsageCount,
		CreatedAt:  time.Unix(row.CreatedAt, 0),
	}

	if row.LastUsed.Valid {
		t := time.UnixMilli(row.LastUsed.Int64)
		acc.LastUsed = &t
	}
	if row.StatusChangedAt.Valid {
		t := time.UnixMilli(row.StatusChangedAt.Int64)
		acc.StatusChangedAt = &t
	}

	return acc
}

func accountRowsToDomain(rows []accountRow) []*domain.Account {
	accounts := make([]*domain.Account, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, accountRowToDomain(&rows[i]))
	}
	return accounts
}

func expectOneRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
