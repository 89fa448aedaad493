package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elsanchez/smart-extract/internal/domain"
	"github.com/elsanchez/smart-extract/internal/repository"
)

// ExtractionRepository implementa repository.ExtractionRepository usando SQLite
type ExtractionRepository struct {
	db *sqlx.DB
}

// Compiletime check: asegura que implementa la interfaz
var _ repository.ExtractionRepository = (*ExtractionRepository)(nil)

// NewExtractionRepository crea un nuevo repositorio de extracciones
func NewExtractionRepository(db *sqlx.DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

type extractionRow struct {
	ID           string         `db:"id"`
	URL          string         `db:"url"`
	Shortcode    sql.NullString `db:"shortcode"`
	AccountID    sql.NullInt64  `db:"account_id"`
	Outcome      string         `db:"outcome"`
	ErrorMessage sql.NullString `db:"error_message"`
	DurationMS   int64          `db:"duration_ms"`
	CreatedAt    int64          `db:"created_at"`
}

// Record inserta un intento de extracción; asigna ID y fecha si faltan
func (r *ExtractionRepository) Record(ctx context.Context, ex *domain.Extraction) error {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}

	var accountID sql.NullInt64
	if ex.AccountID != nil {
		accountID = sql.NullInt64{Int64: *ex.AccountID, Valid: true}
	}

	query := `
		INSERT INTO extractions (id, url, shortcode, account_id, outcome, error_message, duration_ms, created_at)
		VALUES (:id, :url, :shortcode, :account_id, :outcome, :error_message, :duration_ms, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":            ex.ID,
		"url":           ex.URL,
		"shortcode":     nullString(ex.Shortcode),
		"account_id":    accountID,
		"outcome":       ex.Outcome,
		"error_message": nullString(ex.ErrorMessage),
		"duration_ms":   ex.DurationMS,
		"created_at":    ex.CreatedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("insert extraction: %w", err)
	}

	return nil
}

// GetRecent obtiene las últimas N extracciones
func (r *ExtractionRepository) GetRecent(ctx context.Context, limit int) ([]*domain.Extraction, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []extractionRow
	query := `SELECT * FROM extractions ORDER BY created_at DESC, rowid DESC LIMIT ?`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("get recent extractions: %w", err)
	}

	out := make([]*domain.Extraction, 0, len(rows))
	for i := range rows {
		out = append(out, extractionRowToDomain(&rows[i]))
	}
	return out, nil
}

// Stats agrupa el histórico por resultado
func (r *ExtractionRepository) Stats(ctx context.Context) (*domain.ExtractionStats, error) {
	var rows []struct {
		Outcome string `db:"outcome"`
		Count   int    `db:"count"`
	}

	if err := r.db.SelectContext(ctx, &rows, `SELECT outcome, COUNT(*) AS count FROM extractions GROUP BY outcome`); err != nil {
		return nil, fmt.Errorf("extraction stats: %w", err)
	}

	stats := &domain.ExtractionStats{ByOutcome: make(map[string]int, len(rows))}
	for _, row := range rows {
		stats.ByOutcome[row.Outcome] = row.Count
		stats.Total += row.Count
	}
	return stats, nil
}

func extractionRowToDomain(row *extractionRow) *domain.Extraction {
	ex := &domain.Extraction{
		ID:           row.ID,
		URL:          row.URL,
		Shortcode:    row.Shortcode.String,
		Outcome:      row.Outcome,
		ErrorMessage: row.ErrorMessage.String,
		DurationMS:   row.DurationMS,
		CreatedAt:    time.Unix(row.CreatedAt, 0),
	}
	if row.AccountID.Valid {
		id := row.AccountID.Int64
		ex.AccountID = &id
	}
	return ex
}
