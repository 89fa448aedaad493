package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/elsanchez/smart-extract/internal/domain"
	"github.com/elsanchez/smart-extract/internal/metrics"
)

// ReportTimeout acota cada escritura al registro. Las escrituras no heredan la
// cancelación del request: una cuenta rate_limited se marca aunque el cliente se vaya.
const ReportTimeout = 10 * time.Second

// Client es el cliente del registro que usa el core.
// La lectura propaga sus errores; las escrituras son best effort: se loguean y se descartan.
type Client struct {
	store Store
	log   zerolog.Logger
}

// NewClient crea un Client sobre un Store
func NewClient(store Store, log zerolog.Logger) *Client {
	return &Client{
		store: store,
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// FetchNextAccount devuelve la siguiente cuenta o nil si no hay elegibles. No reintenta.
func (c *Client) FetchNextAccount(ctx context.Context) (*domain.Account, error) {
	acc, err := c.store.NextAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch next account: %w", err)
	}
	return acc, nil
}

// ReportUsage avanza last_used y el contador de uso. Nunca falla.
func (c *Client) ReportUsage(ctx context.Context, accountID int64) {
	ctx, cancel := detached(ctx)
	defer cancel()

	err := c.store.UpdateAccount(ctx, AccountUpdate{AccountID: accountID, UsageBump: true})
	if err != nil {
		metrics.BestEffortFailuresTotal.WithLabelValues("usage").Inc()
		c.log.Warn().Err(err).Int64("account_id", accountID).Msg("usage report failed")
		return
	}
	c.log.Debug().Int64("account_id", accountID).Msg("usage reported")
}

// ReportStatus escribe una transición de salud. Nunca falla.
func (c *Client) ReportStatus(ctx context.Context, t domain.HealthTransition) {
	metrics.HealthTransitionsTotal.WithLabelValues(string(t.Status)).Inc()

	status := t.Status
	update := AccountUpdate{AccountID: t.AccountID, Status: &status}
	if t.Deactivate {
		inactive := false
		update.IsActive = &inactive
	}

	ctx, cancel := detached(ctx)
	defer cancel()

	if err := c.store.UpdateAccount(ctx, update); err != nil {
		metrics.BestEffortFailuresTotal.WithLabelValues("status").Inc()
		c.log.Warn().Err(err).
			Int64("account_id", t.AccountID).
			Str("status", string(t.Status)).
			Bool("deactivate", t.Deactivate).
			Msg("status report failed")
		return
	}

	c.log.Info().
		Int64("account_id", t.AccountID).
		Str("status", string(t.Status)).
		Bool("deactivate", t.Deactivate).
		Msg("account health updated")
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ReportTimeout)
}
