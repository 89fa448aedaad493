package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/elsanchez/smart-extract/internal/metrics"
	"github.com/elsanchez/smart-extract/internal/repository"
)

// Reviver devuelve a la rotación las cuentas rate_limited tras un enfriamiento.
// Las cuentas banned y login_failed solo se reactivan a mano.
type Reviver struct {
	accounts repository.AccountRepository
	after    time.Duration
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewReviver crea un reviver; after <= 0 lo deja deshabilitado
func NewReviver(accounts repository.AccountRepository, after, interval time.Duration, log zerolog.Logger) *Reviver {
	ctx, cancel := context.WithCancel(context.Background())

	if interval <= 0 {
		interval = time.Minute
	}

	return &Reviver{
		accounts: accounts,
		after:    after,
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("component", "reviver").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Enabled indica si hay un enfriamiento configurado
func (r *Reviver) Enabled() bool {
	return r.after > 0
}

// Start inicia el loop
func (r *Reviver) Start() {
	if !r.Enabled() {
		r.log.Info().Msg("reviver disabled")
		return
	}

	r.log.Info().Dur("after", r.after).Dur("interval", r.interval).Msg("reviver started")
	r.wg.Add(1)
	go r.loop()
}

// Stop detiene el loop y espera a que termine
func (r *Reviver) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Reviver) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Revisar inmediatamente al inicio
	r.RunOnce(r.ctx)

	for {
		select {
		case <-r.ctx.Done():
			r.log.Debug().Msg("reviver loop shutting down")
			return
		case <-ticker.C:
			r.RunOnce(r.ctx)
		}
	}
}

// RunOnce reactiva las cuentas cuyo enfriamiento terminó y retorna cuántas
func (r *Reviver) RunOnce(ctx context.Context) int64 {
	n, err := r.accounts.ReviveRateLimited(ctx, r.now().Add(-r.after))
	if err != nil {
		r.log.Error().Err(err).Msg("revive rate limited accounts")
		return 0
	}

	if n > 0 {
		metrics.RevivedAccountsTotal.Add(float64(n))
		r.log.Info().Int64("accounts", n).Msg("rate limited accounts back in rotation")
	}
	return n
}
