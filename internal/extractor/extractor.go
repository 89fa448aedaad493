// Package extractor coordina una extracción: cuenta, sesión, metadata, pausa, comentarios y reporte.
package extractor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/elsanchez/smart-extract/internal/domain"
	"github.com/elsanchez/smart-extract/internal/metrics"
	"github.com/elsanchez/smart-extract/internal/platform"
	"github.com/elsanchez/smart-extract/internal/posturl"
	"github.com/elsanchez/smart-extract/internal/repository"
	"github.com/elsanchez/smart-extract/internal/session"
	"github.com/elsanchez/smart-extract/internal/telemetry"
)

var tracer = telemetry.Tracer("smart-extract/extractor")

// Valores por defecto
const (
	DefaultDomain       = "instagram.com"
	DefaultCommentLimit = 50
	DefaultCooldown     = time.Second
)

// NoAccountsHint acompaña a NoAccountsAvailable
const NoAccountsHint = "all accounts are rate limited, banned or disabled; add accounts or reactivate existing ones and retry later"

// Registry es lo que el extractor necesita del registro de cuentas
type Registry interface {
	FetchNextAccount(ctx context.Context) (*domain.Account, error)
	ReportUsage(ctx context.Context, accountID int64)
	ReportStatus(ctx context.Context, t domain.HealthTransition)
}

// Authenticator abre una sesión para una cuenta
type Authenticator interface {
	Authenticate(ctx context.Context, acc *domain.Account) (*session.Session, error)
}

// Options ajusta el comportamiento del extractor
type Options struct {
	Domain       string
	CommentLimit int
	Cooldown     time.Duration
}

// PauseFunc espera d o hasta que ctx termine
type PauseFunc func(ctx context.Context, d time.Duration) error

// Extractor ejecuta extracciones; es seguro para uso concurrente porque no guarda estado por petición
type Extractor struct {
	registry Registry
	sessions Authenticator
	history  repository.ExtractionRepository
	opts     Options
	pause    PauseFunc
	now      func() time.Time
	log      zerolog.Logger
}

// Option configura dependencias opcionales
type Option func(*Extractor)

// WithHistory registra cada intento en el histórico (best effort)
func WithHistory(repo repository.ExtractionRepository) Option {
	return func(e *Extractor) { e.history = repo }
}

// WithPause reemplaza la pausa entre metadata y comentarios
func WithPause(p PauseFunc) Option {
	return func(e *Extractor) { e.pause = p }
}

// New crea un Extractor
func New(reg Registry, sessions Authenticator, opts Options, log zerolog.Logger, options ...Option) *Extractor {
	if opts.Domain == "" {
		opts.Domain = DefaultDomain
	}
	if opts.CommentLimit <= 0 {
		opts.CommentLimit = DefaultCommentLimit
	}

	e := &Extractor{
		registry: reg,
		sessions: sessions,
		opts:     opts,
		pause:    sleep,
		now:      time.Now,
		log:      log.With().Str("component", "extractor").Logger(),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Extract obtiene caption, comentarios y URLs del post
func (e *Extractor) Extract(ctx context.Context, postURL string) (result *domain.ExtractionResult, err error) {
	ctx, span := tracer.Start(ctx, "extractor.Extract", trace.WithAttributes(attribute.String("post_url", postURL)))
	defer span.End()

	rec := &domain.Extraction{URL: postURL}
	started := e.now()
	defer func() {
		e.finish(ctx, span, rec, started, err)
	}()

	if err := posturl.Validate(postURL, e.opts.Domain); err != nil {
		return nil, err
	}

	shortcode, err := posturl.Shortcode(postURL)
	if err != nil {
		return nil, err
	}
	rec.Shortcode = shortcode
	span.SetAttributes(attribute.String("shortcode", shortcode))

	acc, err := e.registry.FetchNextAccount(ctx)
	if err != nil {
		return nil, domain.NewError(domain.KindUpstream, "Account registry unavailable", err)
	}
	if acc == nil {
		return nil, domain.NewError(domain.KindNoAccountsAvailable, "No accounts available", nil).WithHint(NoAccountsHint)
	}
	rec.AccountID = &acc.ID
	span.SetAttributes(attribute.Int64("account_id", acc.ID))

	sess, err := e.sessions.Authenticate(ctx, acc)
	if err != nil {
		return nil, err
	}

	ref, media, err := e.fetchMedia(ctx, sess, shortcode)
	if err != nil {
		return nil, err
	}

	// Pausa fija entre metadata y comentarios
	if err := e.pause(ctx, e.opts.Cooldown); err != nil {
		return nil, domain.NewError(domain.KindUpstream, "Request cancelled", err)
	}

	comments := e.fetchComments(ctx, sess, ref)

	result = assemble(postURL, media, comments)

	e.registry.ReportUsage(ctx, acc.ID)

	return result, nil
}

// fetchMedia resuelve el shortcode y pide la metadata, clasificando los fallos
func (e *Extractor) fetchMedia(ctx context.Context, sess *session.Session, shortcode string) (string, *platform.Media, error) {
	ref, err := sess.Client.ResolveID(ctx, shortcode)
	if err == nil {
		var media *platform.Media
		media, err = sess.Client.FetchMetadata(ctx, ref)
		if err == nil {
			return ref, media, nil
		}
	}

	switch platform.CodeOf(err) {
	case platform.CodeRateLimited:
		e.registry.ReportStatus(ctx, domain.HealthTransition{
			AccountID:  sess.AccountID,
			Status:     domain.HealthRateLimited,
			Deactivate: true,
		})
		return "", nil, domain.NewError(domain.KindRateLimited, "Rate limited by platform", err).
			WithHint("the account was rotated out; retry shortly")
	case platform.CodeNotFound:
		return "", nil, domain.NewError(domain.KindNotFound, "Post not found (deleted, private or wrong URL)", err)
	default:
		return "", nil, domain.NewError(domain.KindUpstream, "Failed to fetch post", err)
	}
}

// fetchComments nunca falla: cualquier error produce una lista vacía
func (e *Extractor) fetchComments(ctx context.Context, sess *session.Session, ref string) []string {
	raw, err := sess.Client.FetchComments(ctx, ref, e.opts.CommentLimit)
	if err != nil {
		metrics.CommentFetchFailuresTotal.Inc()
		e.log.Warn().Err(err).Str("media_id", ref).Msg("comment fetch failed, continuing without comments")
		return []string{}
	}

	comments := make([]string, 0, min(len(raw), e.opts.CommentLimit))
	for _, c := range raw {
		if len(comments) == e.opts.CommentLimit {
			break
		}
		if c.Text == "" {
			continue
		}
		comments = append(comments, c.Text)
	}
	return comments
}

func assemble(postURL string, media *platform.Media, comments []string) *domain.ExtractionResult {
	result := &domain.ExtractionResult{
		Success:      true,
		Caption:      media.Caption,
		Comments:     comments,
		ThumbnailURL: media.ThumbnailURL,
		PostURL:      postURL,
		Username:     media.AuthorUsername,
		MediaType:    domain.MediaPhoto,
	}

	if media.MediaType == platform.MediaTypeVideo {
		result.MediaType = domain.MediaVideo
		result.VideoURL = media.VideoURL
	}
	if result.Username == "" {
		result.Username = domain.UnknownAuthor
	}
	return result
}

// finish registra métricas, span e histórico del intento
func (e *Extractor) finish(ctx context.Context, span trace.Span, rec *domain.Extraction, started time.Time, err error) {
	rec.DurationMS = e.now().Sub(started).Milliseconds()
	rec.Outcome = domain.OutcomeSuccess
	if err != nil {
		rec.Outcome = domain.KindOf(err).String()
		rec.ErrorMessage = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, rec.Outcome)
	}
	metrics.ExtractionsTotal.WithLabelValues(rec.Outcome).Inc()

	event := e.log.Info()
	if err != nil {
		event = e.log.Warn().Err(err)
	}
	event.Str("url", rec.URL).
		Str("shortcode", rec.Shortcode).
		Str("outcome", rec.Outcome).
		Int64("duration_ms", rec.DurationMS).
		Msg("extraction finished")

	if e.history == nil {
		return
	}
	if herr := e.history.Record(context.WithoutCancel(ctx), rec); herr != nil {
		metrics.BestEffortFailuresTotal.WithLabelValues("history").Inc()
		e.log.Warn().Err(herr).Msg("failed to record extraction history")
	}
}
