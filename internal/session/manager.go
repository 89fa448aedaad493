// Package session autentica una cuenta contra la plataforma y clasifica los fallos de login.
package session

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/elsanchez/smart-extract/internal/domain"
	"github.com/elsanchez/smart-extract/internal/platform"
	"github.com/elsanchez/smart-extract/internal/telemetry"
)

var tracer = telemetry.Tracer("smart-extract/session")

// StatusReporter recibe las transiciones de salud (best effort)
type StatusReporter interface {
	ReportStatus(ctx context.Context, t domain.HealthTransition)
}

// Session es una sesión autenticada, válida solo durante una petición
type Session struct {
	AccountID int64
	Username  string
	Client    platform.Client
}

// Manager crea sesiones nuevas por petición
type Manager struct {
	newClient platform.Factory
	reporter  StatusReporter
	log       zerolog.Logger
}

// NewManager crea un Manager
func NewManager(factory platform.Factory, reporter StatusReporter, log zerolog.Logger) *Manager {
	return &Manager{
		newClient: factory,
		reporter:  reporter,
		log:       log.With().Str("component", "session").Logger(),
	}
}

// Authenticate hace login con la cuenta. Si el fallo refleja la salud de la cuenta,
// la transición se reporta antes de devolver el error.
func (m *Manager) Authenticate(ctx context.Context, acc *domain.Account) (*Session, error) {
	ctx, span := tracer.Start(ctx, "session.Authenticate")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", acc.ID))

	client := m.newClient()

	err := client.Login(ctx, platform.Credentials{
		Username:  acc.Username,
		Secret:    acc.Secret,
		SessionID: acc.SessionID,
		ProxyURL:  acc.ProxyURL,
	})
	if err == nil {
		m.log.Debug().Int64("account_id", acc.ID).Str("username", acc.Username).Msg("logged in")
		return &Session{AccountID: acc.ID, Username: acc.Username, Client: client}, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "login failed")

	kind, transition := classifyLogin(acc.ID, err)
	if transition != nil {
		m.reporter.ReportStatus(ctx, *transition)
	}

	m.log.Warn().Err(err).
		Int64("account_id", acc.ID).
		Str("kind", kind.String()).
		Msg("login failed")

	switch kind {
	case domain.KindAccountChallenged:
		return nil, domain.NewError(kind, "Account requires verification", err).
			WithHint("the account was flagged and removed from rotation; retry to use another account")
	default:
		return nil, domain.NewError(domain.KindAuthenticationFailed, "Authentication failed", err)
	}
}

// classifyLogin mapea el fallo de login al kind y a la transición de salud, si corresponde
func classifyLogin(accountID int64, err error) (domain.Kind, *domain.HealthTransition) {
	switch platform.CodeOf(err) {
	case platform.CodeBadCredentials, platform.CodeLoginRequired:
		return domain.KindAuthenticationFailed, &domain.HealthTransition{
			AccountID:  accountID,
			Status:     domain.HealthLoginFailed,
			Deactivate: true,
		}
	case platform.CodeChallengeRequired, platform.CodeAccountFlagged:
		return domain.KindAccountChallenged, &domain.HealthTransition{
			AccountID:  accountID,
			Status:     domain.HealthBanned,
			Deactivate: true,
		}
	default:
		return domain.KindAuthenticationFailed, nil
	}
}
