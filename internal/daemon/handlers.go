package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/elsanchez/smart-extract/internal/domain"
	"github.com/elsanchez/smart-extract/internal/registry"
	"github.com/elsanchez/smart-extract/internal/repository"
)

// Extractor es la operación de extracción que expone el daemon
type Extractor interface {
	Extract(ctx context.Context, postURL string) (*domain.ExtractionResult, error)
}

// Handlers maneja las peticiones HTTP del daemon
type Handlers struct {
	extractor   Extractor
	accounts    repository.AccountRepository
	extractions repository.ExtractionRepository
	store       registry.Store
	registryKey string
	service     string
	log         zerolog.Logger
}

// NewHandlers crea los handlers. store puede ser nil si el daemon no sirve el registro;
// accounts es nil cuando el pool vive en un registro remoto.
func NewHandlers(
	extractor Extractor,
	accounts repository.AccountRepository,
	extractions repository.ExtractionRepository,
	store registry.Store,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		extractor:   extractor,
		accounts:    accounts,
		extractions: extractions,
		store:       store,
		service:     "instagram-extractor",
		log:         log,
	}
}

// WithRegistryKey exige "Authorization: Bearer key" en las rutas /rpc
func (h *Handlers) WithRegistryKey(key string) *Handlers {
	h.registryKey = key
	return h
}

// ExtractRequest es el cuerpo de POST /extract-instagram
type ExtractRequest struct {
	URL string `json:"url"`
}

// HandleHealth responde el health check
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": h.service})
}

// HandleExtract ejecuta una extracción
func (h *Handlers) HandleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		WriteExtractionError(w, domain.NewError(domain.KindInvalidInput, "Missing 'url' in request body", nil))
		return
	}

	result, err := h.extractor.Extract(r.Context(), req.URL)
	if err != nil {
		WriteExtractionError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// CreateAccountRequest es el cuerpo de POST /api/accounts
type CreateAccountRequest struct {
	Platform  string `json:"platform,omitempty"`
	Username  string `json:"username"`
	Secret    string `json:"credential"`
	ProxyURL  string `json:"proxyUrl,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`
}

// HandleListAccounts lista cuentas sin credenciales. Filtros: ?status=&active=&platform=
func (h *Handlers) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.AccountFilter{
		Platform: q.Get("platform"),
		Status:   domain.HealthStatus(q.Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		WriteError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid active filter")
			return
		}
		filter.Active = &active
	}

	accounts, err := h.accounts.List(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("list accounts")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]domain.Account, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, acc.Redacted())
	}
	WriteData(w, http.StatusOK, out)
}

// HandleCreateAccount agrega una cuenta al pool
func (h *Handlers) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	if req.Username == "" || req.Secret == "" {
		WriteError(w, http.StatusBadRequest, "username and credential are required")
		return
	}

	id, err := h.accounts.Create(r.Context(), &domain.Account{
		Platform:  req.Platform,
		Username:  req.Username,
		Secret:    req.Secret,
		ProxyURL:  req.ProxyURL,
		SessionID: req.SessionID,
		Status:    domain.HealthActive,
		IsActive:  !req.Disabled,
	})
	if err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	h.log.Info().Int64("account_id", id).Str("username", req.Username).Msg("account added")
	WriteData(w, http.StatusCreated, map[string]int64{"id": id})
}

// HandleDeleteAccount elimina una cuenta
func (h *Handlers) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	h.withAccountID(w, r, func(id int64) error {
		return h.accounts.Delete(r.Context(), id)
	})
}

// HandleReactivate devuelve una cuenta a la rotación
func (h *Handlers) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.withAccountID(w, r, func(id int64) error {
		return h.accounts.Reactivate(r.Context(), id)
	})
}

// HandleDisable saca una cuenta de la rotación sin cambiar su estado de salud
func (h *Handlers) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.withAccountID(w, r, func(id int64) error {
		return h.accounts.Disable(r.Context(), id)
	})
}

// SessionRequest es el cuerpo de POST /api/accounts/{id}/session
type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

// HandleSetSession guarda una cookie de sesión importada
func (h *Handlers) HandleSetSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		WriteError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	h.withAccountID(w, r, func(id int64) error {
		return h.accounts.SetSessionID(r.Context(), id, req.SessionID)
	})
}

func (h *Handlers) withAccountID(w http.ResponseWriter, r *http.Request, fn func(id int64) error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	if err := fn(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error().Err(err).Int64("account_id", id).Msg("account operation failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteData(w, http.StatusOK, map[string]int64{"id": id})
}

// Stats resume el pool y el histórico. Accounts se omite si el pool es remoto.
type Stats struct {
	Accounts    map[domain.HealthStatus]int `json:"accounts,omitempty"`
	Extractions *domain.ExtractionStats     `json:"extractions"`
}

// HandleStats retorna conteos de cuentas por estado y de extracciones por resultado
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	var accounts map[domain.HealthStatus]int
	if h.accounts != nil {
		var err error
		accounts, err = h.accounts.CountByStatus(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	extractions, err := h.extractions.Stats(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteData(w, http.StatusOK, Stats{Accounts: accounts, Extractions: extractions})
}

// ExtractionView es la forma JSON de un registro del histórico
type ExtractionView struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Shortcode  string `json:"shortcode,omitempty"`
	AccountID  *int64 `json:"accountId,omitempty"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
	CreatedAt  int64  `json:"createdAt"`
}

// HandleHistory lista las últimas extracciones (?limit=)
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	recent, err := h.extractions.GetRecent(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]ExtractionView, 0, len(recent))
	for _, ex := range recent {
		out = append(out, ExtractionView{
			ID:         ex.ID,
			URL:        ex.URL,
			Shortcode:  ex.Shortcode,
			AccountID:  ex.AccountID,
			Outcome:    ex.Outcome,
			Error:      ex.ErrorMessage,
			DurationMS: ex.DurationMS,
			CreatedAt:  ex.CreatedAt.Unix(),
		})
	}
	WriteData(w, http.StatusOK, out)
}

// HandleRPCNextAccount sirve la lectura del registro a otros procesos
func (h *Handlers) HandleRPCNextAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.store.NextAccount(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("rpc next account")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if acc == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	WriteJSON(w, http.StatusOK, acc)
}

// HandleRPCUpdateAccount sirve la escritura del registro a otros procesos
func (h *Handlers) HandleRPCUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var u registry.AccountUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil || u.AccountID == 0 {
		WriteError(w, http.StatusBadRequest, "accountId is required")
		return
	}
	if u.Status != nil && !u.Status.Valid() {
		WriteError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := h.store.UpdateAccount(r.Context(), u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
