package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/elsanchez/smart-extract/internal/domain"
)

// Response es el sobre de las rutas /api
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ErrorBody es la respuesta de una extracción fallida
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Hint    string `json:"hint,omitempty"`
}

// WriteJSON escribe data como JSON con el status indicado
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteData escribe un Response exitoso
func WriteData(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, Response{Success: true, Data: data})
}

// WriteError escribe un Response fallido
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, Response{Success: false, Error: msg})
}

// StatusFor mapea cada Kind a un status HTTP distinto
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAuthenticationFailed:
		return http.StatusUnauthorized
	case domain.KindAccountChallenged:
		return http.StatusForbidden
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindNoAccountsAvailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteExtractionError escribe el fallo de una extracción con su status
func WriteExtractionError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindRateLimited || kind == domain.KindNoAccountsAvailable {
		w.Header().Set("Retry-After", "5")
	}
	WriteJSON(w, StatusFor(kind), ErrorBody{
		Success: false,
		Error:   err.Error(),
		Hint:    domain.HintOf(err),
	})
}
