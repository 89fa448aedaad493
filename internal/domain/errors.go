package domain

import (
	"errors"
	"fmt"
)

// Kind es el conjunto cerrado de fallos que una extracción puede devolver
type Kind int

const (
	KindUpstream Kind = iota
	KindInvalidInput
	KindNoAccountsAvailable
	KindAuthenticationFailed
	KindAccountChallenged
	KindRateLimited
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNoAccountsAvailable:
		return "no_accounts_available"
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindAccountChallenged:
		return "account_challenged"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	default:
		return "upstream_error"
	}
}

// Retryable indica si el llamador puede reintentar la petición completa
func (k Kind) Retryable() bool {
	switch k {
	case KindNoAccountsAvailable, KindAuthenticationFailed, KindAccountChallenged, KindRateLimited:
		return true
	}
	return false
}

// Error es el fallo tipado de una extracción
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError construye un Error del tipo indicado
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// WithHint agrega una sugerencia de remediación para el llamador
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf extrae el Kind de un error; los errores no tipados son KindUpstream
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUpstream
}

// HintOf extrae la sugerencia de un error tipado, si existe
func HintOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Hint
	}
	return ""
}
