// Package platform define la capacidad remota de la plataforma: login y lectura de posts.
package platform

import (
	"context"
	"errors"
	"fmt"
)

// Códigos de media_type de la plataforma
const (
	MediaTypePhoto    = 1
	MediaTypeVideo    = 2
	MediaTypeCarousel = 8
)

// Credentials son los datos de login de una cuenta
type Credentials struct {
	Username  string
	Secret    string
	SessionID string
	ProxyURL  string
}

// Media es la metadata de un post
type Media struct {
	Caption        string
	MediaType      int
	VideoURL       string
	ThumbnailURL   string
	AuthorUsername string
}

// Comment es un comentario de un post
type Comment struct {
	Text string
}

// Client es una sesión contra la plataforma. Cada instancia pertenece a una sola cuenta y petición.
type Client interface {
	Login(ctx context.Context, creds Credentials) error
	ResolveID(ctx context.Context, shortcode string) (string, error)
	FetchMetadata(ctx context.Context, ref string) (*Media, error)
	FetchComments(ctx context.Context, ref string, limit int) ([]Comment, error)
}

// Factory crea un Client nuevo, sin estado compartido
type Factory func() Client

// Code clasifica los fallos de la plataforma
type Code int

const (
	CodeGeneric Code = iota
	CodeBadCredentials
	CodeLoginRequired
	CodeChallengeRequired
	CodeAccountFlagged
	CodeRateLimited
	CodeNotFound
)

func (c Code) String() string {
	switch c {
	case CodeBadCredentials:
		return "bad_credentials"
	case CodeLoginRequired:
		return "login_required"
	case CodeChallengeRequired:
		return "challenge_required"
	case CodeAccountFlagged:
		return "account_flagged"
	case CodeRateLimited:
		return "rate_limited"
	case CodeNotFound:
		return "not_found"
	default:
		return "generic"
	}
}

// Error es un fallo tipado devuelto por un Client. Err conserva la causa (transporte, contexto).
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError construye un Error
func NewError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// WrapError construye un Error que envuelve su causa
func WrapError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf retorna el código de un error; errores no tipados son CodeGeneric
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeGeneric
}
