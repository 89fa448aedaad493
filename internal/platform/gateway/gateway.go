// Package gateway implementa platform.Client contra un gateway HTTP de scraping.
//
// El gateway mantiene la sesión real con la plataforma; este cliente solo habla JSON:
//
//	POST /auth/login                  {username, password, sessionid?, proxy?} -> {token}
//	GET  /media/{id}                  -> media
//	GET  /media/{id}/comments?amount= -> {comments: [{text}]}
//
// Los fallos llegan como {error_type, message} junto al status HTTP.
package gateway

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/elsanchez/smart-extract/internal/platform"
	"github.com/elsanchez/smart-extract/internal/telemetry"
)

var tracer = telemetry.Tracer("smart-extract/platform/gateway")

// Options configura el acceso al gateway
type Options struct {
	BaseURL string
	Timeout time.Duration
}

// Client es una sesión contra el gateway, ligada a una sola cuenta
type Client struct {
	http  *resty.Client
	token string
}

// Compiletime check
var _ platform.Client = (*Client)(nil)

// New crea un cliente sin sesión
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		http: resty.New().
			SetBaseURL(opts.BaseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// NewFactory retorna un platform.Factory que crea un Client nuevo por sesión
func NewFactory(opts Options) platform.Factory {
	return func() platform.Client {
		return New(opts)
	}
}

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	SessionID string `json:"sessionid,omitempty"`
	Proxy     string `json:"proxy,omitempty"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type mediaResponse struct {
	CaptionText  string `json:"caption_text"`
	MediaType    int    `json:"media_type"`
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	User         *struct {
		Username string `json:"username"`
	} `json:"user"`
}

type commentsResponse struct {
	Comments []struct {
		Text string `json:"text"`
	} `json:"comments"`
}

type errorResponse struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// Login abre la sesión en el gateway; el proxy de la cuenta se reenvía al gateway
func (c *Client) Login(ctx context.Context, creds platform.Credentials) error {
	ctx, span := tracer.Start(ctx, "gateway.Login", trace.WithAttributes(attribute.String("username", creds.Username)))
	defer span.End()

	var out loginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(loginRequest{
			Username:  creds.Username,
			Password:  creds.Secret,
			SessionID: creds.SessionID,
			Proxy:     creds.ProxyURL,
		}).
		SetResult(&out).
		SetError(&errorResponse{}).
		Post("/auth/login")
	if err := check(span, resp, err); err != nil {
		return err
	}

	if out.Token == "" {
		return recordErr(span, platform.NewError(platform.CodeGeneric, "login succeeded without session token"))
	}
	c.token = out.Token
	return nil
}

// ResolveID convierte el shortcode en el id numérico del media; no hace red
func (c *Client) ResolveID(ctx context.Context, shortcode string) (string, error) {
	id, err := platform.MediaIDFromShortcode(shortcode)
	if err != nil {
		return "", platform.NewError(platform.CodeNotFound, err.Error())
	}
	return id, nil
}

// FetchMetadata obtiene caption, tipo y URLs del media
func (c *Client) FetchMetadata(ctx context.Context, ref string) (*platform.Media, error) {
	ctx, span := tracer.Start(ctx, "gateway.FetchMetadata", trace.WithAttributes(attribute.String("media_id", ref)))
	defer span.End()

	var out mediaResponse
	resp, err := c.request(ctx).
		SetPathParam("id", ref).
		SetResult(&out).
		Get("/media/{id}")
	if err := check(span, resp, err); err != nil {
		return nil, err
	}

	media := &platform.Media{
		Caption:      out.CaptionText,
		MediaType:    out.MediaType,
		VideoURL:     out.VideoURL,
		ThumbnailURL: out.ThumbnailURL,
	}
	if out.User != nil {
		media.AuthorUsername = out.User.Username
	}
	span.SetAttributes(attribute.Int("media_type", out.MediaType))
	return media, nil
}

// FetchComments obtiene hasta limit comentarios
func (c *Client) FetchComments(ctx context.Context, ref string, limit int) ([]platform.Comment, error) {
	ctx, span := tracer.Start(ctx, "gateway.FetchComments", trace.WithAttributes(
		attribute.String("media_id", ref),
		attribute.Int("limit", limit),
	))
	defer span.End()

	var out commentsResponse
	resp, err := c.request(ctx).
		SetPathParam("id", ref).
		SetQueryParam("amount", strconv.Itoa(limit)).
		SetResult(&out).
		Get("/media/{id}/comments")
	if err := check(span, resp, err); err != nil {
		return nil, err
	}

	comments := make([]platform.Comment, 0, len(out.Comments))
	for _, cm := range out.Comments {
		comments = append(comments, platform.Comment{Text: cm.Text})
	}
	return comments, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx).SetError(&errorResponse{})
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	return req
}

func check(span trace.Span, resp *resty.Response, err error) error {
	if err != nil {
		return recordErr(span, platform.WrapError(platform.CodeGeneric, "gateway request", err))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if !resp.IsError() {
		return nil
	}

	body, _ := resp.Error().(*errorResponse)
	if body == nil {
		body = &errorResponse{}
	}
	return recordErr(span, classify(resp.StatusCode(), body))
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// classify traduce error_type y status HTTP a platform.Code
func classify(status int, body *errorResponse) *platform.Error {
	msg := body.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch body.ErrorType {
	case "bad_password", "bad_credentials", "invalid_user":
		return platform.NewError(platform.CodeBadCredentials, msg)
	case "login_required":
		return platform.NewError(platform.CodeLoginRequired, msg)
	case "challenge_required", "checkpoint_required", "two_factor_required", "recaptcha_challenge":
		return platform.NewError(platform.CodeChallengeRequired, msg)
	case "feedback_required", "consent_required", "sentry_block", "account_flagged":
		return platform.NewError(platform.CodeAccountFlagged, msg)
	case "rate_limit", "please_wait_few_minutes", "too_many_requests":
		return platform.NewError(platform.CodeRateLimited, msg)
	case "media_not_found", "not_found", "private_account":
		return platform.NewError(platform.CodeNotFound, msg)
	}

	switch status {
	case http.StatusTooManyRequests:
		return platform.NewError(platform.CodeRateLimited, msg)
	case http.StatusNotFound:
		return platform.NewError(platform.CodeNotFound, msg)
	case http.StatusUnauthorized:
		return platform.NewError(platform.CodeLoginRequired, msg)
	}
	return platform.NewError(platform.CodeGeneric, msg)
}
