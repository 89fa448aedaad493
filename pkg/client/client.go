// Package client es el cliente HTTP del daemon smart-extractd.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

// DefaultAddr es la dirección por defecto del daemon
const DefaultAddr = "http://127.0.0.1:8080"

// GetDefaultAddr retorna SMART_EXTRACT_ADDR o DefaultAddr
func GetDefaultAddr() string {
	if addr := os.Getenv("SMART_EXTRACT_ADDR"); addr != "" {
		return addr
	}
	return DefaultAddr
}

// Client representa un cliente del daemon
type Client struct {
	http *resty.Client
}

// NewClient crea un cliente contra baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(2 * time.Minute).
			SetHeader("Content-Type", "application/json"),
	}
}

// NewDefaultClient crea un cliente con la dirección por defecto
func NewDefaultClient() *Client {
	return NewClient(GetDefaultAddr())
}

// Response es el sobre de las rutas /api
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ExtractResult es la respuesta de /extract-instagram
type ExtractResult struct {
	Success      bool     `json:"success"`
	Caption      string   `json:"caption"`
	Comments     []string `json:"comments"`
	VideoURL     string   `json:"videoUrl,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	PostURL      string   `json:"postUrl"`
	Username     string   `json:"username"`
	MediaType    string   `json:"mediaType"`
	Error        string   `json:"error,omitempty"`
	Hint         string   `json:"hint,omitempty"`
}

// ExtractError es un fallo de extracción con su status HTTP
type ExtractError struct {
	Status  int
	Message string
	Hint    string
}

func (e *ExtractError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s (%d): %s", e.Message, e.Status, e.Hint)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Retryable indica si vale la pena reintentar: otra cuenta podría funcionar
func (e *ExtractError) Retryable() bool {
	switch e.Status {
	case http.StatusServiceUnavailable, http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}

// Ping verifica que el daemon responde
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("connect to daemon: %w (is daemon running?)", err)
	}
	if resp.IsError() {
		return fmt.Errorf("daemon unhealthy: %s", resp.Status())
	}
	return nil
}

// Extract pide una extracción una sola vez
func (c *Client) Extract(ctx context.Context, postURL string) (*ExtractResult, error) {
	var out ExtractResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"url": postURL}).
		SetResult(&out).
		SetError(&out).
		Post("/extract-instagram")
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w (is daemon running?)", err)
	}
	if resp.IsError() || !out.Success {
		return nil, &ExtractError{Status: resp.StatusCode(), Message: out.Error, Hint: out.Hint}
	}
	return &out, nil
}

// ExtractWithRetry reintenta con backoff exponencial los fallos que otra cuenta podría resolver
func (c *Client) ExtractWithRetry(ctx context.Context, postURL string, maxRetries uint64, initial time.Duration) (*ExtractResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial

	var result *ExtractResult
	op := func() error {
		res, err := c.Extract(ctx, postURL)
		if err != nil {
			if ee, ok := err.(*ExtractError); ok && ee.Retryable() {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) api(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var env Response
	req := c.http.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w (is daemon running?)", err)
	}
	if resp.IsError() || !env.Success {
		return fmt.Errorf("%s %s failed (%d): %s", method, path, resp.StatusCode(), env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Account es la vista pública de una cuenta
type Account struct {
	ID              int64      `json:"id"`
	Platform        string     `json:"platform"`
	Username        string     `json:"username"`
	ProxyURL        string     `json:"proxyUrl,omitempty"`
	Status          string     `json:"status"`
	IsActive        bool       `json:"isActive"`
	LastUsed        *time.Time `json:"lastUsed,omitempty"`
	UsageCount      int64      `json:"usageCount"`
	StatusChangedAt *time.Time `json:"statusChangedAt,omitempty"`
}

// AddAccountPayload es el cuerpo para crear una cuenta
type AddAccountPayload struct {
	Platform  string `json:"platform,omitempty"`
	Username  string `json:"username"`
	Secret    string `json:"credential"`
	ProxyURL  string `json:"proxyUrl,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`
}

// ListAccounts lista las cuentas; status vacío no filtra
func (c *Client) ListAccounts(ctx context.Context, status string) ([]Account, error) {
	path := "/api/accounts"
	if status != "" {
		path += "?status=" + status
	}
	var accounts []Account
	if err := c.api(ctx, http.MethodGet, path, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// AddAccount crea una cuenta y retorna su id
func (c *Client) AddAccount(ctx context.Context, p *AddAccountPayload) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.api(ctx, http.MethodPost, "/api/accounts", p, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// RemoveAccount elimina una cuenta
func (c *Client) RemoveAccount(ctx context.Context, id int64) error {
	return c.api(ctx, http.MethodDelete, "/api/accounts/"+strconv.FormatInt(id, 10), nil, nil)
}

// ReactivateAccount devuelve una cuenta a la rotación
func (c *Client) ReactivateAccount(ctx context.Context, id int64) error {
	return c.api(ctx, http.MethodPost, "/api/accounts/"+strconv.FormatInt(id, 10)+"/reactivate", nil, nil)
}

// DisableAccount saca una cuenta de la rotación
func (c *Client) DisableAccount(ctx context.Context, id int64) error {
	return c.api(ctx, http.MethodPost, "/api/accounts/"+strconv.FormatInt(id, 10)+"/disable", nil, nil)
}

// SetSession guarda una cookie sessionid para la cuenta
func (c *Client) SetSession(ctx context.Context, id int64, sessionID string) error {
	body := map[string]string{"sessionId": sessionID}
	return c.api(ctx, http.MethodPost, "/api/accounts/"+strconv.FormatInt(id, 10)+"/session", body, nil)
}

// Stats es el resumen del pool y del histórico
type Stats struct {
	Accounts    map[string]int `json:"accounts"`
	Extractions struct {
		Total     int            `json:"total"`
		ByOutcome map[string]int `json:"byOutcome"`
	} `json:"extractions"`
}

// GetStats obtiene estadísticas
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.api(ctx, http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Extraction es un registro del histórico
type Extraction struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Shortcode  string `json:"shortcode,omitempty"`
	AccountID  *int64 `json:"accountId,omitempty"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
	CreatedAt  int64  `json:"createdAt"`
}

// ListRecentExtractions lista las últimas extracciones
func (c *Client) ListRecentExtractions(ctx context.Context, limit int) ([]Extraction, error) {
	var out []Extraction
	if err := c.api(ctx, http.MethodGet, "/api/extractions?limit="+strconv.Itoa(limit), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
