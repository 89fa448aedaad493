package registry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/elsanchez/smart-extract/internal/domain"
)

// Rutas RPC del registro remoto
const (
	RPCPrefix         = "/rpc/"
	NextAccountPath   = RPCPrefix + "next-account"
	UpdateAccountPath = RPCPrefix + "update-account"
)

// Remote implementa Store contra un registro HTTP. Cada llamada se intenta una sola vez.
type Remote struct {
	http *resty.Client
}

var _ Store = (*Remote)(nil)

// NewRemote crea un Store remoto; apiKey vacío omite la autenticación
func NewRemote(baseURL, apiKey string, timeout time.Duration) *Remote {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Remote{http: c}
}

// NextAccount espera 200 con la cuenta o 204 si el pool está vacío
func (r *Remote) NextAccount(ctx context.Context) (*domain.Account, error) {
	var acc domain.Account
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(map[string]string{}).
		SetResult(&acc).
		Post(NextAccountPath)
	if err != nil {
		return nil, fmt.Errorf("registry next account: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		if acc.ID == 0 {
			return nil, nil
		}
		return &acc, nil
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("registry next account: unexpected status %d: %s", resp.StatusCode(), resp.String())
	}
}

func (r *Remote) UpdateAccount(ctx context.Context, u AccountUpdate) error {
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(u).
		Post(UpdateAccountPath)
	if err != nil {
		return fmt.Errorf("registry update account: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("registry update account: unexpected status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
