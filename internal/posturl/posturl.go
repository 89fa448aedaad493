// Package posturl valida URLs de posts y extrae su shortcode.
package posturl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/elsanchez/smart-extract/internal/domain"
)

// Segmentos que preceden al shortcode: /reel/{code}, /p/{code}, /tv/{code}
var postSegments = map[string]bool{
	"reel": true,
	"p":    true,
	"tv":   true,
}

// Validate verifica que la URL pertenezca al dominio esperado (o a un subdominio)
func Validate(raw, expectedDomain string) error {
	host := Host(raw)
	if host == "" {
		return domain.NewError(domain.KindInvalidInput, "Invalid post URL", nil)
	}

	expectedDomain = strings.ToLower(strings.TrimPrefix(expectedDomain, "."))
	if host != expectedDomain && !strings.HasSuffix(host, "."+expectedDomain) {
		return domain.NewError(domain.KindInvalidInput, fmt.Sprintf("Invalid URL: expected a %s link", expectedDomain), nil)
	}
	return nil
}

// Host retorna el host en minúsculas; acepta URLs sin esquema
func Host(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Shortcode extrae el identificador del post. Ignora query string y fragmento.
func Shortcode(raw string) (string, error) {
	clean, _, _ := strings.Cut(raw, "?")
	clean, _, _ = strings.Cut(clean, "#")

	parts := strings.Split(strings.TrimRight(clean, "/"), "/")

	for i, part := range parts {
		if postSegments[part] && i+1 < len(parts) {
			if code := parts[i+1]; code != "" {
				return code, nil
			}
			break
		}
	}

	return "", domain.NewError(domain.KindInvalidInput, "Invalid post URL format: could not extract media ID from URL", nil)
}
