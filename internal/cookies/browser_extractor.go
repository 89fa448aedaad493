package cookies

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/chrome"
	_ "github.com/browserutils/kooky/browser/chromium"
	_ "github.com/browserutils/kooky/browser/edge"
	_ "github.com/browserutils/kooky/browser/firefox"
	_ "github.com/browserutils/kooky/browser/opera"
)

// SupportedBrowsers lista los navegadores registrados
var SupportedBrowsers = []string{"chrome", "chromium", "firefox", "edge", "opera"}

type cookieReader func(ctx context.Context, filters ...kooky.Filter) ([]*kooky.Cookie, error)

// BrowserExtractor lee cookies de los navegadores instalados
type BrowserExtractor struct {
	read cookieReader
	now  func() time.Time
}

// NewBrowserExtractor crea un extractor que usa los almacenes de kooky
func NewBrowserExtractor() *BrowserExtractor {
	return &BrowserExtractor{
		read: func(ctx context.Context, filters ...kooky.Filter) ([]*kooky.Cookie, error) {
			return kooky.ReadCookies(ctx, filters...)
		},
		now: time.Now,
	}
}

// Extract retorna las cookies de domain (y subdominios). browser vacío = todos.
func (e *BrowserExtractor) Extract(ctx context.Context, browser, domain string) ([]NetscapeCookie, error) {
	browser = strings.ToLower(browser)

	cookies, err := e.read(ctx, kooky.DomainHasSuffix(domain))
	if err != nil && len(cookies) == 0 {
		return nil, fmt.Errorf("read cookies from browser: %w", err)
	}

	out := make([]NetscapeCookie, 0, len(cookies))
	for _, cookie := range cookies {
		if cookie == nil {
			continue
		}
		if browser != "" && cookie.Browser != nil {
			if !strings.Contains(strings.ToLower(cookie.Browser.Browser()), browser) {
				continue
			}
		}

		d := cookie.Domain
		if d != "" && !strings.HasPrefix(d, ".") {
			d = "." + d
		}

		flag := "FALSE"
		if cookie.HttpOnly {
			flag = "TRUE"
		}

		expiration := cookie.Expires.Unix()
		if cookie.Expires.IsZero() || expiration < 0 {
			expiration = 0
		}

		out = append(out, NetscapeCookie{
			Domain:     d,
			Flag:       flag,
			Path:       cookie.Path,
			Secure:     cookie.Secure,
			Expiration: expiration,
			Name:       cookie.Name,
			Value:      cookie.Value,
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no cookies found for browser '%s' and domain '%s'", browser, domain)
	}
	return out, nil
}

// SessionID busca la cookie sessionid de domain en browser
func (e *BrowserExtractor) SessionID(ctx context.Context, browser, domain string) (string, error) {
	cookies, err := e.Extract(ctx, browser, domain)
	if err != nil {
		return "", err
	}
	return SessionID(cookies, domain, e.now())
}
