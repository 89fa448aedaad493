package cookies

import (
	"context"
	"fmt"
	"time"
)

// SessionSetter guarda el sessionid de una cuenta
type SessionSetter interface {
	SetSession(ctx context.Context, accountID int64, sessionID string) error
}

// ImportOptions define de dónde sale la cookie
type ImportOptions struct {
	AccountID int64
	Domain    string
	FilePath  string // archivo Netscape; si está vacío se lee del navegador
	Browser   string
}

// Importer lleva una cookie de sesión a una cuenta del pool
type Importer struct {
	store   SessionSetter
	browser *BrowserExtractor
	now     func() time.Time
}

// NewImporter crea un importer
func NewImporter(store SessionSetter) *Importer {
	return &Importer{
		store:   store,
		browser: NewBrowserExtractor(),
		now:     time.Now,
	}
}

// Import extrae el sessionid y lo asocia a la cuenta
func (i *Importer) Import(ctx context.Context, opts ImportOptions) (string, error) {
	if opts.AccountID <= 0 {
		return "", fmt.Errorf("account id is required")
	}
	if opts.Domain == "" {
		opts.Domain = "instagram.com"
	}

	var (
		sessionID string
		err       error
	)
	if opts.FilePath != "" {
		var cookies []NetscapeCookie
		cookies, err = ParseFile(opts.FilePath)
		if err != nil {
			return "", fmt.Errorf("parse cookie file: %w", err)
		}
		sessionID, err = SessionID(cookies, opts.Domain, i.now())
	} else {
		sessionID, err = i.browser.SessionID(ctx, opts.Browser, opts.Domain)
	}
	if err != nil {
		return "", err
	}

	if err := i.store.SetSession(ctx, opts.AccountID, sessionID); err != nil {
		return "", fmt.Errorf("set session for account %d: %w", opts.AccountID, err)
	}
	return sessionID, nil
}
