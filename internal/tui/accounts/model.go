// Package accounts es el dashboard TUI del pool de cuentas.
package accounts

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsanchez/smart-extract/internal/cookies"
	"github.com/elsanchez/smart-extract/pkg/client"
)

// Backend es lo que el dashboard necesita del daemon
type Backend interface {
	ListAccounts(ctx context.Context, status string) ([]client.Account, error)
	GetStats(ctx context.Context) (*client.Stats, error)
	ReactivateAccount(ctx context.Context, id int64) error
	DisableAccount(ctx context.Context, id int64) error
	RemoveAccount(ctx context.Context, id int64) error
	SetSession(ctx context.Context, id int64, sessionID string) error
}

// Compiletime check
var _ Backend = (*client.Client)(nil)

type view int

const (
	viewList view = iota
	viewImport
	viewStats
	viewHelp
)

// RefreshInterval es cada cuánto se recarga el pool
const RefreshInterval = 5 * time.Second

// Model es el modelo Bubbletea del dashboard
type Model struct {
	currentView view
	width       int
	height      int
	quitting    bool

	backend  Backend
	importer *cookies.Importer

	accounts []client.Account
	stats    *client.Stats
	cursor   int

	pathInput    textinput.Model
	browserInput textinput.Model
	importField  int
	spinner      spinner.Model

	loading       bool
	statusMessage string
	errorMessage  string
}

// NewModel crea el dashboard sobre backend
func NewModel(backend Backend) Model {
	pathInput := textinput.New()
	pathInput.Placeholder = "Netscape cookie file (empty = read from browser)"
	pathInput.Focus()
	pathInput.CharLimit = 256
	pathInput.Width = 60

	browserInput := textinput.New()
	browserInput.Placeholder = "Browser (chrome, firefox, ... empty = any)"
	browserInput.CharLimit = 20
	browserInput.Width = 40

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return Model{
		currentView:  viewList,
		backend:      backend,
		importer:     cookies.NewImporter(backend),
		pathInput:    pathInput,
		browserInput: browserInput,
		spinner:      s,
		loading:      true,
	}
}

// Init carga el pool y arranca el refresco periódico
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadAccounts(m.backend),
		m.spinner.Tick,
		tick(),
	)
}

func (m Model) selected() (client.Account, bool) {
	if m.cursor < 0 || m.cursor >= len(m.accounts) {
		return client.Account{}, false
	}
	return m.accounts[m.cursor], true
}
