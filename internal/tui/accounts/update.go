package accounts

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsanchez/smart-extract/internal/cookies"
)

// Update procesa mensajes y actualiza el modelo
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.errorMessage = ""
		m.statusMessage = ""
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case accountsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.accounts = msg.accounts
		if m.cursor >= len(m.accounts) {
			m.cursor = len(m.accounts) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case statsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.stats = msg.stats
		m.currentView = viewStats
		return m, nil

	case actionCompleteMsg:
		m.loading = false
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.statusMessage = msg.status
		return m, loadAccounts(m.backend)

	case sessionImportedMsg:
		m.loading = false
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.statusMessage = "✓ Session imported"
		m.currentView = viewList
		return m, loadAccounts(m.backend)

	case tickMsg:
		if m.currentView == viewList {
			return m, tea.Batch(loadAccounts(m.backend), tick())
		}
		return m, tick()

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.currentView == viewImport {
		switch m.importField {
		case 0:
			m.pathInput, cmd = m.pathInput.Update(msg)
		case 1:
			m.browserInput, cmd = m.browserInput.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.currentView {
	case viewList:
		return m.handleListKeys(msg)
	case viewImport:
		return m.handleImportKeys(msg)
	case viewStats, viewHelp:
		// Cualquier tecla vuelve a la lista
		m.currentView = viewList
		return m, nil
	}
	return m, nil
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
		if m.cursor < len(m.accounts)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, key.NewBinding(key.WithKeys("r"))):
		m.loading = true
		return m, loadAccounts(m.backend)

	case key.Matches(msg, key.NewBinding(key.WithKeys("s"))):
		m.loading = true
		return m, loadStats(m.backend)

	case key.Matches(msg, key.NewBinding(key.WithKeys("a"))):
		if acc, ok := m.selected(); ok {
			m.loading = true
			return m, reactivateAccount(m.backend, acc.ID, acc.Username)
		}
		return m, nil

	case key.Matches(msg, key.NewBinding(key.WithKeys("x"))):
		if acc, ok := m.selected(); ok {
			m.loading = true
			return m, disableAccount(m.backend, acc.ID, acc.Username)
		}
		return m, nil

	case key.Matches(msg, key.NewBinding(key.WithKeys("d"))):
		if acc, ok := m.selected(); ok {
			m.loading = true
			return m, deleteAccount(m.backend, acc.ID, acc.Username)
		}
		return m, nil

	case key.Matches(msg, key.NewBinding(key.WithKeys("i"))):
		if _, ok := m.selected(); !ok {
			m.errorMessage = "No account selected"
			return m, nil
		}
		m.currentView = viewImport
		m.importField = 0
		m.updateImportFocus()
		return m, nil

	case key.Matches(msg, key.NewBinding(key.WithKeys("?"))):
		m.currentView = viewHelp
		return m, nil
	}

	return m, nil
}

func (m Model) handleImportKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
		m.currentView = viewList
		m.pathInput.SetValue("")
		m.browserInput.SetValue("")
		return m, nil

	case key.Matches(msg, key.NewBinding(key.WithKeys("tab", "shift+tab"))):
		m.importField = (m.importField + 1) % 2
		m.updateImportFocus()
		return m, nil

	case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
		acc, ok := m.selected()
		if !ok {
			m.errorMessage = "No account selected"
			return m, nil
		}

		opts := cookies.ImportOptions{
			AccountID: acc.ID,
			FilePath:  strings.TrimSpace(m.pathInput.Value()),
			Browser:   strings.TrimSpace(m.browserInput.Value()),
		}
		m.loading = true
		return m, importSession(m.importer, opts)
	}

	var cmd tea.Cmd
	if m.importField == 0 {
		m.pathInput, cmd = m.pathInput.Update(msg)
	} else {
		m.browserInput, cmd = m.browserInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) updateImportFocus() {
	if m.importField == 0 {
		m.pathInput.Focus()
		m.browserInput.Blur()
		return
	}
	m.pathInput.Blur()
	m.browserInput.Focus()
}
