package accounts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/elsanchez/smart-extract/pkg/client"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"}).
			MarginLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "250"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "9"}).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "34", Dark: "10"}).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "136", Dark: "11"})

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"})

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "63", Dark: "63"}).
			Padding(1, 2)

	activeInputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"})

	inactiveInputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "250"})
)

// View dibuja la vista actual
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var content string
	switch m.currentView {
	case viewImport:
		content = m.viewImport()
	case viewStats:
		content = m.viewStats()
	case viewHelp:
		content = m.viewHelp()
	default:
		content = m.viewList()
	}

	if m.errorMessage != "" {
		content += "\n" + errorStyle.Render("Error: "+m.errorMessage)
	} else if m.statusMessage != "" {
		content += "\n" + successStyle.Render(m.statusMessage)
	}

	if m.loading {
		content += "\n" + m.spinner.View() + " Loading..."
	}

	return content
}

func statusIcon(acc client.Account) string {
	switch {
	case !acc.IsActive:
		return "⏸"
	case acc.Status == "active":
		return "✓"
	case acc.Status == "rate_limited":
		return "⏳"
	default:
		return "✗"
	}
}

func styleStatus(status string) string {
	switch status {
	case "active":
		return successStyle.Render(status)
	case "rate_limited":
		return warnStyle.Render(status)
	default:
		return errorStyle.Render(status)
	}
}

func lastUsed(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("01-02 15:04:05")
}

func (m Model) viewList() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Account Pool") + "\n\n")

	if len(m.accounts) == 0 {
		b.WriteString("  No accounts found. Add some with 'smx accounts add' or 'smx accounts seed'.\n")
	} else {
		eligible := 0
		for _, acc := range m.accounts {
			if acc.IsActive && acc.Status == "active" {
				eligible++
			}
		}
		b.WriteString(fmt.Sprintf("  %d accounts, %d eligible for rotation\n\n", len(m.accounts), eligible))
		b.WriteString(fmt.Sprintf("    %-4s %-5s %-22s %-14s %-8s %s\n", "", "ID", "Username", "Status", "Uses", "Last used"))

		for i, acc := range m.accounts {
			cursor := "  "
			if i == m.cursor {
				cursor = "▸ "
			}
			b.WriteString(fmt.Sprintf("  %s%-3s %-5d %-22s %-14s %-8d %s\n",
				cursor, statusIcon(acc), acc.ID, acc.Username, styleStatus(acc.Status), acc.UsageCount, lastUsed(acc.LastUsed)))
		}
	}

	help := "\n" + helpStyle.Render(
		"  ↑/k up • ↓/j down • a reactivate • x disable • d delete • i import session • s stats • r refresh • ? help • q quit",
	)
	return b.String() + help
}

func (m Model) viewImport() string {
	acc, _ := m.selected()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Import Session for "+acc.Username) + "\n\n")

	label := func(field int, text string) string {
		if m.importField == field {
			return activeInputStyle.Render(text)
		}
		return inactiveInputStyle.Render(text)
	}

	b.WriteString(label(0, "  Cookie File Path:") + "\n")
	b.WriteString("  " + m.pathInput.View() + "\n\n")
	b.WriteString(label(1, "  Browser:") + "\n")
	b.WriteString("  " + m.browserInput.View() + "\n")

	help := helpStyle.Render("  Tab next field • Enter import • Esc cancel")
	return boxStyle.Render(b.String()) + "\n\n" + help
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Model) viewStats() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Statistics") + "\n\n")

	if m.stats == nil {
		b.WriteString("  No statistics available.\n")
	} else {
		b.WriteString("  Accounts by status:\n")
		for _, k := range sortedKeys(m.stats.Accounts) {
			b.WriteString(fmt.Sprintf("    %-14s %d\n", k, m.stats.Accounts[k]))
		}

		b.WriteString(fmt.Sprintf("\n  Extractions: %d\n", m.stats.Extractions.Total))
		for _, k := range sortedKeys(m.stats.Extractions.ByOutcome) {
			b.WriteString(fmt.Sprintf("    %-24s %d\n", k, m.stats.Extractions.ByOutcome[k]))
		}
	}

	return b.String() + "\n" + helpStyle.Render("  Press any key to return to list")
}

func (m Model) viewHelp() string {
	help := `
  Navigation:
    ↑/k        Move up
    ↓/j        Move down
    q          Quit

  Actions:
    a          Reactivate selected (status active, back in rotation)
    x          Disable selected (keeps health status)
    d          Delete selected
    i          Import sessionid cookie from file or browser
    s          Show statistics
    r          Refresh now

  Status icons:
    ✓  active and in rotation
    ⏳ rate limited
    ✗  banned or login failed
    ⏸  disabled
`
	return titleStyle.Render("Help") + "\n" + help + "\n" + helpStyle.Render("  Press any key to return")
}
