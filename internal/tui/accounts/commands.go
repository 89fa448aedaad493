package accounts

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsanchez/smart-extract/internal/cookies"
)

const requestTimeout = 10 * time.Second

func loadAccounts(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		accounts, err := b.ListAccounts(ctx, "")
		return accountsLoadedMsg{accounts: accounts, err: err}
	}
}

func loadStats(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		stats, err := b.GetStats(ctx)
		return statsLoadedMsg{stats: stats, err: err}
	}
}

func reactivateAccount(b Backend, id int64, username string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		err := b.ReactivateAccount(ctx, id)
		return actionCompleteMsg{status: fmt.Sprintf("✓ %s reactivated", username), err: err}
	}
}

func disableAccount(b Backend, id int64, username string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		err := b.DisableAccount(ctx, id)
		return actionCompleteMsg{status: fmt.Sprintf("✓ %s disabled", username), err: err}
	}
}

func deleteAccount(b Backend, id int64, username string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		err := b.RemoveAccount(ctx, id)
		return actionCompleteMsg{status: fmt.Sprintf("✓ %s deleted", username), err: err}
	}
}

func importSession(importer *cookies.Importer, opts cookies.ImportOptions) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		_, err := importer.Import(ctx, opts)
		return sessionImportedMsg{accountID: opts.AccountID, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
