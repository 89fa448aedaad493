package accounts

import (
	"time"

	"github.com/elsanchez/smart-extract/pkg/client"
)

// Mensajes de las operaciones asíncronas

type accountsLoadedMsg struct {
	accounts []client.Account
	err      error
}

type statsLoadedMsg struct {
	stats *client.Stats
	err   error
}

type actionCompleteMsg struct {
	status string
	err    error
}

type sessionImportedMsg struct {
	accountID int64
	err       error
}

type tickMsg time.Time
