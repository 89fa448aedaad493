package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/elsanchez/smart-extract/internal/cookies"
	"github.com/elsanchez/smart-extract/internal/seed"
	"github.com/elsanchez/smart-extract/pkg/client"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id: %s", arg)
	}
	return id, nil
}

func init() {
	accountsCmd := &cobra.Command{Use: "accounts", Short: "Account pool operations"}

	// list
	var statusFilter string
	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts (credentials are never shown)",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := newClient().ListAccounts(cmd.Context(), statusFilter)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(list)
			}
			if len(list) == 0 {
				fmt.Println("No accounts found")
				return nil
			}

			fmt.Printf("%-5s %-22s %-14s %-8s %-6s %s\n", "ID", "USERNAME", "STATUS", "ACTIVE", "USES", "LAST USED")
			for _, acc := range list {
				last := "never"
				if acc.LastUsed != nil {
					last = acc.LastUsed.Local().Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-5d %-22s %-14s %-8t %-6d %s\n", acc.ID, acc.Username, acc.Status, acc.IsActive, acc.UsageCount, last)
			}
			return nil
		},
	}
	listCmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Filter by status (active, rate_limited, banned, login_failed)")
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	accountsCmd.AddCommand(listCmd)

	// add
	var payload client.AddAccountPayload
	var secretFromStdin bool
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account to the pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secretFromStdin {
				var line string
				if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
					return fmt.Errorf("read credential from stdin: %w", err)
				}
				payload.Secret = strings.TrimSpace(line)
			}
			if payload.Username == "" || payload.Secret == "" {
				return fmt.Errorf("--username and --credential (or --credential-stdin) required")
			}

			id, err := newClient().AddAccount(cmd.Context(), &payload)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Account added with ID: %d\n", id)
			return nil
		},
	}
	addCmd.Flags().StringVarP(&payload.Username, "username", "u", "", "Account username (required)")
	addCmd.Flags().StringVarP(&payload.Secret, "credential", "p", "", "Account password")
	addCmd.Flags().BoolVar(&secretFromStdin, "credential-stdin", false, "Read the password from stdin")
	addCmd.Flags().StringVar(&payload.ProxyURL, "proxy", "", "Proxy URL for this account")
	addCmd.Flags().StringVar(&payload.SessionID, "session", "", "sessionid cookie value")
	addCmd.Flags().BoolVar(&payload.Disabled, "disabled", false, "Add without putting it in rotation")
	_ = addCmd.MarkFlagRequired("username")
	accountsCmd.AddCommand(addCmd)

	// rm / reactivate / disable
	type idAction struct {
		use, short, done string
		run              func(c *client.Client, cmd *cobra.Command, id int64) error
	}
	for _, a := range []idAction{
		{"rm ID", "Delete an account", "deleted", func(c *client.Client, cmd *cobra.Command, id int64) error {
			return c.RemoveAccount(cmd.Context(), id)
		}},
		{"reactivate ID", "Set status active and put the account back in rotation", "reactivated", func(c *client.Client, cmd *cobra.Command, id int64) error {
			return c.ReactivateAccount(cmd.Context(), id)
		}},
		{"disable ID", "Take an account out of rotation", "disabled", func(c *client.Client, cmd *cobra.Command, id int64) error {
			return c.DisableAccount(cmd.Context(), id)
		}},
	} {
		a := a
		accountsCmd.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := a.run(newClient(), cmd, id); err != nil {
					return err
				}
				fmt.Printf("✓ Account %d %s\n", id, a.done)
				return nil
			},
		})
	}

	// seed
	seedCmd := &cobra.Command{
		Use:   "seed FILE",
		Short: "Add every account listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := seed.Load(args[0])
			if err != nil {
				return err
			}

			c := newClient()
			added, failed := 0, 0
			for _, e := range file.Accounts {
				id, err := c.AddAccount(cmd.Context(), &client.AddAccountPayload{
					Platform:  file.Platform,
					Username:  e.Username,
					Secret:    e.Secret,
					ProxyURL:  e.ProxyURL,
					SessionID: e.SessionID,
					Disabled:  e.Disabled,
				})
				if err != nil {
					failed++
					fmt.Printf("✗ %s: %v\n", e.Username, err)
					continue
				}
				added++
				fmt.Printf("✓ %s (ID: %d)\n", e.Username, id)
			}

			fmt.Printf("\n%d added, %d failed\n", added, failed)
			if failed > 0 {
				return fmt.Errorf("%d accounts could not be added", failed)
			}
			return nil
		},
	}
	accountsCmd.AddCommand(seedCmd)

	// import-session
	var importOpts cookies.ImportOptions
	importCmd := &cobra.Command{
		Use:     "import-session",
		Aliases: []string{"import-browser"},
		Short:   "Attach a sessionid cookie from a cookie file or a local browser to an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := cookies.NewImporter(newClient()).Import(cmd.Context(), importOpts)
			if err != nil {
				return err
			}

			masked := sid
			if len(masked) > 8 {
				masked = masked[:4] + "…" + masked[len(masked)-4:]
			}
			fmt.Printf("✓ Session %s attached to account %d\n", masked, importOpts.AccountID)
			return nil
		},
	}
	importCmd.Flags().Int64Var(&importOpts.AccountID, "id", 0, "Account ID (required)")
	importCmd.Flags().StringVarP(&importOpts.FilePath, "file", "f", "", "Netscape cookie file (default: read from browser)")
	importCmd.Flags().StringVarP(&importOpts.Browser, "browser", "b", "", "Browser to read from: "+strings.Join(cookies.SupportedBrowsers, ", "))
	importCmd.Flags().StringVar(&importOpts.Domain, "domain", "instagram.com", "Cookie domain")
	_ = importCmd.MarkFlagRequired("id")
	accountsCmd.AddCommand(importCmd)

	rootCmd.AddCommand(accountsCmd)
}
