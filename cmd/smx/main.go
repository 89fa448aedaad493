package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/elsanchez/smart-extract/internal/tui/accounts"
	"github.com/elsanchez/smart-extract/pkg/client"
)

const version = "0.1.0"

var (
	addrFlag string
	rootCmd  = &cobra.Command{
		Use:           "smx",
		Short:         "Smart Extract CLI: Instagram post extraction over a rotating account pool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func newClient() *client.Client {
	return client.NewClient(addrFlag)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&addrFlag, "addr", "a", client.GetDefaultAddr(), "smart-extractd base URL")

	var (
		retries  uint64
		asJSON   bool
		interval time.Duration
	)
	extractCmd := &cobra.Command{
		Use:   "extract URL",
		Short: "Extract caption, comments and media of an Instagram post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			ctx := cmd.Context()

			var (
				res *client.ExtractResult
				err error
			)
			if retries > 0 {
				res, err = c.ExtractWithRetry(ctx, args[0], retries, interval)
			} else {
				res, err = c.Extract(ctx, args[0])
			}
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(res)
			}

			fmt.Printf("✓ @%s (%s)\n", res.Username, res.MediaType)
			fmt.Printf("  URL: %s\n", res.PostURL)
			if res.VideoURL != "" {
				fmt.Printf("  Video: %s\n", res.VideoURL)
			}
			if res.ThumbnailURL != "" {
				fmt.Printf("  Thumbnail: %s\n", res.ThumbnailURL)
			}
			fmt.Printf("\n%s\n", res.Caption)
			if len(res.Comments) > 0 {
				fmt.Printf("\nComments (%d):\n", len(res.Comments))
				for _, comment := range res.Comments {
					fmt.Printf("  - %s\n", comment)
				}
			}
			return nil
		},
	}
	extractCmd.Flags().Uint64VarP(&retries, "retry", "r", 0, "Retry up to N times when no account could serve the request")
	extractCmd.Flags().DurationVar(&interval, "retry-interval", 2*time.Second, "Initial backoff between retries")
	extractCmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON result")
	rootCmd.AddCommand(extractCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show account pool and extraction statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := newClient().GetStats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println("Accounts:")
			for _, status := range []string{"active", "rate_limited", "banned", "login_failed"} {
				fmt.Printf("  %-14s %d\n", status, stats.Accounts[status])
			}
			fmt.Printf("\nExtractions: %d\n", stats.Extractions.Total)
			for outcome, n := range stats.Extractions.ByOutcome {
				fmt.Printf("  %-24s %d\n", outcome, n)
			}
			return nil
		},
	}
	rootCmd.AddCommand(statsCmd)

	historyCmd := &cobra.Command{
		Use:   "history [LIMIT]",
		Short: "List recent extractions (default: 20)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := 20
			if len(args) == 1 {
				if _, err := fmt.Sscanf(args[0], "%d", &limit); err != nil || limit <= 0 {
					return fmt.Errorf("invalid limit: %s", args[0])
				}
			}

			recent, err := newClient().ListRecentExtractions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recent) == 0 {
				fmt.Println("No extractions found")
				return nil
			}

			for _, ex := range recent {
				when := time.Unix(ex.CreatedAt, 0).Local().Format("2006-01-02 15:04:05")
				fmt.Printf("%s  %-22s %5dms  %s\n", when, ex.Outcome, ex.DurationMS, ex.URL)
				if ex.Error != "" {
					fmt.Printf("  Error: %s\n", ex.Error)
				}
			}
			return nil
		},
	}
	rootCmd.AddCommand(historyCmd)

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive account pool dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if err := c.Ping(cmd.Context()); err != nil {
				return err
			}
			_, err := tea.NewProgram(accounts.NewModel(c), tea.WithAltScreen()).Run()
			return err
		},
	}
	rootCmd.AddCommand(tuiCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smx v%s\n", version)
		},
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
