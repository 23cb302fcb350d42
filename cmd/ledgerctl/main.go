package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/ledgerd/internal/infrastructure/config"
	"github.com/iho/ledgerd/internal/infrastructure/logger"
	"github.com/iho/ledgerd/internal/infrastructure/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, out io.Writer) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := printJSON(out, body); err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return nil
}

func printJSON(out io.Writer, body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		_, err = fmt.Fprintln(out, string(body))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}

func newRootCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)
	client := &apiClient{}

	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "ledgerd operations tool",
		Long:          `A command line interface for operating a ledgerd deployment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			client.baseURL = baseURL
			client.http = &http.Client{Timeout: timeout}
		},
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the ledgerd API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		accountsCmd(client),
		transactionsCmd(client),
		replayCmd(client),
		retriesCmd(client),
		ledgerCmd(client),
		migrateCmd(),
	)
	return rootCmd
}

func accountsCmd(client *apiClient) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect accounts",
	}

	var (
		owner         string
		limit, offset int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts, optionally for one owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{
				"limit":  []string{strconv.Itoa(limit)},
				"offset": []string{strconv.Itoa(offset)},
			}
			if owner != "" {
				q.Set("owner_id", owner)
			}
			return client.do(cmd.Context(), http.MethodGet, "/api/v1/accounts", q, cmd.OutOrStdout())
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "Only accounts of this owner")
	list.Flags().IntVar(&limit, "limit", 50, "Maximum number of accounts")
	list.Flags().IntVar(&offset, "offset", 0, "Number of accounts to skip")

	cmd.AddCommand(list)
	return cmd
}

func transactionsCmd(client *apiClient) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Inspect transactions",
	}

	get := &cobra.Command{
		Use:   "get <transaction-id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/transactions/" + url.PathEscape(args[0])
			return client.do(cmd.Context(), http.MethodGet, path, nil, cmd.OutOrStdout())
		},
	}

	var (
		owner, from, to, sort string
		limit, page           int
	)
	history := &cobra.Command{
		Use:   "history",
		Short: "List transaction history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{
				"limit": []string{strconv.Itoa(limit)},
				"page":  []string{strconv.Itoa(page)},
				"sort":  []string{sort},
			}
			for key, val := range map[string]string{"owner_id": owner, "date_from": from, "date_to": to} {
				if val != "" {
					q.Set(key, val)
				}
			}
			return client.do(cmd.Context(), http.MethodGet, "/api/v1/transactions", q, cmd.OutOrStdout())
		},
	}
	history.Flags().StringVar(&owner, "owner", "", "Only transactions of this owner")
	history.Flags().StringVar(&from, "from", "", "Earliest creation time (RFC 3339 or YYYY-MM-DD)")
	history.Flags().StringVar(&to, "to", "", "Latest creation time (RFC 3339 or YYYY-MM-DD)")
	history.Flags().StringVar(&sort, "sort", "desc", "Order by creation time: asc or desc")
	history.Flags().IntVar(&limit, "limit", 50, "Page size")
	history.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")

	cmd.AddCommand(get, history)
	return cmd
}

func replayCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <account-number>",
		Short: "Fold unplayed entries into an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/accounts/" + url.PathEscape(args[0]) + "/replay"
			return client.do(cmd.Context(), http.MethodPost, path, nil, cmd.OutOrStdout())
		},
	}
}

func retriesCmd(client *apiClient) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "retries",
		Short: "Inspect the retry queue",
	}
	cmd.PersistentFlags().IntVar(&limit, "limit", 50, "Maximum number of records")

	list := func(use, short, path string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				q := url.Values{"limit": []string{strconv.Itoa(limit)}}
				return client.do(cmd.Context(), http.MethodGet, path, q, cmd.OutOrStdout())
			},
		}
	}

	cmd.AddCommand(
		list("due", "List pending retries that are due", "/api/v1/retries/due"),
		list("dead-letters", "List dead-lettered retries", "/api/v1/retries/dead-letters"),
	)
	return cmd
}

func ledgerCmd(client *apiClient) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	reconcile := &cobra.Command{
		Use:   "reconcile [account-number]",
		Short: "Reconcile one account, or the whole ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/ledger/reconciliation"
			if len(args) == 1 {
				path += "/" + url.PathEscape(args[0])
			}
			return client.do(cmd.Context(), http.MethodGet, path, nil, cmd.OutOrStdout())
		},
	}

	var limit int
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Replay accounts with unplayed entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"limit": []string{strconv.Itoa(limit)}}
			return client.do(cmd.Context(), http.MethodPost, "/api/v1/ledger/sweep", q, cmd.OutOrStdout())
		},
	}
	sweep.Flags().IntVar(&limit, "limit", 500, "Maximum number of accounts")

	cmd.AddCommand(reconcile, sweep)
	return cmd
}

// migrator is the subset of postgres.Migrator the migrate commands use.
type migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
}

var newMigrator = func(log zerolog.Logger) (migrator, error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return nil, err
	}
	return postgres.NewMigrator(cfg.DatabaseURL, cfg.DatabaseMigrationsPath, log), nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withMigrator := func(cmd *cobra.Command, fn func(migrator) error) error {
		log := logger.NewWithWriter(logger.Config{Level: "info", Format: "console"}, cmd.ErrOrStderr())
		m, err := newMigrator(log)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
		return nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m migrator) error { return m.Up() })
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			return withMigrator(cmd, func(m migrator) error { return m.Down(steps) })
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}
