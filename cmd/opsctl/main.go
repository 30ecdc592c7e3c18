package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// retentionSecretHeader matches the header the API expects on the
// unattended retention trigger.
const retentionSecretHeader = "X-Retention-Secret"

type options struct {
	baseURL string
	token   string
	timeout time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "opsctl",
		Short:         "Operations CLI for the account security service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", envOr("VIGIL_BASE_URL", "http://localhost:8080"), "API base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("VIGIL_ADMIN_TOKEN"), "admin bearer token")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	cmd.AddCommand(newUnlockCommand(opts))
	cmd.AddCommand(newQuotaCommand(opts))
	cmd.AddCommand(newSessionsCommand(opts))
	cmd.AddCommand(newRetentionCommand(opts))
	return cmd
}

func newUnlockCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <email>",
		Short: "Clear an account's lockout so it can sign in again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"email": args[0]}
			return request(opts, http.MethodPost, "/admin/accounts/unlock", body, nil)
		},
	}
}

func newQuotaCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Manage per-account assist budgets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <account-id> <count>",
		Short: "Set an account's usage counter for today",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("count must be an integer: %w", err)
			}
			body := map[string]int{"count": count}
			return request(opts, http.MethodPut, "/admin/quota/"+args[0], body, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <account-id>",
		Short: "Reset an account's usage counter to zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(opts, http.MethodDelete, "/admin/quota/"+args[0], nil, nil)
		},
	})
	return cmd
}

func newSessionsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and revoke device sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <account-id>",
		Short: "List an account's device sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(opts, http.MethodGet, "/admin/sessions?account_id="+url.QueryEscape(args[0]), nil, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <session-id>",
		Short: "Revoke a session by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(opts, http.MethodDelete, "/admin/sessions/"+args[0], nil, nil)
		},
	})
	return cmd
}

func newRetentionCommand(opts *options) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Trigger data retention maintenance",
	}
	run := &cobra.Command{
		Use:   "run",
		Short: "Purge ledger and audit rows past their retention windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("retention secret is required (--secret or RETENTION_SECRET)")
			}
			headers := map[string]string{retentionSecretHeader: secret}
			return request(opts, http.MethodPost, "/internal/retention/run", nil, headers)
		},
	}
	run.Flags().StringVar(&secret, "secret", os.Getenv("RETENTION_SECRET"), "shared retention secret")
	cmd.AddCommand(run)
	return cmd
}

// request performs one API call and prints the JSON response
func request(opts *options, method, path string, body interface{}, headers map[string]string) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, opts.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: opts.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(respBody))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, respBody, "", "  "); err != nil {
		fmt.Println(string(respBody))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
