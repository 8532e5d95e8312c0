package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/formflow/formflow/internal/tlsutil"
	"github.com/spf13/cobra"
)

// =============================================================================
// 🏥 health 命令
// =============================================================================

type healthOptions struct {
	addr    string
	ready   bool
	timeout time.Duration
}

func newHealthCmd() *cobra.Command {
	opts := &healthOptions{}
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running server's health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthCheck(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "http://localhost:8080", "Server address")
	cmd.Flags().BoolVar(&opts.ready, "ready", false, "Use the readiness probe (includes the model provider)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "Request timeout")
	return cmd
}

func runHealthCheck(ctx context.Context, out io.Writer, opts *healthOptions) error {
	path := "/health"
	if opts.ready {
		path = "/ready"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(opts.addr, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := tlsutil.SecureHTTPClient(opts.timeout).Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("health check failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	fmt.Fprintln(out, "OK")
	return nil
}
