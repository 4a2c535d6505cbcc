package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/compkgs/pkg/api"
	"github.com/matzehuels/compkgs/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

// serveCommand creates the serve command, which exposes stored reports over
// HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored reports over HTTP",
		Long: `Serve stored reports as JSON.

Endpoints:
  GET /healthz
  GET /reports                             stored runs, newest first (?limit=N)
  GET /reports/latest                      the last report
  GET /reports/latest/components           component results (?missing=true)
  GET /reports/latest/components/{domain}  one component
  GET /reports/latest/outdated             outdated packages
  GET /reports/{runID}                     a report by run id
  GET /metrics                             Prometheus metrics (serve.metrics)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: serve.addr from config)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Serve.Addr
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	var opts []api.Option
	if cfg.Serve.Metrics {
		opts = append(opts, api.WithMetrics(observability.NewMetrics("")))
	}
	srv := &http.Server{
		Handler:           api.New(st, logger, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	printSuccess("Serving reports on %s", StyleLink.Render("http://"+ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
