package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/gridweaver/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the definition API server",
		Long: `Run the HTTP API that stores, reads and translates table definitions.

Writes require the mutation secret in the configured header. Without a
secret every write is rejected.`,
		Example: `  # Serve with an in-memory store
  gridweaver serve --storage memory

  # Serve from Postgres with writes enabled
  GRIDWEAVER_MUTATION__SECRET=s3cret gridweaver serve --storage postgres --dsn postgres://localhost/grid`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := NewCommandContext(cmd)
	gw, err := c.OpenGateway(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	if !gw.MutationEnabled() {
		c.Logger.Warn("no mutation secret configured, writes are disabled")
	}

	srv := server.NewServer(server.Config{
		Gateway:           gw,
		Addr:              c.Cfg.Server.Addr,
		ReadHeaderTimeout: c.Cfg.Server.ReadHeaderTimeout,
		SecretHeader:      c.Cfg.Mutation.Header,
		Logger:            c.Logger,
	})
	return serve(ctx, srv)
}

// serve is swapped in tests.
var serve = func(ctx context.Context, srv *server.Server) error {
	return srv.Serve(ctx)
}
