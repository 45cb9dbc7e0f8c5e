package cli

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/alexanderramin/pipedeck/internal/cli/formatter"
	"github.com/alexanderramin/pipedeck/internal/httpapi"
	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.Config.Server.Address
			}
			logger := app.Logger
			if logger == nil {
				logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "%s serving on %s %s\n",
				formatter.StyleGreen.Render("●"), formatter.Bold(addr), formatter.Dim("(ctrl+c to stop)"))
			return httpapi.New(app.API, httpapi.WithLogger(logger)).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: config server.address)")
	return cmd
}
