package commands

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// serve: run the HTTP bridge until interrupted.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "serve",
		Short:       "Run the HTTP bridge for a browser UI and the Keychain shim",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationBridge: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Listen)
			if err != nil {
				return fmt.Errorf("could not listen on %s: %w", cfg.Listen, err)
			}

			return appCtx.Serve(ctx, ln)
		},
	}
}
