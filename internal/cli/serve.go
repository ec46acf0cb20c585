package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xob0t/StoryStencil/clients/server"
	"github.com/xob0t/StoryStencil/pkg/pipeline"
)

func newServeCmd() *cobra.Command {
	var (
		addr string
		open bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the editor and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := configFromContext(ctx)
			if addr != "" {
				cfg.Server.Addr = addr
			}
			tk, err := pipeline.Build(ctx, cfg, loggerFromContext(ctx))
			if err != nil {
				return err
			}
			defer tk.Close()
			return server.Run(ctx, tk, cfg.Server.Addr, open)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default: config, 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&open, "open", true, "open the editor in a browser")
	return cmd
}
