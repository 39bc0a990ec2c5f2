package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/httpapi"
	"scribe/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept transcription jobs over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.openRuntime(true)
			if err != nil {
				return err
			}
			defer rt.Close()

			addr := firstNonEmpty(bind, rt.cfg.API.Bind)
			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			handler := httpapi.NewHandler(runCtx, rt.runner, rt.cfg, rt.logger)
			srv := &http.Server{
				Handler:           httpapi.NewRouter(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Serve(listener)
			}()
			rt.logger.Info("http server listening",
				logging.String("addr", listener.Addr().String()),
				logging.Event("server_start"),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", listener.Addr())

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
			case <-cmd.Context().Done():
			}

			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				rt.logger.Warn("http server shutdown incomplete", logging.Error(err))
			}
			// Running jobs stop at their next step boundary.
			cancel()
			handler.Wait()
			rt.logger.Info("http server stopped", logging.Event("server_stop"))
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default api.bind)")
	return cmd
}
