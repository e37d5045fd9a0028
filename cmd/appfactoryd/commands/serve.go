package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the appfactoryd daemon",
		Long: `Start the Application Factory daemon: load the device manifest and
policy set, open the deployment store, and serve the create/devices/
healthz HTTP API until the context is cancelled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	return cmd
}

func runServe(ctx context.Context) error {
	cfg, err := LoadDaemonConfig(configPath)
	if err != nil {
		return err
	}

	srv, err := NewServer(ctx, cfg)
	if err != nil {
		return err
	}

	if err := srv.tel.StartMetricsServer(); err != nil {
		log.Warn().Err(err).Msg("failed to start metrics server")
	}

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("appfactoryd listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}
	return srv.Shutdown(shutdownCtx)
}
