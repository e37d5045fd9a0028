// Package main implements appfactory-deviced, the device-side capability
// agent: a long-running process on a device host that loads and serves a
// capability manifest so a controller (or an operator) can introspect what
// the host advertises without opening an SSH session. It does not execute
// components itself — load and execute are driven directly over SSH by
// pkg/device.SSHDevice on the controller side.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	manifestPath := flag.String("manifest", "/etc/appfactory/capability.yaml", "path to this device's capability manifest")
	listenAddr := flag.String("listen", "127.0.0.1:9180", "address the capability status server listens on")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	store, err := NewManifestStore(*manifestPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load capability manifest")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received interrupt signal, shutting down...")
		cancel()
	}()

	watchDone := make(chan struct{})
	go func() {
		if err := watchManifest(store, watchDone); err != nil {
			log.Error().Err(err).Msg("capability manifest watcher exited")
		}
	}()

	srv := &http.Server{Addr: *listenAddr, Handler: newHandler(store)}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", *listenAddr).Str("manifest", *manifestPath).Msg("appfactory-deviced listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("status server failed")
	}

	close(watchDone)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down status server")
	}
}
