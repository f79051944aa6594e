/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/wifiradar/pkg/logger"
)

const (
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
)

// Service is a long running component with an explicit start and stop.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ServerOptions configures RunServer.
type ServerOptions struct {
	ListenAddr      string
	ServiceName     string
	Service         Service
	Handler         http.Handler
	ShutdownTimeout time.Duration
	Logger          logger.Logger
	// Signals overrides the default SIGINT/SIGTERM set.
	Signals []os.Signal
}

// RunServer starts the service and, when a handler is given, an HTTP server
// on ListenAddr. It blocks until ctx is cancelled, a signal arrives or the
// HTTP server fails, then stops both within the shutdown timeout.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	ctx, stop := signal.NotifyContext(ctx, signals...)
	defer stop()

	if err := opts.Service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s: %w", opts.ServiceName, err)
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service started")

	errCh := make(chan error, 1)

	var srv *http.Server

	if opts.Handler != nil {
		listener, err := net.Listen("tcp", opts.ListenAddr)
		if err != nil {
			_ = stopService(opts, log, shutdownTimeout)
			return fmt.Errorf("failed to listen on %s: %w", opts.ListenAddr, err)
		}

		srv = &http.Server{
			Handler:           opts.Handler,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
		}

		log.Info().Str("addr", listener.Addr().String()).Msg("HTTP server listening")

		go func() {
			if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var runErr error

	select {
	case <-ctx.Done():
		log.Info().Str("service", opts.ServiceName).Msg("Shutting down")
	case err := <-errCh:
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown failed")
		}

		cancel()
	}

	if err := stopService(opts, log, shutdownTimeout); err != nil && runErr == nil {
		runErr = err
	}

	return runErr
}

func stopService(opts *ServerOptions, log logger.Logger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := opts.Service.Stop(ctx); err != nil {
		log.Error().Err(err).Str("service", opts.ServiceName).Msg("Service stop failed")
		return fmt.Errorf("failed to stop %s: %w", opts.ServiceName, err)
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service stopped")

	return nil
}
