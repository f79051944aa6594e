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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/wifiradar/pkg/config"
	"github.com/carverauto/wifiradar/pkg/db"
	"github.com/carverauto/wifiradar/pkg/fetcher"
	"github.com/carverauto/wifiradar/pkg/kv"
	"github.com/carverauto/wifiradar/pkg/lifecycle"
	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/natsutil"
	"github.com/carverauto/wifiradar/pkg/pairing"
	"github.com/carverauto/wifiradar/pkg/poller"
	"github.com/carverauto/wifiradar/pkg/sink"
	"github.com/carverauto/wifiradar/pkg/version"
)

var (
	errFailedToLoadConfig = errors.New("failed to load config")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/wifiradar/wifiradar.json", "Path to wifiradar config file")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Fprintln(os.Stdout, version.GetFullVersion())
		return nil
	}

	ctx := context.Background()

	// Step 1: Load configuration
	cfgLoader := config.NewConfig(nil)

	var cfg poller.Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	// Step 2: Create logger from loaded config
	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, "wifiradar", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Printf("Failed to shut down logger: %v", err)
		}
	}()

	// Step 3: Telemetry
	shutdownTelemetry := initTelemetry(ctx, &cfg, mainLogger)
	defer shutdownTelemetry()

	// Step 4: Wire the access point fetcher and the sinks
	sshFetcher, err := fetcher.NewSSHFetcher(fetcher.Config{
		Port:           cfg.SSH.Port,
		Command:        cfg.SSH.Command,
		KnownHostsFile: cfg.SSH.KnownHosts,
		Timeout:        time.Duration(cfg.FetchTimeout),
	}, mainLogger)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	sinks := []sink.Named{{Name: "log", Sink: sink.NewLog(mainLogger)}}

	var (
		nc          *nats.Conn
		pollerOpts  []poller.Option
		pairingOpts []pairing.Option
	)

	if cfg.NATS != nil {
		nc, err = natsutil.Connect(cfg.NATS, cfg.ServiceName, mainLogger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}

		defer nc.Close()
	}

	if cfg.Events.Enabled {
		publisher, err := newEventPublisher(ctx, &cfg, nc, mainLogger)
		if err != nil {
			return err
		}

		sinks = append(sinks, sink.Named{Name: "nats", Sink: publisher})
	}

	if cfg.SettingsKV.Enabled {
		store, err := kv.NewNatsStore(ctx, nc, cfg.SettingsKV.Bucket, mainLogger)
		if err != nil {
			return fmt.Errorf("failed to open settings bucket: %w", err)
		}

		settingsStore, err := kv.NewSettingsStore(store, cfg.SettingsKV.Key, mainLogger)
		if err != nil {
			return err
		}

		pollerOpts = append(pollerOpts, poller.WithSettingsSource(settingsStore))
		pairingOpts = append(pairingOpts, pairing.WithSettingsSaver(settingsStore))
	}

	if cfg.Database != nil {
		pool, err := db.NewCNPGPool(ctx, cfg.Database, mainLogger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		defer pool.Close()

		eventStore, err := db.NewEventStore(pool, mainLogger)
		if err != nil {
			return err
		}

		if err := eventStore.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate event store: %w", err)
		}

		sinks = append(sinks, sink.Named{Name: "database", Sink: eventStore})
		pairingOpts = append(pairingOpts, pairing.WithEventHistory(eventStore))
	}

	// Step 5: Create the poller and the pairing API
	p, err := poller.New(&cfg, sshFetcher, sink.NewMulti(sinks...), mainLogger, pollerOpts...)
	if err != nil {
		return err
	}

	server := pairing.NewServer(p, mainLogger, pairingOpts...)

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr:  cfg.ListenAddr,
		ServiceName: cfg.ServiceName,
		Service:     p,
		Handler:     server,
		Logger:      mainLogger,
	})
}

func newEventPublisher(ctx context.Context, cfg *poller.Config, nc *nats.Conn, log logger.Logger) (*natsutil.EventPublisher, error) {
	js, err := natsutil.NewJetStream(nc, cfg.NATS.Domain)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := natsutil.EnsureStream(ctx, js, cfg.Events.StreamName, cfg.Events.Subjects, log); err != nil {
		return nil, fmt.Errorf("failed to ensure event stream: %w", err)
	}

	return natsutil.NewEventPublisher(js, cfg.ServiceName, log), nil
}

// initTelemetry installs the metric and trace providers when an OTLP
// endpoint is configured. The returned func flushes the tracer.
func initTelemetry(ctx context.Context, cfg *poller.Config, log logger.Logger) func() {
	if cfg.Metrics == nil {
		return func() {}
	}

	_, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version.GetVersion(),
		OTel:           cfg.Metrics,
	})
	if err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	tp, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version.GetVersion(),
		Logger:         log,
		OTel:           cfg.Metrics,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing")
		return func() {}
	}

	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down tracer provider")
		}
	}
}
