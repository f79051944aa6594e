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

// Package poller schedules access point fetches and drives presence
// reconciliation for the tracked devices.
package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
	"github.com/carverauto/wifiradar/pkg/presence"
	"github.com/carverauto/wifiradar/pkg/snapshot"
)

const tracerName = "github.com/carverauto/wifiradar/pkg/poller"

// New creates a poller. The config is validated and defaulted in place.
func New(config *Config, fetcher Fetcher, sink Sink, log logger.Logger, opts ...Option) (*Poller, error) {
	if fetcher == nil {
		return nil, errFetcherRequired
	}

	if sink == nil {
		return nil, errSinkRequired
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poller config: %w", err)
	}

	p := &Poller{
		config:   *config,
		clock:    realClock{},
		fetcher:  fetcher,
		sink:     sink,
		tracker:  presence.NewTracker(presence.NewReconciler(presence.WithRSSIThreshold(config.RSSIChangeThreshold))),
		gate:     semaphore.NewWeighted(1),
		tracer:   otel.Tracer(tracerName),
		logger:   log,
		settings: config.Settings,
		commands: make(chan command),
		results:  make(chan fetchResult, 1),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Start implements the lifecycle.Service interface. It registers the
// configured devices, loads the settings and starts the control loop. It
// does not block.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	case stateIdle:
	}

	if p.source != nil {
		p.loadSettings(ctx)
	}

	now := p.clock.Now()

	for _, device := range p.config.Devices {
		if _, err := p.registerDevice(ctx, now, device.ID, device.Name); err != nil && !errors.Is(err, presence.ErrDeviceExists) {
			p.logger.Warn().Err(err).Str("device_id", device.ID).Msg("Skipping configured device")
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = stateRunning

	p.wg.Add(1)

	go p.run(runCtx)

	if p.source != nil {
		p.watchSettings(runCtx)
	}

	p.logger.Info().
		Int("devices", p.tracker.Len()).
		Dur("device_interval", time.Duration(p.config.DevicePollInterval)).
		Int("poll_interval_minutes", p.currentSettings().PollIntervalMinutes).
		Msg("Starting poller")

	return nil
}

// Stop implements the lifecycle.Service interface. In-flight fetches are
// cancelled and their results discarded.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.state = stateStopped
	cancel := p.cancel
	p.mu.Unlock()

	p.closeOnce.Do(func() { close(p.done) })

	if cancel != nil {
		cancel()
	}

	stopped := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		p.logger.Info().Msg("Poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterDevice starts tracking a device. Its initial, still unknown,
// capability values are pushed to the sink once.
func (p *Poller) RegisterDevice(ctx context.Context, id, name string) (models.TrackedDevice, error) {
	var device models.TrackedDevice

	err := p.exec(ctx, func(ctx context.Context, now time.Time) error {
		registered, err := p.registerDevice(ctx, now, id, name)
		device = registered

		return err
	})

	return device, err
}

// DeregisterDevice stops tracking a device. Removing the last device stops
// all scheduling.
func (p *Poller) DeregisterDevice(ctx context.Context, id string) error {
	return p.exec(ctx, func(ctx context.Context, _ time.Time) error {
		return p.deregisterDevice(ctx, id)
	})
}

// UpdateSettings replaces the access point settings. A new poll interval
// replaces the fetch timer; new connection settings cancel any in-flight
// fetch and apply from the next one.
func (p *Poller) UpdateSettings(ctx context.Context, settings models.Settings) error {
	return p.exec(ctx, func(_ context.Context, _ time.Time) error {
		p.applySettings(settings)
		return nil
	})
}

// Settings returns the current access point settings.
func (p *Poller) Settings() models.Settings {
	return p.currentSettings()
}

// GetCapability returns the current value of one capability of a device.
func (p *Poller) GetCapability(id string, capability models.Capability) (interface{}, error) {
	return p.tracker.Capability(id, capability)
}

// Device returns a copy of a tracked device.
func (p *Poller) Device(id string) (models.TrackedDevice, error) {
	return p.tracker.Get(id)
}

// Devices returns copies of all tracked devices.
func (p *Poller) Devices() []models.TrackedDevice {
	return p.tracker.Devices()
}

// Discover fetches the access point once and lists its authorized clients
// for pairing. It waits for an in-flight scheduled fetch instead of
// overlapping it and never changes tracked state.
func (p *Poller) Discover(ctx context.Context) ([]models.DeviceDescriptor, error) {
	settings := p.currentSettings()
	if !settings.Configured() {
		return nil, fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(settings.MissingFields(), ", "))
	}

	if err := p.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.gate.Release(1)

	ctx, span := p.tracer.Start(ctx, "discoverClients")
	defer span.End()

	raw, err := p.fetcher.Fetch(ctx, settings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")

		return nil, err
	}

	snap, err := snapshot.ParseAt(raw, p.clock.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")

		return nil, err
	}

	descriptors := snapshot.Descriptors(snap)
	span.SetAttributes(attribute.Int("clients", len(descriptors)))

	return descriptors, nil
}

// exec runs fn on the control loop, or inline before the loop is started.
func (p *Poller) exec(ctx context.Context, fn func(ctx context.Context, now time.Time) error) error {
	p.mu.Lock()

	switch p.state {
	case stateIdle:
		defer p.mu.Unlock()
		return fn(ctx, p.clock.Now())
	case stateStopped:
		p.mu.Unlock()
		return ErrStopped
	case stateRunning:
	}

	p.mu.Unlock()

	cmd := command{apply: fn, reply: make(chan error, 1)}

	select {
	case p.commands <- cmd:
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) registerDevice(ctx context.Context, now time.Time, id, name string) (models.TrackedDevice, error) {
	device, err := p.tracker.Register(id, name, now)
	if err != nil {
		return models.TrackedDevice{}, err
	}

	recordTrackedDelta(ctx, 1)

	p.push(ctx, models.DeviceUpdate{
		DeviceID:  device.ID,
		Values:    presence.StateOf(&device).Values(),
		Timestamp: now,
	})

	p.logger.Info().Str("device_id", device.ID).Str("name", device.Name).Msg("Device registered")

	return device, nil
}

func (p *Poller) deregisterDevice(ctx context.Context, id string) error {
	device, err := p.tracker.Get(id)
	if err != nil {
		return err
	}

	if err := p.tracker.Deregister(id); err != nil {
		return err
	}

	recordTrackedDelta(ctx, -1)

	if device.Presence == models.PresenceOnline {
		recordOnlineDelta(ctx, -1)
	}

	p.logger.Info().Str("device_id", device.ID).Msg("Device deregistered")

	return nil
}

func (p *Poller) currentSettings() models.Settings {
	p.settingsMu.RLock()
	defer p.settingsMu.RUnlock()

	return p.settings
}

func (p *Poller) applySettings(settings models.Settings) {
	p.settingsMu.Lock()
	previous := p.settings
	p.settings = settings
	p.settingsMu.Unlock()

	if previous.Hostname != settings.Hostname ||
		previous.Username != settings.Username ||
		previous.Password != settings.Password {
		p.cancelFetch()
	}

	p.logger.Info().
		Str("hostname", settings.Hostname).
		Int("poll_interval_minutes", settings.PollIntervalMinutes).
		Bool("configured", settings.Configured()).
		Msg("Settings updated")
}

func (p *Poller) loadSettings(ctx context.Context) {
	settings, err := p.source.Load(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to load settings, using configured defaults")
		return
	}

	if settings != nil {
		p.applySettings(*settings)
	}
}

func (p *Poller) watchSettings(ctx context.Context) {
	updates, err := p.source.Watch(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to watch settings, changes require a restart")
		return
	}

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		for {
			select {
			case <-ctx.Done():
				return
			case settings, ok := <-updates:
				if !ok {
					return
				}

				if settings == nil {
					continue
				}

				if err := p.UpdateSettings(ctx, *settings); err != nil && !errors.Is(err, ErrStopped) && ctx.Err() == nil {
					p.logger.Warn().Err(err).Msg("Failed to apply settings change")
				}
			}
		}
	}()
}
