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

package poller

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/carverauto/wifiradar/pkg/models"
	"github.com/carverauto/wifiradar/pkg/snapshot"
)

// run is the control loop. Every change to tracked presence, the latest
// snapshot and the timers happens here.
func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()
	defer p.stopTimers()

	p.reschedule(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case cmd := <-p.commands:
			cmd.reply <- cmd.apply(ctx, p.clock.Now())

			p.reschedule(ctx)
		case <-tickChan(p.deviceTicker):
			p.localTick(ctx)
		case <-tickChan(p.fetchTicker):
			p.startFetch(ctx)
		case res := <-p.results:
			p.handleFetchResult(ctx, res)
		}
	}
}

// reschedule starts, stops or replaces the timers so that they run exactly
// while there is at least one device and the settings are complete. Timers
// starting from stopped trigger an immediate fetch.
func (p *Poller) reschedule(ctx context.Context) {
	settings := p.currentSettings()

	if p.tracker.Len() == 0 || !settings.Configured() {
		if p.deviceTicker != nil || p.fetchTicker != nil {
			p.logger.Info().
				Int("devices", p.tracker.Len()).
				Bool("configured", settings.Configured()).
				Msg("Stopping poll timers")
		}

		p.stopTimers()

		return
	}

	deviceInterval := time.Duration(p.config.DevicePollInterval)
	pollConfig := settings.PollConfig(deviceInterval)
	starting := p.deviceTicker == nil

	if starting {
		p.deviceTicker = p.clock.Ticker(pollConfig.DeviceInterval)
	}

	if p.fetchTicker == nil || p.fetchInterval != pollConfig.FetchInterval() {
		p.fetchTicker = stopTicker(p.fetchTicker)
		p.fetchTicker = p.clock.Ticker(pollConfig.FetchInterval())
		p.fetchInterval = pollConfig.FetchInterval()

		p.logger.Info().
			Dur("fetch_interval", p.fetchInterval).
			Dur("device_interval", pollConfig.DeviceInterval).
			Msg("Poll timers scheduled")
	}

	if starting {
		p.startFetch(ctx)
	}
}

func (p *Poller) stopTimers() {
	p.deviceTicker = stopTicker(p.deviceTicker)
	p.fetchTicker = stopTicker(p.fetchTicker)
	p.fetchInterval = 0

	p.cancelFetch()
}

// cancelFetch cancels the in-flight fetch, if any, and invalidates every
// result that is still on its way.
func (p *Poller) cancelFetch() {
	if p.fetchCancel != nil {
		p.fetchCancel()
		p.fetchCancel = nil
	}

	p.generation++
}

// startFetch launches a fetch unless one is already outstanding.
func (p *Poller) startFetch(ctx context.Context) {
	settings := p.currentSettings()
	if !settings.Configured() {
		return
	}

	if !p.gate.TryAcquire(1) {
		p.logger.Debug().Msg("Fetch still in flight, skipping this tick")
		recordFetch(ctx, fetchResultSkipped, 0)

		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.FetchTimeout))
	p.fetchCancel = cancel
	generation := p.generation

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer cancel()

		res := p.fetch(fetchCtx, settings, generation)

		select {
		case p.results <- res:
		case <-fetchCtx.Done():
		}
	}()
}

// fetch runs outside the control loop and must not touch loop state.
func (p *Poller) fetch(ctx context.Context, settings models.Settings, generation uint64) fetchResult {
	defer p.gate.Release(1)

	ctx, span := p.tracer.Start(ctx, "fetchSnapshot")
	defer span.End()

	span.SetAttributes(
		attribute.String("ap.host", settings.Hostname),
		attribute.Int64("generation", int64(generation)),
	)

	start := time.Now()
	res := fetchResult{generation: generation}

	raw, err := p.fetcher.Fetch(ctx, settings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")

		res.err, res.result, res.duration = err, fetchResultFetchError, time.Since(start)

		return res
	}

	snap, err := snapshot.ParseAt(raw, p.clock.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")

		res.err, res.result, res.duration = err, fetchResultParseError, time.Since(start)

		return res
	}

	span.SetAttributes(attribute.Int("radio_groups", len(snap.Groups)))

	res.snapshot, res.result, res.duration = snap, fetchResultSuccess, time.Since(start)

	return res
}

func (p *Poller) handleFetchResult(ctx context.Context, res fetchResult) {
	if res.generation != p.generation {
		p.logger.Debug().
			Uint64("generation", res.generation).
			Uint64("current_generation", p.generation).
			Msg("Discarding stale fetch result")
		recordFetch(ctx, fetchResultDiscarded, res.duration)

		return
	}

	recordFetch(ctx, res.result, res.duration)

	if res.err != nil {
		p.logger.Warn().
			Err(res.err).
			Str("result", res.result).
			Msg("Fetch failed, keeping previous state")

		return
	}

	p.snapshot = res.snapshot

	p.logger.Debug().
		Int("clients", len(res.snapshot.Clients())).
		Dur("duration", res.duration).
		Msg("Snapshot fetched")

	p.reconcile(ctx, p.clock.Now())
}

// localTick re-reconciles against the last snapshot. It never fetches and
// does nothing until a first snapshot exists.
func (p *Poller) localTick(ctx context.Context) {
	if p.snapshot == nil {
		return
	}

	p.reconcile(ctx, p.clock.Now())
}

func (p *Poller) reconcile(ctx context.Context, now time.Time) {
	cycle := p.tracker.Apply(p.snapshot, now)

	onlineDelta := 0

	for _, result := range cycle.Results {
		if !result.Changed || result.Previous.Presence == result.Updated.Presence {
			continue
		}

		if result.Updated.Presence == models.PresenceOnline {
			onlineDelta++
		} else if result.Previous.Presence == models.PresenceOnline {
			onlineDelta--
		}
	}

	recordOnlineDelta(ctx, onlineDelta)

	for _, update := range cycle.Updates(now) {
		p.push(ctx, update)
	}

	for _, event := range cycle.Events {
		p.fire(ctx, event)
	}
}

func (p *Poller) push(ctx context.Context, update models.DeviceUpdate) {
	if err := p.sink.PushUpdate(ctx, update); err != nil {
		p.logger.Warn().Err(err).Str("device_id", update.DeviceID).Msg("Failed to push device update")
	}
}

func (p *Poller) fire(ctx context.Context, event models.Event) {
	recordEvent(ctx, event.Type)

	log := p.logger.Info().Str("event", string(event.Type))
	if event.DeviceID != "" {
		log = log.Str("device_id", event.DeviceID)
	}

	log.Msg("Presence event")

	if err := p.sink.FireEvent(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("event", string(event.Type)).Msg("Failed to fire event")
	}
}
