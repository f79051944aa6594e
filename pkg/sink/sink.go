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

// Package sink combines the destinations of presence updates and events.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
)

// Sink receives capability updates and presence events.
type Sink interface {
	PushUpdate(ctx context.Context, update models.DeviceUpdate) error
	FireEvent(ctx context.Context, event models.Event) error
}

// Named pairs a sink with the name used in errors.
type Named struct {
	Name string
	Sink Sink
}

// Multi delivers to every sink in order. A failing sink does not stop
// delivery to the others; all failures are joined.
type Multi struct {
	sinks []Named
}

// NewMulti creates a fan-out over sinks, skipping nil entries.
func NewMulti(sinks ...Named) *Multi {
	m := &Multi{}

	for _, s := range sinks {
		if s.Sink != nil {
			m.sinks = append(m.sinks, s)
		}
	}

	return m
}

// Len returns the number of destinations.
func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) PushUpdate(ctx context.Context, update models.DeviceUpdate) error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.Sink.PushUpdate(ctx, update); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (m *Multi) FireEvent(ctx context.Context, event models.Event) error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.Sink.FireEvent(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}

	return errors.Join(errs...)
}

// Log writes updates and events as structured log lines. It is always part
// of the fan-out so presence changes are visible without NATS or Postgres.
type Log struct {
	logger logger.Logger
}

// NewLog creates a logging sink.
func NewLog(log logger.Logger) *Log {
	return &Log{logger: log}
}

func (l *Log) PushUpdate(_ context.Context, update models.DeviceUpdate) error {
	values := make(map[string]interface{}, len(update.Values))
	for capability, value := range update.Values {
		values[string(capability)] = value
	}

	l.logger.Debug().
		Str("device_id", update.DeviceID).
		Fields(values).
		Msg("Device updated")

	return nil
}

func (l *Log) FireEvent(_ context.Context, event models.Event) error {
	e := l.logger.Info().Str("event", string(event.Type))

	if event.DeviceID != "" {
		e = e.Str("device_id", event.DeviceID)
	}

	e.Fields(event.Tokens).Msg("Flow trigger")

	return nil
}
