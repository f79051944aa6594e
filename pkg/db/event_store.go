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

package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
)

const (
	insertEventSQL = `INSERT INTO presence_events (
		id, event_type, device_id, tokens, occurred_at
	) VALUES ($1, $2, NULLIF($3::text, ''), $4, $5)`

	upsertCapabilitySQL = `INSERT INTO device_capabilities (
		device_id, capability, value, updated_at
	) VALUES ($1, $2, $3, $4)
	ON CONFLICT (device_id, capability) DO UPDATE
	SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	WHERE device_capabilities.updated_at <= EXCLUDED.updated_at`

	recentEventsSQL = `SELECT id, event_type, COALESCE(device_id, ''), tokens, occurred_at
	FROM presence_events
	WHERE ($1::text = '' OR device_id = $1::text)
	ORDER BY occurred_at DESC
	LIMIT $2`

	defaultEventLimit = 100
)

// EventStore is a poller sink that records every presence event and the
// latest value of every capability.
type EventStore struct {
	executor pgxExecutor
	logger   logger.Logger
}

// NewEventStore wraps a pool or connection.
func NewEventStore(executor pgxExecutor, log logger.Logger) (*EventStore, error) {
	if executor == nil {
		return nil, errExecutorRequired
	}

	return &EventStore{executor: executor, logger: log}, nil
}

// PushUpdate upserts each changed capability of the device.
func (s *EventStore) PushUpdate(ctx context.Context, update models.DeviceUpdate) error {
	capabilities := make([]string, 0, len(update.Values))
	for capability := range update.Values {
		capabilities = append(capabilities, string(capability))
	}

	sort.Strings(capabilities)

	batch := &pgx.Batch{}

	for _, capability := range capabilities {
		value, err := json.Marshal(update.Values[models.Capability(capability)])
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", capability, err)
		}

		batch.Queue(upsertCapabilitySQL, update.DeviceID, capability, value, update.Timestamp.UTC())
	}

	if err := sendBatchExecAll(ctx, batch, s.executor.SendBatch, "device_capabilities"); err != nil {
		return fmt.Errorf("failed to store device update: %w", err)
	}

	return nil
}

// FireEvent appends the event to the history.
func (s *EventStore) FireEvent(ctx context.Context, event models.Event) error {
	tokens, err := json.Marshal(event.Tokens)
	if err != nil {
		return fmt.Errorf("failed to encode event tokens: %w", err)
	}

	if event.Tokens == nil {
		tokens = []byte("{}")
	}

	if _, err := s.executor.Exec(ctx, insertEventSQL,
		uuid.New(), string(event.Type), event.DeviceID, tokens, event.Timestamp.UTC()); err != nil {
		return fmt.Errorf("failed to insert presence event: %w", err)
	}

	return nil
}

// RecentEvents returns up to limit events, newest first, optionally for a
// single device.
func (s *EventStore) RecentEvents(ctx context.Context, deviceID string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}

	rows, err := s.executor.Query(ctx, recentEventsSQL, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query presence events: %w", err)
	}
	defer rows.Close()

	var events []models.Event

	for rows.Next() {
		var (
			id         uuid.UUID
			eventType  string
			event      models.Event
			tokens     []byte
			occurredAt time.Time
		)

		if err := rows.Scan(&id, &eventType, &event.DeviceID, &tokens, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan presence event: %w", err)
		}

		event.Type = models.EventType(eventType)
		event.Timestamp = occurredAt

		if len(tokens) > 0 {
			if err := json.Unmarshal(tokens, &event.Tokens); err != nil {
				return nil, fmt.Errorf("failed to decode tokens of event %s: %w", id, err)
			}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}
