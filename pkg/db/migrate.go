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
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS presence_events (
		id          UUID PRIMARY KEY,
		event_type  TEXT NOT NULL,
		device_id   TEXT,
		tokens      JSONB NOT NULL DEFAULT '{}'::jsonb,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS presence_events_occurred_at_idx
		ON presence_events (occurred_at DESC)`,
	`CREATE INDEX IF NOT EXISTS presence_events_device_idx
		ON presence_events (device_id, occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS device_capabilities (
		device_id  TEXT NOT NULL,
		capability TEXT NOT NULL,
		value      JSONB,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (device_id, capability)
	)`,
}

// Migrate creates the tables used by the EventStore.
func (s *EventStore) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.executor.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}

	s.logger.Info().Int("statements", len(schema)).Msg("Event history schema ready")

	return nil
}
