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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
)

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEventStore(t *testing.T, executor *fakePgxExecutor) *EventStore {
	t.Helper()

	store, err := NewEventStore(executor, logger.NewTestLogger())
	require.NoError(t, err)

	return store
}

func TestNewEventStore_RequiresExecutor(t *testing.T) {
	_, err := NewEventStore(nil, logger.NewTestLogger())
	require.ErrorIs(t, err, errExecutorRequired)
}

func TestEventStore_PushUpdateQueuesOneUpsertPerCapability(t *testing.T) {
	executor := &fakePgxExecutor{}
	store := newTestEventStore(t, executor)

	err := store.PushUpdate(context.Background(), models.DeviceUpdate{
		DeviceID: "aa:bb",
		Values: map[models.Capability]interface{}{
			models.CapabilityRSSI:          -65,
			models.CapabilityConnected:     true,
			models.CapabilitySignalQuality: 61,
		},
		Timestamp: testTime,
	})
	require.NoError(t, err)
	require.Len(t, executor.batches, 1)

	queued := executor.batches[0].QueuedQueries
	require.Len(t, queued, 3)

	wantOrder := []string{"client_connected", "measure_rssi", "measure_signal"}
	wantValues := []string{"true", "-65", "61"}

	for i, query := range queued {
		assert.Equal(t, upsertCapabilitySQL, query.SQL)
		assert.Equal(t, "aa:bb", query.Arguments[0])
		assert.Equal(t, wantOrder[i], query.Arguments[1])
		assert.JSONEq(t, wantValues[i], string(query.Arguments[2].([]byte)))
		assert.Equal(t, testTime, query.Arguments[3])
	}

	assert.Equal(t, 1, executor.br.closeCalls)
}

func TestEventStore_PushUpdateNullValue(t *testing.T) {
	executor := &fakePgxExecutor{}
	store := newTestEventStore(t, executor)

	err := store.PushUpdate(context.Background(), models.DeviceUpdate{
		DeviceID:  "aa:bb",
		Values:    map[models.Capability]interface{}{models.CapabilityRSSI: nil},
		Timestamp: testTime,
	})
	require.NoError(t, err)

	queued := executor.batches[0].QueuedQueries
	require.Len(t, queued, 1)
	assert.Equal(t, "null", string(queued[0].Arguments[2].([]byte)))
}

func TestEventStore_PushUpdateSurfacesBatchErrors(t *testing.T) {
	executor := &fakePgxExecutor{br: &fakeBatchResults{execErrAt: 1, execErr: errBoom}}
	store := newTestEventStore(t, executor)

	err := store.PushUpdate(context.Background(), models.DeviceUpdate{
		DeviceID: "aa:bb",
		Values: map[models.Capability]interface{}{
			models.CapabilityConnected: false,
			models.CapabilityRSSI:      nil,
		},
		Timestamp: testTime,
	})
	require.ErrorIs(t, err, errBoom)
	require.Contains(t, err.Error(), "device_capabilities batch exec (command 1)")
	require.Equal(t, 1, executor.br.closeCalls)
}

func TestEventStore_FireEvent(t *testing.T) {
	executor := &fakePgxExecutor{}
	store := newTestEventStore(t, executor)

	err := store.FireEvent(context.Background(), models.Event{
		Type:      models.EventClientConnected,
		DeviceID:  "aa:bb",
		Tokens:    map[string]interface{}{models.TokenName: "Phone"},
		Timestamp: testTime,
	})
	require.NoError(t, err)

	err = store.FireEvent(context.Background(), models.Event{
		Type:      models.EventLastOffline,
		Timestamp: testTime,
	})
	require.NoError(t, err)

	require.Len(t, executor.execs, 2)

	first := executor.execs[0]
	assert.Equal(t, insertEventSQL, first.sql)
	assert.IsType(t, uuid.UUID{}, first.args[0])
	assert.Equal(t, "client_connected", first.args[1])
	assert.Equal(t, "aa:bb", first.args[2])
	assert.JSONEq(t, `{"name":"Phone"}`, string(first.args[3].([]byte)))
	assert.Equal(t, testTime, first.args[4])

	second := executor.execs[1]
	assert.Equal(t, "", second.args[2])
	assert.Equal(t, "{}", string(second.args[3].([]byte)))
}

func TestEventStore_FireEventError(t *testing.T) {
	executor := &fakePgxExecutor{execErr: errBoom}
	store := newTestEventStore(t, executor)

	err := store.FireEvent(context.Background(), models.Event{Type: models.EventFirstOnline})
	require.ErrorIs(t, err, errBoom)
}

func TestEventStore_RecentEvents(t *testing.T) {
	tokens, err := json.Marshal(map[string]interface{}{models.TokenOnlineClients: 2})
	require.NoError(t, err)

	rows := &fakeRows{rows: []eventRow{
		{id: uuid.New(), eventType: "first_online", tokens: tokens, occurredAt: testTime},
		{id: uuid.New(), eventType: "client_connected", deviceID: "aa:bb", occurredAt: testTime.Add(-time.Minute)},
	}}

	executor := &fakePgxExecutor{rows: rows}
	store := newTestEventStore(t, executor)

	events, err := store.RecentEvents(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, models.EventFirstOnline, events[0].Type)
	assert.InDelta(t, 2, events[0].Tokens[models.TokenOnlineClients], 0)
	assert.Equal(t, "aa:bb", events[1].DeviceID)
	assert.Nil(t, events[1].Tokens)
	assert.True(t, rows.closed)

	require.Len(t, executor.queries, 1)
	assert.Equal(t, []any{"", defaultEventLimit}, executor.queries[0].args)
}

func TestEventStore_RecentEventsQueryError(t *testing.T) {
	store := newTestEventStore(t, &fakePgxExecutor{})

	_, err := store.RecentEvents(context.Background(), "aa:bb", 5)
	require.ErrorIs(t, err, errBoom)
}

func TestEventStore_Migrate(t *testing.T) {
	executor := &fakePgxExecutor{}
	store := newTestEventStore(t, executor)

	require.NoError(t, store.Migrate(context.Background()))
	assert.Len(t, executor.execs, len(schema))

	failing := newTestEventStore(t, &fakePgxExecutor{execErr: errBoom})
	require.ErrorIs(t, failing.Migrate(context.Background()), errBoom)
}
