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

package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/wifiradar/pkg/models"
)

func snapshotOf(records ...models.ClientRecord) *models.Snapshot {
	return &models.Snapshot{
		Groups: []models.RadioGroup{{ESSID: "home", Radio: "ng", Clients: records}},
	}
}

func newTestTracker(t *testing.T, ids ...string) *Tracker {
	t.Helper()

	tracker := NewTracker(nil)

	for _, id := range ids {
		_, err := tracker.Register(id, "dev-"+id, testTime)
		require.NoError(t, err)
	}

	return tracker
}

func TestTracker_RegisterAndDeregister(t *testing.T) {
	tracker := NewTracker(nil)

	registered, err := tracker.Register("AA:BB", "phone", testTime)
	require.NoError(t, err)
	assert.Equal(t, "aa:bb", registered.ID)
	assert.Equal(t, models.PresenceUnknown, registered.Presence)
	assert.Equal(t, testTime, registered.RegisteredAt)

	_, err = tracker.Register("aa:bb", "phone", testTime)
	require.ErrorIs(t, err, ErrDeviceExists)

	_, err = tracker.Register("  ", "blank", testTime)
	require.Error(t, err)

	assert.Equal(t, 1, tracker.Len())

	require.NoError(t, tracker.Deregister("aa:BB"))
	assert.Equal(t, 0, tracker.Len())

	err = tracker.Deregister("aa:bb")
	require.ErrorIs(t, err, ErrUnknownDevice)
}

func TestTracker_Capability(t *testing.T) {
	tracker := newTestTracker(t, "aa:bb")

	value, err := tracker.Capability("aa:bb", models.CapabilityConnected)
	require.NoError(t, err)
	assert.Nil(t, value, "connected is null until the first reconciliation")

	tracker.Apply(snapshotOf(models.ClientRecord{ID: "AA:BB", Name: "phone", RawSignal: 30}), testTime)

	value, err = tracker.Capability("aa:bb", models.CapabilityConnected)
	require.NoError(t, err)
	assert.Equal(t, true, value)

	value, err = tracker.Capability("aa:bb", models.CapabilityRSSI)
	require.NoError(t, err)
	assert.Equal(t, -65, value)

	_, err = tracker.Capability("aa:bb", models.Capability("measure_battery"))
	require.ErrorIs(t, err, ErrUnknownCapability)

	_, err = tracker.Capability("cc:dd", models.CapabilityConnected)
	require.ErrorIs(t, err, ErrUnknownDevice)
}

func TestTracker_ApplyNilSnapshotIsNoop(t *testing.T) {
	tracker := newTestTracker(t, "aa:bb")

	cycle := tracker.Apply(nil, testTime)

	assert.Empty(t, cycle.Results)
	assert.Empty(t, cycle.Events)

	d, err := tracker.Get("aa:bb")
	require.NoError(t, err)
	assert.Equal(t, models.PresenceUnknown, d.Presence)
}

func TestTracker_ApplyIsIdempotent(t *testing.T) {
	tracker := newTestTracker(t, "aa:bb", "cc:dd")
	snapshot := snapshotOf(models.ClientRecord{ID: "aa:bb", RawSignal: 25})

	first := tracker.Apply(snapshot, testTime)
	assert.Len(t, first.Updates(testTime), 2)

	second := tracker.Apply(snapshot, testTime.Add(time.Minute))
	assert.Empty(t, second.Updates(testTime.Add(time.Minute)))
	assert.Empty(t, second.Events)

	d, err := tracker.Get("aa:bb")
	require.NoError(t, err)
	assert.Equal(t, testTime, d.LastChanged, "unchanged devices keep their last change time")
}

func TestTracker_PresenceScenario(t *testing.T) {
	tracker := newTestTracker(t, "aa:aa", "bb:bb")
	both := snapshotOf(
		models.ClientRecord{ID: "aa:aa", RawSignal: 30},
		models.ClientRecord{ID: "bb:bb", RawSignal: 40},
	)
	onlyB := snapshotOf(models.ClientRecord{ID: "bb:bb", RawSignal: 40})
	none := snapshotOf()

	steps := []struct {
		name     string
		snapshot *models.Snapshot
		want     []models.EventType
	}{
		{name: "initial reconciliation", snapshot: both, want: nil},
		{name: "a leaves while b stays", snapshot: onlyB, want: []models.EventType{models.EventClientDisconnected}},
		{name: "a returns", snapshot: both, want: []models.EventType{models.EventClientConnected}},
		{name: "everyone leaves", snapshot: none, want: []models.EventType{
			models.EventClientDisconnected, models.EventClientDisconnected, models.EventLastOffline,
		}},
		{name: "still empty", snapshot: none, want: nil},
		{name: "b arrives", snapshot: onlyB, want: []models.EventType{models.EventClientConnected, models.EventFirstOnline}},
	}

	for i, step := range steps {
		at := testTime.Add(time.Duration(i) * time.Minute)

		cycle := tracker.Apply(step.snapshot, at)

		if step.want == nil {
			assert.Empty(t, cycle.Events, step.name)
			continue
		}

		assert.Equal(t, step.want, eventTypes(cycle.Events), step.name)
	}
}

func TestTracker_MixedCaseDuplicateLastGroupWins(t *testing.T) {
	tracker := newTestTracker(t, "aa:bb")
	snap := &models.Snapshot{Groups: []models.RadioGroup{
		{ESSID: "home", Radio: "ng", Clients: []models.ClientRecord{{ID: "AA:BB", RawSignal: 10}}},
		{ESSID: "home", Radio: "na", Clients: []models.ClientRecord{{ID: "aa:bb", RawSignal: 40}}},
	}}

	for i := 0; i < 50; i++ {
		tracker.Apply(snap, testTime)

		d, err := tracker.Get("aa:bb")
		require.NoError(t, err)
		require.NotNil(t, d.RSSI)
		require.Equal(t, -55, *d.RSSI, "iteration %d", i)
	}
}

func TestTracker_LastOfflineWithDeviceRegisteredMidRun(t *testing.T) {
	tracker := newTestTracker(t, "aa")

	tracker.Apply(snapshotOf(models.ClientRecord{ID: "aa", RawSignal: 30}), testTime)

	_, err := tracker.Register("bb", "dev-bb", testTime)
	require.NoError(t, err)

	cycle := tracker.Apply(snapshotOf(), testTime.Add(time.Minute))
	assert.Equal(t, []models.EventType{models.EventClientDisconnected, models.EventLastOffline}, eventTypes(cycle.Events))

	cycle = tracker.Apply(snapshotOf(), testTime.Add(2*time.Minute))
	assert.Empty(t, cycle.Events)
}

func TestTracker_FirstOnlineWithDeviceRegisteredMidRun(t *testing.T) {
	tracker := newTestTracker(t, "aa")

	tracker.Apply(snapshotOf(), testTime)

	_, err := tracker.Register("bb", "dev-bb", testTime)
	require.NoError(t, err)

	cycle := tracker.Apply(snapshotOf(models.ClientRecord{ID: "aa", RawSignal: 30}), testTime.Add(time.Minute))
	assert.Equal(t, []models.EventType{models.EventClientConnected, models.EventFirstOnline}, eventTypes(cycle.Events))
}

func TestTracker_UpdatesCarryOnlyChangedValues(t *testing.T) {
	tracker := newTestTracker(t, "aa:bb")

	tracker.Apply(snapshotOf(models.ClientRecord{ID: "aa:bb", RawSignal: 30}), testTime)
	cycle := tracker.Apply(snapshotOf(models.ClientRecord{ID: "aa:bb", RawSignal: 31}), testTime)

	updates := cycle.Updates(testTime)
	require.Len(t, updates, 1)
	assert.Equal(t, "aa:bb", updates[0].DeviceID)
	assert.Equal(t, map[models.Capability]interface{}{
		models.CapabilitySignalQuality: 64,
		models.CapabilityRSSI:          -64,
	}, updates[0].Values)
}

func TestTracker_DevicesReturnsCopies(t *testing.T) {
	tracker := newTestTracker(t, "bb", "aa")
	tracker.Apply(snapshotOf(models.ClientRecord{ID: "aa", RawSignal: 30}), testTime)

	devices := tracker.Devices()
	require.Len(t, devices, 2)
	assert.Equal(t, "aa", devices[0].ID)
	assert.Equal(t, "bb", devices[1].ID)

	*devices[0].RSSI = 0

	d, err := tracker.Get("aa")
	require.NoError(t, err)
	assert.Equal(t, -65, *d.RSSI)
}
