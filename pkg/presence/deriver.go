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
	"sort"
	"time"

	"github.com/carverauto/wifiradar/pkg/models"
)

// Counts summarizes the aggregate view used to derive batch events.
type Counts struct {
	OnlineBefore  int
	OnlineDevices int
	OnlineClients int
}

// DeriveEvents compares the tracked devices before and after a
// reconciliation batch and returns the events to fire, in firing order:
// per-device events sorted by device id, then first_online/last_offline,
// then client_online/client_offline.
//
// Per-device events only fire for offline<->online flips. Aggregate events
// are suppressed while any device is still unknown after the batch, and on
// the first batch, when no device was known before it. A device registered
// mid-run does not hide the transitions of the others.
func DeriveEvents(before, after []models.TrackedDevice, clients map[string]models.ClientRecord, at time.Time) []models.Event {
	events := deviceEvents(before, after, at)

	if len(after) == 0 || !anyKnown(before) || !initialized(after) {
		return events
	}

	counts := CountOnline(before, after, clients)
	tokens := func() map[string]interface{} {
		return map[string]interface{}{
			models.TokenOnlineClients: counts.OnlineClients,
			models.TokenOnlineDevices: counts.OnlineDevices,
		}
	}

	if counts.OnlineBefore == 0 && counts.OnlineClients > 0 {
		events = append(events, models.Event{Type: models.EventFirstOnline, Tokens: tokens(), Timestamp: at})
	}

	if counts.OnlineBefore > 0 && counts.OnlineClients == 0 {
		events = append(events, models.Event{Type: models.EventLastOffline, Tokens: tokens(), Timestamp: at})
	}

	if counts.OnlineClients > counts.OnlineDevices {
		events = append(events, models.Event{Type: models.EventClientOnline, Tokens: tokens(), Timestamp: at})
	}

	if counts.OnlineDevices > counts.OnlineClients {
		events = append(events, models.Event{Type: models.EventClientOffline, Tokens: tokens(), Timestamp: at})
	}

	return events
}

// CountOnline computes the online counts for a batch. OnlineClients counts
// tracked devices whose identifier is present in the snapshot.
func CountOnline(before, after []models.TrackedDevice, clients map[string]models.ClientRecord) Counts {
	var counts Counts

	for i := range before {
		if before[i].Presence == models.PresenceOnline {
			counts.OnlineBefore++
		}
	}

	for i := range after {
		if after[i].Presence == models.PresenceOnline {
			counts.OnlineDevices++
		}

		if _, ok := clients[after[i].ID]; ok {
			counts.OnlineClients++
		}
	}

	return counts
}

func deviceEvents(before, after []models.TrackedDevice, at time.Time) []models.Event {
	previous := make(map[string]models.Presence, len(before))
	for i := range before {
		previous[before[i].ID] = before[i].Presence
	}

	sorted := make([]models.TrackedDevice, len(after))
	copy(sorted, after)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var events []models.Event

	for i := range sorted {
		device := &sorted[i]

		was, ok := previous[device.ID]
		if !ok {
			continue
		}

		switch {
		case was == models.PresenceOffline && device.Presence == models.PresenceOnline:
			events = append(events, models.Event{
				Type:      models.EventClientConnected,
				DeviceID:  device.ID,
				Tokens:    deviceTokens(device),
				Timestamp: at,
			})
		case was == models.PresenceOnline && device.Presence == models.PresenceOffline:
			events = append(events, models.Event{
				Type:      models.EventClientDisconnected,
				DeviceID:  device.ID,
				Tokens:    deviceTokens(device),
				Timestamp: at,
			})
		}
	}

	return events
}

func deviceTokens(device *models.TrackedDevice) map[string]interface{} {
	name := device.Name
	if name == "" {
		name = device.ID
	}

	return map[string]interface{}{
		models.TokenName:          name,
		models.TokenSignalQuality: intValue(device.SignalQuality),
		models.TokenRSSI:          intValue(device.RSSI),
	}
}

func anyKnown(devices []models.TrackedDevice) bool {
	for i := range devices {
		if devices[i].Presence.Known() {
			return true
		}
	}

	return false
}

func initialized(devices []models.TrackedDevice) bool {
	for i := range devices {
		if !devices[i].Presence.Known() {
			return false
		}
	}

	return true
}
