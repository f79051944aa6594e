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

package models

import "time"

// Presence is the tri-state connection status of a tracked device.
type Presence string

const (
	PresenceUnknown Presence = "unknown"
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
)

// Known reports whether the device has been reconciled at least once.
func (p Presence) Known() bool {
	return p == PresenceOnline || p == PresenceOffline
}

// ConnectedValue maps the presence onto the client_connected capability,
// which is null until the first reconciliation.
func (p Presence) ConnectedValue() interface{} {
	switch p {
	case PresenceOnline:
		return true
	case PresenceOffline:
		return false
	case PresenceUnknown:
		return nil
	default:
		return nil
	}
}

// TrackedDevice is a registered wireless client and its last reconciled state.
// SignalQuality and RSSI are only set while the device is online.
type TrackedDevice struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	Presence      Presence  `json:"presence"`
	SignalQuality *int      `json:"signal_quality"`
	RSSI          *int      `json:"rssi"`
	RegisteredAt  time.Time `json:"registered_at"`
	LastChanged   time.Time `json:"last_changed,omitempty"`
}

// ClientRecord is one authorized station found in a snapshot.
type ClientRecord struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	RawSignal float64 `json:"raw_signal"`
}

// RadioGroup is a virtual access point (one SSID on one radio) and the
// stations associated with it.
type RadioGroup struct {
	ESSID   string         `json:"essid,omitempty"`
	Radio   string         `json:"radio,omitempty"`
	Clients []ClientRecord `json:"clients"`
}

// Snapshot is one parsed view of all authorized clients on the access point.
type Snapshot struct {
	Groups    []RadioGroup `json:"groups"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// Clients flattens the radio groups into an identifier keyed map. Later
// groups win when the same identifier shows up more than once.
func (s *Snapshot) Clients() map[string]ClientRecord {
	if s == nil {
		return map[string]ClientRecord{}
	}

	clients := make(map[string]ClientRecord)

	for _, group := range s.Groups {
		for _, client := range group.Clients {
			clients[client.ID] = client
		}
	}

	return clients
}

// DeviceDescriptor is the pairing view of a discovered client.
type DeviceDescriptor struct {
	Name string         `json:"name"`
	Data DescriptorData `json:"data"`
	Meta DescriptorMeta `json:"meta"`
}

// DescriptorData carries the stable identity of a discovered client.
type DescriptorData struct {
	ID string `json:"id"`
}

// DescriptorMeta carries the initial metric snapshot of a discovered client.
type DescriptorMeta struct {
	RawSignal     float64 `json:"rssi"`
	SignalQuality int     `json:"measure_signal"`
	RSSI          int     `json:"measure_rssi"`
}
