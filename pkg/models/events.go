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

// EventType names a presence event that can trigger flows on the host.
type EventType string

const (
	EventClientConnected    EventType = "client_connected"
	EventClientDisconnected EventType = "client_disconnected"
	EventFirstOnline        EventType = "first_online"
	EventLastOffline        EventType = "last_offline"
	EventClientOnline       EventType = "client_online"
	EventClientOffline      EventType = "client_offline"
)

// PerDevice reports whether the event targets a single device.
func (t EventType) PerDevice() bool {
	return t == EventClientConnected || t == EventClientDisconnected
}

// Token names attached to presence events.
const (
	TokenName          = "name"
	TokenSignalQuality = "measure_signal"
	TokenRSSI          = "measure_rssi"
	TokenOnlineClients = "online_clients"
	TokenOnlineDevices = "online_devices"
)

// Event is a derived presence event. DeviceID is empty for aggregate events.
type Event struct {
	Type      EventType              `json:"type"`
	DeviceID  string                 `json:"device_id,omitempty"`
	Tokens    map[string]interface{} `json:"tokens,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Capability is a device-facing value pushed to the device registry.
type Capability string

const (
	CapabilityConnected     Capability = "client_connected"
	CapabilitySignalQuality Capability = "measure_signal"
	CapabilityRSSI          Capability = "measure_rssi"
)

// Capabilities lists every capability a tracked device exposes.
func Capabilities() []Capability {
	return []Capability{CapabilityConnected, CapabilitySignalQuality, CapabilityRSSI}
}

// DeviceUpdate carries the capability values that changed for one device.
// A nil value clears the capability.
type DeviceUpdate struct {
	DeviceID  string                     `json:"device_id"`
	Values    map[Capability]interface{} `json:"values"`
	Timestamp time.Time                  `json:"timestamp"`
}

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}
