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

import "github.com/carverauto/wifiradar/pkg/models"

// DeviceState is the reconciled part of a tracked device.
type DeviceState struct {
	Presence      models.Presence
	SignalQuality *int
	RSSI          *int
}

// StateOf extracts the reconciled state from a tracked device.
func StateOf(device *models.TrackedDevice) DeviceState {
	if device == nil {
		return DeviceState{Presence: models.PresenceUnknown}
	}

	return DeviceState{
		Presence:      device.Presence,
		SignalQuality: copyInt(device.SignalQuality),
		RSSI:          copyInt(device.RSSI),
	}
}

// Equal compares presence and both metrics.
func (s DeviceState) Equal(other DeviceState) bool {
	return s.Presence == other.Presence &&
		intPtrEqual(s.SignalQuality, other.SignalQuality) &&
		intPtrEqual(s.RSSI, other.RSSI)
}

// Diff returns the capability values of next that differ from s.
func (s DeviceState) Diff(next DeviceState) map[models.Capability]interface{} {
	changes := make(map[models.Capability]interface{})

	if s.Presence != next.Presence {
		changes[models.CapabilityConnected] = next.Presence.ConnectedValue()
	}

	if !intPtrEqual(s.SignalQuality, next.SignalQuality) {
		changes[models.CapabilitySignalQuality] = intValue(next.SignalQuality)
	}

	if !intPtrEqual(s.RSSI, next.RSSI) {
		changes[models.CapabilityRSSI] = intValue(next.RSSI)
	}

	return changes
}

// Value returns the current value of a single capability.
func (s DeviceState) Value(capability models.Capability) (interface{}, bool) {
	switch capability {
	case models.CapabilityConnected:
		return s.Presence.ConnectedValue(), true
	case models.CapabilitySignalQuality:
		return intValue(s.SignalQuality), true
	case models.CapabilityRSSI:
		return intValue(s.RSSI), true
	default:
		return nil, false
	}
}

// Values returns every capability value, used for the initial push.
func (s DeviceState) Values() map[models.Capability]interface{} {
	values := make(map[models.Capability]interface{}, len(models.Capabilities()))

	for _, capability := range models.Capabilities() {
		values[capability], _ = s.Value(capability)
	}

	return values
}

func (s DeviceState) apply(device *models.TrackedDevice) {
	device.Presence = s.Presence
	device.SignalQuality = copyInt(s.SignalQuality)
	device.RSSI = copyInt(s.RSSI)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

func intValue(v *int) interface{} {
	if v == nil {
		return nil
	}

	return *v
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}

func intPtr(v int) *int {
	return &v
}
