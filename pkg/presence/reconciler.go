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

// Result is the outcome of reconciling one device against a snapshot.
type Result struct {
	DeviceID string
	Previous DeviceState
	Updated  DeviceState
	Changed  bool
}

// Changes returns the capability values that need to be pushed for this
// result. It is empty when nothing changed.
func (r Result) Changes() map[models.Capability]interface{} {
	if !r.Changed {
		return map[models.Capability]interface{}{}
	}

	return r.Previous.Diff(r.Updated)
}

// Reconciler computes the next state of a device from a flattened snapshot.
type Reconciler struct {
	rssiThreshold int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRSSIThreshold suppresses metric-only updates while a device stays
// online and its RSSI moved by no more than threshold. Zero keeps every change.
func WithRSSIThreshold(threshold int) Option {
	return func(r *Reconciler) {
		if threshold > 0 {
			r.rssiThreshold = threshold
		}
	}
}

// NewReconciler creates a Reconciler.
func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Reconcile computes the state of deviceID given the clients of the latest
// snapshot. It does not mutate anything.
func (r *Reconciler) Reconcile(deviceID string, previous DeviceState, clients map[string]models.ClientRecord) Result {
	updated := DeviceState{Presence: models.PresenceOffline}

	if record, ok := clients[deviceID]; ok {
		updated = DeviceState{
			Presence:      models.PresenceOnline,
			SignalQuality: intPtr(SignalQuality(record.RawSignal)),
			RSSI:          intPtr(RSSI(record.RawSignal)),
		}

		if r.withinThreshold(previous, updated) {
			updated.SignalQuality = copyInt(previous.SignalQuality)
			updated.RSSI = copyInt(previous.RSSI)
		}
	}

	return Result{
		DeviceID: deviceID,
		Previous: previous,
		Updated:  updated,
		Changed:  !previous.Equal(updated),
	}
}

func (r *Reconciler) withinThreshold(previous, updated DeviceState) bool {
	if r == nil || r.rssiThreshold <= 0 {
		return false
	}

	if previous.Presence != models.PresenceOnline || previous.RSSI == nil || previous.SignalQuality == nil {
		return false
	}

	delta := *updated.RSSI - *previous.RSSI
	if delta < 0 {
		delta = -delta
	}

	return delta <= r.rssiThreshold
}
