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

// Package presence reconciles access point snapshots against tracked devices
// and derives the presence events that follow from each change.
package presence

import "math"

const (
	signalFloor   = 5.0
	signalCeiling = 45.0
	signalScale   = 99.0
	rssiOffset    = 95.0
)

// SignalQuality maps a raw station signal onto a 0-99 quality scale. Raw
// values outside 5..45 saturate.
func SignalQuality(raw float64) int {
	raw = finite(raw)
	clamped := math.Min(signalCeiling, math.Max(raw, signalFloor))

	return int(math.Floor((clamped - signalFloor) / (signalCeiling - signalFloor) * signalScale))
}

// RSSI converts a raw station signal into an RSSI value.
func RSSI(raw float64) int {
	return int(math.Floor(finite(raw) - rssiOffset))
}

// finite maps NaN and infinities to zero so both conversions stay total.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}
