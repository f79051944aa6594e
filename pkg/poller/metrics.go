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

package poller

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/wifiradar/pkg/models"
)

const (
	pollerMeterName = "github.com/carverauto/wifiradar/pkg/poller"

	metricFetchTotalName     = "wifiradar_fetch_total"
	metricFetchDurationName  = "wifiradar_fetch_duration_seconds"
	metricEventsTotalName    = "wifiradar_events_total"
	metricOnlineDevicesName  = "wifiradar_online_devices"
	metricTrackedDevicesName = "wifiradar_tracked_devices"

	fetchResultSuccess    = "success"
	fetchResultFetchError = "fetch_error"
	fetchResultParseError = "parse_error"
	fetchResultSkipped    = "skipped"
	fetchResultDiscarded  = "discarded"
)

var (
	pollerMetricsOnce sync.Once

	fetchCounter   metric.Int64Counter
	fetchLatency   metric.Float64Histogram
	eventCounter   metric.Int64Counter
	onlineDevices  metric.Int64UpDownCounter
	trackedDevices metric.Int64UpDownCounter
)

func initPollerMetrics() {
	meter := otel.Meter(pollerMeterName)

	if counter, err := meter.Int64Counter(
		metricFetchTotalName,
		metric.WithDescription("Access point fetches by result"),
	); err != nil {
		otel.Handle(err)
	} else {
		fetchCounter = counter
	}

	if hist, err := meter.Float64Histogram(
		metricFetchDurationName,
		metric.WithDescription("Latency of fetching and parsing the access point status"),
		metric.WithUnit("s"),
	); err != nil {
		otel.Handle(err)
	} else {
		fetchLatency = hist
	}

	if counter, err := meter.Int64Counter(
		metricEventsTotalName,
		metric.WithDescription("Presence events fired by type"),
	); err != nil {
		otel.Handle(err)
	} else {
		eventCounter = counter
	}

	if gauge, err := meter.Int64UpDownCounter(
		metricOnlineDevicesName,
		metric.WithDescription("Tracked devices currently online"),
	); err != nil {
		otel.Handle(err)
	} else {
		onlineDevices = gauge
	}

	if gauge, err := meter.Int64UpDownCounter(
		metricTrackedDevicesName,
		metric.WithDescription("Devices currently tracked"),
	); err != nil {
		otel.Handle(err)
	} else {
		trackedDevices = gauge
	}
}

func recordFetch(ctx context.Context, result string, duration time.Duration) {
	pollerMetricsOnce.Do(initPollerMetrics)

	attrs := metric.WithAttributes(attribute.String("result", result))

	if fetchCounter != nil {
		fetchCounter.Add(ctx, 1, attrs)
	}

	if fetchLatency != nil && duration > 0 {
		fetchLatency.Record(ctx, duration.Seconds(), attrs)
	}
}

func recordEvent(ctx context.Context, eventType models.EventType) {
	pollerMetricsOnce.Do(initPollerMetrics)
	if eventCounter == nil {
		return
	}

	eventCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(eventType))))
}

func recordOnlineDelta(ctx context.Context, delta int) {
	pollerMetricsOnce.Do(initPollerMetrics)
	if onlineDevices == nil || delta == 0 {
		return
	}

	onlineDevices.Add(ctx, int64(delta))
}

func recordTrackedDelta(ctx context.Context, delta int) {
	pollerMetricsOnce.Do(initPollerMetrics)
	if trackedDevices == nil || delta == 0 {
		return
	}

	trackedDevices.Add(ctx, int64(delta))
}
