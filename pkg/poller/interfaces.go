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

//go:generate mockgen -destination=mock_poller.go -package=poller github.com/carverauto/wifiradar/pkg/poller Clock,Ticker,Fetcher,Sink,SettingsSource

import (
	"context"
	"time"

	"github.com/carverauto/wifiradar/pkg/models"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Fetcher retrieves the raw status document from the access point.
type Fetcher interface {
	Fetch(ctx context.Context, settings models.Settings) ([]byte, error)
}

// Sink receives the outcome of every reconciliation cycle: capability
// updates for the device registry and events for flow triggers.
type Sink interface {
	PushUpdate(ctx context.Context, update models.DeviceUpdate) error
	FireEvent(ctx context.Context, event models.Event) error
}

// SettingsSource owns the user-editable settings. Watch delivers every later
// change until ctx is done.
type SettingsSource interface {
	Load(ctx context.Context) (*models.Settings, error)
	Watch(ctx context.Context) (<-chan *models.Settings, error)
}
