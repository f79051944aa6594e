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

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
	"github.com/carverauto/wifiradar/pkg/presence"
)

type lifecycleState int

const (
	stateIdle lifecycleState = iota
	stateRunning
	stateStopped
)

// Poller schedules access point fetches and reconciles the tracked devices
// against the latest snapshot. Presence state and the latest snapshot are
// only changed by the control loop started in Start.
type Poller struct {
	config  Config
	clock   Clock
	fetcher Fetcher
	sink    Sink
	source  SettingsSource
	tracker *presence.Tracker
	gate    *semaphore.Weighted
	tracer  trace.Tracer
	logger  logger.Logger

	mu     sync.Mutex
	state  lifecycleState
	cancel context.CancelFunc

	settingsMu sync.RWMutex
	settings   models.Settings

	commands  chan command
	results   chan fetchResult
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// owned by the control loop
	snapshot      *models.Snapshot
	generation    uint64
	fetchCancel   context.CancelFunc
	deviceTicker  Ticker
	fetchTicker   Ticker
	fetchInterval time.Duration
}

// Option configures optional collaborators of a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(p *Poller) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithSettingsSource makes the poller load its settings from source on
// Start and follow its changes.
func WithSettingsSource(source SettingsSource) Option {
	return func(p *Poller) {
		p.source = source
	}
}

// command is a state change executed by the control loop.
type command struct {
	apply func(ctx context.Context, now time.Time) error
	reply chan error
}

// fetchResult carries the outcome of one fetch back to the control loop.
type fetchResult struct {
	generation uint64
	snapshot   *models.Snapshot
	err        error
	result     string
	duration   time.Duration
}
