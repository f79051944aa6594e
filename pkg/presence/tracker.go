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
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/wifiradar/pkg/models"
)

var (
	// ErrUnknownDevice is returned for lookups of devices that are not registered.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrDeviceExists is returned when registering an identifier twice.
	ErrDeviceExists = errors.New("device already registered")
	// ErrUnknownCapability is returned for capability reads the device does not expose.
	ErrUnknownCapability = errors.New("unknown capability")

	errEmptyDeviceID = errors.New("device id is required")
)

// Cycle is the outcome of applying one snapshot to every tracked device.
type Cycle struct {
	Results []Result
	Events  []models.Event
	Counts  Counts
}

// Updates returns the device updates for results that changed.
func (c *Cycle) Updates(at time.Time) []models.DeviceUpdate {
	updates := make([]models.DeviceUpdate, 0, len(c.Results))

	for _, result := range c.Results {
		changes := result.Changes()
		if len(changes) == 0 {
			continue
		}

		updates = append(updates, models.DeviceUpdate{
			DeviceID:  result.DeviceID,
			Values:    changes,
			Timestamp: at,
		})
	}

	return updates
}

// Tracker owns the set of tracked devices. Devices are added and removed by
// the host; Apply is the only place their presence and metrics change.
type Tracker struct {
	mu         sync.RWMutex
	devices    map[string]*models.TrackedDevice
	reconciler *Reconciler
}

// NewTracker creates an empty tracker. A nil reconciler uses the defaults.
func NewTracker(reconciler *Reconciler) *Tracker {
	if reconciler == nil {
		reconciler = NewReconciler()
	}

	return &Tracker{
		devices:    make(map[string]*models.TrackedDevice),
		reconciler: reconciler,
	}
}

// NormalizeID canonicalizes a client identifier. MAC addresses are compared
// case-insensitively.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Register starts tracking a device in the unknown state.
func (t *Tracker) Register(id, name string, at time.Time) (models.TrackedDevice, error) {
	id = NormalizeID(id)
	if id == "" {
		return models.TrackedDevice{}, errEmptyDeviceID
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.devices[id]; exists {
		return models.TrackedDevice{}, fmt.Errorf("%w: %s", ErrDeviceExists, id)
	}

	device := &models.TrackedDevice{
		ID:           id,
		Name:         name,
		Presence:     models.PresenceUnknown,
		RegisteredAt: at,
	}
	t.devices[id] = device

	return cloneDevice(device), nil
}

// Deregister stops tracking a device.
func (t *Tracker) Deregister(id string) error {
	id = NormalizeID(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.devices[id]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	delete(t.devices, id)

	return nil
}

// Get returns a copy of a tracked device.
func (t *Tracker) Get(id string) (models.TrackedDevice, error) {
	id = NormalizeID(id)

	t.mu.RLock()
	defer t.mu.RUnlock()

	device, exists := t.devices[id]
	if !exists {
		return models.TrackedDevice{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	return cloneDevice(device), nil
}

// Capability reads a single capability value of a tracked device.
func (t *Tracker) Capability(id string, capability models.Capability) (interface{}, error) {
	device, err := t.Get(id)
	if err != nil {
		return nil, err
	}

	value, ok := StateOf(&device).Value(capability)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
	}

	return value, nil
}

// Devices returns copies of all tracked devices sorted by identifier.
func (t *Tracker) Devices() []models.TrackedDevice {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.snapshotLocked()
}

// Len returns the number of tracked devices.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.devices)
}

// Apply reconciles every tracked device against the snapshot, stores the
// changed states and derives the events of the batch. A nil snapshot is a
// no-op.
func (t *Tracker) Apply(snapshot *models.Snapshot, at time.Time) Cycle {
	if snapshot == nil {
		return Cycle{}
	}

	clients := IndexClients(snapshot)

	t.mu.Lock()
	defer t.mu.Unlock()

	before := t.snapshotLocked()
	results := make([]Result, 0, len(before))

	for i := range before {
		device := t.devices[before[i].ID]

		result := t.reconciler.Reconcile(device.ID, StateOf(device), clients)
		if result.Changed {
			result.Updated.apply(device)
			device.LastChanged = at
		}

		results = append(results, result)
	}

	after := t.snapshotLocked()

	return Cycle{
		Results: results,
		Events:  DeriveEvents(before, after, clients, at),
		Counts:  CountOnline(before, after, clients),
	}
}

func (t *Tracker) snapshotLocked() []models.TrackedDevice {
	devices := make([]models.TrackedDevice, 0, len(t.devices))

	for _, device := range t.devices {
		devices = append(devices, cloneDevice(device))
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	return devices
}

// IndexClients flattens the radio groups of a snapshot into a map keyed by
// normalized identifier. Groups are walked in order, so the last occurrence
// of an identifier wins regardless of its case.
func IndexClients(snapshot *models.Snapshot) map[string]models.ClientRecord {
	clients := make(map[string]models.ClientRecord)
	if snapshot == nil {
		return clients
	}

	for _, group := range snapshot.Groups {
		for _, client := range group.Clients {
			client.ID = NormalizeID(client.ID)
			clients[client.ID] = client
		}
	}

	return clients
}

func cloneDevice(device *models.TrackedDevice) models.TrackedDevice {
	c := *device
	c.SignalQuality = copyInt(device.SignalQuality)
	c.RSSI = copyInt(device.RSSI)

	return c
}
