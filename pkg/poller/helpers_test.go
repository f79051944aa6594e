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
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
	"github.com/carverauto/wifiradar/pkg/snapshot"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testSettings() models.Settings {
	return models.Settings{
		Hostname:            "ap.local",
		Username:            "admin",
		Password:            "secret",
		PollIntervalMinutes: 5,
	}
}

// dump builds an mca-dump document with every mac authorized at rssi 30.
func dump(macs ...string) []byte {
	entries := make([]string, 0, len(macs))
	for _, mac := range macs {
		entries = append(entries, fmt.Sprintf(`{"mac":%q,"authorized":true,"hostname":"host-%s","rssi":30}`, mac, mac))
	}

	return []byte(fmt.Sprintf(`{"vap_table":[{"essid":"home","radio":"ng","sta_table":[%s]}]}`, strings.Join(entries, ",")))
}

func mustParse(t *testing.T, raw []byte) *models.Snapshot {
	t.Helper()

	s, err := snapshot.Parse(raw)
	require.NoError(t, err)

	return s
}

// manualTicker only fires when a test sends on ch.
type manualTicker struct {
	interval time.Duration
	ch       chan time.Time
	stopped  atomic.Bool
}

func (m *manualTicker) Chan() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()                  { m.stopped.Store(true) }

// recordingSink keeps everything pushed to it.
type recordingSink struct {
	mu      sync.Mutex
	updates []models.DeviceUpdate
	events  []models.Event
}

func (s *recordingSink) PushUpdate(_ context.Context, update models.DeviceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates = append(s.updates, update)

	return nil
}

func (s *recordingSink) FireEvent(_ context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	return nil
}

func (s *recordingSink) eventTypes() []models.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]models.EventType, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.Type)
	}

	return types
}

func (s *recordingSink) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.updates)
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates = nil
	s.events = nil
}

type harness struct {
	t       *testing.T
	ctrl    *gomock.Controller
	clock   *MockClock
	fetcher *MockFetcher
	sink    *recordingSink

	mu         sync.Mutex
	tickers    []*manualTicker
	payload    []byte
	fetchErr   error
	fetchCalls atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctrl := gomock.NewController(t)
	h := &harness{
		t:       t,
		ctrl:    ctrl,
		clock:   NewMockClock(ctrl),
		fetcher: NewMockFetcher(ctrl),
		sink:    &recordingSink{},
		payload: dump(),
	}

	h.clock.EXPECT().Now().Return(testNow).AnyTimes()
	h.clock.EXPECT().Ticker(gomock.Any()).DoAndReturn(func(d time.Duration) Ticker {
		h.mu.Lock()
		defer h.mu.Unlock()

		ticker := &manualTicker{interval: d, ch: make(chan time.Time)}
		h.tickers = append(h.tickers, ticker)

		return ticker
	}).AnyTimes()

	h.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, models.Settings) ([]byte, error) {
			h.fetchCalls.Add(1)

			h.mu.Lock()
			defer h.mu.Unlock()

			return h.payload, h.fetchErr
		}).AnyTimes()

	return h
}

func (h *harness) newPoller(mutate func(*Config), opts ...Option) *Poller {
	h.t.Helper()

	cfg := &Config{Settings: testSettings()}
	if mutate != nil {
		mutate(cfg)
	}

	opts = append([]Option{WithClock(h.clock)}, opts...)

	p, err := New(cfg, h.fetcher, h.sink, logger.NewTestLogger(), opts...)
	require.NoError(h.t, err)

	return p
}

func (h *harness) setPayload(payload []byte, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.payload = payload
	h.fetchErr = err
}

func (h *harness) allTickers() []*manualTicker {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*manualTicker, len(h.tickers))
	copy(out, h.tickers)

	return out
}

// activeTicker returns the newest running ticker with the given interval.
func (h *harness) activeTicker(interval time.Duration) *manualTicker {
	tickers := h.allTickers()

	for i := len(tickers) - 1; i >= 0; i-- {
		if tickers[i].interval == interval && !tickers[i].stopped.Load() {
			return tickers[i]
		}
	}

	return nil
}

func (h *harness) fire(interval time.Duration) {
	h.t.Helper()

	var ticker *manualTicker

	require.Eventually(h.t, func() bool {
		ticker = h.activeTicker(interval)
		return ticker != nil
	}, time.Second, 5*time.Millisecond, "no running ticker for %s", interval)

	select {
	case ticker.ch <- testNow:
	case <-time.After(time.Second):
		h.t.Fatalf("ticker %s not consumed", interval)
	}
}

func receiveResult(t *testing.T, p *Poller) fetchResult {
	t.Helper()

	select {
	case res := <-p.results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch result")
		return fetchResult{}
	}
}
