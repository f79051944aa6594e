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

package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
)

var errTestFixture = errors.New("test fixture error")

type publishedMsg struct {
	subject string
	payload []byte
	opts    int
}

type fakePublisher struct {
	msgs []publishedMsg
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.msgs = append(f.msgs, publishedMsg{subject: subject, payload: payload, opts: len(opts)})

	return &jetstream.PubAck{Stream: "wifiradar-events", Sequence: uint64(len(f.msgs))}, nil
}

func decodeEvent(t *testing.T, payload []byte) map[string]interface{} {
	t.Helper()

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &event))

	return event
}

func TestEventPublisher_FireEvent(t *testing.T) {
	fake := &fakePublisher{}
	pub := newEventPublisher(fake, "wifiradar/ap.local", logger.NewTestLogger())
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	err := pub.FireEvent(context.Background(), models.Event{
		Type:     models.EventClientConnected,
		DeviceID: "aa:bb:cc:dd:ee:ff",
		Tokens: map[string]interface{}{
			models.TokenName:          "Phone",
			models.TokenSignalQuality: 61,
			models.TokenRSSI:          -65,
		},
		Timestamp: at,
	})
	require.NoError(t, err)
	require.Len(t, fake.msgs, 1)

	msg := fake.msgs[0]
	assert.Equal(t, "wifiradar.presence.client_connected", msg.subject)
	assert.Equal(t, 1, msg.opts, "message id is set for deduplication")

	event := decodeEvent(t, msg.payload)
	assert.Equal(t, "1.0", event["specversion"])
	assert.Equal(t, "com.carverauto.wifiradar.presence.client_connected", event["type"])
	assert.Equal(t, "wifiradar/ap.local", event["source"])
	assert.Equal(t, "wifiradar.presence.client_connected/aa:bb:cc:dd:ee:ff", event["subject"])
	assert.Equal(t, "2025-03-01T12:00:00Z", event["time"])
	assert.NotEmpty(t, event["id"])

	data, ok := event["data"].(map[string]interface{})
	require.True(t, ok)

	tokens, ok := data["tokens"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Phone", tokens[models.TokenName])
	assert.InDelta(t, 61, tokens[models.TokenSignalQuality], 0)
}

func TestEventPublisher_AggregateEventSubject(t *testing.T) {
	fake := &fakePublisher{}
	pub := newEventPublisher(fake, "wifiradar", logger.NewTestLogger())

	require.NoError(t, pub.FireEvent(context.Background(), models.Event{Type: models.EventLastOffline}))

	event := decodeEvent(t, fake.msgs[0].payload)
	assert.Equal(t, "wifiradar.presence.last_offline", fake.msgs[0].subject)
	assert.Equal(t, "wifiradar.presence.last_offline", event["subject"])
}

func TestEventPublisher_PushUpdate(t *testing.T) {
	fake := &fakePublisher{}
	pub := newEventPublisher(fake, "wifiradar", logger.NewTestLogger())

	err := pub.PushUpdate(context.Background(), models.DeviceUpdate{
		DeviceID: "aa:bb",
		Values: map[models.Capability]interface{}{
			models.CapabilityConnected:     false,
			models.CapabilitySignalQuality: nil,
		},
	})
	require.NoError(t, err)

	event := decodeEvent(t, fake.msgs[0].payload)
	assert.Equal(t, SubjectDeviceUpdated, fake.msgs[0].subject)
	assert.Equal(t, "com.carverauto.wifiradar.device.updated", event["type"])

	values := event["data"].(map[string]interface{})["values"].(map[string]interface{})
	assert.Equal(t, false, values["client_connected"])
	assert.Contains(t, values, "measure_signal")
	assert.Nil(t, values["measure_signal"])
}

func TestEventPublisher_PublishError(t *testing.T) {
	fake := &fakePublisher{err: errTestFixture}
	pub := newEventPublisher(fake, "wifiradar", logger.NewTestLogger())

	err := pub.FireEvent(context.Background(), models.Event{Type: models.EventFirstOnline})
	require.ErrorIs(t, err, errTestFixture)
}

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{
			name:     "adds subject when list empty",
			subjects: nil,
			subject:  "wifiradar.presence.>",
			want:     []string{"wifiradar.presence.>"},
		},
		{
			name:     "keeps list when wildcard matches",
			subjects: []string{"wifiradar.*.updated"},
			subject:  "wifiradar.device.updated",
			want:     []string{"wifiradar.*.updated"},
		},
		{
			name:     "keeps list when greater wildcard matches",
			subjects: []string{"wifiradar.>"},
			subject:  "wifiradar.presence.>",
			want:     []string{"wifiradar.>"},
		},
		{
			name:     "appends when unmatched",
			subjects: []string{"events.syslog.*"},
			subject:  "wifiradar.device.>",
			want:     []string{"events.syslog.*", "wifiradar.device.>"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject)
			assert.Equal(t, tc.want, result)
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "wifiradar.device.updated", "wifiradar.device.updated", true},
		{"single wildcard", "wifiradar.*.updated", "wifiradar.device.updated", true},
		{"greater wildcard", "wifiradar.>", "wifiradar.presence.first_online", true},
		{"greater wildcard needs a token", "wifiradar.>", "wifiradar", false},
		{"no match length", "wifiradar.*", "wifiradar.device.updated", false},
		{"no match tokens", "events.syslog.*", "wifiradar.device.updated", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats no stream response", nats.ErrNoStreamResponse, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nats no responders", nats.ErrNoResponders, true},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, isStreamMissingErr(tc.err))
		})
	}
}

func TestTLSConfig_RequiresConfig(t *testing.T) {
	_, err := TLSConfig(nil)
	require.ErrorIs(t, err, ErrTLSConfigRequired)

	_, err = TLSConfig(&models.NATSTLSConfig{CertFile: "missing.pem", KeyFile: "missing.key"})
	require.Error(t, err)
}
