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

// Package natsutil publishes presence events and device updates to NATS
// JetStream as CloudEvents.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
)

const (
	// SubjectDeviceUpdated carries capability updates for the device registry.
	SubjectDeviceUpdated = "wifiradar.device.updated"
	// SubjectPresencePrefix prefixes presence event subjects, followed by the event type.
	SubjectPresencePrefix = "wifiradar.presence."

	eventTypePrefix = "com.carverauto.wifiradar."
)

// publisher is the part of jetstream.JetStream the EventPublisher uses.
type publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher provides methods for publishing CloudEvents to NATS JetStream.
// It is a poller sink.
type EventPublisher struct {
	js     publisher
	source string
	logger logger.Logger
}

// NewEventPublisher creates a publisher. source names the emitting service
// in every CloudEvent.
func NewEventPublisher(js jetstream.JetStream, source string, log logger.Logger) *EventPublisher {
	return newEventPublisher(js, source, log)
}

func newEventPublisher(js publisher, source string, log logger.Logger) *EventPublisher {
	return &EventPublisher{js: js, source: source, logger: log}
}

// PushUpdate publishes the changed capability values of one device.
func (p *EventPublisher) PushUpdate(ctx context.Context, update models.DeviceUpdate) error {
	event := p.newEvent(SubjectDeviceUpdated, eventTypePrefix+"device.updated", update.DeviceID, update)
	event.Time = &update.Timestamp

	return p.publish(ctx, SubjectDeviceUpdated, &event)
}

// FireEvent publishes a presence event on wifiradar.presence.<type>.
func (p *EventPublisher) FireEvent(ctx context.Context, presenceEvent models.Event) error {
	subject := SubjectPresencePrefix + string(presenceEvent.Type)

	event := p.newEvent(subject, eventTypePrefix+"presence."+string(presenceEvent.Type), presenceEvent.DeviceID, presenceEvent)
	event.Time = &presenceEvent.Timestamp

	return p.publish(ctx, subject, &event)
}

func (p *EventPublisher) newEvent(subject, eventType, deviceID string, data interface{}) models.CloudEvent {
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          p.source,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Data:            data,
	}

	if deviceID != "" {
		event.Subject = subject + "/" + deviceID
	}

	return event
}

func (p *EventPublisher) publish(ctx context.Context, subject string, event *models.CloudEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	ack, err := p.js.Publish(ctx, subject, payload, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("seq", ack.Sequence).
		Msg("Published event")

	return nil
}
