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

package pairing

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	messageListDevices = "list_devices"
	messagePing        = "ping"
	messagePong        = "pong"
	messageError       = "error"

	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// Message is exchanged over the pairing websocket. Requests carry only a
// type; replies echo it with data, or use "error".
type Message struct {
	Type      string      `json:"type"`
	Request   string      `json:"request,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func (s *Server) handlePairing(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to WebSocket")

		return
	}

	defer func() {
		_ = conn.Close()
	}()

	s.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Pairing session opened")

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		var req Message

		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Pairing session ended")
			}

			return
		}

		reply := s.dispatch(r, req)

		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}

		if err := conn.WriteJSON(reply); err != nil {
			s.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Failed to write pairing reply")
			return
		}
	}
}

var errUnknownMessage = errors.New("unknown message type")

func (s *Server) dispatch(r *http.Request, req Message) Message {
	now := time.Now().UTC()

	switch req.Type {
	case messageListDevices:
		descriptors, err := s.service.Discover(r.Context())
		if err != nil {
			s.logger.Info().Err(err).Msg("Pairing discovery failed")
			return Message{Type: messageError, Request: req.Type, Error: err.Error(), Timestamp: now}
		}

		return Message{Type: messageListDevices, Data: descriptors, Timestamp: now}
	case messagePing:
		return Message{Type: messagePong, Timestamp: now}
	default:
		return Message{Type: messageError, Request: req.Type, Error: errUnknownMessage.Error() + ": " + req.Type, Timestamp: now}
	}
}
