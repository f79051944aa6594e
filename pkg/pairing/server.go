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

// Package pairing serves device discovery over a websocket and the device
// registration API over HTTP.
package pairing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/carverauto/wifiradar/pkg/fetcher"
	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
	"github.com/carverauto/wifiradar/pkg/poller"
	"github.com/carverauto/wifiradar/pkg/presence"
)

// Service is the poller surface used by the handlers.
type Service interface {
	Discover(ctx context.Context) ([]models.DeviceDescriptor, error)
	RegisterDevice(ctx context.Context, id, name string) (models.TrackedDevice, error)
	DeregisterDevice(ctx context.Context, id string) error
	Device(id string) (models.TrackedDevice, error)
	Devices() []models.TrackedDevice
	GetCapability(id string, capability models.Capability) (interface{}, error)
	Settings() models.Settings
	UpdateSettings(ctx context.Context, settings models.Settings) error
}

// SettingsSaver persists settings. When configured, settings changes are
// written there and reach the poller through its settings watch.
type SettingsSaver interface {
	Save(ctx context.Context, settings models.Settings) error
}

// EventHistory lists recorded presence events.
type EventHistory interface {
	RecentEvents(ctx context.Context, deviceID string, limit int) ([]models.Event, error)
}

// Server routes the pairing and device API.
type Server struct {
	service  Service
	saver    SettingsSaver
	history  EventHistory
	router   *mux.Router
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// Option configures optional collaborators.
type Option func(*Server)

// WithSettingsSaver routes settings changes through saver.
func WithSettingsSaver(saver SettingsSaver) Option {
	return func(s *Server) {
		s.saver = saver
	}
}

// WithEventHistory enables GET /api/events.
func WithEventHistory(history EventHistory) Option {
	return func(s *Server) {
		s.history = history
	}
}

// WithCheckOrigin replaces the websocket origin check, which by default
// only accepts same-host requests.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = check
	}
}

// NewServer builds the router.
func NewServer(service Service, log logger.Logger, opts ...Option) *Server {
	s := &Server{
		service: service,
		router:  mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/pairing", s.handlePairing).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/discover", s.handleDiscover).Methods(http.MethodGet)
	api.HandleFunc("/devices", s.listDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices", s.registerDevice).Methods(http.MethodPost)
	api.HandleFunc("/devices/{id}", s.getDevice).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", s.deregisterDevice).Methods(http.MethodDelete)
	api.HandleFunc("/devices/{id}/capabilities/{capability}", s.getCapability).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.getSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.putSettings).Methods(http.MethodPut)
	api.HandleFunc("/events", s.listEvents).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Int("status", status).Msg("Request failed")
	}

	s.writeJSON(w, status, ErrorResponse{Message: err.Error(), Status: status})
}

func statusFor(err error) int {
	var fetchErr *fetcher.FetchError

	switch {
	case errors.Is(err, presence.ErrUnknownDevice), errors.Is(err, presence.ErrUnknownCapability):
		return http.StatusNotFound
	case errors.Is(err, presence.ErrDeviceExists):
		return http.StatusConflict
	case errors.Is(err, poller.ErrNotConfigured):
		return http.StatusPreconditionFailed
	case errors.Is(err, poller.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errHistoryDisabled):
		return http.StatusNotImplemented
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
