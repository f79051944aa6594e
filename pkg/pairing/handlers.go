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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/carverauto/wifiradar/pkg/models"
)

var (
	errBadRequest      = errors.New("bad request")
	errHistoryDisabled = errors.New("event history is not configured")
)

const redacted = "********"

type registerRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (*Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	descriptors, err := s.service.Discover(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, descriptors)
}

func (s *Server) listDevices(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Devices())
}

func (s *Server) registerDevice(w http.ResponseWriter, r *http.Request) {
	var req registerRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	if req.ID == "" {
		s.writeError(w, fmt.Errorf("%w: id is required", errBadRequest))
		return
	}

	device, err := s.service.RegisterDevice(r.Context(), req.ID, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info().Str("device_id", device.ID).Msg("Device paired")

	s.writeJSON(w, http.StatusCreated, device)
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.service.Device(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, device)
}

func (s *Server) deregisterDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeregisterDevice(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getCapability(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	capability := models.Capability(vars["capability"])

	value, err := s.service.GetCapability(vars["id"], capability)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"capability": capability,
		"value":      value,
	})
}

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	settings := s.service.Settings()
	if settings.Password != "" {
		settings.Password = redacted
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"settings":   settings,
		"configured": settings.Configured(),
	})
}

// putSettings replaces the settings. A redacted password keeps the
// current one.
func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings

	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	if settings.PollIntervalMinutes < 0 {
		s.writeError(w, fmt.Errorf("%w: poll_interval_minutes must not be negative", errBadRequest))
		return
	}

	if settings.Password == redacted {
		settings.Password = s.service.Settings().Password
	}

	var err error
	if s.saver != nil {
		err = s.saver.Save(r.Context(), settings)
	} else {
		err = s.service.UpdateSettings(r.Context(), settings)
	}

	if err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, errHistoryDisabled)
		return
	}

	query := r.URL.Query()

	limit := 0

	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw))
			return
		}

		limit = n
	}

	events, err := s.history.RecentEvents(r.Context(), query.Get("device_id"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if events == nil {
		events = []models.Event{}
	}

	s.writeJSON(w, http.StatusOK, events)
}
