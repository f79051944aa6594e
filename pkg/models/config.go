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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	errInvalidDuration     = errors.New("invalid duration")
	errNATSURLRequired     = errors.New("nats url is required")
	errDatabaseHostMissing = errors.New("database host is required")
	errDatabaseNameMissing = errors.New("database name is required")
)

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("10s") or a number of nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Settings are the user-editable access point connection settings. They are
// owned by a settings store; the poller only reads them.
type Settings struct {
	Hostname            string `json:"hostname"`
	Username            string `json:"username"`
	Password            string `json:"password"`
	PollIntervalMinutes int    `json:"poll_interval_minutes"`
}

// Configured reports whether every setting needed to reach the access point
// is present. Missing values disable scheduling and pairing.
func (s *Settings) Configured() bool {
	if s == nil {
		return false
	}

	return strings.TrimSpace(s.Hostname) != "" &&
		s.Username != "" &&
		s.Password != "" &&
		s.PollIntervalMinutes > 0
}

// MissingFields lists the names of settings that are empty.
func (s *Settings) MissingFields() []string {
	var missing []string

	if s == nil {
		return []string{"hostname", "username", "password", "poll_interval_minutes"}
	}

	if strings.TrimSpace(s.Hostname) == "" {
		missing = append(missing, "hostname")
	}

	if s.Username == "" {
		missing = append(missing, "username")
	}

	if s.Password == "" {
		missing = append(missing, "password")
	}

	if s.PollIntervalMinutes <= 0 {
		missing = append(missing, "poll_interval_minutes")
	}

	return missing
}

// PollConfig derives the scheduler timing from the current settings.
func (s *Settings) PollConfig(deviceInterval time.Duration) PollConfig {
	pc := PollConfig{DeviceInterval: deviceInterval}

	if s != nil && s.PollIntervalMinutes > 0 {
		pc.IntervalMinutes = s.PollIntervalMinutes
	}

	return pc
}

// PollConfig holds the two poll cadences. A zero IntervalMinutes disables
// remote fetching and with it all scheduling.
type PollConfig struct {
	IntervalMinutes int
	DeviceInterval  time.Duration
}

// Enabled reports whether the remote fetch interval is usable.
func (p PollConfig) Enabled() bool {
	return p.IntervalMinutes > 0
}

// FetchInterval returns the remote fetch cadence.
func (p PollConfig) FetchInterval() time.Duration {
	return time.Duration(p.IntervalMinutes) * time.Minute
}

// NATSConfig configures NATS connectivity.
type NATSConfig struct {
	URL       string         `json:"url"`
	Domain    string         `json:"domain,omitempty"`
	CredsFile string         `json:"creds_file,omitempty"`
	TLS       *NATSTLSConfig `json:"tls,omitempty"`
}

// NATSTLSConfig enables mutual TLS towards the NATS server.
type NATSTLSConfig struct {
	CertFile   string `json:"cert_file"`
	KeyFile    string `json:"key_file"`
	CAFile     string `json:"ca_file"`
	ServerName string `json:"server_name,omitempty"`
}

// Validate ensures the NATS configuration is valid.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return errNATSURLRequired
	}

	return nil
}

// EventsConfig configures presence event publishing.
type EventsConfig struct {
	Enabled    bool     `json:"enabled"`
	StreamName string   `json:"stream_name"`
	Subjects   []string `json:"subjects"`
}

// Validate fills in the stream defaults.
func (c *EventsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.StreamName == "" {
		c.StreamName = "wifiradar-events"
	}

	if len(c.Subjects) == 0 {
		c.Subjects = []string{"wifiradar.presence.>", "wifiradar.device.>"}
	}

	return nil
}

// SettingsKVConfig points the settings store at a JetStream KV bucket.
type SettingsKVConfig struct {
	Enabled bool   `json:"enabled"`
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
}

// Validate fills in bucket and key defaults.
func (c *SettingsKVConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Bucket == "" {
		c.Bucket = "wifiradar"
	}

	if c.Key == "" {
		c.Key = "settings"
	}

	return nil
}

// CNPGDatabase describes the Postgres connection used for the event history.
type CNPGDatabase struct {
	Host               string            `json:"host"`
	Port               int               `json:"port"`
	Database           string            `json:"database"`
	Username           string            `json:"username"`
	Password           string            `json:"password,omitempty"`
	SSLMode            string            `json:"ssl_mode,omitempty"`
	ApplicationName    string            `json:"application_name,omitempty"`
	MaxConnections     int32             `json:"max_connections,omitempty"`
	MinConnections     int32             `json:"min_connections,omitempty"`
	MaxConnLifetime    Duration          `json:"max_conn_lifetime,omitempty"`
	HealthCheckPeriod  Duration          `json:"health_check_period,omitempty"`
	ExtraRuntimeParams map[string]string `json:"extra_runtime_params,omitempty"`
}

// Validate checks the required connection fields.
func (c *CNPGDatabase) Validate() error {
	if c.Host == "" {
		return errDatabaseHostMissing
	}

	if c.Database == "" {
		return errDatabaseNameMissing
	}

	return nil
}
