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
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
)

var (
	errDeviceIDRequired    = errors.New("device id is required")
	errDuplicateDevice     = errors.New("duplicate device")
	errNegativeThreshold   = errors.New("rssi_change_threshold must not be negative")
	errNegativePollMinutes = errors.New("poll_interval_minutes must not be negative")
	errNATSRequired        = errors.New("nats config is required for events and settings_kv")
)

const (
	defaultDeviceInterval = 10 * time.Second
	defaultFetchTimeout   = 30 * time.Second
	defaultServiceName    = "wifiradar"
	defaultListenAddr     = ":8090"
	defaultSSHCommand     = "mca-dump"
	defaultSSHPort        = 22
)

// DeviceConfig is a device registered at startup.
type DeviceConfig struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// SSHConfig controls the remote command channel.
type SSHConfig struct {
	Port       int    `json:"port,omitempty"`
	Command    string `json:"command,omitempty"`
	KnownHosts string `json:"known_hosts,omitempty"`
}

// Config represents the presence service configuration.
type Config struct {
	ListenAddr          string                  `json:"listen_addr"`
	ServiceName         string                  `json:"service_name"`
	Settings            models.Settings         `json:"settings" hot:"reload"`
	DevicePollInterval  models.Duration         `json:"device_poll_interval"`
	FetchTimeout        models.Duration         `json:"fetch_timeout"`
	RSSIChangeThreshold int                     `json:"rssi_change_threshold"`
	Devices             []DeviceConfig          `json:"devices"`
	SSH                 SSHConfig               `json:"ssh"`
	NATS                *models.NATSConfig      `json:"nats,omitempty"`
	Events              models.EventsConfig     `json:"events"`
	SettingsKV          models.SettingsKVConfig `json:"settings_kv"`
	Database            *models.CNPGDatabase    `json:"database,omitempty"`
	Logging             *logger.Config          `json:"logging,omitempty"`
	Metrics             *logger.OTelConfig      `json:"metrics,omitempty"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if time.Duration(c.DevicePollInterval) <= 0 {
		c.DevicePollInterval = models.Duration(defaultDeviceInterval)
	}

	if time.Duration(c.FetchTimeout) <= 0 {
		c.FetchTimeout = models.Duration(defaultFetchTimeout)
	}

	if c.SSH.Port == 0 {
		c.SSH.Port = defaultSSHPort
	}

	if c.SSH.Command == "" {
		c.SSH.Command = defaultSSHCommand
	}

	if c.RSSIChangeThreshold < 0 {
		return errNegativeThreshold
	}

	if c.Settings.PollIntervalMinutes < 0 {
		return errNegativePollMinutes
	}

	seen := make(map[string]struct{}, len(c.Devices))

	for i, device := range c.Devices {
		if device.ID == "" {
			return fmt.Errorf("devices[%d]: %w", i, errDeviceIDRequired)
		}

		if _, ok := seen[device.ID]; ok {
			return fmt.Errorf("%w: %s", errDuplicateDevice, device.ID)
		}

		seen[device.ID] = struct{}{}
	}

	if c.NATS != nil {
		if err := c.NATS.Validate(); err != nil {
			return err
		}
	} else if c.Events.Enabled || c.SettingsKV.Enabled {
		return errNATSRequired
	}

	if err := c.Events.Validate(); err != nil {
		return err
	}

	if err := c.SettingsKV.Validate(); err != nil {
		return err
	}

	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}

	return nil
}
