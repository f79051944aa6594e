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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/wifiradar/pkg/models"
)

func TestConfig_ValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "wifiradar", cfg.ServiceName)
	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.DevicePollInterval))
	assert.Equal(t, 30*time.Second, time.Duration(cfg.FetchTimeout))
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, "mca-dump", cfg.SSH.Command)
	assert.Zero(t, cfg.RSSIChangeThreshold)
}

func TestConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name:    "negative threshold",
			cfg:     Config{RSSIChangeThreshold: -2},
			wantErr: errNegativeThreshold,
		},
		{
			name:    "negative poll interval",
			cfg:     Config{Settings: models.Settings{PollIntervalMinutes: -1}},
			wantErr: errNegativePollMinutes,
		},
		{
			name:    "empty device id",
			cfg:     Config{Devices: []DeviceConfig{{Name: "phone"}}},
			wantErr: errDeviceIDRequired,
		},
		{
			name:    "duplicate device",
			cfg:     Config{Devices: []DeviceConfig{{ID: "aa"}, {ID: "aa"}}},
			wantErr: errDuplicateDevice,
		},
		{
			name:    "events without nats",
			cfg:     Config{Events: models.EventsConfig{Enabled: true}},
			wantErr: errNATSRequired,
		},
		{
			name:    "settings kv without nats",
			cfg:     Config{SettingsKV: models.SettingsKVConfig{Enabled: true}},
			wantErr: errNATSRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_ValidateNestedDefaults(t *testing.T) {
	cfg := &Config{
		NATS:       &models.NATSConfig{URL: "nats://localhost:4222"},
		Events:     models.EventsConfig{Enabled: true},
		SettingsKV: models.SettingsKVConfig{Enabled: true},
	}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, "wifiradar-events", cfg.Events.StreamName)
	assert.Equal(t, []string{"wifiradar.presence.>", "wifiradar.device.>"}, cfg.Events.Subjects)
	assert.Equal(t, "wifiradar", cfg.SettingsKV.Bucket)
	assert.Equal(t, "settings", cfg.SettingsKV.Key)

	cfg.Database = &models.CNPGDatabase{Host: "db"}
	require.Error(t, cfg.Validate())
}
