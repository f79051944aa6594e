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

package kv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
)

// SettingsStore keeps the access point settings as one JSON document under a
// single key. It is the poller's settings source.
type SettingsStore struct {
	store  KVStore
	key    string
	logger logger.Logger
}

// NewSettingsStore wraps store. The key defaults to "settings".
func NewSettingsStore(store KVStore, key string, log logger.Logger) (*SettingsStore, error) {
	if store == nil {
		return nil, errStoreRequired
	}

	if key == "" {
		return nil, errKeyRequired
	}

	return &SettingsStore{store: store, key: key, logger: log}, nil
}

// Load returns the stored settings, or nil when none were saved yet.
func (s *SettingsStore) Load(ctx context.Context) (*models.Settings, error) {
	data, found, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return decodeSettings(data)
}

// Save stores settings. Watchers see the change.
func (s *SettingsStore) Save(ctx context.Context, settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	return s.store.Put(ctx, s.key, data)
}

// Watch delivers every later change. A deleted key is reported as empty
// settings, which disables polling. Undecodable values are skipped.
func (s *SettingsStore) Watch(ctx context.Context) (<-chan *models.Settings, error) {
	values, err := s.store.Watch(ctx, s.key)
	if err != nil {
		return nil, err
	}

	out := make(chan *models.Settings, 1)

	go func() {
		defer close(out)

		for {
			var (
				value []byte
				ok    bool
			)

			select {
			case <-ctx.Done():
				return
			case value, ok = <-values:
				if !ok {
					return
				}
			}

			settings := &models.Settings{}

			if value != nil {
				decoded, err := decodeSettings(value)
				if err != nil {
					s.logger.Warn().Err(err).Str("key", s.key).Msg("Ignoring invalid settings update")
					continue
				}

				settings = decoded
			}

			select {
			case out <- settings:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func decodeSettings(data []byte) (*models.Settings, error) {
	var settings models.Settings

	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	return &settings, nil
}
