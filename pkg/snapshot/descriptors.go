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

package snapshot

import (
	"sort"

	"github.com/carverauto/wifiradar/pkg/models"
	"github.com/carverauto/wifiradar/pkg/presence"
)

// Descriptors lists the clients of a snapshot as pairing descriptors, one per
// identifier, sorted by identifier.
func Descriptors(s *models.Snapshot) []models.DeviceDescriptor {
	clients := presence.IndexClients(s)
	descriptors := make([]models.DeviceDescriptor, 0, len(clients))

	for _, client := range clients {
		descriptors = append(descriptors, models.DeviceDescriptor{
			Name: client.Name,
			Data: models.DescriptorData{ID: client.ID},
			Meta: models.DescriptorMeta{
				RawSignal:     client.RawSignal,
				SignalQuality: presence.SignalQuality(client.RawSignal),
				RSSI:          presence.RSSI(client.RawSignal),
			},
		})
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Data.ID < descriptors[j].Data.ID
	})

	return descriptors
}
