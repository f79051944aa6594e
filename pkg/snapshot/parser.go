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

// Package snapshot decodes the access point status document printed by
// mca-dump into the authorized client view used for reconciliation.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/wifiradar/pkg/models"
)

var (
	errEmptyPayload    = errors.New("empty payload")
	errMissingVAPTable = errors.New("missing vap_table")
	errMissingSTATable = errors.New("missing sta_table")
	errNullEntry       = errors.New("null entry")
)

// ParseError reports a payload that could not be decoded. Callers treat it as
// "no data this cycle".
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("snapshot parse failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type statusDocument struct {
	VAPTable *[]*vapEntry `json:"vap_table"`
}

type vapEntry struct {
	ESSID    string       `json:"essid"`
	Radio    string       `json:"radio"`
	STATable *[]*staEntry `json:"sta_table"`
}

type staEntry struct {
	MAC        string   `json:"mac"`
	Authorized bool     `json:"authorized"`
	Hostname   *string  `json:"hostname"`
	RSSI       *float64 `json:"rssi"`
}

// Parse decodes a raw status document. Only authorized stations with a MAC
// address are kept; a station without a hostname is named after its MAC.
func Parse(raw []byte) (*models.Snapshot, error) {
	return ParseAt(raw, time.Time{})
}

// ParseAt is Parse with the fetch time recorded on the snapshot.
func ParseAt(raw []byte, fetchedAt time.Time) (*models.Snapshot, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ParseError{Err: errEmptyPayload}
	}

	var doc statusDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	if doc.VAPTable == nil {
		return nil, &ParseError{Err: errMissingVAPTable}
	}

	snapshot := &models.Snapshot{
		Groups:    make([]models.RadioGroup, 0, len(*doc.VAPTable)),
		FetchedAt: fetchedAt,
	}

	for i, vap := range *doc.VAPTable {
		if vap == nil {
			return nil, &ParseError{Err: fmt.Errorf("vap_table[%d]: %w", i, errNullEntry)}
		}

		if vap.STATable == nil {
			return nil, &ParseError{Err: fmt.Errorf("vap_table[%d]: %w", i, errMissingSTATable)}
		}

		group := models.RadioGroup{
			ESSID:   vap.ESSID,
			Radio:   vap.Radio,
			Clients: make([]models.ClientRecord, 0, len(*vap.STATable)),
		}

		for _, sta := range *vap.STATable {
			if record, ok := toRecord(sta); ok {
				group.Clients = append(group.Clients, record)
			}
		}

		snapshot.Groups = append(snapshot.Groups, group)
	}

	return snapshot, nil
}

func toRecord(sta *staEntry) (models.ClientRecord, bool) {
	if sta == nil || !sta.Authorized || sta.MAC == "" {
		return models.ClientRecord{}, false
	}

	record := models.ClientRecord{ID: sta.MAC, Name: sta.MAC}

	if sta.Hostname != nil && *sta.Hostname != "" {
		record.Name = *sta.Hostname
	}

	if sta.RSSI != nil {
		record.RawSignal = *sta.RSSI
	}

	return record, true
}
