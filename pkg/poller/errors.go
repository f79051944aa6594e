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

import "errors"

var (
	// ErrNotConfigured is returned by operations that need the access point
	// settings while any of them is missing.
	ErrNotConfigured = errors.New("access point settings are not configured")
	// ErrStopped is returned once the poller has been stopped.
	ErrStopped = errors.New("poller stopped")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("poller already started")

	errFetcherRequired = errors.New("fetcher is required")
	errSinkRequired    = errors.New("sink is required")
)
