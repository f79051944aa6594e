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

package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed covers rejected credentials and host key mismatches.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrNetwork covers dial and transport failures.
	ErrNetwork = errors.New("network error")
	// ErrRemoteCommand covers a command that ran but failed on the access point.
	ErrRemoteCommand = errors.New("remote command failed")
	// ErrTimeout covers fetches that exceeded their deadline.
	ErrTimeout = errors.New("fetch timed out")

	errHostnameRequired = errors.New("hostname is required")
	errUsernameRequired = errors.New("username is required")
)

// FetchError is returned by every failed fetch. Kind is one of the sentinel
// errors above and can be matched with errors.Is.
type FetchError struct {
	Kind error
	Host string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch from %s: %v", e.Host, e.Kind)
	}

	return fmt.Sprintf("fetch from %s: %v: %v", e.Host, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}
