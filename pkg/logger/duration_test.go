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

package logger

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Duration
		wantErr  bool
	}{
		{name: "string duration", input: `"5s"`, expected: Duration(5 * time.Second)},
		{name: "nanoseconds", input: `5000000000`, expected: Duration(5 * time.Second)},
		{name: "compound string", input: `"1m30s"`, expected: Duration(90 * time.Second)},
		{name: "invalid string", input: `"soon"`, wantErr: true},
		{name: "invalid type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %s", tt.input)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if d != tt.expected {
				t.Errorf("expected %v, got %v", time.Duration(tt.expected), time.Duration(d))
			}
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(Duration(2 * time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(out) != `"2s"` {
		t.Errorf("expected \"2s\", got %s", out)
	}
}

func TestConfig_JSONUnmarshaling(t *testing.T) {
	configJSON := `{
		"level": "warn",
		"output": "stderr",
		"otel": {
			"enabled": true,
			"endpoint": "collector:4317",
			"service_name": "wifiradar-test",
			"batch_timeout": "10s",
			"insecure": true,
			"headers": {"x-api-key": "test-key"}
		}
	}`

	var config Config
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		t.Fatalf("failed to unmarshal config: %v", err)
	}

	if config.Level != "warn" || config.Output != "stderr" {
		t.Errorf("unexpected level/output: %q/%q", config.Level, config.Output)
	}

	if !config.OTel.Enabled || !config.OTel.Insecure {
		t.Error("expected otel enabled and insecure")
	}

	if config.OTel.Endpoint != "collector:4317" {
		t.Errorf("expected endpoint collector:4317, got %s", config.OTel.Endpoint)
	}

	if config.OTel.BatchTimeout != Duration(10*time.Second) {
		t.Errorf("expected batch_timeout 10s, got %v", time.Duration(config.OTel.BatchTimeout))
	}

	if config.OTel.Headers["x-api-key"] != "test-key" {
		t.Errorf("expected x-api-key header, got %v", config.OTel.Headers)
	}
}
