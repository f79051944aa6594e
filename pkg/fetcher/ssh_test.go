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
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
)

const testDump = `{"vap_table":[{"sta_table":[{"mac":"AA:BB","authorized":true,"rssi":30}]}]}`

type commandResult struct {
	stdout string
	stderr string
	status uint32
}

// testServer is a minimal SSH server that answers exec requests.
type testServer struct {
	listener net.Listener
	hostKey  ssh.Signer
	commands map[string]commandResult

	mu       sync.Mutex
	executed []string
}

func newTestServer(t *testing.T, password string, commands map[string]commandResult) *testServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &testServer{listener: listener, hostKey: signer, commands: commands}

	config := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == password {
				return &ssh.Permissions{}, nil
			}

			return nil, errors.New("access denied")
		},
	}
	config.AddHostKey(signer)

	go srv.serve(config)

	t.Cleanup(func() { _ = listener.Close() })

	return srv
}

func (s *testServer) addr() string {
	return s.listener.Addr().String()
}

func (s *testServer) settings(password string) models.Settings {
	return models.Settings{Hostname: s.addr(), Username: "admin", Password: password, PollIntervalMinutes: 1}
}

func (s *testServer) serve(config *ssh.ServerConfig) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		go s.handle(conn, config)
	}
}

func (s *testServer) handle(conn net.Conn, config *ssh.ServerConfig) {
	defer func() { _ = conn.Close() }()

	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			return
		}

		go s.session(channel, requests)
	}
}

func (s *testServer) session(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer func() { _ = channel.Close() }()

	for req := range requests {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}

		command := parseExec(req.Payload)

		s.mu.Lock()
		s.executed = append(s.executed, command)
		s.mu.Unlock()

		_ = req.Reply(true, nil)

		result, ok := s.commands[command]
		if !ok {
			result = commandResult{stderr: "sh: " + command + ": not found", status: 127}
		}

		_, _ = channel.Write([]byte(result.stdout))
		_, _ = channel.Stderr().Write([]byte(result.stderr))

		status := make([]byte, 4)
		binary.BigEndian.PutUint32(status, result.status)

		_, _ = channel.SendRequest("exit-status", false, status)

		return
	}
}

func parseExec(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}

	n := binary.BigEndian.Uint32(payload[:4])
	if int(n) > len(payload)-4 {
		return ""
	}

	return string(payload[4 : 4+n])
}

func TestSSHFetcher_Fetch(t *testing.T) {
	srv := newTestServer(t, "secret", map[string]commandResult{
		"mca-dump": {stdout: testDump},
	})

	f, err := NewSSHFetcher(Config{Timeout: 5 * time.Second}, logger.NewTestLogger())
	require.NoError(t, err)

	out, err := f.Fetch(context.Background(), srv.settings("secret"))
	require.NoError(t, err)
	assert.JSONEq(t, testDump, string(out))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"mca-dump"}, srv.executed)
}

func TestSSHFetcher_CustomCommand(t *testing.T) {
	srv := newTestServer(t, "secret", map[string]commandResult{
		"mca-dump | gzip -d": {stdout: testDump},
	})

	f, err := NewSSHFetcher(Config{Command: "mca-dump | gzip -d", Timeout: 5 * time.Second}, logger.NewTestLogger())
	require.NoError(t, err)

	out, err := f.Fetch(context.Background(), srv.settings("secret"))
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestSSHFetcher_AuthFailure(t *testing.T) {
	srv := newTestServer(t, "secret", nil)

	f, err := NewSSHFetcher(Config{Timeout: 5 * time.Second}, logger.NewTestLogger())
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.settings("wrong"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, srv.addr(), fetchErr.Host)
}

func TestSSHFetcher_RemoteCommandFailure(t *testing.T) {
	srv := newTestServer(t, "secret", map[string]commandResult{
		"mca-dump": {stderr: "mca-dump: not ready", status: 1},
	})

	f, err := NewSSHFetcher(Config{Timeout: 5 * time.Second}, logger.NewTestLogger())
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.settings("secret"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteCommand)
	assert.Contains(t, err.Error(), "mca-dump: not ready")
}

func TestSSHFetcher_NetworkFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	f, err := NewSSHFetcher(Config{Timeout: 5 * time.Second}, logger.NewTestLogger())
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), models.Settings{Hostname: addr, Username: "admin", Password: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestSSHFetcher_Timeout(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)

	t.Cleanup(func() {
		_ = listener.Close()

		mu.Lock()
		defer mu.Unlock()

		for _, c := range conns {
			_ = c.Close()
		}
	})

	// accept but never speak SSH
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	f, err := NewSSHFetcher(Config{Timeout: 200 * time.Millisecond}, logger.NewTestLogger())
	require.NoError(t, err)

	start := time.Now()

	_, err = f.Fetch(context.Background(), models.Settings{
		Hostname: listener.Addr().String(), Username: "admin", Password: "x",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSSHFetcher_KnownHosts(t *testing.T) {
	srv := newTestServer(t, "secret", map[string]commandResult{
		"mca-dump": {stdout: testDump},
	})

	dir := t.TempDir()

	t.Run("matching key", func(t *testing.T) {
		path := filepath.Join(dir, "known_hosts_ok")
		line := knownhosts.Line([]string{srv.addr()}, srv.hostKey.PublicKey())
		require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))

		f, err := NewSSHFetcher(Config{KnownHostsFile: path, Timeout: 5 * time.Second}, logger.NewTestLogger())
		require.NoError(t, err)

		_, err = f.Fetch(context.Background(), srv.settings("secret"))
		require.NoError(t, err)
	})

	t.Run("mismatched key", func(t *testing.T) {
		_, other, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		otherSigner, err := ssh.NewSignerFromKey(other)
		require.NoError(t, err)

		path := filepath.Join(dir, "known_hosts_bad")
		line := knownhosts.Line([]string{srv.addr()}, otherSigner.PublicKey())
		require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))

		f, err := NewSSHFetcher(Config{KnownHostsFile: path, Timeout: 5 * time.Second}, logger.NewTestLogger())
		require.NoError(t, err)

		_, err = f.Fetch(context.Background(), srv.settings("secret"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuthFailed)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewSSHFetcher(Config{KnownHostsFile: filepath.Join(dir, "absent")}, logger.NewTestLogger())
		require.Error(t, err)
	})
}

func TestSSHFetcher_MissingSettings(t *testing.T) {
	f, err := NewSSHFetcher(Config{}, logger.NewTestLogger())
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), models.Settings{Username: "admin"})
	require.ErrorIs(t, err, ErrNetwork)

	_, err = f.Fetch(context.Background(), models.Settings{Hostname: "ap.local"})
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestAddress(t *testing.T) {
	f, err := NewSSHFetcher(Config{Port: 2222}, logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, "ap.local:2222", f.address("ap.local"))
	assert.Equal(t, "ap.local:22", f.address("ap.local:22"))
	assert.Equal(t, "[fe80::1]:2222", f.address("fe80::1"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("  abc\n", 5))
	assert.True(t, strings.HasSuffix(truncate(strings.Repeat("x", 10), 4), "..."))
}
