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

// Package fetcher retrieves the access point status document over SSH.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/carverauto/wifiradar/pkg/logger"
	"github.com/carverauto/wifiradar/pkg/models"
)

const (
	defaultPort    = 22
	defaultCommand = "mca-dump"
	defaultTimeout = 30 * time.Second
	maxStderrLog   = 256
)

// Config controls how the access point is reached.
type Config struct {
	Port           int
	Command        string
	KnownHostsFile string
	Timeout        time.Duration
}

// SSHFetcher runs the status command on the access point and returns its
// standard output.
type SSHFetcher struct {
	config          Config
	hostKeyCallback ssh.HostKeyCallback
	dialer          *net.Dialer
	logger          logger.Logger
}

// NewSSHFetcher creates a fetcher. Without a known_hosts file any host key is
// accepted, which matches how access points ship with self-generated keys.
func NewSSHFetcher(config Config, log logger.Logger) (*SSHFetcher, error) {
	if config.Port == 0 {
		config.Port = defaultPort
	}

	if config.Command == "" {
		config.Command = defaultCommand
	}

	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	callback := ssh.InsecureIgnoreHostKey() //nolint:gosec // access points ship with self-generated host keys

	if config.KnownHostsFile != "" {
		cb, err := knownhosts.New(config.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts %s: %w", config.KnownHostsFile, err)
		}

		callback = cb
	}

	return &SSHFetcher{
		config:          config,
		hostKeyCallback: callback,
		dialer:          &net.Dialer{},
		logger:          log,
	}, nil
}

// Fetch connects with the given settings, runs the status command and
// returns its output. All failures are returned as *FetchError.
func (f *SSHFetcher) Fetch(ctx context.Context, settings models.Settings) ([]byte, error) {
	host := strings.TrimSpace(settings.Hostname)
	addr := f.address(host)

	if host == "" {
		return nil, &FetchError{Kind: ErrNetwork, Host: addr, Err: errHostnameRequired}
	}

	if settings.Username == "" {
		return nil, &FetchError{Kind: ErrAuthFailed, Host: addr, Err: errUsernameRequired}
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	start := time.Now()

	out, err := f.run(ctx, addr, settings)
	if err != nil {
		return nil, f.classify(ctx, addr, err)
	}

	f.logger.Debug().
		Str("host", addr).
		Int("bytes", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Fetched access point status")

	return out, nil
}

func (f *SSHFetcher) address(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}

	return net.JoinHostPort(host, strconv.Itoa(f.config.Port))
}

func (f *SSHFetcher) run(ctx context.Context, addr string, settings models.Settings) ([]byte, error) {
	conn, err := f.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	// closing the connection unblocks the handshake and the session
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	clientConfig := &ssh.ClientConfig{
		User: settings.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(settings.Password),
			ssh.KeyboardInteractive(passwordChallenge(settings.Password)),
		},
		HostKeyCallback: f.hostKeyCallback,
		Timeout:         f.config.Timeout,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		return nil, err
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer

	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Run(f.config.Command); err != nil {
		var exitErr *ssh.ExitError

		var missingErr *ssh.ExitMissingError

		if errors.As(err, &exitErr) || errors.As(err, &missingErr) {
			return nil, &remoteError{err: err, stderr: truncate(stderr.String(), maxStderrLog)}
		}

		return nil, err
	}

	if stderr.Len() > 0 {
		f.logger.Debug().
			Str("host", addr).
			Str("stderr", truncate(stderr.String(), maxStderrLog)).
			Msg("Status command wrote to stderr")
	}

	return stdout.Bytes(), nil
}

func (f *SSHFetcher) classify(ctx context.Context, addr string, err error) error {
	var remote *remoteError

	var keyErr *knownhosts.KeyError

	var netErr net.Error

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &FetchError{Kind: ErrTimeout, Host: addr, Err: err}
	case ctx.Err() != nil:
		return &FetchError{Kind: ErrNetwork, Host: addr, Err: ctx.Err()}
	case errors.As(err, &remote):
		return &FetchError{Kind: ErrRemoteCommand, Host: addr, Err: remote}
	case errors.As(err, &keyErr):
		return &FetchError{Kind: ErrAuthFailed, Host: addr, Err: err}
	case strings.Contains(err.Error(), "unable to authenticate"):
		return &FetchError{Kind: ErrAuthFailed, Host: addr, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &FetchError{Kind: ErrTimeout, Host: addr, Err: err}
	default:
		return &FetchError{Kind: ErrNetwork, Host: addr, Err: err}
	}
}

// remoteError wraps a failure reported by the remote session.
type remoteError struct {
	err    error
	stderr string
}

func (e *remoteError) Error() string {
	if e.stderr == "" {
		return e.err.Error()
	}

	return fmt.Sprintf("%v: %s", e.err, e.stderr)
}

func (e *remoteError) Unwrap() error {
	return e.err
}

func passwordChallenge(password string) ssh.KeyboardInteractiveChallenge {
	return func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}

		return answers, nil
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
