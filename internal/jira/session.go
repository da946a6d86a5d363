// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jira

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// sessionManager owns the one pooled HTTP client used for all requests.
// The client is created lazily on first use, recreated after Close, and
// shared by all concurrent callers. The creation lock is held only for
// construction, never across a network call.
type sessionManager struct {
	mu       sync.Mutex
	client   *http.Client
	poolSize int

	// created counts constructions, so tests can assert that concurrent
	// first use produces exactly one client.
	created int
}

func newSessionManager(poolSize int) *sessionManager {
	return &sessionManager{poolSize: poolSize}
}

// acquire returns the live pooled client, creating one if none exists or
// the previous one was closed. Concurrent first callers observe and
// reuse a single client.
func (s *sessionManager) acquire() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		s.client = newPooledClient(s.poolSize)
		s.created++
	}
	return s.client
}

// close releases the pooled connections and clears the client. A
// subsequent acquire creates a fresh client, so the manager is reusable
// rather than single-shot. Safe to call repeatedly.
func (s *sessionManager) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.CloseIdleConnections()
		s.client = nil
	}
}

// creations reports how many underlying clients have been constructed.
func (s *sessionManager) creations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// newPooledClient builds an HTTP client with connection pooling and TLS
// 1.2 minimum. No Timeout is set on the client itself: the executor
// applies the per-attempt timeout through the request context.
func newPooledClient(poolSize int) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},

			MaxIdleConns:        poolSize,
			MaxIdleConnsPerHost: poolSize,
			IdleConnTimeout:     90 * time.Second,

			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
