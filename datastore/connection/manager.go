// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package connection owns the single client to the document store.
package connection

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/sandeepjangra/valuation-app-sub000/datastore/metrics"
	"github.com/sandeepjangra/valuation-app-sub000/datastore/registry"
	"github.com/sandeepjangra/valuation-app-sub000/shared/logger"
	"github.com/sandeepjangra/valuation-app-sub000/store"
	"github.com/sandeepjangra/valuation-app-sub000/store/retry"
)

const (
	// DefaultPingTimeout bounds a liveness probe when Options.PingTimeout is zero.
	DefaultPingTimeout = 15 * time.Second
	// disconnectTimeout bounds closing the client.
	disconnectTimeout = 10 * time.Second
)

// Options configures a Manager.
type Options struct {
	URI         string
	Dial        store.DialOptions
	PingTimeout time.Duration
	Retry       retry.Config
	Logger      *logger.Logger
	Metrics     *metrics.Collectors
}

// Manager holds at most one live client. A reconnect replaces the client
// wholesale; the previous one is closed and every reset hook runs.
type Manager struct {
	dialer   store.Dialer
	opts     Options
	registry *registry.Registry
	logger   *logger.Logger
	metrics  *metrics.Collectors

	// connectMu serializes connection attempts.
	connectMu sync.Mutex

	mu        sync.RWMutex
	client    store.Client
	connected bool
	hooks     []func()
}

// New creates a disconnected manager. reg is resolved on every successful connect.
func New(dialer store.Dialer, reg *registry.Registry, opts Options) *Manager {
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = DefaultPingTimeout
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	l := opts.Logger
	if l == nil {
		l = logger.New("connection")
	}
	return &Manager{
		dialer:   dialer,
		opts:     opts,
		registry: reg,
		logger:   l,
		metrics:  opts.Metrics,
	}
}

// OnReset registers fn to run whenever the current client is dropped or replaced.
func (m *Manager) OnReset(fn func()) {
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}

// Registry returns the system database registry.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// Client returns the live client, or store.ErrNotConnected.
func (m *Manager) Client() (store.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected || m.client == nil {
		return nil, store.ErrNotConnected
	}
	return m.client, nil
}

// IsConnected reports whether a live client is held.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Connect dials and pings the store, retrying with exponential backoff. It
// returns false once every attempt has failed; each failure is logged. A
// client held from an earlier connect is replaced.
func (m *Manager) Connect(ctx context.Context) bool {
	return m.connect(ctx, false)
}

// EnsureConnection pings the current client and reconnects when the ping fails
// or no client is held. Safe to call before every operation.
func (m *Manager) EnsureConnection(ctx context.Context) bool {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client != nil {
		pingCtx, cancel := context.WithTimeout(ctx, m.opts.PingTimeout)
		err := client.Ping(pingCtx)
		cancel()
		if err == nil {
			return true
		}
		m.logger.ErrorWithErr(ctx, logger.WARN, "", "Liveness probe failed, reconnecting", err, nil)
		m.drop(ctx, client)
	}
	return m.connect(ctx, true)
}

func (m *Manager) connect(ctx context.Context, onlyIfDisconnected bool) bool {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if onlyIfDisconnected && m.IsConnected() {
		return true
	}

	target := redactURI(m.opts.URI)
	policy := m.opts.Retry
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		m.logger.ErrorWithErr(ctx, logger.WARN, "", "Connection attempt failed, retrying", err, map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": policy.MaxAttempts,
			"retry_in_ms":  wait.Milliseconds(),
			"uri":          target,
		})
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
	}

	var client store.Client
	start := time.Now()
	err := retry.Do(ctx, policy, func(int) error {
		c, err := m.dial(ctx)
		m.metrics.ConnectAttempt(err == nil)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		m.logger.ErrorWithErr(ctx, logger.ERROR, "", "Could not connect to document store", err, map[string]interface{}{
			"uri": target,
		})
		m.metrics.SetConnected(m.IsConnected())
		return false
	}

	m.registry.Resolve(client)

	m.mu.Lock()
	old := m.client
	m.client = client
	m.connected = true
	hooks := append([]func(){}, m.hooks...)
	m.mu.Unlock()

	m.metrics.SetConnected(true)
	m.logger.InfoWithDuration(ctx, "", "Connected to document store", time.Since(start), map[string]interface{}{
		"uri":       target,
		"databases": m.registry.PhysicalNames(),
	})

	if old != nil {
		for _, fn := range hooks {
			fn()
		}
		m.closeClient(ctx, old)
	}
	return true
}

// dial creates a client and verifies it with a bounded ping.
func (m *Manager) dial(ctx context.Context) (store.Client, error) {
	c, err := m.dialer.Dial(ctx, m.opts.URI, m.opts.Dial)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, m.opts.PingTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		m.closeClient(ctx, c)
		return nil, err
	}
	return c, nil
}

// drop releases client if it is still the current one.
func (m *Manager) drop(ctx context.Context, client store.Client) {
	m.mu.Lock()
	if m.client != client {
		m.mu.Unlock()
		return
	}
	m.client = nil
	m.connected = false
	hooks := append([]func(){}, m.hooks...)
	m.mu.Unlock()

	m.registry.Reset()
	m.metrics.SetConnected(false)
	for _, fn := range hooks {
		fn()
	}
	m.closeClient(ctx, client)
}

// Disconnect closes the client and clears every derived handle. Calling it
// again, or before any connect, is a no-op.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return
	}
	m.drop(ctx, client)
	m.logger.Info(ctx, "", "Disconnected from document store", nil)
}

func (m *Manager) closeClient(ctx context.Context, c store.Client) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()
	if err := c.Disconnect(closeCtx); err != nil {
		m.logger.ErrorWithErr(ctx, logger.WARN, "", "Error closing document store client", err, nil)
	}
}

// redactURI hides credentials in uri for logging.
func redactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
