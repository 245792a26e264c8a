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

// Package datastore wires the connection, system database registry, tenant
// cache, versioned CRUD service and health monitor into one Manager that is
// built once at process start and handed to request handlers.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	blobs3 "github.com/sandeepjangra/valuation-app-sub000/blob/s3"
	"github.com/sandeepjangra/valuation-app-sub000/datastore/connection"
	"github.com/sandeepjangra/valuation-app-sub000/datastore/crud"
	"github.com/sandeepjangra/valuation-app-sub000/datastore/health"
	"github.com/sandeepjangra/valuation-app-sub000/datastore/metrics"
	"github.com/sandeepjangra/valuation-app-sub000/datastore/registry"
	"github.com/sandeepjangra/valuation-app-sub000/datastore/tenant"
	"github.com/sandeepjangra/valuation-app-sub000/shared/logger"
	"github.com/sandeepjangra/valuation-app-sub000/store"
	"github.com/sandeepjangra/valuation-app-sub000/store/config"
)

// Option configures a Manager.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	logger     *logger.Logger
	blob       *blobs3.Store
}

// WithRegisterer registers the data-layer collectors on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithLogger sets the manager's logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBlobStore attaches an attachment store.
func WithBlobStore(b *blobs3.Store) Option {
	return func(o *options) { o.blob = b }
}

// Manager is the data-layer context object.
type Manager struct {
	cfg     *config.Config
	logger  *logger.Logger
	metrics *metrics.Collectors

	conn    *connection.Manager
	tenants *tenant.Cache
	crud    *crud.Service
	health  *health.Monitor
	blob    *blobs3.Store

	// bootstrapped records tenants whose required collections were ensured.
	bootstrapped sync.Map

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New builds a disconnected Manager from cfg. Call Start to connect.
func New(cfg *config.Config, dialer store.Dialer, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("datastore: nil config")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.New("datastore")
	}

	m := metrics.New(o.registerer)

	reg := registry.New(
		map[registry.SystemDatabase]string{
			registry.Admin:  cfg.Databases.Admin,
			registry.Shared: cfg.Databases.Shared,
		},
		map[registry.SystemDatabase]string{
			registry.LegacyMain:    cfg.Databases.LegacyMain,
			registry.LegacyReports: cfg.Databases.LegacyReports,
		},
	)

	conn := connection.New(dialer, reg, connection.Options{
		URI: cfg.MongoDB.URI,
		Dial: store.DialOptions{
			AppName:        cfg.MongoDB.AppName,
			ConnectTimeout: cfg.MongoDB.ConnectTimeout,
			MaxPoolSize:    cfg.MongoDB.MaxPoolSize,
		},
		PingTimeout: cfg.MongoDB.PingTimeout,
		Retry:       cfg.Retry.Policy(),
		Metrics:     m,
	})

	tenants, err := tenant.New(conn, tenant.Options{
		MaxSize:  cfg.Tenants.CacheSize,
		Reserved: reg.PhysicalNames(),
		Metrics:  m,
	})
	if err != nil {
		return nil, err
	}
	conn.OnReset(tenants.Purge)

	return &Manager{
		cfg:     cfg,
		logger:  o.logger,
		metrics: m,
		conn:    conn,
		tenants: tenants,
		crud:    crud.New(crud.WithMetrics(m)),
		health:  health.New(conn, health.Options{ProbeTimeout: cfg.MongoDB.PingTimeout, Metrics: m}),
		blob:    o.blob,
	}, nil
}

// Start connects to the store and, when configured, starts periodic health
// checks that run until Close.
func (m *Manager) Start(ctx context.Context) error {
	if !m.conn.Connect(ctx) {
		return fmt.Errorf("datastore: could not connect after %d attempts: %w", m.cfg.Retry.MaxAttempts, store.ErrNotConnected)
	}

	if m.cfg.Health.Interval > 0 {
		m.mu.Lock()
		if m.cancel == nil {
			var bg context.Context
			bg, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
			m.health.Start(bg, m.cfg.Health.Interval)
		}
		m.mu.Unlock()
	}
	return nil
}

// Close stops background work and disconnects. It is safe to call more than once.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()
	m.conn.Disconnect(ctx)
}

// System returns a system database handle, reconnecting once if the client was lost.
func (m *Manager) System(ctx context.Context, name registry.SystemDatabase) (store.Database, error) {
	db, err := m.conn.Registry().GetDatabase(name)
	if errors.Is(err, store.ErrNotConnected) && m.conn.EnsureConnection(ctx) {
		db, err = m.conn.Registry().GetDatabase(name)
	}
	return db, err
}

// Tenant returns the tenant's database handle, reconnecting once if the client
// was lost. The first resolution of a tenant in this process also creates its
// required collections.
func (m *Manager) Tenant(ctx context.Context, tenantID string) (store.Database, error) {
	id, err := m.tenants.Resolve(tenantID)
	if err != nil {
		return nil, err
	}

	db, err := m.tenants.GetOrCreate(ctx, string(id))
	if errors.Is(err, store.ErrNotConnected) && m.conn.EnsureConnection(ctx) {
		db, err = m.tenants.GetOrCreate(ctx, string(id))
	}
	if err != nil {
		return nil, err
	}

	if _, done := m.bootstrapped.LoadOrStore(id, struct{}{}); !done {
		if err := m.tenants.EnsureStructure(ctx, string(id), m.cfg.Tenants.RequiredCollections...); err != nil {
			m.bootstrapped.Delete(id)
			m.logger.ErrorWithErr(ctx, logger.WARN, string(id), "Tenant bootstrap incomplete", err, nil)
		}
	}
	return db, nil
}

// EnsureTenant creates the tenant's required collections and reports any failure.
func (m *Manager) EnsureTenant(ctx context.Context, tenantID string) error {
	if _, err := m.Tenant(ctx, tenantID); err != nil {
		return err
	}
	if err := m.tenants.EnsureStructure(ctx, tenantID, m.cfg.Tenants.RequiredCollections...); err != nil {
		return err
	}
	id, _ := m.tenants.Resolve(tenantID)
	m.bootstrapped.Store(id, struct{}{})
	return nil
}

// Config returns the configuration the manager was built from.
func (m *Manager) Config() *config.Config { return m.cfg }

// CRUD returns the versioned CRUD service.
func (m *Manager) CRUD() *crud.Service { return m.crud }

// Health returns the health monitor.
func (m *Manager) Health() *health.Monitor { return m.health }

// Tenants returns the tenant handle cache.
func (m *Manager) Tenants() *tenant.Cache { return m.tenants }

// Connection returns the connection manager.
func (m *Manager) Connection() *connection.Manager { return m.conn }

// Metrics returns the data-layer collectors.
func (m *Manager) Metrics() *metrics.Collectors { return m.metrics }

// Blob returns the attachment store, or nil when none is configured.
func (m *Manager) Blob() *blobs3.Store { return m.blob }
