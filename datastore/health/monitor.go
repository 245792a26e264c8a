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

// Package health reports liveness of every system database.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/sandeepjangra/valuation-app-sub000/datastore/metrics"
	"github.com/sandeepjangra/valuation-app-sub000/datastore/registry"
	"github.com/sandeepjangra/valuation-app-sub000/shared/logger"
)

// Status is the overall health state.
type Status string

const (
	// StatusHealthy means every system database answered its probes.
	StatusHealthy Status = "healthy"
	// StatusPartial means at least one system database failed a probe.
	StatusPartial Status = "partial"
	// StatusDisconnected means no client is held; nothing was probed.
	StatusDisconnected Status = "disconnected"
)

// DatabaseStatus is the probe result for one system database.
type DatabaseStatus struct {
	Name        registry.SystemDatabase `json:"name"`
	Database    string                  `json:"database"`
	Healthy     bool                    `json:"healthy"`
	Latency     time.Duration           `json:"latency"`
	Collections []string                `json:"collections,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

// Report aggregates one health check.
type Report struct {
	Status    Status           `json:"status"`
	Databases []DatabaseStatus `json:"databases"`
	CheckedAt time.Time        `json:"checked_at"`
}

// Healthy reports whether every database passed.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Source is the connection state a Monitor probes.
type Source interface {
	IsConnected() bool
	Registry() *registry.Registry
}

// Options configures a Monitor.
type Options struct {
	// ProbeTimeout bounds the probes of one database. Zero means 5s.
	ProbeTimeout time.Duration
	Logger       *logger.Logger
	Metrics      *metrics.Collectors
}

// Monitor runs health checks and keeps the most recent report.
type Monitor struct {
	source  Source
	timeout time.Duration
	logger  *logger.Logger
	metrics *metrics.Collectors

	mu   sync.RWMutex
	last *Report
}

// New creates a Monitor.
func New(source Source, opts Options) *Monitor {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	l := opts.Logger
	if l == nil {
		l = logger.New("health")
	}
	return &Monitor{
		source:  source,
		timeout: opts.ProbeTimeout,
		logger:  l,
		metrics: opts.Metrics,
	}
}

// HealthCheck pings every system database and lists its collections.
func (m *Monitor) HealthCheck(ctx context.Context) Report {
	report := Report{CheckedAt: time.Now().UTC()}
	reg := m.source.Registry()

	if !m.source.IsConnected() {
		report.Status = StatusDisconnected
		for _, name := range reg.Names() {
			if physical, ok := reg.PhysicalName(name); ok {
				m.metrics.SetDatabaseUp(physical, false)
			}
		}
		m.store(report)
		return report
	}

	report.Status = StatusHealthy
	for _, name := range reg.Names() {
		status := m.probe(ctx, reg, name)
		m.metrics.SetDatabaseUp(status.Database, status.Healthy)
		if !status.Healthy {
			report.Status = StatusPartial
			m.logger.Warn(ctx, "", "Health probe failed", map[string]interface{}{
				"database": status.Database,
				"error":    status.Error,
			})
		}
		report.Databases = append(report.Databases, status)
	}

	m.store(report)
	return report
}

func (m *Monitor) probe(ctx context.Context, reg *registry.Registry, name registry.SystemDatabase) DatabaseStatus {
	physical, _ := reg.PhysicalName(name)
	status := DatabaseStatus{Name: name, Database: physical}

	db, err := reg.GetDatabase(name)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	if err := db.Ping(probeCtx); err != nil {
		status.Latency = time.Since(start)
		status.Error = err.Error()
		return status
	}
	collections, err := db.ListCollectionNames(probeCtx)
	status.Latency = time.Since(start)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Collections = collections
	status.Healthy = true
	return status
}

func (m *Monitor) store(r Report) {
	m.mu.Lock()
	m.last = &r
	m.mu.Unlock()
}

// Last returns the most recent report, or false before the first check.
func (m *Monitor) Last() (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Report{}, false
	}
	return *m.last, true
}

// Start runs HealthCheck every interval until ctx is done.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	m.logger.Info(ctx, "", "Starting periodic health check", map[string]interface{}{
		"interval": interval.String(),
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				m.logger.Info(context.Background(), "", "Stopping periodic health check", nil)
				return
			case <-ticker.C:
				report := m.HealthCheck(ctx)
				if !report.Healthy() {
					m.logger.Warn(ctx, "", "Document store not healthy", map[string]interface{}{
						"status": string(report.Status),
					})
				}
			}
		}
	}()
}
