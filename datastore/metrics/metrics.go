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

// Package metrics holds the Prometheus collectors of the data layer.
//
// Every method is safe on a nil *Collectors, so components can be built
// without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation results.
const (
	ResultOK           = "ok"
	ResultNotFound     = "not_found"
	ResultConflict     = "conflict"
	ResultNotConnected = "not_connected"
	ResultError        = "error"
)

// Collectors groups the data-layer metrics.
type Collectors struct {
	ConnectAttempts   *prometheus.CounterVec
	Connected         prometheus.Gauge
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	CacheEvictions    prometheus.Counter
	CacheEntries      prometheus.Gauge
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	DatabaseUp        *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		ConnectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportstore_connect_attempts_total",
				Help: "Total number of document-store connection attempts",
			},
			[]string{"result"},
		),
		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "reportstore_connected",
				Help: "1 while a live document-store connection is held",
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reportstore_tenant_cache_hits_total",
				Help: "Tenant database handle lookups served from cache",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reportstore_tenant_cache_misses_total",
				Help: "Tenant database handle lookups that derived a new handle",
			},
		),
		CacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reportstore_tenant_cache_evictions_total",
				Help: "Tenant database handles evicted by the cache bound",
			},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "reportstore_tenant_cache_entries",
				Help: "Tenant database handles currently cached",
			},
		),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportstore_operations_total",
				Help: "Total number of CRUD operations",
			},
			[]string{"operation", "result"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reportstore_operation_duration_milliseconds",
				Help:    "CRUD operation duration in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
			},
			[]string{"operation"},
		),
		DatabaseUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reportstore_database_up",
				Help: "1 if the last health check of a system database succeeded",
			},
			[]string{"database"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			c.ConnectAttempts,
			c.Connected,
			c.CacheHits,
			c.CacheMisses,
			c.CacheEvictions,
			c.CacheEntries,
			c.Operations,
			c.OperationDuration,
			c.DatabaseUp,
		)
	}
	return c
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// ConnectAttempt records one connection attempt.
func (c *Collectors) ConnectAttempt(ok bool) {
	if c == nil {
		return
	}
	result := ResultOK
	if !ok {
		result = ResultError
	}
	c.ConnectAttempts.WithLabelValues(result).Inc()
}

// SetConnected updates the connected gauge.
func (c *Collectors) SetConnected(v bool) {
	if c == nil {
		return
	}
	c.Connected.Set(boolGauge(v))
}

func (c *Collectors) CacheHit() {
	if c != nil {
		c.CacheHits.Inc()
	}
}

func (c *Collectors) CacheMiss() {
	if c != nil {
		c.CacheMisses.Inc()
	}
}

func (c *Collectors) CacheEviction() {
	if c != nil {
		c.CacheEvictions.Inc()
	}
}

func (c *Collectors) SetCacheEntries(n int) {
	if c != nil {
		c.CacheEntries.Set(float64(n))
	}
}

// ObserveOperation records one CRUD call.
func (c *Collectors) ObserveOperation(op, result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Operations.WithLabelValues(op, result).Inc()
	c.OperationDuration.WithLabelValues(op).Observe(float64(d.Microseconds()) / 1000)
}

// SetDatabaseUp records the health of one system database.
func (c *Collectors) SetDatabaseUp(database string, up bool) {
	if c == nil {
		return
	}
	c.DatabaseUp.WithLabelValues(database).Set(boolGauge(up))
}
