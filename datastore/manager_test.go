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

package datastore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepjangra/valuation-app-sub000/datastore/health"
	"github.com/sandeepjangra/valuation-app-sub000/datastore/registry"
	"github.com/sandeepjangra/valuation-app-sub000/store"
	"github.com/sandeepjangra/valuation-app-sub000/store/config"
	"github.com/sandeepjangra/valuation-app-sub000/store/memstore"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MongoDB.URI = "memory://"
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.InitialInterval = time.Millisecond
	cfg.Retry.MaxInterval = time.Millisecond
	cfg.Tenants.CacheSize = 2
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config) (*Manager, *memstore.Server) {
	t.Helper()
	srv := memstore.NewServer()
	m, err := New(cfg, srv, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	return m, srv
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil, memstore.NewServer())
	assert.Error(t, err)
}

func TestStart_Unreachable(t *testing.T) {
	m, srv := newTestManager(t, testConfig())
	srv.SetUnreachable(true)

	err := m.Start(context.Background())
	assert.ErrorIs(t, err, store.ErrNotConnected)
	assert.Equal(t, 2, srv.DialCount())
}

func TestSystem(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Close(ctx)

	db, err := m.System(ctx, registry.Admin)
	require.NoError(t, err)
	assert.Equal(t, "valuation_admin", db.Name())

	db, err = m.System(ctx, registry.LegacyReports)
	require.NoError(t, err)
	assert.Equal(t, "valuation_reports", db.Name())

	_, err = m.System(ctx, registry.SystemDatabase("billing"))
	assert.ErrorIs(t, err, store.ErrUnknownDatabase)
}

func TestSystem_ReconnectsAfterDisconnect(t *testing.T) {
	m, srv := newTestManager(t, testConfig())
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Close(ctx)

	m.Connection().Disconnect(ctx)
	db, err := m.System(ctx, registry.Shared)
	require.NoError(t, err)
	assert.Equal(t, "valuation_shared", db.Name())
	assert.Equal(t, 2, srv.DialCount())
}

func TestTenant_BootstrapsRequiredCollections(t *testing.T) {
	m, srv := newTestManager(t, testConfig())
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Close(ctx)

	db, err := m.Tenant(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", db.Name())

	names, err := db.ListCollectionNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"activity_logs", "reports", "users"}, names)
	assert.Empty(t, srv.Documents("acme", "reports"), "sentinel documents are removed")

	_, err = m.Tenant(ctx, "valuation_admin")
	assert.ErrorIs(t, err, store.ErrInvalidTenantID)
	_, err = m.Tenant(ctx, "acme; drop")
	assert.ErrorIs(t, err, store.ErrInvalidTenantID)
}

func TestTenant_BootstrapFailureIsRetried(t *testing.T) {
	m, srv := newTestManager(t, testConfig())
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Close(ctx)

	srv.FailOperation(memstore.OpInsert, errors.New("not primary"))
	_, err := m.Tenant(ctx, "acme")
	require.NoError(t, err, "bootstrap is best effort")
	assert.Error(t, m.EnsureTenant(ctx, "acme"))

	srv.FailOperation(memstore.OpInsert, nil)
	db, err := m.Tenant(ctx, "acme")
	require.NoError(t, err)
	names, err := db.ListCollectionNames(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestReconnectPurgesTenantCache(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Close(ctx)

	_, err := m.Tenant(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Tenants().Len())

	require.True(t, m.Connection().Connect(ctx))
	assert.Zero(t, m.Tenants().Len())
}

func TestVersionedWorkflowThroughManager(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Close(ctx)

	db, err := m.Tenant(ctx, "acme")
	require.NoError(t, err)

	svc := m.CRUD()
	id, err := svc.InsertOne(ctx, db, "reports", store.Document{"reportNo": "VR-1", "status": "draft"})
	require.NoError(t, err)
	require.True(t, svc.UpdateOne(ctx, db, "reports", store.Document{"id": id}, store.Document{"status": "final"}, "u1"))

	n, err := svc.CountDocuments(ctx, db, "reports", store.Document{"reportNo": "VR-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPeriodicHealth(t *testing.T) {
	cfg := testConfig()
	cfg.Health.Interval = 5 * time.Millisecond
	m, _ := newTestManager(t, cfg)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))

	require.Eventually(t, func() bool {
		r, ok := m.Health().Last()
		return ok && r.Status == health.StatusHealthy
	}, time.Second, 5*time.Millisecond)

	m.Close(ctx)
	m.Close(ctx)
	assert.Equal(t, health.StatusDisconnected, m.Health().HealthCheck(ctx).Status)
}

func TestTenantHandle_ReportsNotConnected(t *testing.T) {
	m, srv := newTestManager(t, testConfig())
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))

	db, err := m.Tenant(ctx, "acme")
	require.NoError(t, err)
	id, err := m.CRUD().InsertOne(ctx, db, "reports", store.Document{"status": "draft"})
	require.NoError(t, err)

	srv.SetUnreachable(true)
	doc, err := m.CRUD().FindOne(ctx, db, "reports", store.Document{"id": id})
	assert.ErrorIs(t, err, store.ErrNotConnected)
	assert.Nil(t, doc)
	srv.SetUnreachable(false)

	m.Close(ctx)

	doc, err = m.CRUD().FindOne(ctx, db, "reports", store.Document{"id": id})
	assert.ErrorIs(t, err, store.ErrNotConnected)
	assert.Nil(t, doc)
	assert.False(t, m.CRUD().UpdateOne(ctx, db, "reports", store.Document{"id": id}, store.Document{"status": "final"}, "u1"))

	docs := srv.Documents("acme", "reports")
	require.Len(t, docs, 1)
	assert.Equal(t, int64(1), docs[0]["version"])

	fresh, err := m.Tenant(ctx, "acme")
	require.NoError(t, err, "a new handle reconnects")
	doc, err = m.CRUD().FindOne(ctx, fresh, "reports", store.Document{"id": id})
	require.NoError(t, err)
	assert.Equal(t, "draft", doc["status"])
	m.Close(ctx)
}
