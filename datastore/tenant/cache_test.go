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

package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepjangra/valuation-app-sub000/datastore/metrics"
	"github.com/sandeepjangra/valuation-app-sub000/store"
	"github.com/sandeepjangra/valuation-app-sub000/store/memstore"
)

type staticSource struct {
	client store.Client
	err    error
}

func (s *staticSource) Client() (store.Client, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.client, nil
}

func newCache(t *testing.T, maxSize int) (*Cache, *memstore.Server, *staticSource) {
	t.Helper()
	srv := memstore.NewServer()
	client, err := srv.Dial(context.Background(), "memory://", store.DialOptions{})
	require.NoError(t, err)
	src := &staticSource{client: client}
	c, err := New(src, Options{MaxSize: maxSize, Reserved: []string{"valuation_admin"}})
	require.NoError(t, err)
	return c, srv, src
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    ID
		wantErr bool
	}{
		{"acme", "acme", false},
		{"  Acme-Valuers_01 ", "acme-valuers_01", false},
		{"", "", true},
		{"-acme", "", true},
		{"acme.reports", "", true},
		{"acme/../admin", "", true},
		{"$cmd", "", true},
		{"admin", "", true},
		{"LOCAL", "", true},
		{"config", "", true},
		{"a23456789012345678901234567890123456789012345678901234567890123", "a23456789012345678901234567890123456789012345678901234567890123", false},
		{"a234567890123456789012345678901234567890123456789012345678901234", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseID(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, store.ErrInvalidTenantID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetOrCreate_HitAndMiss(t *testing.T) {
	c, _, _ := newCache(t, 10)
	ctx := context.Background()

	first, err := c.GetOrCreate(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", first.Name())

	second, err := c.GetOrCreate(ctx, "ACME")
	require.NoError(t, err)
	assert.Same(t, first, second)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 10, stats.MaxSize)
}

func TestGetOrCreate_Rejected(t *testing.T) {
	c, _, _ := newCache(t, 10)

	_, err := c.GetOrCreate(context.Background(), "bad/name")
	assert.ErrorIs(t, err, store.ErrInvalidTenantID)
	_, err = c.GetOrCreate(context.Background(), "valuation_admin")
	assert.ErrorIs(t, err, store.ErrInvalidTenantID, "system database names are reserved")
	assert.Zero(t, c.Len())
}

func TestGetOrCreate_NotConnected(t *testing.T) {
	c, _, src := newCache(t, 10)
	src.err = store.ErrNotConnected

	_, err := c.GetOrCreate(context.Background(), "acme")
	assert.ErrorIs(t, err, store.ErrNotConnected)
	assert.Zero(t, c.Len())
}

// Bound 2: a, b, c leaves {b, c}; a again is a miss with a fresh handle and leaves {c, a}.
func TestGetOrCreate_FIFOEviction(t *testing.T) {
	c, _, _ := newCache(t, 2)
	ctx := context.Background()

	a1, err := c.GetOrCreate(ctx, "a")
	require.NoError(t, err)
	_, err = c.GetOrCreate(ctx, "b")
	require.NoError(t, err)
	_, err = c.GetOrCreate(ctx, "c")
	require.NoError(t, err)

	assert.Equal(t, []ID{"b", "c"}, c.Keys())
	assert.False(t, c.Contains("a"))

	missesBefore := c.Stats().Misses
	a2, err := c.GetOrCreate(ctx, "a")
	require.NoError(t, err)

	assert.NotSame(t, a1, a2, "evicted tenant gets a fresh handle")
	assert.Equal(t, missesBefore+1, c.Stats().Misses)
	assert.Equal(t, []ID{"c", "a"}, c.Keys())
	assert.Equal(t, int64(2), c.Stats().Evictions)
	assert.False(t, c.Stats().LastEviction.IsZero())
}

func TestGetOrCreate_HitDoesNotRefreshPosition(t *testing.T) {
	c, _, _ := newCache(t, 2)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "a", "c"} {
		_, err := c.GetOrCreate(ctx, id)
		require.NoError(t, err)
	}

	assert.Equal(t, []ID{"b", "c"}, c.Keys(), "a was inserted first and is evicted despite the later hit")
}

func TestGetOrCreate_NeverExceedsBound(t *testing.T) {
	const maxSize = 5
	c, _, _ := newCache(t, maxSize)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.GetOrCreate(context.Background(), fmt.Sprintf("tenant-%d", i%20))
			assert.NoError(t, err)
			assert.LessOrEqual(t, c.Len(), maxSize)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, maxSize, c.Len())
	stats := c.Stats()
	assert.Equal(t, int64(50), stats.Hits+stats.Misses)
}

func TestPurge(t *testing.T) {
	c, _, _ := newCache(t, 3)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := c.GetOrCreate(ctx, id)
		require.NoError(t, err)
	}

	c.Purge()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Stats().Evictions, "purge is not an eviction")
}

func TestMetrics(t *testing.T) {
	srv := memstore.NewServer()
	client, err := srv.Dial(context.Background(), "memory://", store.DialOptions{})
	require.NoError(t, err)
	m := metrics.New(nil)
	c, err := New(&staticSource{client: client}, Options{MaxSize: 1, Metrics: m})
	require.NoError(t, err)

	ctx := context.Background()
	_, _ = c.GetOrCreate(ctx, "a")
	_, _ = c.GetOrCreate(ctx, "a")
	_, _ = c.GetOrCreate(ctx, "b")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEvictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEntries))
}

func TestEnsureStructure(t *testing.T) {
	c, srv, _ := newCache(t, 10)
	ctx := context.Background()

	db, err := c.GetOrCreate(ctx, "acme")
	require.NoError(t, err)
	_, err = db.Collection("reports").InsertOne(ctx, store.Document{"name": "existing"})
	require.NoError(t, err)

	require.NoError(t, c.EnsureStructure(ctx, "acme", "reports", "users", "activity_logs"))

	names, err := db.ListCollectionNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"activity_logs", "reports", "users"}, names)

	assert.Len(t, srv.Documents("acme", "reports"), 1, "existing collections are left alone")
	assert.Empty(t, srv.Documents("acme", "users"), "sentinel documents are removed")

	require.NoError(t, c.EnsureStructure(ctx, "acme", "reports", "users"), "idempotent")
}

func TestEnsureStructure_Errors(t *testing.T) {
	c, srv, _ := newCache(t, 10)
	ctx := context.Background()

	boom := errors.New("not authorized on acme")
	srv.FailOperation(memstore.OpInsert, boom)
	err := c.EnsureStructure(ctx, "acme", "reports", "users")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "acme.reports")
	assert.Contains(t, err.Error(), "acme.users")
	srv.FailOperation(memstore.OpInsert, nil)

	srv.FailDatabase("acme", boom)
	assert.ErrorIs(t, c.EnsureStructure(ctx, "acme", "reports"), boom)

	assert.ErrorIs(t, c.EnsureStructure(ctx, "../etc", "reports"), store.ErrInvalidTenantID)
}
