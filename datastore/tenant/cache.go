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

// Package tenant derives and caches per-tenant database handles.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sandeepjangra/valuation-app-sub000/datastore/metrics"
	"github.com/sandeepjangra/valuation-app-sub000/shared/logger"
	"github.com/sandeepjangra/valuation-app-sub000/store"
)

// DefaultMaxSize is used when Options.MaxSize is not positive.
const DefaultMaxSize = 100

// sentinelField marks the throwaway document used to create a collection.
const sentinelField = "_reportstoreInit"

// ClientSource returns the live client, or store.ErrNotConnected.
type ClientSource interface {
	Client() (store.Client, error)
}

// Options configures a Cache.
type Options struct {
	MaxSize int
	// Reserved lists database names no tenant may use, such as the system databases.
	Reserved []string
	Logger   *logger.Logger
	Metrics  *metrics.Collectors
}

// Stats represents cache statistics
type Stats struct {
	Hits         int64
	Misses       int64
	Evictions    int64
	Size         int
	MaxSize      int
	LastEviction time.Time
}

// Cache holds at most MaxSize tenant handles and evicts the earliest inserted
// one on overflow. A hit does not refresh an entry's position.
type Cache struct {
	mu       sync.Mutex
	entries  *lru.Cache[ID, store.Database]
	source   ClientSource
	maxSize  int
	reserved map[string]struct{}
	logger   *logger.Logger
	metrics  *metrics.Collectors

	// Guarded by mu. The eviction callback always runs under mu because every
	// call into entries is made while holding it.
	stats   Stats
	purging bool
}

// New creates an empty cache backed by source.
func New(source ClientSource, opts Options) (*Cache, error) {
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	c := &Cache{
		source:   source,
		maxSize:  maxSize,
		reserved: make(map[string]struct{}, len(opts.Reserved)),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if c.logger == nil {
		c.logger = logger.New("tenant-cache")
	}
	for _, name := range opts.Reserved {
		c.reserved[strings.ToLower(name)] = struct{}{}
	}

	entries, err := lru.NewWithEvict[ID, store.Database](maxSize, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

func (c *Cache) onEvict(id ID, _ store.Database) {
	if c.purging {
		return
	}
	c.stats.Evictions++
	c.stats.LastEviction = time.Now()
	c.metrics.CacheEviction()
	c.logger.Info(context.Background(), string(id), "Evicted tenant database handle", map[string]interface{}{
		"max_size": c.maxSize,
	})
}

// Resolve validates tenantID and rejects names reserved for system databases.
func (c *Cache) Resolve(tenantID string) (ID, error) {
	id, err := ParseID(tenantID)
	if err != nil {
		return "", err
	}
	if _, reserved := c.reserved[string(id)]; reserved {
		return "", fmt.Errorf("%w: %q names a system database", store.ErrInvalidTenantID, tenantID)
	}
	return id, nil
}

// GetOrCreate returns the cached handle for tenantID or derives one from the
// live client. It fails with store.ErrNotConnected when there is no client.
func (c *Cache) GetOrCreate(ctx context.Context, tenantID string) (store.Database, error) {
	id, err := c.Resolve(tenantID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if db, ok := c.entries.Peek(id); ok {
		c.stats.Hits++
		c.metrics.CacheHit()
		return db, nil
	}

	client, err := c.source.Client()
	if err != nil {
		return nil, err
	}

	db := client.Database(string(id))
	c.entries.Add(id, db)
	c.stats.Misses++
	c.metrics.CacheMiss()
	c.metrics.SetCacheEntries(c.entries.Len())
	c.logger.Debug(ctx, string(id), "Derived tenant database handle", map[string]interface{}{
		"size": c.entries.Len(),
	})
	return db, nil
}

// EnsureStructure creates each missing collection by inserting and deleting a
// sentinel document. It is best-effort and not atomic; failures are joined.
func (c *Cache) EnsureStructure(ctx context.Context, tenantID string, collections ...string) error {
	db, err := c.GetOrCreate(ctx, tenantID)
	if err != nil {
		return err
	}

	existing, err := db.ListCollectionNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections for tenant %s: %w", db.Name(), err)
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	var errs []error
	for _, name := range collections {
		if name == "" || present[name] {
			continue
		}
		coll := db.Collection(name)
		if _, err := coll.InsertOne(ctx, store.Document{sentinelField: true}); err != nil {
			errs = append(errs, fmt.Errorf("create %s.%s: %w", db.Name(), name, err))
			continue
		}
		if _, err := coll.DeleteOne(ctx, store.Document{sentinelField: true}); err != nil {
			errs = append(errs, fmt.Errorf("clean up %s.%s: %w", db.Name(), name, err))
			continue
		}
		present[name] = true
		c.logger.Info(ctx, db.Name(), "Created tenant collection", map[string]interface{}{"collection": name})
	}
	return errors.Join(errs...)
}

// Contains reports whether tenantID is cached, without counting a hit or miss.
func (c *Cache) Contains(tenantID string) bool {
	id, err := ParseID(tenantID)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(id)
}

// Keys returns cached tenant ids from oldest to newest insertion.
func (c *Cache) Keys() []ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Keys()
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.entries.Len()
	s.MaxSize = c.maxSize
	return s
}

// Purge drops every handle. Used when the connection is replaced or closed;
// purged entries are not counted as evictions.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purging = true
	c.entries.Purge()
	c.purging = false
	c.metrics.SetCacheEntries(0)
}
