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

// Package registry resolves the fixed set of named system databases.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sandeepjangra/valuation-app-sub000/store"
)

// SystemDatabase is the logical name of a non-tenant database.
type SystemDatabase string

const (
	Admin  SystemDatabase = "admin"
	Shared SystemDatabase = "shared"
	// Legacy aliases, kept while older data is migrated.
	LegacyMain    SystemDatabase = "main"
	LegacyReports SystemDatabase = "reports"
)

// Registry maps system database names to handles derived from the live client.
// Handles are resolved once per successful connect and dropped on Reset.
type Registry struct {
	mu       sync.RWMutex
	current  map[SystemDatabase]string
	legacy   map[SystemDatabase]string
	handles  map[SystemDatabase]store.Database
	resolved bool
}

// New creates a registry from logical-to-physical name maps. Empty physical names are skipped.
func New(current, legacy map[SystemDatabase]string) *Registry {
	r := &Registry{
		current: make(map[SystemDatabase]string),
		legacy:  make(map[SystemDatabase]string),
	}
	for name, physical := range current {
		if physical != "" {
			r.current[name] = physical
		}
	}
	for name, physical := range legacy {
		if physical != "" {
			r.legacy[name] = physical
		}
	}
	return r
}

// Resolve derives a handle for every registered name from client.
func (r *Registry) Resolve(client store.Client) {
	handles := make(map[SystemDatabase]store.Database, len(r.current)+len(r.legacy))
	for name, physical := range r.current {
		handles[name] = client.Database(physical)
	}
	for name, physical := range r.legacy {
		handles[name] = client.Database(physical)
	}

	r.mu.Lock()
	r.handles = handles
	r.resolved = true
	r.mu.Unlock()
}

// Reset drops every handle. GetDatabase fails with ErrNotConnected until the next Resolve.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.handles = nil
	r.resolved = false
	r.mu.Unlock()
}

// GetDatabase returns the handle for name.
func (r *Registry) GetDatabase(name SystemDatabase) (store.Database, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.resolved {
		return nil, store.ErrNotConnected
	}
	db, ok := r.handles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownDatabase, name)
	}
	return db, nil
}

// Names lists registered names, current before legacy, each group sorted.
func (r *Registry) Names() []SystemDatabase {
	return append(sortedNames(r.current), sortedNames(r.legacy)...)
}

// IsLegacy reports whether name is a legacy alias.
func (r *Registry) IsLegacy(name SystemDatabase) bool {
	_, ok := r.legacy[name]
	return ok
}

// PhysicalName returns the configured database name behind name.
func (r *Registry) PhysicalName(name SystemDatabase) (string, bool) {
	if p, ok := r.current[name]; ok {
		return p, true
	}
	p, ok := r.legacy[name]
	return p, ok
}

// PhysicalNames returns every configured database name.
func (r *Registry) PhysicalNames() []string {
	names := r.Names()
	out := make([]string, 0, len(names))
	for _, n := range names {
		p, _ := r.PhysicalName(n)
		out = append(out, p)
	}
	return out
}

func sortedNames(m map[SystemDatabase]string) []SystemDatabase {
	out := make([]SystemDatabase, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
