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

package crud

import (
	"time"

	"github.com/sandeepjangra/valuation-app-sub000/datastore/metrics"
	"github.com/sandeepjangra/valuation-app-sub000/shared/logger"
	"github.com/sandeepjangra/valuation-app-sub000/store"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records every operation on m.
func WithMetrics(m *metrics.Collectors) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type query struct {
	includeInactive bool
	sort            store.Sort
	skip            int64
	limit           int64
}

// QueryOption shapes a read.
type QueryOption func(*query)

// IncludeInactive disables the isActive=true filter.
func IncludeInactive() QueryOption {
	return func(q *query) { q.includeInactive = true }
}

// SortBy orders results. Use "id" or "_id" for the identifier.
func SortBy(fields ...store.SortField) QueryOption {
	return func(q *query) {
		for _, f := range fields {
			if f.Key == store.IDField {
				f.Key = store.NativeIDField
			}
			q.sort = append(q.sort, f)
		}
	}
}

// Skip skips the first n results.
func Skip(n int64) QueryOption {
	return func(q *query) { q.skip = n }
}

// Limit caps the number of results.
func Limit(n int64) QueryOption {
	return func(q *query) { q.limit = n }
}

func buildQuery(opts []QueryOption) query {
	var q query
	for _, opt := range opts {
		opt(&q)
	}
	return q
}
