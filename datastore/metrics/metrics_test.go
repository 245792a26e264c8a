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

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ConnectAttempt(true)
	c.SetDatabaseUp("valuation_admin", true)
	c.ObserveOperation("find_one", ResultOK, time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["reportstore_connect_attempts_total"])
	assert.True(t, names["reportstore_database_up"])
	assert.True(t, names["reportstore_operation_duration_milliseconds"])

	assert.Panics(t, func() { New(reg) }, "duplicate registration")
}

func TestCollectors(t *testing.T) {
	c := New(nil)

	c.ConnectAttempt(false)
	c.ConnectAttempt(false)
	c.ConnectAttempt(true)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ConnectAttempts.WithLabelValues(ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ConnectAttempts.WithLabelValues(ResultOK)))

	c.SetConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Connected))
	c.SetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Connected))

	c.CacheHit()
	c.CacheMiss()
	c.CacheMiss()
	c.CacheEviction()
	c.SetCacheEntries(7)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheEvictions))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.CacheEntries))

	c.ObserveOperation("update_one", ResultConflict, 3*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("update_one", ResultConflict)))

	c.SetDatabaseUp("valuation_shared", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.DatabaseUp.WithLabelValues("valuation_shared")))
}

func TestNilCollectors(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ConnectAttempt(true)
		c.SetConnected(true)
		c.CacheHit()
		c.CacheMiss()
		c.CacheEviction()
		c.SetCacheEntries(1)
		c.ObserveOperation("insert_one", ResultOK, time.Millisecond)
		c.SetDatabaseUp("x", true)
	})
}
