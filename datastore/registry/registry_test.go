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

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepjangra/valuation-app-sub000/store"
	"github.com/sandeepjangra/valuation-app-sub000/store/memstore"
)

func newRegistry() *Registry {
	return New(
		map[SystemDatabase]string{Admin: "valuation_admin", Shared: "valuation_shared"},
		map[SystemDatabase]string{LegacyMain: "valuation_app_prod", LegacyReports: ""},
	)
}

func TestGetDatabase_BeforeResolve(t *testing.T) {
	r := newRegistry()
	_, err := r.GetDatabase(Admin)
	assert.ErrorIs(t, err, store.ErrNotConnected)
}

func TestGetDatabase(t *testing.T) {
	r := newRegistry()
	client, err := memstore.NewServer().Dial(context.Background(), "memory://", store.DialOptions{})
	require.NoError(t, err)
	r.Resolve(client)

	tests := []struct {
		name     SystemDatabase
		physical string
		wantErr  error
	}{
		{Admin, "valuation_admin", nil},
		{Shared, "valuation_shared", nil},
		{LegacyMain, "valuation_app_prod", nil},
		{LegacyReports, "", store.ErrUnknownDatabase},
		{"billing", "", store.ErrUnknownDatabase},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			db, err := r.GetDatabase(tt.name)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.physical, db.Name())
		})
	}

	first, _ := r.GetDatabase(Admin)
	second, _ := r.GetDatabase(Admin)
	assert.Same(t, first, second, "handles are resolved once per connect")
}

func TestReset(t *testing.T) {
	r := newRegistry()
	client, err := memstore.NewServer().Dial(context.Background(), "memory://", store.DialOptions{})
	require.NoError(t, err)
	r.Resolve(client)
	r.Reset()

	_, err = r.GetDatabase(Admin)
	assert.ErrorIs(t, err, store.ErrNotConnected)
}

func TestNames(t *testing.T) {
	r := newRegistry()

	assert.Equal(t, []SystemDatabase{Admin, Shared, LegacyMain}, r.Names())
	assert.Equal(t, []string{"valuation_admin", "valuation_shared", "valuation_app_prod"}, r.PhysicalNames())
	assert.True(t, r.IsLegacy(LegacyMain))
	assert.False(t, r.IsLegacy(Admin))

	p, ok := r.PhysicalName(Shared)
	assert.True(t, ok)
	assert.Equal(t, "valuation_shared", p)
	_, ok = r.PhysicalName("billing")
	assert.False(t, ok)
}
