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
	"fmt"
	"regexp"
	"strings"

	"github.com/sandeepjangra/valuation-app-sub000/store"
)

// ID is a validated tenant identifier. It is also the tenant's database name.
type ID string

// idPattern keeps ids inside the database-name character set and length limit.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// reservedIDs are database names owned by the server itself.
var reservedIDs = map[string]struct{}{
	"admin":  {},
	"local":  {},
	"config": {},
}

// ParseID trims and lower-cases raw and checks it against the allowed pattern.
func ParseID(raw string) (ID, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", store.ErrInvalidTenantID, raw)
	}
	if _, reserved := reservedIDs[id]; reserved {
		return "", fmt.Errorf("%w: %q is reserved", store.ErrInvalidTenantID, raw)
	}
	return ID(id), nil
}

func (id ID) String() string { return string(id) }
