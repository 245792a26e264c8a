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

package store

import "errors"

var (
	// ErrNotConnected is returned when no live connection exists.
	ErrNotConnected = errors.New("document store not connected")
	// ErrUnknownDatabase is returned for a system database name that is not registered.
	ErrUnknownDatabase = errors.New("unknown system database")
	// ErrInvalidTenantID is returned when a tenant identifier fails validation.
	ErrInvalidTenantID = errors.New("invalid tenant identifier")
	// ErrNoDocuments is returned by Collection.FindOne when nothing matches.
	ErrNoDocuments = errors.New("no documents in result")
)

// StoreError wraps an unexpected failure reported by the backing store.
type StoreError struct {
	Database  string
	Operation string
	Message   string
	Cause     error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return e.Database + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.Database + "." + e.Operation + ": " + e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError
func NewStoreError(database, operation, message string, cause error) *StoreError {
	return &StoreError{
		Database:  database,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
