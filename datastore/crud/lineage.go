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
	"errors"
	"fmt"
	"math"

	"github.com/sandeepjangra/valuation-app-sub000/store"
)

// ErrInvalidTransition is returned when a lineage transition does not apply to the current state.
var ErrInvalidTransition = errors.New("invalid lineage transition")

// StateKind tags a version document's place in its lineage.
type StateKind int

const (
	// Active is the single current version of a logical record.
	Active StateKind = iota + 1
	// Deactivated is a superseded version, retained for history.
	Deactivated
	// Deleted is a soft-deleted version with no active successor.
	Deleted
)

func (k StateKind) String() string {
	switch k {
	case Active:
		return "active"
	case Deactivated:
		return "deactivated"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// State is the lineage state of one version document.
//
//	create:  -> Active(1)
//	update:  Active(v) -> Deactivated(v), plus a new Active(v+1)
//	delete:  Active(v) -> Deleted(v)
//	restore: Deleted(v) -> Active(v)
type State struct {
	Kind    StateKind
	Version int64
}

// Created is the state of a freshly inserted record.
func Created() State {
	return State{Kind: Active, Version: 1}
}

// StateOf reads the state of doc. A missing version counts as 1.
func StateOf(doc store.Document) State {
	version := versionOf(doc)
	active, _ := doc[FieldIsActive].(bool)
	switch {
	case active:
		return State{Kind: Active, Version: version}
	case doc[FieldDeletedAt] != nil:
		return State{Kind: Deleted, Version: version}
	default:
		return State{Kind: Deactivated, Version: version}
	}
}

// Update returns the superseded state and the successor.
func (s State) Update() (superseded, next State, err error) {
	if s.Kind != Active {
		return s, s, fmt.Errorf("%w: update from %s", ErrInvalidTransition, s)
	}
	return State{Kind: Deactivated, Version: s.Version}, State{Kind: Active, Version: s.Version + 1}, nil
}

// Delete returns the soft-deleted state.
func (s State) Delete() (State, error) {
	if s.Kind != Active {
		return s, fmt.Errorf("%w: delete from %s", ErrInvalidTransition, s)
	}
	return State{Kind: Deleted, Version: s.Version}, nil
}

// Restore returns the re-activated state.
func (s State) Restore() (State, error) {
	if s.Kind != Deleted {
		return s, fmt.Errorf("%w: restore from %s", ErrInvalidTransition, s)
	}
	return State{Kind: Active, Version: s.Version}, nil
}

func (s State) String() string {
	return fmt.Sprintf("%s(v%d)", s.Kind, s.Version)
}

func versionOf(doc store.Document) int64 {
	if v, ok := toInt64(doc[FieldVersion]); ok && v > 0 {
		return v
	}
	return 1
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case float32:
		return toInt64(float64(n))
	}
	return 0, false
}
