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

import (
	"context"
	"time"
)

const (
	// IDField is the identifier key callers see: always a string.
	IDField = "id"
	// NativeIDField is the identifier key the backing store uses.
	NativeIDField = "_id"
)

// Document is an opaque, semi-structured record.
type Document map[string]interface{}

// Clone returns a deep copy of nested documents, maps and slices. Leaf values are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Document:
		return val.Clone()
	case map[string]interface{}:
		return Document(val).Clone()
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []Document:
		out := make([]Document, len(val))
		for i, item := range val {
			out[i] = item.Clone()
		}
		return out
	case Sort:
		return append(Sort(nil), val...)
	default:
		return v
	}
}

// SortField orders results by one key.
type SortField struct {
	Key        string
	Descending bool
}

// Sort is an ordered list of sort keys. It may also appear as the value of a
// $sort aggregation stage.
type Sort []SortField

// FindOptions shapes a Find/FindOne call.
type FindOptions struct {
	Sort  Sort
	Skip  int64
	Limit int64
}

// Collection is a handle on one collection of one database.
type Collection interface {
	Name() string
	// InsertOne stores doc and returns the native identifier, assigning one if doc has none.
	InsertOne(ctx context.Context, doc Document) (interface{}, error)
	// FindOne returns ErrNoDocuments when nothing matches.
	FindOne(ctx context.Context, filter Document, opts *FindOptions) (Document, error)
	Find(ctx context.Context, filter Document, opts *FindOptions) ([]Document, error)
	// UpdateOne applies $set/$unset to the first match and returns the matched count.
	UpdateOne(ctx context.Context, filter Document, set Document, unset []string) (int64, error)
	DeleteOne(ctx context.Context, filter Document) (int64, error)
	CountDocuments(ctx context.Context, filter Document) (int64, error)
	Aggregate(ctx context.Context, pipeline []Document) ([]Document, error)
}

// IDCodec converts between the boundary string identifier and the store-native one.
type IDCodec interface {
	ParseID(id string) interface{}
	FormatID(native interface{}) string
}

// Database is a handle on one storage namespace.
type Database interface {
	IDCodec
	Name() string
	Collection(name string) Collection
	ListCollectionNames(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Client is the single connection to the backing cluster.
type Client interface {
	Database(name string) Database
	Ping(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// DialOptions are passed to a Dialer for every connection attempt.
type DialOptions struct {
	AppName        string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// Dialer establishes clients. Dial need not verify liveness; callers Ping.
type Dialer interface {
	Dial(ctx context.Context, uri string, opts DialOptions) (Client, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, uri string, opts DialOptions) (Client, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, uri string, opts DialOptions) (Client, error) {
	return f(ctx, uri, opts)
}
