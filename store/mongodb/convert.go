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

package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sandeepjangra/valuation-app-sub000/store"
)

func sortToBSON(s store.Sort) bson.D {
	out := make(bson.D, 0, len(s))
	for _, f := range s {
		dir := 1
		if f.Descending {
			dir = -1
		}
		out = append(out, bson.E{Key: f.Key, Value: dir})
	}
	return out
}

// toFilter never returns nil; the driver rejects a nil filter document.
func toFilter(doc store.Document) bson.M {
	if doc == nil {
		return bson.M{}
	}
	return toBSONValue(doc).(bson.M)
}

// toBSONValue converts documents, sorts and slices recursively. Scalars pass through.
func toBSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case store.Document:
		return mapToBSON(val)
	case map[string]interface{}:
		return mapToBSON(val)
	case store.Sort:
		return sortToBSON(val)
	case []store.Document:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = mapToBSON(item)
		}
		return out
	case []interface{}:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = toBSONValue(item)
		}
		return out
	default:
		return val
	}
}

func mapToBSON(m map[string]interface{}) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = toBSONValue(v)
	}
	return out
}

func fromBSONDocument(m bson.M) store.Document {
	out := make(store.Document, len(m))
	for k, v := range m {
		out[k] = fromBSON(v)
	}
	return out
}

// fromBSON keeps ObjectIDs native so they round-trip in later filters.
func fromBSON(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case bson.M:
		return fromBSONDocument(val)
	case bson.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = fromBSON(item)
		}
		return out
	case bson.D:
		out := make(store.Document, len(val))
		for _, elem := range val {
			out[elem.Key] = fromBSON(elem.Value)
		}
		return out
	default:
		return val
	}
}
