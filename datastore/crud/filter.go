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
	"github.com/sandeepjangra/valuation-app-sub000/store"
)

func asDocument(v interface{}) (store.Document, bool) {
	switch val := v.(type) {
	case store.Document:
		return val, true
	case map[string]interface{}:
		return store.Document(val), true
	}
	return nil, false
}

// parseID converts a string identifier to the database's native form.
func parseID(db store.Database, v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return db.ParseID(s)
	}
	return v
}

// parseIDCondition handles both a literal id and an operator document
// such as {"$in": [...]}.
func parseIDCondition(db store.Database, v interface{}) interface{} {
	cond, ok := asDocument(v)
	if !ok {
		return parseID(db, v)
	}
	out := store.Document{}
	for op, arg := range cond {
		switch op {
		case "$eq", "$ne":
			out[op] = parseID(db, arg)
		case "$in", "$nin":
			out[op] = parseIDList(db, arg)
		default:
			out[op] = arg
		}
	}
	return out
}

func parseIDList(db store.Database, v interface{}) interface{} {
	switch list := v.(type) {
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = db.ParseID(s)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = parseID(db, item)
		}
		return out
	}
	return v
}

// prepareFilter returns a copy of filter with "id" rewritten to the native
// identifier and, unless includeInactive is set, isActive forced to true.
func prepareFilter(db store.Database, filter store.Document, includeInactive bool) store.Document {
	f := filter.Clone()
	if f == nil {
		f = store.Document{}
	}
	if id, ok := f[store.IDField]; ok {
		delete(f, store.IDField)
		f[store.NativeIDField] = id
	}
	if id, ok := f[store.NativeIDField]; ok {
		f[store.NativeIDField] = parseIDCondition(db, id)
	}
	if !includeInactive {
		f[FieldIsActive] = true
	}
	return f
}

// preparePipeline applies prepareFilter to a leading $match stage, adding one
// when the pipeline has none.
func preparePipeline(db store.Database, pipeline []store.Document, includeInactive bool) []store.Document {
	out := make([]store.Document, 0, len(pipeline)+1)
	if len(pipeline) > 0 {
		if match, ok := asDocument(pipeline[0]["$match"]); ok && len(pipeline[0]) == 1 {
			out = append(out, store.Document{"$match": prepareFilter(db, match, includeInactive)})
			for _, stage := range pipeline[1:] {
				out = append(out, stage.Clone())
			}
			return out
		}
	}
	if !includeInactive {
		out = append(out, store.Document{"$match": store.Document{FieldIsActive: true}})
	}
	for _, stage := range pipeline {
		out = append(out, stage.Clone())
	}
	return out
}

// normalize exposes the native identifier as an "id" string.
func normalize(db store.Database, doc store.Document) store.Document {
	if doc == nil {
		return nil
	}
	if native, ok := doc[store.NativeIDField]; ok {
		delete(doc, store.NativeIDField)
		doc[store.IDField] = db.FormatID(native)
	}
	return doc
}

func normalizeAll(db store.Database, docs []store.Document) []store.Document {
	out := make([]store.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, normalize(db, d))
	}
	return out
}
