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

package memstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

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

func asList(v interface{}) ([]interface{}, bool) {
	if l, ok := v.([]interface{}); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func cloneAny(v interface{}) interface{} {
	return store.Document{"v": v}.Clone()["v"]
}

func lookupPath(doc store.Document, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		d, ok := asDocument(cur)
		if !ok {
			return nil, false
		}
		cur, ok = d[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(doc store.Document, path string, v interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asDocument(cur[part])
		if !ok {
			next = store.Document{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func unsetPath(doc store.Document, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asDocument(cur[part])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func matches(doc store.Document, filter store.Document) (bool, error) {
	for key, cond := range filter {
		switch key {
		case "$and", "$or":
			clauses, ok := asList(cond)
			if !ok {
				return false, fmt.Errorf("%s must be an array", key)
			}
			matched := false
			for _, clause := range clauses {
				sub, ok := asDocument(clause)
				if !ok {
					return false, fmt.Errorf("%s entries must be documents", key)
				}
				m, err := matches(doc, sub)
				if err != nil {
					return false, err
				}
				if key == "$and" && !m {
					return false, nil
				}
				matched = matched || m
			}
			if key == "$or" && !matched {
				return false, nil
			}
		default:
			if strings.HasPrefix(key, "$") {
				return false, fmt.Errorf("unknown top level operator: %s", key)
			}
			val, found := lookupPath(doc, key)
			ok, err := matchField(val, found, cond)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

func isOperatorDoc(v interface{}) (store.Document, bool) {
	d, ok := asDocument(v)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for k := range d {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return d, true
}

func matchField(val interface{}, found bool, cond interface{}) (bool, error) {
	ops, ok := isOperatorDoc(cond)
	if !ok {
		return fieldEquals(val, found, cond), nil
	}
	for op, arg := range ops {
		var m bool
		switch op {
		case "$eq":
			m = fieldEquals(val, found, arg)
		case "$ne":
			m = !fieldEquals(val, found, arg)
		case "$in", "$nin":
			list, ok := asList(arg)
			if !ok {
				return false, fmt.Errorf("%s needs an array", op)
			}
			for _, item := range list {
				if fieldEquals(val, found, item) {
					m = true
					break
				}
			}
			if op == "$nin" {
				m = !m
			}
		case "$exists":
			want, _ := arg.(bool)
			m = found == want
		case "$gt", "$gte", "$lt", "$lte":
			if !found {
				return false, nil
			}
			c, ordered := compareValues(val, arg)
			if !ordered {
				return false, nil
			}
			switch op {
			case "$gt":
				m = c > 0
			case "$gte":
				m = c >= 0
			case "$lt":
				m = c < 0
			case "$lte":
				m = c <= 0
			}
		default:
			return false, fmt.Errorf("unknown operator: %s", op)
		}
		if !m {
			return false, nil
		}
	}
	return true, nil
}

// fieldEquals treats a nil target as matching a missing field and matches array fields element-wise.
func fieldEquals(val interface{}, found bool, target interface{}) bool {
	if target == nil {
		return !found || val == nil
	}
	if !found {
		return false
	}
	if valuesEqual(val, target) {
		return true
	}
	if list, ok := val.([]interface{}); ok {
		for _, item := range list {
			if valuesEqual(item, target) {
				return true
			}
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func valuesEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if da, ok := asDocument(a); ok {
		db, ok := asDocument(b)
		if !ok || len(da) != len(db) {
			return false
		}
		for k, v := range da {
			w, ok := db[k]
			if !ok || !valuesEqual(v, w) {
				return false
			}
		}
		return true
	}
	if la, ok := a.([]interface{}); ok {
		lb, ok := asList(b)
		if !ok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !valuesEqual(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func typeRank(v interface{}) int {
	if v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case store.Document, map[string]interface{}:
		return 3
	case []interface{}:
		return 4
	case bool:
		return 5
	case time.Time:
		return 6
	}
	return 7
}

// compareValues orders values of the same kind. ordered is false across kinds.
func compareValues(a, b interface{}) (c int, ordered bool) {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return 0, false
	}
	switch ra {
	case 0:
		return 0, true
	case 1:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return cmpOrdered(fa, fb), true
	case 2:
		return strings.Compare(a.(string), b.(string)), true
	case 5:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0, true
		case !ba:
			return -1, true
		default:
			return 1, true
		}
	case 6:
		ta, tb := a.(time.Time), b.(time.Time)
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		default:
			return 0, true
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b)), true
}

func cmpOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// sortOrder compares across kinds by kind rank; missing fields sort as null.
func sortOrder(a, b interface{}) int {
	if c, ok := compareValues(a, b); ok {
		return c
	}
	return typeRank(a) - typeRank(b)
}

func sortDocuments(docs []store.Document, order store.Sort) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range order {
			vi, _ := lookupPath(docs[i], f.Key)
			vj, _ := lookupPath(docs[j], f.Key)
			c := sortOrder(vi, vj)
			if c == 0 {
				continue
			}
			if f.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func sortFromStage(arg interface{}) (store.Sort, error) {
	if s, ok := arg.(store.Sort); ok {
		return s, nil
	}
	d, ok := asDocument(arg)
	if !ok {
		return nil, fmt.Errorf("$sort needs a sort specification")
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(store.Sort, 0, len(keys))
	for _, k := range keys {
		dir, _ := toFloat(d[k])
		out = append(out, store.SortField{Key: k, Descending: dir < 0})
	}
	return out, nil
}

func applyStage(docs []store.Document, stage store.Document) ([]store.Document, error) {
	if len(stage) != 1 {
		return nil, fmt.Errorf("a pipeline stage must have exactly one field")
	}
	for name, arg := range stage {
		switch name {
		case "$match":
			filter, ok := asDocument(arg)
			if !ok {
				return nil, fmt.Errorf("$match needs a document")
			}
			var out []store.Document
			for _, d := range docs {
				m, err := matches(d, filter)
				if err != nil {
					return nil, err
				}
				if m {
					out = append(out, d)
				}
			}
			return out, nil
		case "$sort":
			order, err := sortFromStage(arg)
			if err != nil {
				return nil, err
			}
			sortDocuments(docs, order)
			return docs, nil
		case "$skip":
			n, ok := toFloat(arg)
			if !ok {
				return nil, fmt.Errorf("$skip needs a number")
			}
			return window(docs, int64(n), 0), nil
		case "$limit":
			n, ok := toFloat(arg)
			if !ok || n <= 0 {
				return nil, fmt.Errorf("$limit needs a positive number")
			}
			return window(docs, 0, int64(n)), nil
		case "$count":
			field, ok := arg.(string)
			if !ok || field == "" {
				return nil, fmt.Errorf("$count needs a field name")
			}
			if len(docs) == 0 {
				return nil, nil
			}
			return []store.Document{{field: int64(len(docs))}}, nil
		case "$group":
			spec, ok := asDocument(arg)
			if !ok {
				return nil, fmt.Errorf("$group needs a document")
			}
			return group(docs, spec)
		default:
			return nil, fmt.Errorf("unsupported pipeline stage: %s", name)
		}
	}
	return docs, nil
}

func resolveExpr(doc store.Document, expr interface{}) interface{} {
	if s, ok := expr.(string); ok && strings.HasPrefix(s, "$") {
		v, _ := lookupPath(doc, s[1:])
		return v
	}
	return expr
}

// group supports an _id expression and $sum accumulators.
func group(docs []store.Document, spec store.Document) ([]store.Document, error) {
	idExpr, ok := spec[store.NativeIDField]
	if !ok {
		return nil, fmt.Errorf("$group needs an _id")
	}

	type bucket struct {
		key  interface{}
		sums map[string]float64
	}
	var buckets []*bucket
	for _, d := range docs {
		key := resolveExpr(d, idExpr)
		var b *bucket
		for _, existing := range buckets {
			if valuesEqual(existing.key, key) {
				b = existing
				break
			}
		}
		if b == nil {
			b = &bucket{key: key, sums: make(map[string]float64)}
			buckets = append(buckets, b)
		}
		for field, acc := range spec {
			if field == store.NativeIDField {
				continue
			}
			accDoc, ok := asDocument(acc)
			if !ok {
				return nil, fmt.Errorf("accumulator for %s must be a document", field)
			}
			sumArg, ok := accDoc["$sum"]
			if !ok || len(accDoc) != 1 {
				return nil, fmt.Errorf("unsupported accumulator for %s", field)
			}
			n, _ := toFloat(resolveExpr(d, sumArg))
			b.sums[field] += n
		}
	}

	out := make([]store.Document, 0, len(buckets))
	for _, b := range buckets {
		d := store.Document{store.NativeIDField: b.key}
		for field, sum := range b.sums {
			if sum == float64(int64(sum)) {
				d[field] = int64(sum)
			} else {
				d[field] = sum
			}
		}
		out = append(out, d)
	}
	return out, nil
}
