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
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepjangra/valuation-app-sub000/datastore/metrics"
	"github.com/sandeepjangra/valuation-app-sub000/shared/logger"
	"github.com/sandeepjangra/valuation-app-sub000/store"
)

// Reserved document fields.
const (
	FieldIsActive      = "isActive"
	FieldCreatedAt     = "createdAt"
	FieldUpdatedAt     = "updatedAt"
	FieldVersion       = "version"
	FieldLineageID     = "lineageId"
	FieldModifiedBy    = "modifiedBy"
	FieldDeactivatedAt = "deactivatedAt"
	FieldDeactivatedBy = "deactivatedBy"
	FieldDeletedAt     = "deletedAt"
	FieldDeletedBy     = "deletedBy"
	FieldRestoredAt    = "restoredAt"
	FieldRestoredBy    = "restoredBy"
)

// protectedFields are never copied from update changes.
var protectedFields = []string{
	store.IDField,
	store.NativeIDField,
	FieldLineageID,
	FieldDeactivatedAt,
	FieldDeactivatedBy,
	FieldDeletedAt,
	FieldDeletedBy,
	FieldRestoredAt,
	FieldRestoredBy,
}

// versionScopedFields describe one stored version and are not carried to its successor.
var versionScopedFields = []string{
	store.NativeIDField,
	FieldRestoredAt,
	FieldRestoredBy,
}

func isProtected(field string) bool {
	for _, k := range protectedFields {
		if k == field {
			return true
		}
	}
	return false
}

// Service implements soft-deleting, append-only versioned CRUD over any
// database handle. It holds no per-database state and is safe for concurrent use.
type Service struct {
	logger  *logger.Logger
	metrics *metrics.Collectors
	now     func() time.Time
}

// New creates a Service.
func New(opts ...Option) *Service {
	s := &Service{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.New("crud")
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) observe(op string, start time.Time, result string) {
	s.metrics.ObserveOperation(op, result, time.Since(start))
}

// logFailure logs a failed operation, flagging lost connectivity.
func (s *Service) logFailure(ctx context.Context, db store.Database, message string, err error, fields map[string]interface{}) {
	if errors.Is(err, store.ErrNotConnected) {
		message += ", document store not connected"
		fields["not_connected"] = true
	}
	s.logger.ErrorWithErr(ctx, logger.ERROR, db.Name(), message, err, fields)
}

func failureResult(err error) string {
	if errors.Is(err, store.ErrNotConnected) {
		return metrics.ResultNotConnected
	}
	return metrics.ResultError
}

// InsertOne stamps createdAt/updatedAt, isActive=true, version 1 and a lineage
// id unless the caller set them, stores doc and returns its identifier as a
// string. A caller-supplied "id" is kept as the identifier.
func (s *Service) InsertOne(ctx context.Context, db store.Database, collection string, doc store.Document) (string, error) {
	start := time.Now()
	now := s.timestamp()

	stamped := doc.Clone()
	if stamped == nil {
		stamped = store.Document{}
	}
	if id, ok := stamped[store.IDField]; ok {
		delete(stamped, store.IDField)
		stamped[store.NativeIDField] = parseID(db, id)
	}
	stamped[FieldCreatedAt] = now
	stamped[FieldUpdatedAt] = now
	stamped[FieldIsActive] = true
	if _, ok := stamped[FieldVersion]; !ok {
		stamped[FieldVersion] = Created().Version
	}
	if _, ok := stamped[FieldLineageID]; !ok {
		stamped[FieldLineageID] = uuid.NewString()
	}

	native, err := db.Collection(collection).InsertOne(ctx, stamped)
	if err != nil {
		s.observe("insert_one", start, failureResult(err))
		return "", err
	}
	s.observe("insert_one", start, metrics.ResultOK)
	return db.FormatID(native), nil
}

// FindOne returns the first matching active document, or nil when none match.
// Store errors are returned unchanged.
func (s *Service) FindOne(ctx context.Context, db store.Database, collection string, filter store.Document, opts ...QueryOption) (store.Document, error) {
	start := time.Now()
	q := buildQuery(opts)

	var findOpts *store.FindOptions
	if len(q.sort) > 0 || q.skip > 0 {
		findOpts = &store.FindOptions{Sort: q.sort, Skip: q.skip}
	}
	doc, err := db.Collection(collection).FindOne(ctx, prepareFilter(db, filter, q.includeInactive), findOpts)
	if errors.Is(err, store.ErrNoDocuments) {
		s.observe("find_one", start, metrics.ResultNotFound)
		return nil, nil
	}
	if err != nil {
		s.observe("find_one", start, failureResult(err))
		return nil, err
	}
	s.observe("find_one", start, metrics.ResultOK)
	return normalize(db, doc), nil
}

// FindMany returns matching active documents, newest identifier first unless
// SortBy is given.
func (s *Service) FindMany(ctx context.Context, db store.Database, collection string, filter store.Document, opts ...QueryOption) ([]store.Document, error) {
	start := time.Now()
	q := buildQuery(opts)

	sort := q.sort
	if len(sort) == 0 {
		sort = store.Sort{{Key: store.NativeIDField, Descending: true}}
	}
	docs, err := db.Collection(collection).Find(ctx, prepareFilter(db, filter, q.includeInactive), &store.FindOptions{
		Sort:  sort,
		Skip:  q.skip,
		Limit: q.limit,
	})
	if err != nil {
		s.observe("find_many", start, failureResult(err))
		return nil, err
	}
	s.observe("find_many", start, metrics.ResultOK)
	return normalizeAll(db, docs), nil
}

// UpdateOne supersedes the active document matching filter with a new version
// holding its fields merged with changes. The old document only gains
// isActive=false and deactivation metadata.
//
// It returns false when nothing active matches, when a concurrent writer
// superseded the document first, or when the store fails; failures are logged.
func (s *Service) UpdateOne(ctx context.Context, db store.Database, collection string, filter, changes store.Document, editorID string) bool {
	start := time.Now()
	coll := db.Collection(collection)
	fields := map[string]interface{}{"collection": collection, "editor": editorID}

	current, err := coll.FindOne(ctx, prepareFilter(db, filter, false), nil)
	if errors.Is(err, store.ErrNoDocuments) {
		s.observe("update_one", start, metrics.ResultNotFound)
		return false
	}
	if err != nil {
		s.logFailure(ctx, db, "Update failed reading current version", err, fields)
		s.observe("update_one", start, failureResult(err))
		return false
	}

	_, next, err := StateOf(current).Update()
	if err != nil {
		s.logFailure(ctx, db, "Update rejected", err, fields)
		s.observe("update_one", start, failureResult(err))
		return false
	}

	now := s.timestamp()
	nativeID := current[store.NativeIDField]
	fields["id"] = db.FormatID(nativeID)
	fields["version"] = next.Version

	// Conditional on the version read above, so a concurrent update that
	// already superseded it matches nothing.
	guard := store.Document{
		store.NativeIDField: nativeID,
		FieldIsActive:       true,
		FieldVersion:        current[FieldVersion],
	}
	matched, err := coll.UpdateOne(ctx, guard, store.Document{
		FieldIsActive:      false,
		FieldDeactivatedAt: now,
		FieldDeactivatedBy: editorID,
	}, nil)
	if err != nil {
		s.logFailure(ctx, db, "Update failed deactivating current version", err, fields)
		s.observe("update_one", start, failureResult(err))
		return false
	}
	if matched == 0 {
		s.logger.Warn(ctx, db.Name(), "Update lost to a concurrent writer", fields)
		s.observe("update_one", start, metrics.ResultConflict)
		return false
	}

	successor := current.Clone()
	for _, k := range versionScopedFields {
		delete(successor, k)
	}
	for k, v := range changes.Clone() {
		if !isProtected(k) {
			successor[k] = v
		}
	}
	if _, ok := successor[FieldLineageID]; !ok {
		successor[FieldLineageID] = db.FormatID(nativeID)
	}
	successor[FieldUpdatedAt] = now
	successor[FieldModifiedBy] = editorID
	successor[FieldVersion] = next.Version
	successor[FieldIsActive] = true

	if _, err := coll.InsertOne(ctx, successor); err != nil {
		s.logFailure(ctx, db, "Update failed inserting new version, reactivating previous", err, fields)
		s.reactivate(ctx, db, coll, nativeID, current[FieldVersion], fields)
		s.observe("update_one", start, failureResult(err))
		return false
	}

	s.logger.InfoWithDuration(ctx, db.Name(), "Document updated", time.Since(start), fields)
	s.observe("update_one", start, metrics.ResultOK)
	return true
}

// reactivate undoes a deactivation whose successor could not be written.
func (s *Service) reactivate(ctx context.Context, db store.Database, coll store.Collection, nativeID, version interface{}, fields map[string]interface{}) {
	guard := store.Document{
		store.NativeIDField: nativeID,
		FieldIsActive:       false,
		FieldVersion:        version,
	}
	matched, err := coll.UpdateOne(ctx, guard, store.Document{FieldIsActive: true}, []string{FieldDeactivatedAt, FieldDeactivatedBy})
	if err != nil || matched == 0 {
		s.logFailure(ctx, db, "Could not reactivate previous version; lineage has no active version", err, fields)
	}
}

// DeleteOne soft-deletes the active document matching filter. No new version
// is written. It returns false when nothing active matches or the store fails.
func (s *Service) DeleteOne(ctx context.Context, db store.Database, collection string, filter store.Document, editorID string) bool {
	start := time.Now()
	fields := map[string]interface{}{"collection": collection, "editor": editorID}

	matched, err := db.Collection(collection).UpdateOne(ctx, prepareFilter(db, filter, false), store.Document{
		FieldIsActive:  false,
		FieldDeletedAt: s.timestamp(),
		FieldDeletedBy: editorID,
	}, nil)
	if err != nil {
		s.logFailure(ctx, db, "Delete failed", err, fields)
		s.observe("delete_one", start, failureResult(err))
		return false
	}
	if matched == 0 {
		s.observe("delete_one", start, metrics.ResultNotFound)
		return false
	}

	s.logger.Info(ctx, db.Name(), "Document deleted", fields)
	s.observe("delete_one", start, metrics.ResultOK)
	return true
}

// RestoreOne reverses a soft delete: the most recent deleted document matching
// filter becomes active again, unless its lineage already has an active version.
func (s *Service) RestoreOne(ctx context.Context, db store.Database, collection string, filter store.Document, editorID string) bool {
	start := time.Now()
	coll := db.Collection(collection)
	fields := map[string]interface{}{"collection": collection, "editor": editorID}

	f := prepareFilter(db, filter, true)
	f[FieldIsActive] = false
	f[FieldDeletedAt] = store.Document{"$exists": true}
	deleted, err := coll.FindOne(ctx, f, &store.FindOptions{Sort: store.Sort{{Key: FieldVersion, Descending: true}}})
	if errors.Is(err, store.ErrNoDocuments) {
		s.observe("restore_one", start, metrics.ResultNotFound)
		return false
	}
	if err != nil {
		s.logFailure(ctx, db, "Restore failed reading deleted version", err, fields)
		s.observe("restore_one", start, failureResult(err))
		return false
	}
	if _, err := StateOf(deleted).Restore(); err != nil {
		s.observe("restore_one", start, failureResult(err))
		return false
	}

	nativeID := deleted[store.NativeIDField]
	fields["id"] = db.FormatID(nativeID)

	if lineage, ok := deleted[FieldLineageID]; ok {
		active, err := coll.CountDocuments(ctx, store.Document{FieldLineageID: lineage, FieldIsActive: true})
		if err != nil {
			s.logFailure(ctx, db, "Restore failed checking lineage", err, fields)
			s.observe("restore_one", start, failureResult(err))
			return false
		}
		if active > 0 {
			s.logger.Warn(ctx, db.Name(), "Restore refused, lineage already has an active version", fields)
			s.observe("restore_one", start, metrics.ResultConflict)
			return false
		}
	}

	matched, err := coll.UpdateOne(ctx, store.Document{
		store.NativeIDField: nativeID,
		FieldIsActive:       false,
		FieldDeletedAt:      store.Document{"$exists": true},
	}, store.Document{
		FieldIsActive:   true,
		FieldRestoredAt: s.timestamp(),
		FieldRestoredBy: editorID,
	}, []string{FieldDeletedAt, FieldDeletedBy})
	if err != nil {
		s.logFailure(ctx, db, "Restore failed", err, fields)
		s.observe("restore_one", start, failureResult(err))
		return false
	}
	if matched == 0 {
		s.observe("restore_one", start, metrics.ResultConflict)
		return false
	}

	s.logger.Info(ctx, db.Name(), "Document restored", fields)
	s.observe("restore_one", start, metrics.ResultOK)
	return true
}

// History returns every version of a logical record, oldest first. Records
// created without a lineage id are found by the identifier of their first version.
func (s *Service) History(ctx context.Context, db store.Database, collection, lineageID string) ([]store.Document, error) {
	start := time.Now()
	filter := store.Document{"$or": []store.Document{
		{FieldLineageID: lineageID},
		{store.NativeIDField: db.ParseID(lineageID)},
	}}
	docs, err := db.Collection(collection).Find(ctx, filter, &store.FindOptions{
		Sort: store.Sort{{Key: FieldVersion}, {Key: FieldUpdatedAt}},
	})
	if err != nil {
		s.observe("history", start, failureResult(err))
		return nil, err
	}
	s.observe("history", start, metrics.ResultOK)
	return normalizeAll(db, docs), nil
}

// CountDocuments counts matching active documents.
func (s *Service) CountDocuments(ctx context.Context, db store.Database, collection string, filter store.Document, opts ...QueryOption) (int64, error) {
	start := time.Now()
	q := buildQuery(opts)
	n, err := db.Collection(collection).CountDocuments(ctx, prepareFilter(db, filter, q.includeInactive))
	if err != nil {
		s.observe("count", start, failureResult(err))
		return 0, err
	}
	s.observe("count", start, metrics.ResultOK)
	return n, nil
}

// Aggregate runs pipeline over active documents. The isActive condition is
// merged into a leading $match stage, or prepended as one.
func (s *Service) Aggregate(ctx context.Context, db store.Database, collection string, pipeline []store.Document, opts ...QueryOption) ([]store.Document, error) {
	start := time.Now()
	q := buildQuery(opts)
	docs, err := db.Collection(collection).Aggregate(ctx, preparePipeline(db, pipeline, q.includeInactive))
	if err != nil {
		s.observe("aggregate", start, failureResult(err))
		return nil, err
	}
	s.observe("aggregate", start, metrics.ResultOK)
	return normalizeAll(db, docs), nil
}
