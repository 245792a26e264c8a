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

// Package memstore is an in-process implementation of the store contract.
//
// It backs unit tests and the CLI's --memory mode. A Server holds every
// database; any number of clients may be dialed against it. Failures can be
// injected per operation, per database, or for the whole server.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sandeepjangra/valuation-app-sub000/store"
)

// Operation names accepted by FailOperation and passed to OnOperation hooks.
const (
	OpInsert          = "insert"
	OpFind            = "find"
	OpUpdate          = "update"
	OpDelete          = "delete"
	OpCount           = "count"
	OpAggregate       = "aggregate"
	OpListCollections = "listCollections"
)

var (
	// ErrUnreachable is returned by every call while the server is unreachable.
	ErrUnreachable = fmt.Errorf("connection refused: %w", store.ErrNotConnected)
	// ErrClientDisconnected is returned by every call on a disconnected client.
	ErrClientDisconnected = fmt.Errorf("client is disconnected: %w", store.ErrNotConnected)
)

// Server is the shared state behind every client dialed from it.
type Server struct {
	mu          sync.Mutex
	dbs         map[string]*dbData
	seq         uint64
	dials       int
	unreachable bool
	dbFailures  map[string]error
	opFailures  map[string]error
	hook        func(op, database, collection string)
}

type dbData struct {
	colls map[string]*collData
}

type collData struct {
	docs []store.Document
}

// NewServer creates an empty server.
func NewServer() *Server {
	return &Server{
		dbs:        make(map[string]*dbData),
		dbFailures: make(map[string]error),
		opFailures: make(map[string]error),
	}
}

// Dial implements store.Dialer.
func (s *Server) Dial(ctx context.Context, uri string, _ store.DialOptions) (store.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.unreachable {
		return nil, fmt.Errorf("dial %s: %w", uri, ErrUnreachable)
	}
	return &client{srv: s}, nil
}

// DialCount returns how many times Dial has been called.
func (s *Server) DialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// SetUnreachable makes Dial and every call on existing clients fail until cleared.
func (s *Server) SetUnreachable(v bool) {
	s.mu.Lock()
	s.unreachable = v
	s.mu.Unlock()
}

// FailDatabase makes Ping and ListCollectionNames on the named database return err. nil clears it.
func (s *Server) FailDatabase(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.dbFailures, name)
		return
	}
	s.dbFailures[name] = err
}

// FailOperation makes every call of op return err. nil clears it.
func (s *Server) FailOperation(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.opFailures, op)
		return
	}
	s.opFailures[op] = err
}

// OnOperation installs a hook run before every collection operation, outside the server lock.
func (s *Server) OnOperation(fn func(op, database, collection string)) {
	s.mu.Lock()
	s.hook = fn
	s.mu.Unlock()
}

// DatabaseNames lists every database that holds at least one collection.
func (s *Server) DatabaseNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.dbs))
	for name, db := range s.dbs {
		if len(db.colls) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Documents returns a copy of every stored document of a collection in insertion order, native ids included.
func (s *Server) Documents(database, collection string) []store.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.lookup(database, collection, false)
	if c == nil {
		return nil
	}
	out := make([]store.Document, len(c.docs))
	for i, d := range c.docs {
		out[i] = d.Clone()
	}
	return out
}

func (s *Server) lookup(database, collection string, create bool) *collData {
	db, ok := s.dbs[database]
	if !ok {
		if !create {
			return nil
		}
		db = &dbData{colls: make(map[string]*collData)}
		s.dbs[database] = db
	}
	c, ok := db.colls[collection]
	if !ok {
		if !create {
			return nil
		}
		c = &collData{}
		db.colls[collection] = c
	}
	return c
}

// begin runs the hook, then takes the lock. Callers must unlock.
func (s *Server) begin(ctx context.Context, c *client, op, database, collection string) error {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(op, database, collection)
	}

	closed := c.isClosed()
	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if closed {
		return fmt.Errorf("%s: %w", op, ErrClientDisconnected)
	}
	if s.unreachable {
		return fmt.Errorf("%s: %w", op, ErrUnreachable)
	}
	if err, ok := s.opFailures[op]; ok {
		return err
	}
	return nil
}

type client struct {
	srv *Server

	mu     sync.Mutex
	closed bool
}

func (c *client) Database(name string) store.Database {
	return &database{srv: c.srv, client: c, name: name}
}

func (c *client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return fmt.Errorf("ping: %w", ErrClientDisconnected)
	}
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if c.srv.unreachable {
		return fmt.Errorf("ping: %w", ErrUnreachable)
	}
	return nil
}

func (c *client) Disconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientDisconnected
	}
	c.closed = true
	return nil
}

type database struct {
	srv    *Server
	client *client
	name   string
}

func (d *database) Name() string { return d.name }

func (d *database) ParseID(id string) interface{} { return id }

func (d *database) FormatID(native interface{}) string {
	if s, ok := native.(string); ok {
		return s
	}
	return fmt.Sprint(native)
}

func (d *database) Collection(name string) store.Collection {
	return &collection{db: d, name: name}
}

func (d *database) ListCollectionNames(ctx context.Context) ([]string, error) {
	if err := d.srv.begin(ctx, d.client, OpListCollections, d.name, ""); err != nil {
		d.srv.mu.Unlock()
		return nil, err
	}
	defer d.srv.mu.Unlock()
	if err := d.srv.dbFailures[d.name]; err != nil {
		return nil, err
	}
	db, ok := d.srv.dbs[d.name]
	if !ok {
		return []string{}, nil
	}
	names := make([]string, 0, len(db.colls))
	for name := range db.colls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *database) Ping(ctx context.Context) error {
	if err := d.client.Ping(ctx); err != nil {
		return err
	}
	d.srv.mu.Lock()
	defer d.srv.mu.Unlock()
	return d.srv.dbFailures[d.name]
}

type collection struct {
	db   *database
	name string
}

func (c *collection) Name() string { return c.name }

func (c *collection) begin(ctx context.Context, op string) error {
	return c.db.srv.begin(ctx, c.db.client, op, c.db.name, c.name)
}

func (c *collection) unlock() { c.db.srv.mu.Unlock() }

func (c *collection) InsertOne(ctx context.Context, doc store.Document) (interface{}, error) {
	err := c.begin(ctx, OpInsert)
	defer c.unlock()
	if err != nil {
		return nil, err
	}

	srv := c.db.srv
	stored := doc.Clone()
	if stored == nil {
		stored = store.Document{}
	}
	id, ok := stored[store.NativeIDField]
	if !ok || id == nil {
		srv.seq++
		id = fmt.Sprintf("%024x", srv.seq)
		stored[store.NativeIDField] = id
	}

	coll := srv.lookup(c.db.name, c.name, true)
	for _, existing := range coll.docs {
		if valuesEqual(existing[store.NativeIDField], id) {
			return nil, fmt.Errorf("E11000 duplicate key error collection: %s.%s _id: %v", c.db.name, c.name, id)
		}
	}
	coll.docs = append(coll.docs, stored)
	return id, nil
}

func (c *collection) FindOne(ctx context.Context, filter store.Document, opts *store.FindOptions) (store.Document, error) {
	one := store.FindOptions{Limit: 1}
	if opts != nil {
		one.Sort = opts.Sort
		one.Skip = opts.Skip
	}
	docs, err := c.Find(ctx, filter, &one)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNoDocuments
	}
	return docs[0], nil
}

func (c *collection) Find(ctx context.Context, filter store.Document, opts *store.FindOptions) ([]store.Document, error) {
	err := c.begin(ctx, OpFind)
	defer c.unlock()
	if err != nil {
		return nil, err
	}

	docs, err := c.matching(filter)
	if err != nil {
		return nil, err
	}
	if opts != nil {
		if len(opts.Sort) > 0 {
			sortDocuments(docs, opts.Sort)
		}
		docs = window(docs, opts.Skip, opts.Limit)
	}
	out := make([]store.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out, nil
}

func (c *collection) UpdateOne(ctx context.Context, filter store.Document, set store.Document, unset []string) (int64, error) {
	err := c.begin(ctx, OpUpdate)
	defer c.unlock()
	if err != nil {
		return 0, err
	}

	coll := c.db.srv.lookup(c.db.name, c.name, false)
	if coll == nil {
		return 0, nil
	}
	for _, doc := range coll.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		for k, v := range set {
			if k == store.NativeIDField {
				return 0, errors.New("performing an update on the path '_id' would modify the immutable field '_id'")
			}
			setPath(doc, k, cloneAny(v))
		}
		for _, k := range unset {
			unsetPath(doc, k)
		}
		return 1, nil
	}
	return 0, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter store.Document) (int64, error) {
	err := c.begin(ctx, OpDelete)
	defer c.unlock()
	if err != nil {
		return 0, err
	}

	coll := c.db.srv.lookup(c.db.name, c.name, false)
	if coll == nil {
		return 0, nil
	}
	for i, doc := range coll.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			coll.docs = append(coll.docs[:i], coll.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (c *collection) CountDocuments(ctx context.Context, filter store.Document) (int64, error) {
	err := c.begin(ctx, OpCount)
	defer c.unlock()
	if err != nil {
		return 0, err
	}
	docs, err := c.matching(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (c *collection) Aggregate(ctx context.Context, pipeline []store.Document) ([]store.Document, error) {
	err := c.begin(ctx, OpAggregate)
	defer c.unlock()
	if err != nil {
		return nil, err
	}

	docs, err := c.matching(nil)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i] = docs[i].Clone()
	}
	for _, stage := range pipeline {
		docs, err = applyStage(docs, stage)
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// matching must be called with the server lock held. Returned documents are the stored ones.
func (c *collection) matching(filter store.Document) ([]store.Document, error) {
	coll := c.db.srv.lookup(c.db.name, c.name, false)
	if coll == nil {
		return nil, nil
	}
	var out []store.Document
	for _, doc := range coll.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func window(docs []store.Document, skip, limit int64) []store.Document {
	if skip > 0 {
		if skip >= int64(len(docs)) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}
