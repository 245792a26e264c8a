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

// Package mongodb adapts the official MongoDB driver to the store contract.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"

	"github.com/sandeepjangra/valuation-app-sub000/store"
	"github.com/sandeepjangra/valuation-app-sub000/store/retry"
)

// DefaultMaxPoolSize is the default maximum connection pool size
const DefaultMaxPoolSize = 100

// Dialer connects to MongoDB deployments.
type Dialer struct{}

// NewDialer creates a new MongoDB dialer
func NewDialer() *Dialer {
	return &Dialer{}
}

// ClientOptions builds driver options for uri. Errors in the URI are reported by Validate.
func ClientOptions(uri string, opts store.DialOptions) *options.ClientOptions {
	clientOpts := options.Client().ApplyURI(uri)

	maxPoolSize := uint64(DefaultMaxPoolSize)
	if opts.MaxPoolSize > 0 {
		maxPoolSize = opts.MaxPoolSize
	}
	clientOpts.SetMaxPoolSize(maxPoolSize)

	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
		clientOpts.SetServerSelectionTimeout(opts.ConnectTimeout)
	}
	if opts.AppName != "" {
		clientOpts.SetAppName(opts.AppName)
	}

	clientOpts.SetRetryWrites(true)
	clientOpts.SetRetryReads(true)
	return clientOpts
}

// Dial creates a driver client. An invalid URI is returned as a permanent error.
func (d *Dialer) Dial(ctx context.Context, uri string, opts store.DialOptions) (store.Client, error) {
	clientOpts := ClientOptions(uri, opts)
	if err := clientOpts.Validate(); err != nil {
		return nil, retry.Permanent(store.NewStoreError("", "Dial", "invalid connection options", err))
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, store.NewStoreError("", "Dial", "failed to create client", err)
	}
	return &Client{client: client}, nil
}

// Client wraps *mongo.Client.
type Client struct {
	client *mongo.Client
}

// Database implements store.Client.
func (c *Client) Database(name string) store.Database {
	return &Database{db: c.client.Database(name)}
}

// Ping verifies the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return store.NewStoreError("", "Ping", "ping failed", classify(err))
	}
	return nil
}

// Disconnect closes every pooled connection.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Database wraps *mongo.Database.
type Database struct {
	db *mongo.Database
}

// Name implements store.Database.
func (d *Database) Name() string { return d.db.Name() }

// ParseID turns a 24-hex string into an ObjectID and keeps anything else as a string.
func (d *Database) ParseID(id string) interface{} {
	if primitive.IsValidObjectID(id) {
		oid, err := primitive.ObjectIDFromHex(id)
		if err == nil {
			return oid
		}
	}
	return id
}

// FormatID implements store.IDCodec.
func (d *Database) FormatID(native interface{}) string {
	switch v := native.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Collection implements store.Database.
func (d *Database) Collection(name string) store.Collection {
	return &Collection{coll: d.db.Collection(name), dbName: d.db.Name()}
}

// ListCollectionNames implements store.Database.
func (d *Database) ListCollectionNames(ctx context.Context) ([]string, error) {
	names, err := d.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, store.NewStoreError(d.db.Name(), "ListCollectionNames", "failed to list collections", classify(err))
	}
	return names, nil
}

// Ping runs the ping command against this database.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return store.NewStoreError(d.db.Name(), "Ping", "ping failed", classify(err))
	}
	return nil
}

// Collection wraps *mongo.Collection.
type Collection struct {
	coll   *mongo.Collection
	dbName string
}

// Name implements store.Collection.
func (c *Collection) Name() string { return c.coll.Name() }

func (c *Collection) fail(op, message string, err error) error {
	return store.NewStoreError(c.dbName, c.coll.Name()+"."+op, message, classify(err))
}

// classify marks errors meaning no server could be used with store.ErrNotConnected.
func classify(err error) error {
	if err == nil || !isConnectivityError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", store.ErrNotConnected, err)
}

func isConnectivityError(err error) bool {
	if errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, topology.ErrServerSelectionTimeout) ||
		errors.Is(err, topology.ErrTopologyClosed) {
		return true
	}
	var selection topology.ServerSelectionError
	if errors.As(err, &selection) {
		return true
	}
	return mongo.IsNetworkError(err)
}

// InsertOne implements store.Collection.
func (c *Collection) InsertOne(ctx context.Context, doc store.Document) (interface{}, error) {
	res, err := c.coll.InsertOne(ctx, toFilter(doc))
	if err != nil {
		return nil, c.fail("InsertOne", "insert failed", err)
	}
	return res.InsertedID, nil
}

func findOptions(opts *store.FindOptions) *options.FindOptions {
	findOpts := options.Find()
	if opts == nil {
		return findOpts
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(sortToBSON(opts.Sort))
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	return findOpts
}

// FindOne implements store.Collection.
func (c *Collection) FindOne(ctx context.Context, filter store.Document, opts *store.FindOptions) (store.Document, error) {
	oneOpts := options.FindOne()
	if opts != nil {
		if len(opts.Sort) > 0 {
			oneOpts.SetSort(sortToBSON(opts.Sort))
		}
		if opts.Skip > 0 {
			oneOpts.SetSkip(opts.Skip)
		}
	}

	var raw bson.M
	err := c.coll.FindOne(ctx, toFilter(filter), oneOpts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNoDocuments
	}
	if err != nil {
		return nil, c.fail("FindOne", "find failed", err)
	}
	return fromBSONDocument(raw), nil
}

// Find implements store.Collection.
func (c *Collection) Find(ctx context.Context, filter store.Document, opts *store.FindOptions) ([]store.Document, error) {
	cursor, err := c.coll.Find(ctx, toFilter(filter), findOptions(opts))
	if err != nil {
		return nil, c.fail("Find", "find failed", err)
	}
	return c.drain(ctx, "Find", cursor)
}

func (c *Collection) drain(ctx context.Context, op string, cursor *mongo.Cursor) ([]store.Document, error) {
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, c.fail(op, "failed to decode results", err)
	}
	out := make([]store.Document, len(raw))
	for i, m := range raw {
		out[i] = fromBSONDocument(m)
	}
	return out, nil
}

// UpdateOne implements store.Collection.
func (c *Collection) UpdateOne(ctx context.Context, filter store.Document, set store.Document, unset []string) (int64, error) {
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = toBSONValue(set)
	}
	if len(unset) > 0 {
		fields := bson.M{}
		for _, k := range unset {
			fields[k] = ""
		}
		update["$unset"] = fields
	}
	if len(update) == 0 {
		return 0, c.fail("UpdateOne", "update document is empty", nil)
	}

	res, err := c.coll.UpdateOne(ctx, toFilter(filter), update)
	if err != nil {
		return 0, c.fail("UpdateOne", "update failed", err)
	}
	return res.MatchedCount, nil
}

// DeleteOne implements store.Collection.
func (c *Collection) DeleteOne(ctx context.Context, filter store.Document) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, toFilter(filter))
	if err != nil {
		return 0, c.fail("DeleteOne", "delete failed", err)
	}
	return res.DeletedCount, nil
}

// CountDocuments implements store.Collection.
func (c *Collection) CountDocuments(ctx context.Context, filter store.Document) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, toFilter(filter))
	if err != nil {
		return 0, c.fail("CountDocuments", "count failed", err)
	}
	return n, nil
}

// Aggregate implements store.Collection.
func (c *Collection) Aggregate(ctx context.Context, pipeline []store.Document) ([]store.Document, error) {
	stages := make(bson.A, len(pipeline))
	for i, stage := range pipeline {
		stages[i] = toBSONValue(stage)
	}
	cursor, err := c.coll.Aggregate(ctx, stages)
	if err != nil {
		return nil, c.fail("Aggregate", "aggregate failed", err)
	}
	return c.drain(ctx, "Aggregate", cursor)
}
