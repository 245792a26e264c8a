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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"

	"github.com/sandeepjangra/valuation-app-sub000/store"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		notConnected bool
	}{
		{"nil", nil, false},
		{"client disconnected", mongo.ErrClientDisconnected, true},
		{"wrapped client disconnected", fmt.Errorf("find: %w", mongo.ErrClientDisconnected), true},
		{"server selection timeout", topology.ErrServerSelectionTimeout, true},
		{"server selection error", topology.ServerSelectionError{Wrapped: context.DeadlineExceeded}, true},
		{"topology closed", topology.ErrTopologyClosed, true},
		{"network label", mongo.CommandError{Code: 6, Name: "HostUnreachable", Labels: []string{"NetworkError"}}, true},
		{"duplicate key", mongo.CommandError{Code: 11000, Name: "DuplicateKey"}, false},
		{"plain", errors.New("document too large"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.err)
			assert.Equal(t, tt.notConnected, errors.Is(got, store.ErrNotConnected))
		})
	}
}

func newMockCollection(mt *mtest.T) *Collection {
	return &Collection{coll: mt.Coll, dbName: mt.DB.Name()}
}

func TestCollection_DriverMock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().
		ClientType(mtest.Mock).
		ClientOptions(options.Client().SetRetryReads(false).SetRetryWrites(false)))

	mt.Run("find one decodes the document", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "report-1"},
			{Key: "status", Value: "draft"},
		}))

		doc, err := newMockCollection(mt).FindOne(context.Background(), store.Document{"_id": "report-1"}, nil)
		require.NoError(mt, err)
		assert.Equal(mt, "report-1", doc["_id"])
		assert.Equal(mt, "draft", doc["status"])
	})

	mt.Run("find one with no match", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := newMockCollection(mt).FindOne(context.Background(), store.Document{"_id": "missing"}, nil)
		assert.ErrorIs(mt, err, store.ErrNoDocuments)
	})

	mt.Run("update reports matched count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		n, err := newMockCollection(mt).UpdateOne(context.Background(),
			store.Document{"_id": "report-1", "isActive": true},
			store.Document{"isActive": false}, nil)
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), n)
	})

	mt.Run("network error is not connected", func(mt *mtest.T) {
		netErr := mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    6,
			Name:    "HostUnreachable",
			Message: "connection reset by peer",
			Labels:  []string{"NetworkError"},
		})
		mt.AddMockResponses(netErr, netErr)

		_, err := newMockCollection(mt).FindOne(context.Background(), store.Document{"_id": "report-1"}, nil)
		require.Error(mt, err)
		assert.ErrorIs(mt, err, store.ErrNotConnected)
		var storeErr *store.StoreError
		assert.ErrorAs(mt, err, &storeErr)
	})

	mt.Run("command error stays a store error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "unknown operator: $foo",
		}))

		_, err := newMockCollection(mt).CountDocuments(context.Background(), store.Document{"a": store.Document{"$foo": 1}})
		require.Error(mt, err)
		assert.False(mt, errors.Is(err, store.ErrNotConnected))
	})
}

func TestIntegration_NotConnectedAfterDisconnect(t *testing.T) {
	client := skipIfNoMongoDB(t)
	if client == nil {
		return
	}
	ctx := context.Background()
	coll := client.Database("reportstore_test_disconnect").Collection("reports")

	require.NoError(t, client.Disconnect(ctx))

	_, err := coll.FindOne(ctx, store.Document{"name": "A"}, nil)
	assert.ErrorIs(t, err, store.ErrNotConnected)
	_, err = coll.InsertOne(ctx, store.Document{"name": "A"})
	assert.ErrorIs(t, err, store.ErrNotConnected)
}
