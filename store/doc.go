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

/*
Package store defines the document-store contract the data layer is built on.

A Dialer produces one Client per connection; a Client hands out Database
handles by name and each Database hands out Collection handles. Documents are
plain maps. Filters use the usual document-store query shape: field equality
plus the $eq, $ne, $in, $nin, $exists, $gt, $gte, $lt, $lte, $and and $or
operators. Aggregation pipelines support $match, $sort, $skip, $limit, $count
and $group with $sum.

Two implementations exist:

  - store/mongodb, backed by the official MongoDB driver
  - store/memstore, an in-process store for tests and local development

Identifiers are exchanged as strings at the data-layer boundary ("id") and
converted to the store-native "_id" through the Database's IDCodec.
*/
package store
