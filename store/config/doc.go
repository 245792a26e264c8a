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
Package config loads the report-store configuration.

Values are layered in this order, later layers winning:

 1. Default()
 2. an optional YAML file (LoadFile), with ${VAR} and ${VAR:-default} expansion
 3. REPORTSTORE_* environment variables (ApplyEnv)
 4. the connection URI from AWS Secrets Manager when mongodb.uri_secret_arn is set

Example file:

	mongodb:
	  uri: ${MONGODB_URI}
	  connect_timeout: 20s
	databases:
	  admin: valuation_admin
	  shared: valuation_shared
	tenants:
	  cache_size: 100
	  required_collections: [reports, users, activity_logs]
	blob:
	  region: ap-south-1
	  buckets:
	    reports: valuation-report-pdfs
	    images: valuation-site-images
*/
package config
