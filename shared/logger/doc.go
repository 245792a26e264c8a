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
Package logger provides structured JSON logging for the report data layer.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (connection, tenant-cache, crud, health, ...)
  - Instance ID and container name
  - Tenant ID, when the line concerns one organization's namespace
  - Request ID, taken from the context
  - Custom fields

# Usage

	log := logger.New("crud")
	ctx = logger.WithRequestID(ctx, "req-456")

	log.Info(ctx, "acme", "document updated", map[string]interface{}{
	    "collection": "reports",
	    "version":    3,
	})

	log.ErrorWithErr(ctx, logger.WARN, "acme", "update downgraded", err, nil)

# Output Format

	{"timestamp":"2025-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"crud","instance_id":"i-abc123","container":"api-xyz",
	 "tenant_id":"acme","request_id":"req-456",
	 "message":"document updated","fields":{"collection":"reports"}}

# Environment Variables

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)

Logger instances are safe for concurrent use. A nil *Logger discards everything.
*/
package logger
