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

package main

import (
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	blobs3 "github.com/sandeepjangra/valuation-app-sub000/blob/s3"
	"github.com/sandeepjangra/valuation-app-sub000/datastore/health"
)

type healthOutput struct {
	Store health.Report         `json:"store"`
	Blob  []blobs3.BucketStatus `json:"blob,omitempty"`
}

// healthCmd returns the command that runs one health check.
func healthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check every system database once",
		Long: `Connect, probe every system database and print the report as JSON.

Exits non-zero unless every database is healthy.

Examples:
  reportstore health
  reportstore health --config /etc/reportstore.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			m, err := opts.open(ctx, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer m.Close(ctx)

			out := healthOutput{Store: m.Health().HealthCheck(ctx)}
			blobHealthy := true
			if b := m.Blob(); b != nil {
				out.Blob = b.HealthCheck(ctx)
				for _, s := range out.Blob {
					blobHealthy = blobHealthy && s.Healthy
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}

			if !out.Store.Healthy() {
				return fmt.Errorf("document store is %s", out.Store.Status)
			}
			if !blobHealthy {
				return fmt.Errorf("blob storage is not healthy")
			}
			return nil
		},
	}
}
