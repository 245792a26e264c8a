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
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// ensureTenantCmd returns the command that creates tenant collections.
func ensureTenantCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-tenant <tenant-id>...",
		Short: "Create the required collections for tenants",
		Long: `Create every configured required collection in each tenant's database.
Existing collections are left alone.

Examples:
  reportstore ensure-tenant acme
  reportstore ensure-tenant acme sharma-valuers`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			m, err := opts.open(ctx, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer m.Close(ctx)

			collections := strings.Join(m.Config().Tenants.RequiredCollections, ", ")
			var errs []error
			for _, id := range args {
				if err := m.EnsureTenant(ctx, id); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", id, err))
					fmt.Fprintf(cmd.ErrOrStderr(), "❌ %s: %v\n", id, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ %s ready (%s)\n", id, collections)
			}
			return errors.Join(errs...)
		},
	}
}

// historyCmd returns the command that prints every version of a record.
func historyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <tenant-id> <collection> <lineage-id>",
		Short: "Print every version of a logical record",
		Long: `Print every version of a logical record, oldest first, as JSON. Records
written before lineage ids existed are found by the id of their first version.

Examples:
  reportstore history acme reports 3f1c2a9e-6d1b-4c55-9a53-2a7b9a6f0c11`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			m, err := opts.open(ctx, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer m.Close(ctx)

			db, err := m.Tenant(ctx, args[0])
			if err != nil {
				return err
			}
			versions, err := m.CRUD().History(ctx, db, args[1], args[2])
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}
			if len(versions) == 0 {
				return fmt.Errorf("no versions found for %s in %s.%s", args[2], args[0], args[1])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(versions)
		},
	}
}
