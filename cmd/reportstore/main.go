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

// Package main implements the reportstore CLI for operating the valuation
// report data layer.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	blobs3 "github.com/sandeepjangra/valuation-app-sub000/blob/s3"
	"github.com/sandeepjangra/valuation-app-sub000/datastore"
	"github.com/sandeepjangra/valuation-app-sub000/shared/logger"
	"github.com/sandeepjangra/valuation-app-sub000/store"
	"github.com/sandeepjangra/valuation-app-sub000/store/config"
	"github.com/sandeepjangra/valuation-app-sub000/store/memstore"
	"github.com/sandeepjangra/valuation-app-sub000/store/mongodb"
)

var version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	memory     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "reportstore",
		Short:        "Valuation report data layer tool",
		Long:         `reportstore checks, serves and maintains the tenant-aware document store behind the valuation report app.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "Path to a YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.memory, "memory", false, "Use an in-process store instead of MongoDB (local development)")

	cmd.AddCommand(healthCmd(opts))
	cmd.AddCommand(serveCmd(opts))
	cmd.AddCommand(ensureTenantCmd(opts))
	cmd.AddCommand(historyCmd(opts))
	cmd.AddCommand(attachmentCmd(opts))

	return cmd
}

// commandContext tags the command's context with a fresh request id.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.WithRequestID(ctx, uuid.NewString())
}

// open loads configuration, builds the manager and connects it.
func (o *rootOptions) open(ctx context.Context, reg prometheus.Registerer) (*datastore.Manager, error) {
	var dialer store.Dialer = mongodb.NewDialer()
	if o.memory {
		if os.Getenv(config.EnvPrefix+"MONGODB_URI") == "" {
			_ = os.Setenv(config.EnvPrefix+"MONGODB_URI", "memory://local")
		}
		dialer = memstore.NewServer()
	}

	cfg, err := config.Load(ctx, o.configPath, &lazySecrets{})
	if err != nil {
		return nil, err
	}

	opts := []datastore.Option{datastore.WithRegisterer(reg)}
	if cfg.Blob.Enabled() {
		b, err := blobs3.New(ctx, cfg.Blob)
		if err != nil {
			return nil, err
		}
		opts = append(opts, datastore.WithBlobStore(b))
	}

	m, err := datastore.New(cfg, dialer, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.Start(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// lazySecrets creates the AWS Secrets Manager client only when a secret is
// actually requested.
type lazySecrets struct {
	once sync.Once
	sm   *config.AWSSecretsManager
	err  error
}

func (l *lazySecrets) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	l.once.Do(func() {
		l.sm, l.err = config.NewAWSSecretsManager(ctx, config.AWSSecretsManagerOptions{})
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.sm.GetSecret(ctx, secretARN)
}
