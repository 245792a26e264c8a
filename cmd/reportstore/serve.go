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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sandeepjangra/valuation-app-sub000/datastore/health"
	"github.com/sandeepjangra/valuation-app-sub000/shared/logger"
)

const shutdownTimeout = 10 * time.Second

// healthSource is the part of health.Monitor the router needs.
type healthSource interface {
	Last() (health.Report, bool)
	HealthCheck(ctx context.Context) health.Report
}

// newRouter serves the health report and Prometheus metrics.
func newRouter(h healthSource, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		report, ok := h.Last()
		if !ok || req.URL.Query().Get("fresh") == "true" {
			report = h.HealthCheck(req.Context())
		}

		w.Header().Set("Content-Type", "application/json")
		if !report.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	}).Methods("GET")

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	return r
}

// serveCmd returns the command that serves the ops endpoints.
func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /health and /metrics",
		Long: `Connect, start periodic health checks and serve the health report and
Prometheus metrics until interrupted.

Examples:
  reportstore serve --addr :9090
  reportstore serve --memory --health-interval 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			m, err := opts.open(ctx, reg)
			if err != nil {
				return err
			}
			defer m.Close(context.WithoutCancel(ctx))

			if m.Config().Health.Interval <= 0 && interval > 0 {
				m.Health().Start(ctx, interval)
			}
			m.Health().HealthCheck(ctx)

			log := logger.New("reportstore")
			srv := &http.Server{
				Addr:              addr,
				Handler:           newRouter(m.Health(), reg),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info(ctx, "", "Ops endpoint listening", map[string]interface{}{"addr": addr})
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info(context.WithoutCancel(ctx), "", "Shutting down ops endpoint", nil)
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9090", "Listen address")
	cmd.Flags().DurationVar(&interval, "health-interval", 30*time.Second, "Health check interval when the configuration sets none")

	return cmd
}
