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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sandeepjangra/valuation-app-sub000/store/retry"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "REPORTSTORE_"

// Config is the full data-layer configuration.
type Config struct {
	MongoDB   MongoDBConfig   `yaml:"mongodb"`
	Retry     RetryConfig     `yaml:"retry"`
	Databases DatabasesConfig `yaml:"databases"`
	Tenants   TenantsConfig   `yaml:"tenants"`
	Blob      BlobConfig      `yaml:"blob"`
	Health    HealthConfig    `yaml:"health"`
}

// MongoDBConfig holds the connection settings.
type MongoDBConfig struct {
	URI            string        `yaml:"uri"`
	URISecretARN   string        `yaml:"uri_secret_arn,omitempty"`
	AppName        string        `yaml:"app_name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	MaxPoolSize    uint64        `yaml:"max_pool_size"`
}

// RetryConfig bounds connection attempts.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// Policy converts the settings into a retry.Config.
func (r RetryConfig) Policy() retry.Config {
	p := retry.DefaultConfig()
	p.MaxAttempts = r.MaxAttempts
	p.InitialInterval = r.InitialInterval
	p.MaxInterval = r.MaxInterval
	return p
}

// DatabasesConfig names the physical system databases. Legacy names are kept
// only while older data is migrated.
type DatabasesConfig struct {
	Admin         string `yaml:"admin"`
	Shared        string `yaml:"shared"`
	LegacyMain    string `yaml:"legacy_main,omitempty"`
	LegacyReports string `yaml:"legacy_reports,omitempty"`
}

// TenantsConfig configures per-tenant databases.
type TenantsConfig struct {
	CacheSize           int      `yaml:"cache_size"`
	RequiredCollections []string `yaml:"required_collections"`
}

// BlobConfig configures the S3-compatible object store. Buckets maps a kind
// (reports, images, ...) to a bucket name.
type BlobConfig struct {
	Region          string            `yaml:"region"`
	Endpoint        string            `yaml:"endpoint,omitempty"`
	ForcePathStyle  bool              `yaml:"force_path_style,omitempty"`
	AccessKeyID     string            `yaml:"access_key_id,omitempty"`
	SecretAccessKey string            `yaml:"secret_access_key,omitempty"`
	Buckets         map[string]string `yaml:"buckets,omitempty"`
}

// Enabled reports whether any bucket is configured.
func (b BlobConfig) Enabled() bool {
	for _, name := range b.Buckets {
		if name != "" {
			return true
		}
	}
	return false
}

// HealthConfig configures periodic health checks. A zero interval disables them.
type HealthConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		MongoDB: MongoDBConfig{
			AppName:        "valuation-reportstore",
			ConnectTimeout: 20 * time.Second,
			PingTimeout:    15 * time.Second,
			MaxPoolSize:    100,
		},
		Retry: RetryConfig{
			MaxAttempts:     5,
			InitialInterval: 2 * time.Second,
			MaxInterval:     60 * time.Second,
		},
		Databases: DatabasesConfig{
			Admin:         "valuation_admin",
			Shared:        "valuation_shared",
			LegacyMain:    "valuation_app_prod",
			LegacyReports: "valuation_reports",
		},
		Tenants: TenantsConfig{
			CacheSize:           100,
			RequiredCollections: []string{"reports", "users", "activity_logs"},
		},
		Blob: BlobConfig{
			Region:  "us-east-1",
			Buckets: map[string]string{},
		},
	}
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ApplyEnv overlays REPORTSTORE_* environment variables. MONGODB_URI is honoured
// when REPORTSTORE_MONGODB_URI is unset.
func (c *Config) ApplyEnv() error {
	var errs []error

	c.MongoDB.URI = getEnvOrDefault(EnvPrefix+"MONGODB_URI", getEnvOrDefault("MONGODB_URI", c.MongoDB.URI))
	c.MongoDB.URISecretARN = getEnvOrDefault(EnvPrefix+"MONGODB_URI_SECRET_ARN", c.MongoDB.URISecretARN)
	c.MongoDB.AppName = getEnvOrDefault(EnvPrefix+"APP_NAME", c.MongoDB.AppName)
	errs = append(errs,
		envDuration("CONNECT_TIMEOUT", &c.MongoDB.ConnectTimeout),
		envDuration("PING_TIMEOUT", &c.MongoDB.PingTimeout),
		envUint("MAX_POOL_SIZE", &c.MongoDB.MaxPoolSize),
		envInt("MAX_RETRIES", &c.Retry.MaxAttempts),
		envDuration("RETRY_INITIAL", &c.Retry.InitialInterval),
		envDuration("RETRY_MAX", &c.Retry.MaxInterval),
		envInt("TENANT_CACHE_SIZE", &c.Tenants.CacheSize),
		envDuration("HEALTH_INTERVAL", &c.Health.Interval),
	)

	c.Databases.Admin = getEnvOrDefault(EnvPrefix+"DB_ADMIN", c.Databases.Admin)
	c.Databases.Shared = getEnvOrDefault(EnvPrefix+"DB_SHARED", c.Databases.Shared)
	c.Databases.LegacyMain = getEnvOrDefault(EnvPrefix+"DB_LEGACY_MAIN", c.Databases.LegacyMain)
	c.Databases.LegacyReports = getEnvOrDefault(EnvPrefix+"DB_LEGACY_REPORTS", c.Databases.LegacyReports)

	if v := os.Getenv(EnvPrefix + "TENANT_COLLECTIONS"); v != "" {
		c.Tenants.RequiredCollections = splitList(v)
	}

	c.Blob.Region = getEnvOrDefault(EnvPrefix+"BLOB_REGION", c.Blob.Region)
	c.Blob.Endpoint = getEnvOrDefault(EnvPrefix+"BLOB_ENDPOINT", c.Blob.Endpoint)
	c.Blob.AccessKeyID = getEnvOrDefault(EnvPrefix+"BLOB_ACCESS_KEY_ID", c.Blob.AccessKeyID)
	c.Blob.SecretAccessKey = getEnvOrDefault(EnvPrefix+"BLOB_SECRET_ACCESS_KEY", c.Blob.SecretAccessKey)
	if v := os.Getenv(EnvPrefix + "BLOB_FORCE_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sBLOB_FORCE_PATH_STYLE: %w", EnvPrefix, err))
		} else {
			c.Blob.ForcePathStyle = b
		}
	}

	bucketPrefix := EnvPrefix + "BLOB_BUCKET_"
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, bucketPrefix) || value == "" {
			continue
		}
		if c.Blob.Buckets == nil {
			c.Blob.Buckets = make(map[string]string)
		}
		c.Blob.Buckets[strings.ToLower(strings.TrimPrefix(key, bucketPrefix))] = value
	}

	return errors.Join(errs...)
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = d
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = n
	return nil
}

func envUint(name string, dst *uint64) error {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []error
	if c.MongoDB.URI == "" {
		errs = append(errs, errors.New("mongodb.uri is required"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Tenants.CacheSize <= 0 {
		errs = append(errs, errors.New("tenants.cache_size must be positive"))
	}
	if c.Databases.Admin == "" || c.Databases.Shared == "" {
		errs = append(errs, errors.New("databases.admin and databases.shared are required"))
	}

	seen := make(map[string]string)
	for key, name := range map[string]string{
		"databases.admin":          c.Databases.Admin,
		"databases.shared":         c.Databases.Shared,
		"databases.legacy_main":    c.Databases.LegacyMain,
		"databases.legacy_reports": c.Databases.LegacyReports,
	} {
		if name == "" {
			continue
		}
		if other, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("database name %q used by both %s and %s", name, other, key))
			continue
		}
		seen[name] = key
	}

	return errors.Join(errs...)
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, resolving the connection URI through secrets when a secret ARN
// is configured. secrets may be nil when no ARN is expected.
func Load(ctx context.Context, path string, secrets SecretsManager) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if cfg.MongoDB.URISecretARN != "" {
		if secrets == nil {
			return nil, errors.New("mongodb.uri_secret_arn is set but no secrets manager is available")
		}
		uri, err := ResolveURI(ctx, secrets, cfg.MongoDB.URISecretARN)
		if err != nil {
			return nil, err
		}
		cfg.MongoDB.URI = uri
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
