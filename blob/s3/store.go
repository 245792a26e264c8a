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

// Package s3 stores report attachments (generated PDFs, property images) in
// S3-compatible buckets, one bucket per kind, with object keys namespaced by
// tenant. MinIO and other S3-compatible services work through Endpoint and
// ForcePathStyle.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sandeepjangra/valuation-app-sub000/datastore/tenant"
	"github.com/sandeepjangra/valuation-app-sub000/shared/logger"
	"github.com/sandeepjangra/valuation-app-sub000/store"
	"github.com/sandeepjangra/valuation-app-sub000/store/config"
)

// DefaultPresignExpiry is used when PresignGet is given no expiry.
const DefaultPresignExpiry = time.Hour

var (
	// ErrUnknownBucket is returned for a kind with no configured bucket.
	ErrUnknownBucket = errors.New("unknown bucket kind")
	// ErrInvalidKey is returned for an empty or escaping object key.
	ErrInvalidKey = errors.New("invalid object key")
)

// Store reads and writes tenant objects.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	buckets map[string]string
	region  string
	logger  *logger.Logger
}

// New builds the S3 client from cfg. Static credentials are used when both
// keys are set; otherwise the default credential chain applies. No request is
// made until the first operation.
func New(ctx context.Context, cfg config.BlobConfig) (*Store, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		optFns = append(optFns, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)
	buckets := make(map[string]string, len(cfg.Buckets))
	for kind, name := range cfg.Buckets {
		if name != "" {
			buckets[strings.ToLower(kind)] = name
		}
	}

	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		buckets: buckets,
		region:  region,
		logger:  logger.New("blob"),
	}, nil
}

// Kinds lists configured bucket kinds in order.
func (s *Store) Kinds() []string {
	kinds := make([]string, 0, len(s.buckets))
	for k := range s.buckets {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Bucket returns the bucket configured for kind.
func (s *Store) Bucket(kind string) (string, error) {
	name, ok := s.buckets[strings.ToLower(kind)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBucket, kind)
	}
	return name, nil
}

// ObjectKey returns "<tenant>/<key>" after validating both parts.
func ObjectKey(tenantID, key string) (string, error) {
	id, err := tenant.ParseID(tenantID)
	if err != nil {
		return "", err
	}
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return string(id) + "/" + key, nil
}

func (s *Store) locate(kind, tenantID, key string) (bucket, objectKey string, err error) {
	bucket, err = s.Bucket(kind)
	if err != nil {
		return "", "", err
	}
	objectKey, err = ObjectKey(tenantID, key)
	if err != nil {
		return "", "", err
	}
	return bucket, objectKey, nil
}

// Put uploads body to the tenant's key in the kind's bucket.
func (s *Store) Put(ctx context.Context, kind, tenantID, key string, body []byte, contentType string) error {
	bucket, objectKey, err := s.locate(kind, tenantID, key)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	start := time.Now()
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return store.NewStoreError(bucket, "Put", "failed to put object", err)
	}
	s.logger.InfoWithDuration(ctx, tenantID, "Object stored", time.Since(start), map[string]interface{}{
		"bucket": bucket,
		"key":    objectKey,
		"size":   len(body),
	})
	return nil
}

// Get downloads the tenant's object.
func (s *Store) Get(ctx context.Context, kind, tenantID, key string) ([]byte, error) {
	bucket, objectKey, err := s.locate(kind, tenantID, key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, store.NewStoreError(bucket, "Get", "failed to get object", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, store.NewStoreError(bucket, "Get", "failed to read object body", err)
	}
	return data, nil
}

// Delete removes the tenant's object. Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, kind, tenantID, key string) error {
	bucket, objectKey, err := s.locate(kind, tenantID, key)
	if err != nil {
		return err
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	}); err != nil {
		return store.NewStoreError(bucket, "Delete", "failed to delete object", err)
	}
	s.logger.Info(ctx, tenantID, "Object deleted", map[string]interface{}{
		"bucket": bucket,
		"key":    objectKey,
	})
	return nil
}

// PresignGet returns a time-limited download URL. A zero expiry means one hour.
func (s *Store) PresignGet(ctx context.Context, kind, tenantID, key string, expiry time.Duration) (string, error) {
	bucket, objectKey, err := s.locate(kind, tenantID, key)
	if err != nil {
		return "", err
	}
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", store.NewStoreError(bucket, "PresignGet", "failed to presign object", err)
	}
	return req.URL, nil
}

// BucketStatus is the HeadBucket result for one kind.
type BucketStatus struct {
	Kind    string        `json:"kind"`
	Bucket  string        `json:"bucket"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// HealthCheck probes every configured bucket.
func (s *Store) HealthCheck(ctx context.Context) []BucketStatus {
	var out []BucketStatus
	for _, kind := range s.Kinds() {
		bucket := s.buckets[kind]
		start := time.Now()
		_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
		status := BucketStatus{Kind: kind, Bucket: bucket, Latency: time.Since(start), Healthy: err == nil}
		if err != nil {
			status.Error = err.Error()
			s.logger.Warn(ctx, "", "Bucket health probe failed", map[string]interface{}{
				"bucket": bucket,
				"error":  err.Error(),
				"region": s.region,
			})
		}
		out = append(out, status)
	}
	return out
}
