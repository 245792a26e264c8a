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
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	blobs3 "github.com/sandeepjangra/valuation-app-sub000/blob/s3"
)

var errBlobDisabled = errors.New("blob storage is not configured (set blob.buckets or REPORTSTORE_BLOB_BUCKET_<KIND>)")

// withBlob opens the manager and runs fn against its attachment store.
func (o *rootOptions) withBlob(cmd *cobra.Command, fn func(ctx context.Context, b *blobs3.Store) error) error {
	ctx := commandContext(cmd)
	m, err := o.open(ctx, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer m.Close(ctx)

	b := m.Blob()
	if b == nil {
		return errBlobDisabled
	}
	return fn(ctx, b)
}

// attachmentCmd groups the report attachment commands.
func attachmentCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachment",
		Short: "Manage report attachments in blob storage",
		Long: `Upload, download, link and remove report attachments. Objects are stored
under <tenant-id>/<key> in the bucket configured for the attachment kind.`,
	}
	cmd.AddCommand(attachmentPutCmd(opts))
	cmd.AddCommand(attachmentGetCmd(opts))
	cmd.AddCommand(attachmentURLCmd(opts))
	cmd.AddCommand(attachmentDeleteCmd(opts))
	return cmd
}

func attachmentPutCmd(opts *rootOptions) *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "put <tenant-id> <kind> <key> <file>",
		Short: "Upload a file as an attachment",
		Long: `Upload a file as an attachment.

Examples:
  reportstore attachment put acme photos VR-1001/front.jpg ./front.jpg
  reportstore attachment put acme documents VR-1001/deed.pdf ./deed.pdf --content-type application/pdf`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[3])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[3], err)
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(args[3]))
			}
			return opts.withBlob(cmd, func(ctx context.Context, b *blobs3.Store) error {
				if err := b.Put(ctx, args[1], args[0], args[2], body, contentType); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ uploaded %s (%d bytes)\n", args[2], len(body))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type (default: guessed from the file extension)")
	return cmd
}

func attachmentGetCmd(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "get <tenant-id> <kind> <key>",
		Short: "Download an attachment",
		Long: `Download an attachment to a file, or to stdout when --out is not set.

Examples:
  reportstore attachment get acme photos VR-1001/front.jpg --out front.jpg`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBlob(cmd, func(ctx context.Context, b *blobs3.Store) error {
				body, err := b.Get(ctx, args[1], args[0], args[2])
				if err != nil {
					return err
				}
				if out == "" {
					_, err = cmd.OutOrStdout().Write(body)
					return err
				}
				return os.WriteFile(out, body, 0o600)
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file instead of stdout")
	return cmd
}

func attachmentURLCmd(opts *rootOptions) *cobra.Command {
	var expiry time.Duration

	cmd := &cobra.Command{
		Use:   "url <tenant-id> <kind> <key>",
		Short: "Print a presigned download URL",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBlob(cmd, func(ctx context.Context, b *blobs3.Store) error {
				url, err := b.PresignGet(ctx, args[1], args[0], args[2], expiry)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&expiry, "expiry", time.Hour, "How long the URL stays valid")
	return cmd
}

func attachmentDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tenant-id> <kind> <key>",
		Short: "Remove an attachment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBlob(cmd, func(ctx context.Context, b *blobs3.Store) error {
				if err := b.Delete(ctx, args[1], args[0], args[2]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ deleted %s\n", args[2])
				return nil
			})
		},
	}
}
