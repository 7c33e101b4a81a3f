// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSSink writes artifacts to gs://Bucket/Prefix/<slug>/<name>.
type GCSSink struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewGCSSink opens a storage client with application default credentials.
// The caller closes the sink.
func NewGCSSink(ctx context.Context, bucket, prefix string) (*GCSSink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs sink: empty bucket name")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSSink{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Prepare is a no-op; object paths need no setup.
func (s *GCSSink) Prepare(context.Context, string) error { return nil }

// Write streams r into the object. The object only becomes visible when
// the writer closes cleanly.
func (s *GCSSink) Write(ctx context.Context, paperID, name string, r io.Reader) (string, error) {
	object := objectName(s.prefix, paperID, name)
	w := s.bucket.Object(object).NewWriter(ctx)

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing gs://%s/%s: %w", s.name, object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing gs://%s/%s: %w", s.name, object, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.name, object), nil
}

// Close releases the storage client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}

func objectName(prefix, paperID, name string) string {
	return path.Join(prefix, Slug(paperID), name)
}
