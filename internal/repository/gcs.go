package repository

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/storage"
)

// ObjectReader reads one object from a bucket and reports its content type.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, object string, limit int64) ([]byte, string, error)
}

// GCSReader reads objects from Cloud Storage using Application Default
// Credentials. The client is created on first use.
type GCSReader struct {
	once   sync.Once
	client *storage.Client
	err    error
}

func (g *GCSReader) ReadObject(ctx context.Context, bucket, object string, limit int64) ([]byte, string, error) {
	g.once.Do(func() {
		g.client, g.err = storage.NewClient(context.WithoutCancel(ctx))
	})
	if g.err != nil {
		return nil, "", fmt.Errorf("storage client: %w", g.err)
	}
	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("open gs://%s/%s: %w", bucket, object, err)
	}
	defer r.Close()
	b, err := readLimited(r, limit)
	if err != nil {
		return nil, "", fmt.Errorf("read gs://%s/%s: %w", bucket, object, err)
	}
	return b, r.Attrs.ContentType, nil
}

// Close releases the storage client, if one was created.
func (g *GCSReader) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
