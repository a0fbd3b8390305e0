package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/pavelanni/teachassist/internal/model"
)

type gcsBucket struct {
	client *storage.Client
	name   string
}

// OpenGCS returns an Opener for a Google Cloud Storage bucket. When credentialsFile is
// set it authenticates with that service account; otherwise the storage key is used as API key.
func OpenGCS(bucket, credentialsFile string) Opener {
	return func(ctx context.Context, key string) (Bucket, error) {
		opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
		if credentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(credentialsFile))
		} else {
			opts = append(opts, option.WithAPIKey(key))
		}
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		return &gcsBucket{client: client, name: bucket}, nil
	}
}

func (b *gcsBucket) Put(ctx context.Context, name string, data []byte, contentType string) (Object, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.client.Bucket(b.name).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return gcsObject(w.Attrs()), nil
}

func (b *gcsBucket) Get(ctx context.Context, name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := b.client.Bucket(b.name).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *gcsBucket) List(ctx context.Context, prefix string) ([]Object, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := b.client.Bucket(b.name).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []Object{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, gcsObject(attrs))
	}
	return out, nil
}

func (b *gcsBucket) URL(name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, name)
}

func (b *gcsBucket) Close() error {
	return b.client.Close()
}

func gcsObject(attrs *storage.ObjectAttrs) Object {
	if attrs == nil {
		return Object{}
	}
	return Object{
		Name:        attrs.Name,
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
		Created:     attrs.Created,
	}
}
