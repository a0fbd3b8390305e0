// Package objstore uploads, downloads and lists named payloads in a bucket.
//
// Client gates every operation on the object-storage key and opens the
// configured Bucket backend lazily, reopening it when the key changes.
package objstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pavelanni/teachassist/internal/model"
)

// Object is what a backend reports about a stored payload.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Created     time.Time
}

// Bucket is a storage backend. Get returns model.ErrNotFound for missing objects.
type Bucket interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (Object, error)
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	URL(name string) string
	Close() error
}

// Opener opens a Bucket using the given storage key.
type Opener func(ctx context.Context, key string) (Bucket, error)

// KeySource supplies the storage key at call time, satisfied by *credentials.Provider.
type KeySource interface {
	StorageKey() string
}

// Client is safe for concurrent use.
type Client struct {
	keys KeySource
	open Opener

	mu      sync.Mutex
	openKey string
	bucket  Bucket
}

// NewClient creates a storage client.
func NewClient(keys KeySource, open Opener) *Client {
	return &Client{keys: keys, open: open}
}

func (c *Client) current(ctx context.Context) (Bucket, error) {
	key := c.keys.StorageKey()
	if key == "" {
		return nil, &model.ConfigurationError{Key: model.KeyStorage}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bucket != nil && c.openKey == key {
		return c.bucket, nil
	}
	if c.bucket != nil {
		if err := c.bucket.Close(); err != nil {
			slog.Warn("error closing storage backend", "error", err)
		}
		c.bucket = nil
	}
	b, err := c.open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	c.bucket, c.openKey = b, key
	return b, nil
}

// Upload stores data as pathPrefix+fileName. An empty contentType is detected from the data.
func (c *Client) Upload(ctx context.Context, fileName, pathPrefix string, data []byte, contentType string) (model.FileMetadata, error) {
	b, err := c.current(ctx)
	if err != nil {
		return model.FileMetadata{}, err
	}
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	name := JoinPath(pathPrefix, fileName)
	obj, err := b.Put(ctx, name, data, contentType)
	if err != nil {
		return model.FileMetadata{}, fmt.Errorf("upload %s: %w", name, err)
	}
	slog.Debug("object uploaded", "name", name, "size", obj.Size, "content_type", obj.ContentType)
	return metadata(b, obj), nil
}

// Download returns the payload stored at path.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	b, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	data, err := b.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	return data, nil
}

// List returns metadata for every object under prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]model.FileMetadata, error) {
	b, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	objs, err := b.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	files := make([]model.FileMetadata, 0, len(objs))
	for _, o := range objs {
		files = append(files, metadata(b, o))
	}
	return files, nil
}

// Close releases the open backend, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bucket == nil {
		return nil
	}
	err := c.bucket.Close()
	c.bucket, c.openKey = nil, ""
	return err
}

func metadata(b Bucket, o Object) model.FileMetadata {
	return model.FileMetadata{
		Name:        o.Name,
		ContentType: o.ContentType,
		Size:        o.Size,
		CreatedAt:   o.Created,
		DownloadURL: b.URL(o.Name),
	}
}

// JoinPath joins a path prefix and a file name with exactly one slash.
func JoinPath(prefix, name string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	name = strings.TrimPrefix(name, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
