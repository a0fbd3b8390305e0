package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pavelanni/teachassist/internal/model"
)

type minioBucket struct {
	client *minio.Client
	name   string
}

// MinIOSettings configures an S3-compatible backend. The storage key is the secret key.
type MinIOSettings struct {
	Endpoint  string
	AccessKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// OpenMinIO returns an Opener for an S3-compatible bucket, creating it if missing.
func OpenMinIO(s MinIOSettings) Opener {
	return func(ctx context.Context, key string) (Bucket, error) {
		client, err := minio.New(s.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(s.AccessKey, key, ""),
			Secure: s.UseSSL,
			Region: s.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create MinIO client: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		exists, err := client.BucketExists(ctx, s.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket existence: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{Region: s.Region}); err != nil {
				return nil, fmt.Errorf("failed to create bucket: %w", err)
			}
		}
		return &minioBucket{client: client, name: s.Bucket}, nil
	}
}

func (b *minioBucket) Put(ctx context.Context, name string, data []byte, contentType string) (Object, error) {
	info, err := b.client.PutObject(ctx, b.name, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Object{}, err
	}
	created := info.LastModified
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Object{Name: name, ContentType: contentType, Size: info.Size, Created: created}, nil
}

func (b *minioBucket) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.name, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinIOError(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapMinIOError(err)
	}
	return data, nil
}

func (b *minioBucket) List(ctx context.Context, prefix string) ([]Object, error) {
	out := []Object{}
	for obj := range b.client.ListObjects(ctx, b.name, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, Object{
			Name:        obj.Key,
			ContentType: obj.ContentType,
			Size:        obj.Size,
			Created:     obj.LastModified,
		})
	}
	return out, nil
}

func (b *minioBucket) URL(name string) string {
	return fmt.Sprintf("%s/%s/%s", b.client.EndpointURL(), b.name, name)
}

func (b *minioBucket) Close() error { return nil }

func mapMinIOError(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return model.ErrNotFound
	}
	return err
}
