package attachments

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures the MinIO / S3 backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	LinkTTL   time.Duration
}

// MinioBackend stores objects in a MinIO bucket and links presigned URLs.
type MinioBackend struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewMinioBackend connects to MinIO. The bucket is created when missing.
func NewMinioBackend(ctx context.Context, cfg MinioConfig) (*MinioBackend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("attachments: minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("attachments: minio bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("attachments: minio make bucket %s: %w", cfg.Bucket, err)
		}
	}
	ttl := cfg.LinkTTL
	if ttl <= 0 || ttl > 7*24*time.Hour {
		ttl = 7 * 24 * time.Hour
	}
	return &MinioBackend{client: client, bucket: cfg.Bucket, ttl: ttl}, nil
}

// Put uploads the object and returns a presigned download URL.
func (b *MinioBackend) Put(ctx context.Context, object string, f File) (string, error) {
	_, err := b.client.PutObject(ctx, b.bucket, object, bytes.NewReader(f.Data), int64(len(f.Data)), minio.PutObjectOptions{
		ContentType: contentType(f),
	})
	if err != nil {
		return "", err
	}
	link, err := b.client.PresignedGetObject(ctx, b.bucket, object, b.ttl, url.Values{})
	if err != nil {
		return "", err
	}
	return link.String(), nil
}

// GCSBackend stores objects in a Google Cloud Storage bucket.
type GCSBackend struct {
	client *storage.Client
	bucket string
}

// NewGCSBackend uses application default credentials.
func NewGCSBackend(ctx context.Context, bucket string) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("attachments: gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("attachments: gcs bucket %q not accessible: %w", bucket, err)
	}
	return &GCSBackend{client: client, bucket: bucket}, nil
}

// Put writes the object and returns its public URL.
func (b *GCSBackend) Put(ctx context.Context, object string, f File) (string, error) {
	wc := b.client.Bucket(b.bucket).Object(object).NewWriter(ctx)
	wc.ContentType = contentType(f)
	if _, err := wc.Write(f.Data); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.bucket, object), nil
}

// Close releases the GCS client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}

// MemoryBackend keeps objects in process for development and tests.
type MemoryBackend struct {
	mu      sync.Mutex
	objects map[string]File
}

// NewMemoryBackend constructs an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string]File)}
}

// Put stores a copy of f.
func (b *MemoryBackend) Put(ctx context.Context, object string, f File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	f.Data = append([]byte(nil), f.Data...)
	b.objects[object] = f
	return "memory://" + object, nil
}

// Object returns a stored object.
func (b *MemoryBackend) Object(object string) (File, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.objects[object]
	return f, ok
}

// Len reports how many objects are stored.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

func contentType(f File) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return "application/octet-stream"
}
