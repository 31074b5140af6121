// Package objectstore locates a book's files in object storage and fetches
// them through short-lived signed URLs.
package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/trigger"
)

// DefaultSignedURLTTL is how long a signed URL stays valid.
const DefaultSignedURLTTL = 60 * time.Second

// DocumentKey is the object key of a book's source document.
func DocumentKey(bookID string) string {
	return fmt.Sprintf("%s/%s.pdf", bookID, bookID)
}

// CoverKey is the object key of a book's cover image.
func CoverKey(bookID string) string {
	return bookID + "/cover.jpg"
}

// Signer issues signed GET URLs.
type Signer interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Config configures a MinIO/S3 connection.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Logger    *slog.Logger
}

// Minio signs URLs against a MinIO or S3 bucket.
type Minio struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewMinio creates a client. It does not contact the server.
func NewMinio(cfg Config) (*Minio, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errs.Validation("objectstore", "endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Minio{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// SignedURL returns a presigned GET URL for key. A missing object is NotFound.
func (m *Minio) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", errs.NotFound("objectstore.SignedURL", "object %s not found", key)
		}
		return "", errs.External("objectstore.SignedURL", err)
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", errs.External("objectstore.SignedURL", err)
	}
	return u.String(), nil
}

// Ping checks that the bucket exists.
func (m *Minio) Ping(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return errs.External("objectstore.Ping", err)
	}
	if !ok {
		return errs.NotFound("objectstore.Ping", "bucket %s does not exist", m.bucket)
	}
	return nil
}

// Loader downloads book documents.
type Loader struct {
	Signer Signer
	HTTP   *trigger.Client
	TTL    time.Duration
}

// Load fetches the source document of bookID. The URL is signed again for
// every attempt.
func (l *Loader) Load(ctx context.Context, bookID string) ([]byte, error) {
	key := DocumentKey(bookID)
	res := l.HTTP.Do(ctx, trigger.Request{
		Method: http.MethodGet,
		ResolveURL: func(ctx context.Context) (string, error) {
			return l.Signer.SignedURL(ctx, key, l.TTL)
		},
	})
	if !res.OK {
		if errs.KindOf(res.Err) == errs.KindNotFound {
			return nil, errs.E(errs.KindNotFound, "objectstore.Load", "document for book "+bookID+" not found", res.Err)
		}
		return nil, errs.E(errs.KindExternal, "objectstore.Load",
			fmt.Sprintf("download failed after %d attempts (status %d)", res.Attempts, res.StatusCode), res.Err)
	}
	return res.Body, nil
}

// CoverURL returns a signed URL for the book's cover.
func (l *Loader) CoverURL(ctx context.Context, bookID string) (string, error) {
	return l.Signer.SignedURL(ctx, CoverKey(bookID), l.TTL)
}
