// Package blob stores uploaded screenshots in S3-compatible object storage.
// Clients upload and download directly with presigned URLs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const (
	defaultURLTTL = 15 * time.Minute
	defaultRegion = "us-east-1"
	keyPrefix     = "screenshots"
)

var ErrInvalidKey = errors.New("invalid storage key")

type Upload struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store is the subset of object storage the API uses.
type Store interface {
	UploadURL(ctx context.Context, filename, contentType string) (Upload, error)
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	URLTTL    time.Duration
}

type MinioStore struct {
	client *minio.Client
	bucket string
	region string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewMinioStore(cfg Config, logger *zap.Logger) (*MinioStore, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("blob store needs an endpoint and a bucket")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = defaultURLTTL
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		ttl:    cfg.URLTTL,
		logger: logger,
		now:    time.Now,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	s.logger.Info("created bucket", zap.String("bucket", s.bucket))
	return nil
}

// UploadURL reserves a fresh key for filename and returns a presigned PUT URL.
func (s *MinioStore) UploadURL(ctx context.Context, filename, contentType string) (Upload, error) {
	key := NewKey(filename)
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, s.ttl)
	if err != nil {
		return Upload{}, fmt.Errorf("presign upload: %w", err)
	}
	return Upload{
		Key:       key,
		URL:       u.String(),
		Method:    "PUT",
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}, nil
}

// URL returns a presigned GET URL for key. URLs expire, so callers resolve
// them per request instead of storing them.
func (s *MinioStore) URL(ctx context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return u.String(), nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// NewKey returns screenshots/<uuid>/<sanitized filename>.
func NewKey(filename string) string {
	return keyPrefix + "/" + uuid.NewString() + "/" + SanitizeFilename(filename)
}

// SanitizeFilename keeps letters, digits, dots, dashes and underscores from
// the base name and replaces everything else with a dash.
func SanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	var sb strings.Builder
	for _, r := range base {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	name := strings.Trim(sb.String(), ".-")
	if name == "" {
		return "upload"
	}
	if len(name) > 120 {
		name = name[len(name)-120:]
	}
	return name
}

// ValidateKey accepts only keys this package hands out.
func ValidateKey(key string) error {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != keyPrefix {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if parts[2] == "" || parts[2] != SanitizeFilename(parts[2]) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
