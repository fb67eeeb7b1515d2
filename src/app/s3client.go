package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore keeps uploaded image bytes.
type ObjectStore interface {
	Upload(ctx context.Context, key string, object io.Reader, size int64, contentType string) (string, error)
	URL(key string) string
	PresignedURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(rawURL string) (string, bool)
}

type ClientMinio interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// S3Settings describes the bucket objects are written to.
type S3Settings struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
	// PublicURL is the base objects are reachable under. Derived from
	// endpoint and bucket when empty.
	PublicURL     string
	PresignExpiry time.Duration
}

type MinioS3Client struct {
	bucketName    string
	region        string
	publicURL     string
	presignExpiry time.Duration
	client        ClientMinio
}

const (
	defaultContentType   = "application/octet-stream"
	defaultPresignExpiry = time.Hour
)

// NewMinioS3Client creates a new MinioS3Client instance.
func NewMinioS3Client(settings S3Settings) (*MinioS3Client, error) {
	minioClient, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKeyID, settings.SecretAccessKey, ""),
		Secure: settings.UseSSL,
		Region: settings.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for %s: %w", settings.Endpoint, err)
	}
	return newMinioS3Client(minioClient, settings), nil
}

func newMinioS3Client(client ClientMinio, settings S3Settings) *MinioS3Client {
	publicURL := strings.TrimRight(settings.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if settings.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, settings.Endpoint, settings.Bucket)
	}
	expiry := settings.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	return &MinioS3Client{
		bucketName:    settings.Bucket,
		region:        settings.Region,
		publicURL:     publicURL,
		presignExpiry: expiry,
		client:        client,
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s3 *MinioS3Client) EnsureBucket(ctx context.Context) error {
	exists, err := s3.client.BucketExists(ctx, s3.bucketName)
	if err != nil {
		return fmt.Errorf("%w: check bucket %s: %v", ErrUpstream, s3.bucketName, err)
	}
	if exists {
		return nil
	}
	if err := s3.client.MakeBucket(ctx, s3.bucketName, minio.MakeBucketOptions{Region: s3.region}); err != nil {
		return fmt.Errorf("%w: create bucket %s: %v", ErrUpstream, s3.bucketName, err)
	}
	return nil
}

// Upload stores object under key and returns its public URL.
func (s3 *MinioS3Client) Upload(ctx context.Context, key string, object io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = defaultContentType
	}
	_, err := s3.client.PutObject(ctx, s3.bucketName, key, object, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrUpstream, key, err)
	}
	return s3.URL(key), nil
}

// URL is the public address of key.
func (s3 *MinioS3Client) URL(key string) string {
	return s3.publicURL + "/" + key
}

// PresignedURL returns a time-limited GET URL for key.
func (s3 *MinioS3Client) PresignedURL(ctx context.Context, key string) (string, error) {
	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=\"%s\"", key))
	presigned, err := s3.client.PresignedGetObject(ctx, s3.bucketName, key, s3.presignExpiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %v", ErrUpstream, key, err)
	}
	return presigned.String(), nil
}

func (s3 *MinioS3Client) Delete(ctx context.Context, key string) error {
	if err := s3.client.RemoveObject(ctx, s3.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrUpstream, key, err)
	}
	return nil
}

// KeyFromURL returns the storage key of a URL served by this bucket: the
// trailing path segment. URLs pointing elsewhere report false.
func (s3 *MinioS3Client) KeyFromURL(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, s3.publicURL+"/") {
		return "", false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	key := path.Base(parsed.Path)
	if key == "" || key == "/" || key == "." {
		return "", false
	}
	return key, true
}
