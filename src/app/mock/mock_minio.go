package minio_mock

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
)

// MockClient is a testify double for the subset of the minio client the
// object store uses.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockClient) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

func (m *MockClient) PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucketName, objectName, expires, reqParams)
	if u, ok := args.Get(0).(*url.URL); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, args.Error(0)
}

func (m *MockClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Error(0)
}

// MockObjectStore doubles the object store seen by the image service.
type MockObjectStore struct {
	mock.Mock
	Base string
}

func (m *MockObjectStore) Upload(ctx context.Context, key string, object io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, key, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) URL(key string) string {
	return m.Base + "/" + key
}

func (m *MockObjectStore) PresignedURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// KeyFromURL accepts URLs under Base without recording a call.
func (m *MockObjectStore) KeyFromURL(rawURL string) (string, bool) {
	if m.Base == "" || len(rawURL) <= len(m.Base)+1 || rawURL[:len(m.Base)+1] != m.Base+"/" {
		return "", false
	}
	return rawURL[len(m.Base)+1:], true
}
