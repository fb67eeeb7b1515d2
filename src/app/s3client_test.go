package app

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	minio_mock "wallserv/src/app/mock"
)

func testSettings() S3Settings {
	return S3Settings{
		Endpoint: "minio:9000",
		Bucket:   "wallpapers",
		Region:   "us-east-1",
	}
}

func TestMinioS3Client(t *testing.T) {
	ctx := context.Background()

	t.Run("derives the public url", func(t *testing.T) {
		s3 := newMinioS3Client(new(minio_mock.MockClient), testSettings())
		assert.Equal(t, "http://minio:9000/wallpapers/a.png", s3.URL("a.png"))

		settings := testSettings()
		settings.UseSSL = true
		settings.PublicURL = "https://cdn.example/walls/"
		s3 = newMinioS3Client(new(minio_mock.MockClient), settings)
		assert.Equal(t, "https://cdn.example/walls/a.png", s3.URL("a.png"))
	})

	t.Run("Upload", func(t *testing.T) {
		client := new(minio_mock.MockClient)
		client.On("PutObject", ctx, "wallpapers", "a.png", mock.Anything, int64(3),
			mock.MatchedBy(func(o minio.PutObjectOptions) bool { return o.ContentType == "image/png" })).
			Return(nil).Once()
		s3 := newMinioS3Client(client, testSettings())

		location, err := s3.Upload(ctx, "a.png", strings.NewReader("png"), 3, "image/png")
		require.NoError(t, err)
		assert.Equal(t, "http://minio:9000/wallpapers/a.png", location)
		client.AssertExpectations(t)
	})

	t.Run("Upload defaults the content type", func(t *testing.T) {
		client := new(minio_mock.MockClient)
		client.On("PutObject", ctx, "wallpapers", "blob", mock.Anything, int64(1),
			mock.MatchedBy(func(o minio.PutObjectOptions) bool { return o.ContentType == "application/octet-stream" })).
			Return(nil).Once()
		s3 := newMinioS3Client(client, testSettings())

		_, err := s3.Upload(ctx, "blob", strings.NewReader("x"), 1, "")
		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("Upload failure", func(t *testing.T) {
		client := new(minio_mock.MockClient)
		client.On("PutObject", ctx, "wallpapers", "a.png", mock.Anything, int64(3), mock.Anything).
			Return(errors.New("connection refused"))
		s3 := newMinioS3Client(client, testSettings())

		_, err := s3.Upload(ctx, "a.png", strings.NewReader("png"), 3, "image/png")
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("PresignedURL", func(t *testing.T) {
		signed, _ := url.Parse("http://minio:9000/wallpapers/a.png?X-Amz-Signature=abc")
		client := new(minio_mock.MockClient)
		client.On("PresignedGetObject", ctx, "wallpapers", "a.png", time.Hour,
			mock.MatchedBy(func(v url.Values) bool {
				return v.Get("response-content-disposition") == `attachment; filename="a.png"`
			})).Return(signed, nil)
		s3 := newMinioS3Client(client, testSettings())

		location, err := s3.PresignedURL(ctx, "a.png")
		require.NoError(t, err)
		assert.Equal(t, signed.String(), location)
	})

	t.Run("Delete failure", func(t *testing.T) {
		client := new(minio_mock.MockClient)
		client.On("RemoveObject", ctx, "wallpapers", "a.png", minio.RemoveObjectOptions{}).
			Return(errors.New("access denied"))
		s3 := newMinioS3Client(client, testSettings())

		assert.ErrorIs(t, s3.Delete(ctx, "a.png"), ErrUpstream)
	})

	t.Run("EnsureBucket creates a missing bucket", func(t *testing.T) {
		client := new(minio_mock.MockClient)
		client.On("BucketExists", ctx, "wallpapers").Return(false, nil)
		client.On("MakeBucket", ctx, "wallpapers", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)
		s3 := newMinioS3Client(client, testSettings())

		require.NoError(t, s3.EnsureBucket(ctx))
		client.AssertExpectations(t)
	})

	t.Run("EnsureBucket leaves an existing bucket", func(t *testing.T) {
		client := new(minio_mock.MockClient)
		client.On("BucketExists", ctx, "wallpapers").Return(true, nil)
		s3 := newMinioS3Client(client, testSettings())

		require.NoError(t, s3.EnsureBucket(ctx))
		client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("KeyFromURL", func(t *testing.T) {
		settings := testSettings()
		settings.PublicURL = "https://cdn.example/walls"
		s3 := newMinioS3Client(new(minio_mock.MockClient), settings)

		key, ok := s3.KeyFromURL("https://cdn.example/walls/3f2a.png")
		assert.True(t, ok)
		assert.Equal(t, "3f2a.png", key)

		_, ok = s3.KeyFromURL("https://elsewhere.example/walls/3f2a.png")
		assert.False(t, ok)
		_, ok = s3.KeyFromURL("https://cdn.example/wallsX/3f2a.png")
		assert.False(t, ok)
	})
}
