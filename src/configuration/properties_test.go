package configuration

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "wallserv_test_jwt_secret_key_1234567890"

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", testSecret)

		config, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "5000", config.Server.Port)
		assert.Equal(t, StoreMongo, config.StoreDriver)
		assert.Equal(t, "wallpapers", config.Mongo.Database)
		assert.Equal(t, time.Hour, config.Auth.TokenTTL)
		assert.Equal(t, 10, config.Auth.BcryptCost)
		assert.Equal(t, "not_found", config.Images.EmptyResultPolicy)
		assert.Equal(t, []string{"*"}, config.Server.AllowOrigins)
		assert.False(t, config.ObjectStorageEnabled())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", testSecret)
		t.Setenv("STORE_DRIVER", "memory")
		t.Setenv("HTTP_PORT", "8088")
		t.Setenv("HTTP_ALLOW_ORIGINS", "http://localhost:3000,https://walls.example")
		t.Setenv("IMAGES_EMPTY_RESULT_POLICY", "empty")
		t.Setenv("S3_HOST", "minio:9000")
		t.Setenv("S3_ACCESS_KEY", "access")
		t.Setenv("S3_SECRET_KEY", "secret")

		config, err := Load()
		require.NoError(t, err)
		assert.Equal(t, StoreMemory, config.StoreDriver)
		assert.Equal(t, "8088", config.Server.Port)
		assert.Equal(t, []string{"http://localhost:3000", "https://walls.example"}, config.Server.AllowOrigins)
		assert.Equal(t, "empty", config.Images.EmptyResultPolicy)
		assert.True(t, config.ObjectStorageEnabled())
	})

	t.Run("short secret", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "too-short")
		_, err := Load()
		assert.ErrorContains(t, err, "AUTH_JWT_SECRET")
	})

	t.Run("unknown policy", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", testSecret)
		t.Setenv("IMAGES_EMPTY_RESULT_POLICY", "teapot")
		_, err := Load()
		assert.ErrorContains(t, err, "IMAGES_EMPTY_RESULT_POLICY")
	})

	t.Run("weak bcrypt cost", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", testSecret)
		t.Setenv("AUTH_BCRYPT_COST", "4")
		_, err := Load()
		assert.ErrorContains(t, err, "AUTH_BCRYPT_COST")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", testSecret)
		t.Setenv("MONGO_TIMEOUT", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestReadPropertiesPanics(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	assert.Panics(t, func() { ReadProperties() })
}

func TestNewLogger(t *testing.T) {
	config := &Properties{LogLevel: "debug", LogFormat: "json"}
	logger := config.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
