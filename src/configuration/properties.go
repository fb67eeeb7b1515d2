package configuration

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/sirupsen/logrus"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type (
	Properties struct {
		LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
		LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
		StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`

		Server HttpServerProperties `envPrefix:"HTTP_"`
		Mongo  MongoProperties      `envPrefix:"MONGO_"`
		S3     S3Properties         `envPrefix:"S3_"`
		Auth   AuthProperties       `envPrefix:"AUTH_"`
		Images ImageProperties      `envPrefix:"IMAGES_"`
	}

	HttpServerProperties struct {
		Name            string        `env:"NAME" envDefault:"wallserv"`
		Port            string        `env:"PORT" envDefault:"5000"`
		ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
		AllowOrigins    []string      `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
		Pprof           bool          `env:"PPROF" envDefault:"false"`
		MaxUploadSize   int64         `env:"MAX_UPLOAD_SIZE" envDefault:"20971520"`
	}

	MongoProperties struct {
		URI            string        `env:"URI" envDefault:"mongodb://localhost:27017"`
		Database       string        `env:"DATABASE" envDefault:"wallpapers"`
		Timeout        time.Duration `env:"TIMEOUT" envDefault:"10s"`
		ConnectRetries int           `env:"CONNECT_RETRIES" envDefault:"5"`
		RetryDelay     time.Duration `env:"RETRY_DELAY" envDefault:"5s"`
	}

	// S3Properties is optional: object storage is off unless Host and both
	// keys are set.
	S3Properties struct {
		Host          string        `env:"HOST"`
		AccessKey     string        `env:"ACCESS_KEY"`
		SecretKey     string        `env:"SECRET_KEY"`
		Bucket        string        `env:"BUCKET" envDefault:"wallpapers"`
		Region        string        `env:"REGION" envDefault:"us-east-1"`
		UseSSL        bool          `env:"USE_SSL" envDefault:"true"`
		PublicURL     string        `env:"PUBLIC_URL"`
		PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"1h"`
	}

	AuthProperties struct {
		JWTSecret  string        `env:"JWT_SECRET"`
		TokenTTL   time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
		Issuer     string        `env:"ISSUER" envDefault:"wallserv"`
		BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`
	}

	ImageProperties struct {
		EmptyResultPolicy string        `env:"EMPTY_RESULT_POLICY" envDefault:"not_found"`
		CategoryCacheTTL  time.Duration `env:"CATEGORY_CACHE_TTL" envDefault:"30s"`
	}
)

// Load parses the process environment and validates the result.
func Load() (*Properties, error) {
	config := &Properties{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ReadProperties is Load for main: a bad environment stops the process.
func ReadProperties() *Properties {
	config, err := Load()
	if err != nil {
		panic(err)
	}
	return config
}

func (p *Properties) Validate() error {
	if _, err := logrus.ParseLevel(p.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if p.LogFormat != "text" && p.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT: %q is not one of text, json", p.LogFormat)
	}
	if p.StoreDriver != StoreMongo && p.StoreDriver != StoreMemory {
		return fmt.Errorf("STORE_DRIVER: %q is not one of mongo, memory", p.StoreDriver)
	}
	if len(strings.TrimSpace(p.Auth.JWTSecret)) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET: must be at least 32 characters")
	}
	if p.Auth.TokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL: must be positive")
	}
	if p.Auth.BcryptCost < 10 || p.Auth.BcryptCost > 31 {
		return fmt.Errorf("AUTH_BCRYPT_COST: %d is outside [10, 31]", p.Auth.BcryptCost)
	}
	switch p.Images.EmptyResultPolicy {
	case "not_found", "empty":
	default:
		return fmt.Errorf("IMAGES_EMPTY_RESULT_POLICY: %q is not one of not_found, empty", p.Images.EmptyResultPolicy)
	}
	if p.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("HTTP_MAX_UPLOAD_SIZE: must be positive")
	}
	return nil
}

// ObjectStorageEnabled reports whether S3 settings are complete.
func (p *Properties) ObjectStorageEnabled() bool {
	return p.S3.Host != "" && p.S3.AccessKey != "" && p.S3.SecretKey != ""
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (p *Properties) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(p.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if p.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
