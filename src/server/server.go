package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	app "wallserv/src/app"
	cfg "wallserv/src/configuration"
	db "wallserv/src/repository"
)

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Cache-Control", "User-Agent", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			config.AllowAllOrigins = true
			return config
		}
	}
	config.AllowOrigins = origins
	config.AllowCredentials = true
	return config
}

func NewRouter(config *cfg.Properties, handler *AppHandler, logger logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger), Metrics())
	router.Use(cors.New(corsConfig(config.Server.AllowOrigins)))
	if config.Server.Pprof {
		pprof.Register(router)
	}

	router.GET("/health", handler.GetHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// uploads talk to the object store and are not bound by the store timeout
	router.POST("/images/upload", handler.UploadImage)

	images := router.Group("/images", RequestTimeout(config.Mongo.Timeout))
	{
		images.POST("", handler.PostImages)
		images.GET("", handler.GetImages)
		images.GET("/paginate", handler.PaginateImages)
		images.GET("/random", handler.GetRandomImages)
		images.GET("/search", handler.SearchImages)
		images.GET("/categories", handler.GetCategories)
		images.GET("/featured", handler.GetFeaturedImages)
		images.GET("/category/:category", handler.GetImagesByCategory)
		images.GET("/category/:category/count", handler.CountImagesByCategory)
		images.GET("/tags/:tag", handler.GetImagesByTag)
		images.GET("/:id", handler.GetImage)
		images.PUT("/:id", handler.PutImage)
		images.DELETE("/:id", handler.DeleteImage)
		images.POST("/:id/view", handler.ViewImage)
		images.POST("/:id/like", handler.LikeImage)
		images.GET("/:id/download", handler.DownloadImage)
	}

	users := router.Group("/users", RequestTimeout(config.Mongo.Timeout))
	{
		users.POST("/register", handler.Register)
		users.POST("/login", handler.Login)

		profile := users.Group("/profile", handler.RequireUser)
		profile.GET("", handler.GetProfile)
		profile.PUT("", handler.UpdateProfile)
		profile.DELETE("", handler.DeleteAccount)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "error", "error": "route not found"})
	})
	return router
}

// RunServer wires the stores, the object store and the services, then serves
// until SIGINT or SIGTERM.
func RunServer(config *cfg.Properties) error {
	logger := config.NewLogger()
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := db.NewStores(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			logger.WithError(err).Error("store close failed")
		}
	}()

	var objects app.ObjectStore
	if config.ObjectStorageEnabled() {
		clientS3, err := app.NewMinioS3Client(app.S3Settings{
			Endpoint:        config.S3.Host,
			AccessKeyID:     config.S3.AccessKey,
			SecretAccessKey: config.S3.SecretKey,
			Bucket:          config.S3.Bucket,
			Region:          config.S3.Region,
			UseSSL:          config.S3.UseSSL,
			PublicURL:       config.S3.PublicURL,
			PresignExpiry:   config.S3.PresignExpiry,
		})
		if err != nil {
			return fmt.Errorf("object store: %w", err)
		}
		if err := clientS3.EnsureBucket(ctx); err != nil {
			logger.WithError(err).Warn("could not verify bucket, uploads may fail")
		}
		objects = clientS3
	} else {
		logger.Warn("object storage is not configured, uploads are disabled")
	}

	tokens, err := app.NewTokenIssuer(config.Auth.JWTSecret, config.Auth.Issuer, config.Auth.TokenTTL)
	if err != nil {
		return err
	}
	images := app.NewImageService(stores.Images, app.ImageServiceOptions{
		Objects:     objects,
		Policy:      app.EmptyResultPolicy(config.Images.EmptyResultPolicy),
		CategoryTTL: config.Images.CategoryCacheTTL,
		Logger:      logger,
	})
	users := app.NewUserService(stores.Users, tokens, config.Auth.BcryptCost, logger)

	handler := NewHandler(config, images, users, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", config.Server.Port),
		Handler:      NewRouter(config, handler, logger),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Infof("%s listening", config.Server.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
