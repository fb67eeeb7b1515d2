package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wallserv/src/app"
	cfg "wallserv/src/configuration"
)

const (
	ImagesCollection = "images"
	UsersCollection  = "users"
)

// CollectionIndexModels lists the indexes each collection must carry. The
// unique email index is what makes concurrent registration safe.
var CollectionIndexModels = map[string][]mongo.IndexModel{
	ImagesCollection: {
		{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("category")},
		{Keys: bson.D{{Key: "tags", Value: 1}}, Options: options.Index().SetName("tags")},
		{Keys: bson.D{{Key: "isFeatured", Value: 1}}, Options: options.Index().SetName("featured")},
	},
	UsersCollection: {
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true)},
	},
}

// Connect opens a client and pings it, retrying up to MONGO_CONNECT_RETRIES
// times before giving up.
func Connect(ctx context.Context, config *cfg.Properties, log logrus.FieldLogger) (*mongo.Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is not valid")
	}
	clientOptions := options.Client().ApplyURI(config.Mongo.URI)
	retries := config.Mongo.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	var err error
	for i := 0; i < retries; i++ {
		var client *mongo.Client
		client, err = connectOnce(ctx, clientOptions, config.Mongo.Timeout)
		if err == nil {
			log.WithField("database", config.Mongo.Database).Info("mongo connection established")
			return client, nil
		}
		log.WithError(err).Warnf("mongo connection failed (attempt %d/%d), retrying in %v", i+1, retries, config.Mongo.RetryDelay)
		if i == retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(config.Mongo.RetryDelay):
		}
	}
	return nil, fmt.Errorf("%w: mongo after %d attempts: %v", app.ErrUnavailable, retries, err)
}

func connectOnce(ctx context.Context, clientOptions *options.ClientOptions, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the indexes of CollectionIndexModels; existing ones
// are left alone.
func EnsureIndexes(ctx context.Context, db *mongo.Database, log logrus.FieldLogger) error {
	for name, models := range CollectionIndexModels {
		if len(models) == 0 {
			continue
		}
		names, err := db.Collection(name).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
		log.WithField("collection", name).Debugf("indexes ready: %v", names)
	}
	return nil
}

// Stores is the persistence backend selected by STORE_DRIVER.
type Stores struct {
	Images app.ImageStore
	Users  app.UserStore
	close  func(ctx context.Context) error
}

func (s *Stores) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

func NewStores(ctx context.Context, config *cfg.Properties, log logrus.FieldLogger) (*Stores, error) {
	if config == nil {
		return nil, fmt.Errorf("config is not valid")
	}
	if config.StoreDriver == cfg.StoreMemory {
		db := NewInMemoryDB()
		log.Warn("using the in-memory store, data is lost on restart")
		return &Stores{Images: db.Images(), Users: db.Users()}, nil
	}

	client, err := Connect(ctx, config, log)
	if err != nil {
		return nil, err
	}
	db := client.Database(config.Mongo.Database)
	indexCtx, cancel := context.WithTimeout(ctx, config.Mongo.Timeout)
	defer cancel()
	if err := EnsureIndexes(indexCtx, db, log); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &Stores{
		Images: NewMongoImageStore(db.Collection(ImagesCollection)),
		Users:  NewMongoUserStore(db.Collection(UsersCollection)),
		close:  client.Disconnect,
	}, nil
}
