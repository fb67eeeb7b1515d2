package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wallserv/src/app"
)

// MongoUserStore relies on the unique email index for duplicate detection.
type MongoUserStore struct {
	coll *mongo.Collection
}

func NewMongoUserStore(coll *mongo.Collection) *MongoUserStore {
	return &MongoUserStore{coll: coll}
}

func (s *MongoUserStore) Create(ctx context.Context, user *app.User) error {
	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: email %s", app.ErrConflict, user.Email)
		}
		return err
	}
	return nil
}

func (s *MongoUserStore) ByID(ctx context.Context, id primitive.ObjectID) (*app.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) ByEmail(ctx context.Context, email string) (*app.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoUserStore) Update(ctx context.Context, id primitive.ObjectID, name, email string, now time.Time) (*app.User, error) {
	update := bson.M{"$set": bson.M{"name": name, "email": email, "updatedAt": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user app.User
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: email %s", app.ErrConflict, email)
		}
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (s *MongoUserStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: user not found", app.ErrNotFound)
	}
	return nil
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*app.User, error) {
	var user app.User
	if err := s.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}
