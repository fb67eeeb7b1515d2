package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wallserv/src/app"
)

// MongoImageStore keeps image records in one collection. Records are
// returned in insertion order, which for ObjectIDs is _id order.
type MongoImageStore struct {
	coll *mongo.Collection
}

func NewMongoImageStore(coll *mongo.Collection) *MongoImageStore {
	return &MongoImageStore{coll: coll}
}

func imageFilter(q app.ImageQuery) bson.M {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Tag != "" {
		filter["tags"] = q.Tag
	}
	if q.Featured {
		filter["isFeatured"] = true
	}
	if q.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"imageName": pattern},
			bson.M{"tags": pattern},
			bson.M{"description": pattern},
		}
	}
	return filter
}

func (s *MongoImageStore) Insert(ctx context.Context, images []*app.Image) error {
	docs := make([]interface{}, len(images))
	for i, img := range images {
		docs[i] = img
	}
	if _, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", app.ErrConflict, err)
		}
		return err
	}
	return nil
}

func (s *MongoImageStore) Find(ctx context.Context, q app.ImageQuery, skip, limit int64) ([]app.Image, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.coll.Find(ctx, imageFilter(q), opts)
	if err != nil {
		return nil, err
	}
	images := []app.Image{}
	if err := cursor.All(ctx, &images); err != nil {
		return nil, err
	}
	return images, nil
}

func (s *MongoImageStore) Count(ctx context.Context, q app.ImageQuery) (int64, error) {
	return s.coll.CountDocuments(ctx, imageFilter(q))
}

func (s *MongoImageStore) Get(ctx context.Context, id primitive.ObjectID) (*app.Image, error) {
	var img app.Image
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&img); err != nil {
		return nil, notFound(err, "image")
	}
	return &img, nil
}

func (s *MongoImageStore) Update(ctx context.Context, id primitive.ObjectID, update app.ImageUpdate, now time.Time) (*app.Image, error) {
	set := bson.M{"updatedAt": now}
	for k, v := range update.Fields() {
		set[k] = v
	}
	return s.findAndModify(ctx, id, bson.M{"$set": set})
}

func (s *MongoImageStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: image not found", app.ErrNotFound)
	}
	return nil
}

func (s *MongoImageStore) Increment(ctx context.Context, id primitive.ObjectID, counter app.Counter, now time.Time) (*app.Image, error) {
	if !counter.Valid() {
		return nil, fmt.Errorf("unknown counter %q", counter)
	}
	return s.findAndModify(ctx, id, bson.M{
		"$inc": bson.M{string(counter): 1},
		"$set": bson.M{"updatedAt": now},
	})
}

func (s *MongoImageStore) Categories(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "category", bson.M{"category": bson.M{"$nin": bson.A{"", nil}}})
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(values))
	for _, v := range values {
		if c, ok := v.(string); ok {
			categories = append(categories, c)
		}
	}
	return categories, nil
}

func (s *MongoImageStore) Sample(ctx context.Context, size int) ([]app.Image, error) {
	pipeline := mongo.Pipeline{{{Key: "$sample", Value: bson.D{{Key: "size", Value: size}}}}}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	images := []app.Image{}
	if err := cursor.All(ctx, &images); err != nil {
		return nil, err
	}
	return images, nil
}

func (s *MongoImageStore) findAndModify(ctx context.Context, id primitive.ObjectID, update bson.M) (*app.Image, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var img app.Image
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&img); err != nil {
		return nil, notFound(err, "image")
	}
	return &img, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s not found", app.ErrNotFound, what)
	}
	return err
}
