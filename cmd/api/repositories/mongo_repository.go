package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"naa-posts/db"
	"naa-posts/models"
)

// MongoRepository 포스트 하나당 문서 하나를 저장한다. 포스트 id를 _id로 사용.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(d *mongo.Database) *MongoRepository {
	return &MongoRepository{col: d.Collection(db.PostsCollection)}
}

func buildFilter(f Filter) bson.M {
	filter := bson.M{}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"description": rx},
			bson.M{"author": rx},
		}
	}
	return filter
}

// List createdAt이 ISO-8601 UTC 문자열이라 문자열 정렬이 곧 시간 정렬이다.
func (r *MongoRepository) List(ctx context.Context, f Filter) (Page, error) {
	f = f.Normalized()
	filter := buildFilter(f)

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return Page{}, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(f.offset())).
		SetLimit(int64(f.ItemsPerPage))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return Page{}, err
	}
	defer cur.Close(ctx)

	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return Page{}, err
	}
	return Page{Posts: posts, Total: int(total)}, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (models.Post, error) {
	var p models.Post
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Post{}, ErrNotFound
	}
	return p, err
}

func (r *MongoRepository) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *MongoRepository) Insert(ctx context.Context, p models.Post) error {
	_, err := r.col.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}
	return err
}

func (r *MongoRepository) Replace(ctx context.Context, p models.Post) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Upsert 존재 여부와 관계없이 p를 기록 (importer에서 사용)
func (r *MongoRepository) Upsert(ctx context.Context, p models.Post) error {
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	return err
}

func (r *MongoRepository) Delete(ctx context.Context, id string) (models.Post, error) {
	var p models.Post
	err := r.col.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Post{}, ErrNotFound
	}
	return p, err
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.col.Database().Client().Ping(ctx, nil)
}
