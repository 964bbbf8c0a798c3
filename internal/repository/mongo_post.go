package repository

import (
	"context"
	"errors"
	"time"

	"devconnector/internal/database"
	"devconnector/internal/models"
	"devconnector/internal/observability"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// postDocument is the stored shape of a post in MongoDB.
type postDocument struct {
	ID       bson.ObjectID    `bson:"_id"`
	UserID   string           `bson:"user"`
	Name     string           `bson:"name"`
	Avatar   string           `bson:"avatar"`
	Text     string           `bson:"text"`
	Likes    []models.Like    `bson:"likes"`
	Comments []models.Comment `bson:"comments"`
	Date     time.Time        `bson:"date"`
	Version  int              `bson:"__v"`
}

func newPostDocument(id bson.ObjectID, p *models.Post) postDocument {
	return postDocument{
		ID:       id,
		UserID:   p.UserID,
		Name:     p.Name,
		Avatar:   p.Avatar,
		Text:     p.Text,
		Likes:    p.Likes,
		Comments: p.Comments,
		Date:     p.Date,
		Version:  p.Version,
	}
}

func (d *postDocument) toModel() *models.Post {
	p := &models.Post{
		ID:       d.ID.Hex(),
		UserID:   d.UserID,
		Name:     d.Name,
		Avatar:   d.Avatar,
		Text:     d.Text,
		Likes:    d.Likes,
		Comments: d.Comments,
		Date:     d.Date.UTC(),
		Version:  d.Version,
	}
	p.Normalize()
	return p
}

type mongoPostRepository struct {
	coll    *mongo.Collection
	metrics *observability.StoreMetrics
}

// NewMongoPostRepository stores posts as single documents in db.posts.
func NewMongoPostRepository(db *mongo.Database) PostRepository {
	return &mongoPostRepository{
		coll:    db.Collection(database.PostsCollection),
		metrics: observability.NewStoreMetrics("mongodb"),
	}
}

// parseObjectID maps an unparseable id to ErrNotFound.
func parseObjectID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func (r *mongoPostRepository) GetByID(ctx context.Context, id string) (post *models.Post, err error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartStoreSpan(ctx, "mongodb", "get", database.PostsCollection)
	defer func() { observability.EndSpan(span, ignoreNotFound(err)) }()
	defer r.metrics.TrackOperation("get", database.PostsCollection)()

	var doc postDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *mongoPostRepository) List(ctx context.Context) (posts []*models.Post, err error) {
	ctx, span := observability.StartStoreSpan(ctx, "mongodb", "list", database.PostsCollection)
	defer func() { observability.EndSpan(span, err) }()
	defer r.metrics.TrackOperation("list", database.PostsCollection)()

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []postDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	posts = make([]*models.Post, 0, len(docs))
	for i := range docs {
		posts = append(posts, docs[i].toModel())
	}
	return posts, nil
}

func (r *mongoPostRepository) Save(ctx context.Context, post *models.Post) (err error) {
	ctx, span := observability.StartStoreSpan(ctx, "mongodb", "save", database.PostsCollection)
	defer func() { observability.EndSpan(span, err) }()
	defer r.metrics.TrackOperation("save", database.PostsCollection)()

	post.Normalize()
	if post.ID == "" {
		return r.insert(ctx, post)
	}

	oid, err := parseObjectID(post.ID)
	if err != nil {
		return err
	}

	doc := newPostDocument(oid, post)
	doc.Version = post.Version + 1

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid, "__v": post.Version}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	post.Version = doc.Version
	return nil
}

func (r *mongoPostRepository) insert(ctx context.Context, post *models.Post) error {
	if post.Date.IsZero() {
		post.Date = time.Now().UTC()
	}
	post.Version = 0

	oid := bson.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, newPostDocument(oid, post)); err != nil {
		return err
	}
	post.ID = oid.Hex()
	return nil
}

func (r *mongoPostRepository) Delete(ctx context.Context, id string) (err error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	ctx, span := observability.StartStoreSpan(ctx, "mongodb", "delete", database.PostsCollection)
	defer func() { observability.EndSpan(span, ignoreNotFound(err)) }()
	defer r.metrics.TrackOperation("delete", database.PostsCollection)()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
