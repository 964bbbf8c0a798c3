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

type userDocument struct {
	ID     bson.ObjectID `bson:"_id"`
	Name   string        `bson:"name"`
	Email  string        `bson:"email"`
	Avatar string        `bson:"avatar"`
	Date   time.Time     `bson:"date"`
}

func (d *userDocument) toModel() *models.User {
	return &models.User{
		ID:     d.ID.Hex(),
		Name:   d.Name,
		Email:  d.Email,
		Avatar: d.Avatar,
		Date:   d.Date.UTC(),
	}
}

type mongoUserRepository struct {
	coll    *mongo.Collection
	metrics *observability.StoreMetrics
}

// NewMongoUserRepository stores users in db.users.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{
		coll:    db.Collection(database.UsersCollection),
		metrics: observability.NewStoreMetrics("mongodb"),
	}
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	defer r.metrics.TrackOperation("get", database.UsersCollection)()
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.metrics.TrackOperation("get_by_email", database.UsersCollection)()
	return r.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *mongoUserRepository) Create(ctx context.Context, user *models.User) error {
	defer r.metrics.TrackOperation("create", database.UsersCollection)()

	oid := bson.NewObjectID()
	if user.ID != "" {
		parsed, err := bson.ObjectIDFromHex(user.ID)
		if err != nil {
			return err
		}
		oid = parsed
	}
	if user.Date.IsZero() {
		user.Date = time.Now().UTC()
	}
	user.Email = normalizeEmail(user.Email)

	_, err := r.coll.InsertOne(ctx, userDocument{
		ID:     oid,
		Name:   user.Name,
		Email:  user.Email,
		Avatar: user.Avatar,
		Date:   user.Date,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return err
	}
	user.ID = oid.Hex()
	return nil
}

func (r *mongoUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	defer r.metrics.TrackOperation("list", database.UsersCollection)()

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(docs))
	for i := range docs {
		users = append(users, *docs[i].toModel())
	}
	return users, nil
}
