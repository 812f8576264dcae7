package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Mascaro101/Echo-backend/internal/models"
)

// Mongo is the production store backed by a MongoDB deployment.
// It keeps two collections, users and messages, with unique indexes on the
// user id and username so uniqueness is enforced by the store rather than
// by the caller.
type Mongo struct {
	users    *mongo.Collection
	messages *mongo.Collection
}

// NewMongo connects to the given URI and returns a store over the named
// database. The caller owns the client lifetime via Close.
func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(dbName)
	return &Mongo{
		users:    db.Collection("users"),
		messages: db.Collection("messages"),
	}, nil
}

// EnsureIndexes creates the unique indexes the store relies on.
// Safe to call on every startup.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	_, err = s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "targetUserId", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Mongo) Close(ctx context.Context) error {
	return s.users.Database().Client().Disconnect(ctx)
}

func (s *Mongo) InsertUser(ctx context.Context, u *models.User) error {
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Mongo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "id", Value: id}})
}

func (s *Mongo) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "username", Value: username}})
}

func (s *Mongo) findUser(ctx context.Context, filter bson.D) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *Mongo) InsertMessage(ctx context.Context, m *models.Message) error {
	if _, err := s.messages.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Mongo) ListConversation(ctx context.Context, a, b string) ([]models.Message, error) {
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "userId", Value: a}, {Key: "targetUserId", Value: b}},
		bson.D{{Key: "userId", Value: b}, {Key: "targetUserId", Value: a}},
	}}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cur, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	var out []models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return out, nil
}

func (s *Mongo) MarkSeen(ctx context.Context, askerID, targetID string) (int64, error) {
	filter := bson.D{
		{Key: "userId", Value: targetID},
		{Key: "targetUserId", Value: askerID},
		{Key: "seenStatus", Value: false},
	}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "seenStatus", Value: true}}}}

	res, err := s.messages.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("update seen status: %w", err)
	}
	return res.MatchedCount, nil
}

var _ Store = (*Mongo)(nil)
