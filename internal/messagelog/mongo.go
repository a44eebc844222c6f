package messagelog

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoDocument struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	Record `bson:",inline"`
}

type mongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore appends records as documents; the ObjectID hex is the external reference.
func NewMongoStore(collection *mongo.Collection) Store {
	return &mongoStore{collection: collection}
}

// EnsureIndexes creates the per-chat ordering index.
func EnsureIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("chat_created"),
	})
	return err
}

func (s *mongoStore) Append(ctx context.Context, chatID string, rec Record) (string, error) {
	rec.ChatID = chatID
	res, err := s.collection.InsertOne(ctx, mongoDocument{Record: rec})
	if err != nil {
		return "", fmt.Errorf("insert message record: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// QueryByThread returns the newest limit records in ascending order.
func (s *mongoStore) QueryByThread(ctx context.Context, chatID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.collection.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mongoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		entries = append(entries, Entry{Ref: docs[i].ID.Hex(), Record: docs[i].Record})
	}
	return entries, nil
}

func (s *mongoStore) DeleteByThread(ctx context.Context, chatID string) error {
	_, err := s.collection.DeleteMany(ctx, bson.M{"chat_id": chatID})
	return err
}
