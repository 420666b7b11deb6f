package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoSnapshot keeps the canonical text as a string so it round-trips byte
// for byte.
type mongoSnapshot struct {
	ID        string    `bson:"_id"`
	Content   string    `bson:"content"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoAdapter stores one document per snapshot in a collection.
type MongoAdapter struct {
	collection *mongo.Collection
}

// NewMongoAdapter wraps collection, which stays owned by the caller.
func NewMongoAdapter(collection *mongo.Collection) *MongoAdapter {
	return &MongoAdapter{collection: collection}
}

func (a *MongoAdapter) Save(ctx context.Context, docID string, data []byte) error {
	doc := mongoSnapshot{
		ID:        docID,
		Content:   string(data),
		UpdatedAt: time.Now().UTC(),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := a.collection.ReplaceOne(ctx, bson.M{"_id": docID}, doc, opts); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (a *MongoAdapter) Load(ctx context.Context, docID string) ([]byte, error) {
	var doc mongoSnapshot
	err := a.collection.FindOne(ctx, bson.M{"_id": docID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return []byte(doc.Content), nil
}

func (a *MongoAdapter) List(ctx context.Context) ([]string, error) {
	cursor, err := a.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to find snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var result struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot id: %w", err)
		}
		ids = append(ids, result.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return ids, nil
}

func (a *MongoAdapter) Delete(ctx context.Context, docID string) error {
	if _, err := a.collection.DeleteOne(ctx, bson.M{"_id": docID}); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Close is a no-op; the collection belongs to the caller.
func (a *MongoAdapter) Close() error {
	return nil
}
