package message

import (
	"context"

	"vibe_chat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	MessageRepo struct {
		collection *mongo.Collection
	}
)

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{
		collection: db.Collection("messages"),
	}
}

func (r *MessageRepo) Insert(ctx context.Context, msg *model.WireMessage) error {
	_, err := r.collection.InsertOne(ctx, msg)
	return err
}

// Recent returns up to limit messages for a party, newest first.
func (r *MessageRepo) Recent(ctx context.Context, partyID string, limit int) ([]*model.WireMessage, error) {
	filter := bson.M{
		"party_id": partyID,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []*model.WireMessage
	for cursor.Next(ctx) {
		var m model.WireMessage
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, cursor.Err()
}
