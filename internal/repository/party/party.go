package party

import (
	"context"

	"vibe_chat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	PartyRepo struct {
		members *mongo.Collection
	}
)

func NewPartyRepo(db *mongo.Database) *PartyRepo {
	return &PartyRepo{
		members: db.Collection("party_members"),
	}
}

func (r *PartyRepo) ListMemberIDs(ctx context.Context, partyID, excludeUserID string) ([]string, error) {
	filter := bson.M{
		"party_id": partyID,
		"user_id":  bson.M{"$ne": excludeUserID},
	}

	cursor, err := r.members.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var m model.PartyMember
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		ids = append(ids, m.UserID)
	}
	return ids, cursor.Err()
}

// AddMember registers a user in a party, once.
func (r *PartyRepo) AddMember(ctx context.Context, partyID, userID string) error {
	filter := bson.M{
		"party_id": partyID,
		"user_id":  userID,
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"party_id": partyID,
			"user_id":  userID,
		},
	}

	_, err := r.members.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}
