package sealedkey

import (
	"context"
	"time"

	"vibe_chat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	SealedKeyRepo struct {
		collection *mongo.Collection
	}
)

func NewSealedKeyRepo(db *mongo.Database) *SealedKeyRepo {
	return &SealedKeyRepo{
		collection: db.Collection("party_room_keys"),
	}
}

func (r *SealedKeyRepo) Get(ctx context.Context, partyID, userID string) (*model.SealedRoomKeyEntry, error) {
	filter := bson.M{
		"party_id": partyID,
		"user_id":  userID,
	}

	var entry model.SealedRoomKeyEntry
	err := r.collection.FindOne(ctx, filter).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// Ensure writes the entry only if no row exists yet for (party_id, user_id).
// A lost race leaves the existing row untouched and reports no error; this
// single upsert is the protocol's whole arbitration mechanism.
func (r *SealedKeyRepo) Ensure(ctx context.Context, entry *model.SealedRoomKeyEntry) error {
	filter := bson.M{
		"party_id": entry.PartyID,
		"user_id":  entry.UserID,
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"party_id":               entry.PartyID,
			"user_id":                entry.UserID,
			"encrypted_room_key":     entry.EncryptedRoomKey,
			"sender_device_id":       entry.SenderDeviceID,
			"sender_public_key_spki": entry.SenderPublicKeySPKI,
			"created_at":             time.Now().UTC(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}
