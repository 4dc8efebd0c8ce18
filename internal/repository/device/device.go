package device

import (
	"context"

	"vibe_chat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	DeviceRepo struct {
		collection *mongo.Collection
	}
)

func NewDeviceRepo(db *mongo.Database) *DeviceRepo {
	return &DeviceRepo{
		collection: db.Collection("user_devices"),
	}
}

func (r *DeviceRepo) GetByUserLabel(ctx context.Context, userID, label string) (*model.DeviceRecord, error) {
	filter := bson.M{
		"user_id":      userID,
		"device_label": label,
	}

	var rec model.DeviceRecord
	err := r.collection.FindOne(ctx, filter).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// Upsert inserts a device record, or rotates the public key of the existing
// record for (user_id, device_label). The stored id survives updates.
func (r *DeviceRepo) Upsert(ctx context.Context, rec *model.DeviceRecord) error {
	filter := bson.M{
		"user_id":      rec.UserID,
		"device_label": rec.DeviceLabel,
	}
	update := bson.M{
		"$set": bson.M{
			"public_key_spki": rec.PublicKeySPKI,
			"updated_at":      rec.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"id":           rec.ID,
			"user_id":      rec.UserID,
			"device_label": rec.DeviceLabel,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}
