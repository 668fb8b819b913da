package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cinemastream/internal/app"
)

const transcodeSettingsID = "transcode"

type transcodeSettingsDoc struct {
	ID           string `bson:"_id"`
	Preset       string `bson:"preset"`
	CRF          int    `bson:"crf"`
	AudioBitrate string `bson:"audioBitrate"`
	UpdatedAt    int64  `bson:"updatedAt"`
}

type TranscodeSettingsRepository struct {
	collection *mongo.Collection
}

func NewTranscodeSettingsRepository(client *mongo.Client, dbName string) *TranscodeSettingsRepository {
	return &TranscodeSettingsRepository{collection: client.Database(dbName).Collection("settings")}
}

func (r *TranscodeSettingsRepository) GetTranscodeSettings(ctx context.Context) (app.TranscodeSettings, bool, error) {
	var doc transcodeSettingsDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": transcodeSettingsID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return app.TranscodeSettings{}, false, nil
		}
		return app.TranscodeSettings{}, false, err
	}
	return app.TranscodeSettings{
		Preset:       doc.Preset,
		CRF:          doc.CRF,
		AudioBitrate: doc.AudioBitrate,
	}, true, nil
}

func (r *TranscodeSettingsRepository) SetTranscodeSettings(ctx context.Context, settings app.TranscodeSettings) error {
	update := bson.M{
		"$set": bson.M{
			"preset":       settings.Preset,
			"crf":          settings.CRF,
			"audioBitrate": settings.AudioBitrate,
			"updatedAt":    time.Now().Unix(),
		},
	}
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": transcodeSettingsID},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}
