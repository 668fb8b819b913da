package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cinemastream/internal/domain"
)

const progressCollection = "playback_progress"

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type progressDoc struct {
	ID            string `bson:"_id"`
	Kind          string `bson:"kind"`
	TMDBID        int    `bson:"tmdbId"`
	Season        int    `bson:"season,omitempty"`
	Episode       int    `bson:"episode,omitempty"`
	PositionMs    int64  `bson:"positionMs"`
	DurationMs    int64  `bson:"durationMs"`
	Paused        bool   `bson:"paused"`
	Stopped       bool   `bson:"stopped"`
	ItemID        string `bson:"itemId,omitempty"`
	MediaSourceID string `bson:"mediaSourceId,omitempty"`
	PlaySessionID string `bson:"playSessionId,omitempty"`
	UpdatedAt     int64  `bson:"updatedAt"`
}

// ProgressRepository stores the last reported position per title.
type ProgressRepository struct {
	collection *mongo.Collection
}

func NewProgressRepository(client *mongo.Client, dbName string) *ProgressRepository {
	return &ProgressRepository{collection: client.Database(dbName).Collection(progressCollection)}
}

func (r *ProgressRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updatedAt", Value: -1}},
	})
	return err
}

func (r *ProgressRepository) Upsert(ctx context.Context, p domain.PlaybackProgress) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	update := bson.M{
		"$set": bson.M{
			"kind":          string(p.Key.Kind),
			"tmdbId":        p.Key.TMDBID,
			"season":        p.Key.Season,
			"episode":       p.Key.Episode,
			"positionMs":    p.PositionMs,
			"durationMs":    p.DurationMs,
			"paused":        p.Paused,
			"stopped":       p.Stopped,
			"itemId":        p.ItemID,
			"mediaSourceId": p.MediaSourceID,
			"playSessionId": p.PlaySessionID,
			"updatedAt":     updatedAt.Unix(),
		},
	}
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": p.Key.String()},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *ProgressRepository) Get(ctx context.Context, key domain.MediaKey) (domain.PlaybackProgress, error) {
	var doc progressDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": key.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.PlaybackProgress{}, domain.ErrNotFound
		}
		return domain.PlaybackProgress{}, err
	}
	return progressDocToDomain(doc), nil
}

func (r *ProgressRepository) ListRecent(ctx context.Context, limit int) ([]domain.PlaybackProgress, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []progressDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.PlaybackProgress, 0, len(docs))
	for _, doc := range docs {
		out = append(out, progressDocToDomain(doc))
	}
	return out, nil
}

func progressDocToDomain(doc progressDoc) domain.PlaybackProgress {
	return domain.PlaybackProgress{
		Key: domain.MediaKey{
			Kind:    domain.ContentKind(doc.Kind),
			TMDBID:  doc.TMDBID,
			Season:  doc.Season,
			Episode: doc.Episode,
		},
		PositionMs:    doc.PositionMs,
		DurationMs:    doc.DurationMs,
		Paused:        doc.Paused,
		Stopped:       doc.Stopped,
		ItemID:        doc.ItemID,
		MediaSourceID: doc.MediaSourceID,
		PlaySessionID: doc.PlaySessionID,
		UpdatedAt:     time.Unix(doc.UpdatedAt, 0).UTC(),
	}
}
