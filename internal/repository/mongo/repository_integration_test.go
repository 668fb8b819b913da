package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cinemastream/internal/app"
	"cinemastream/internal/domain"
)

// testMongoURI returns the MongoDB connection URI for integration tests.
// Set MONGO_TEST_URI to override.
func testMongoURI() string {
	if uri := os.Getenv("MONGO_TEST_URI"); uri != "" {
		return uri
	}
	return "mongodb://localhost:27017"
}

// setupTestDB connects to MongoDB and returns a client plus a unique database
// name. Calls t.Skip if MongoDB is unreachable.
func setupTestDB(t *testing.T) (*mongo.Client, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	uri := testMongoURI()
	client, err := Connect(ctx, uri,
		options.Client().SetConnectTimeout(3*time.Second).SetServerSelectionTimeout(3*time.Second))
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		t.Skipf("MongoDB ping failed at %s: %v", uri, err)
	}

	dbName := fmt.Sprintf("cinemastream_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Database(dbName).Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return client, dbName
}

func TestProgressRepositoryIntegration(t *testing.T) {
	client, dbName := setupTestDB(t)
	repo := NewProgressRepository(client, dbName)
	ctx := context.Background()

	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}

	movie := domain.MediaKey{Kind: domain.KindMovie, TMDBID: 550}
	if _, err := repo.Get(ctx, movie); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
	}

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	if err := repo.Upsert(ctx, domain.PlaybackProgress{Key: movie, PositionMs: 1000, DurationMs: 8_396_000, UpdatedAt: base}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(ctx, domain.PlaybackProgress{Key: movie, PositionMs: 5000, DurationMs: 8_396_000, UpdatedAt: base.Add(time.Minute)}); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	episode := domain.MediaKey{Kind: domain.KindEpisode, TMDBID: 1399, Season: 1, Episode: 1}
	if err := repo.Upsert(ctx, domain.PlaybackProgress{Key: episode, PositionMs: 42, Stopped: true, UpdatedAt: base.Add(2 * time.Minute)}); err != nil {
		t.Fatalf("Upsert episode: %v", err)
	}

	got, err := repo.Get(ctx, movie)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PositionMs != 5000 {
		t.Fatalf("PositionMs = %d, want 5000", got.PositionMs)
	}

	recent, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].Key != episode || recent[1].Key != movie {
		t.Fatalf("ListRecent order wrong: %+v", recent)
	}
}

func TestTranscodeSettingsRepositoryIntegration(t *testing.T) {
	client, dbName := setupTestDB(t)
	repo := NewTranscodeSettingsRepository(client, dbName)
	ctx := context.Background()

	if _, ok, err := repo.GetTranscodeSettings(ctx); err != nil || ok {
		t.Fatalf("empty Get = %v, %v", ok, err)
	}
	want := app.TranscodeSettings{Preset: "fast", CRF: 26, AudioBitrate: "128k"}
	if err := repo.SetTranscodeSettings(ctx, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := repo.GetTranscodeSettings(ctx)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got != want {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}
}
