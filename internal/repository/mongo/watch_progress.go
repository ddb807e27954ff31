package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dramastream/watchservice/internal/domain"
)

type watchProgressDoc struct {
	ID           string  `bson:"_id"`
	BookID       string  `bson:"bookId"`
	EpisodeIndex int     `bson:"episodeIndex"`
	Position     float64 `bson:"position"`
	Duration     float64 `bson:"duration"`
	BookName     string  `bson:"bookName"`
	EpisodeName  string  `bson:"episodeName"`
	UpdatedAt    int64   `bson:"updatedAt"`
}

type WatchProgressRepository struct {
	collection *mongo.Collection
}

func NewWatchProgressRepository(client *mongo.Client, dbName string) *WatchProgressRepository {
	return &WatchProgressRepository{collection: client.Database(dbName).Collection("watch_progress")}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func progressDocID(bookID string, episodeIndex int) string {
	return fmt.Sprintf("%s:%d", bookID, episodeIndex)
}

func (r *WatchProgressRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "bookId", Value: 1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *WatchProgressRepository) Upsert(ctx context.Context, wp domain.WatchProgress) error {
	update := bson.M{
		"$set": bson.M{
			"bookId":       wp.BookID,
			"episodeIndex": wp.EpisodeIndex,
			"position":     wp.Position,
			"duration":     wp.Duration,
			"bookName":     wp.BookName,
			"episodeName":  wp.EpisodeName,
			"updatedAt":    time.Now().Unix(),
		},
	}
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": progressDocID(wp.BookID, wp.EpisodeIndex)},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *WatchProgressRepository) Get(ctx context.Context, bookID string, episodeIndex int) (domain.WatchProgress, error) {
	var doc watchProgressDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": progressDocID(bookID, episodeIndex)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.WatchProgress{}, domain.ErrNotFound
		}
		return domain.WatchProgress{}, err
	}
	return progressDocToDomain(doc), nil
}

// LatestForBook returns the most recently updated position of any episode in
// the book, used to resume where the viewer left off.
func (r *WatchProgressRepository) LatestForBook(ctx context.Context, bookID string) (domain.WatchProgress, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	var doc watchProgressDoc
	err := r.collection.FindOne(ctx, bson.M{"bookId": bookID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.WatchProgress{}, domain.ErrNotFound
		}
		return domain.WatchProgress{}, err
	}
	return progressDocToDomain(doc), nil
}

func (r *WatchProgressRepository) ListRecent(ctx context.Context, limit int) ([]domain.WatchProgress, error) {
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

	var docs []watchProgressDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	items := make([]domain.WatchProgress, 0, len(docs))
	for _, doc := range docs {
		items = append(items, progressDocToDomain(doc))
	}
	return items, nil
}

func progressDocToDomain(doc watchProgressDoc) domain.WatchProgress {
	return domain.WatchProgress{
		BookID:       doc.BookID,
		EpisodeIndex: doc.EpisodeIndex,
		Position:     doc.Position,
		Duration:     doc.Duration,
		BookName:     doc.BookName,
		EpisodeName:  doc.EpisodeName,
		UpdatedAt:    time.Unix(doc.UpdatedAt, 0).UTC(),
	}
}
