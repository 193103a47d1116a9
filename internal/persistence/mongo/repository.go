// Package mongo stores sessions as documents in a MongoDB collection.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"example.com/training/internal/domain"
)

// Collection is the collection session documents are written to.
const Collection = "sessions"

type sessionDocument struct {
	ID            string    `bson:"_id"`
	Owner         string    `bson:"owner"`
	Equipment     string    `bson:"equipment"`
	Repetitions   []int     `bson:"repetitions"`
	RestIntervals []int     `bson:"restIntervals"`
	TotalDuration string    `bson:"totalDuration,omitempty"`
	RecordedAt    time.Time `bson:"recordedAt"`
}

// Repository provides MongoDB-backed persistence for sessions.
type Repository struct {
	client     *driver.Client
	collection *driver.Collection
}

// Connect builds a client for uri. The database named in the URI path wins
// over database. No round trip is made until the first operation.
func Connect(ctx context.Context, uri, database string) (*Repository, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("parse mongo uri: %w", err)
	}
	if cs.Database != "" {
		database = cs.Database
	}
	if database == "" {
		return nil, fmt.Errorf("mongo uri %q names no database", cs.Original)
	}

	client, err := driver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return NewRepository(client, database), nil
}

// NewRepository constructs a Repository over an existing client.
func NewRepository(client *driver.Client, database string) *Repository {
	return &Repository{
		client:     client,
		collection: client.Database(database).Collection(Collection),
	}
}

// Prepare checks connectivity and ensures the owner/recency index exists.
func (r *Repository) Prepare(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	_, err := r.collection.Indexes().CreateOne(ctx, driver.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "recordedAt", Value: -1}},
		Options: options.Index().SetName("owner_recordedAt"),
	})
	if err != nil {
		return fmt.Errorf("create session index: %w", err)
	}
	return nil
}

// Create implements domain.SessionRepository.
func (r *Repository) Create(ctx context.Context, session domain.Session) error {
	if _, err := r.collection.InsertOne(ctx, toDocument(session)); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// ListByOwner implements domain.SessionRepository.
func (r *Repository) ListByOwner(ctx context.Context, owner string) ([]domain.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("find sessions: %w", err)
	}

	var docs []sessionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}

	sessions := make([]domain.Session, 0, len(docs))
	for _, doc := range docs {
		sessions = append(sessions, doc.toDomain())
	}
	return sessions, nil
}

// Close disconnects the client.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func toDocument(s domain.Session) sessionDocument {
	return sessionDocument{
		ID:            s.ID,
		Owner:         s.Owner,
		Equipment:     s.Equipment,
		Repetitions:   nonNil(s.Repetitions),
		RestIntervals: nonNil(s.RestIntervals),
		TotalDuration: s.TotalDuration,
		RecordedAt:    s.RecordedAt.UTC(),
	}
}

func (d sessionDocument) toDomain() domain.Session {
	return domain.Session{
		ID:            d.ID,
		Owner:         d.Owner,
		Equipment:     d.Equipment,
		Repetitions:   nonNil(d.Repetitions),
		RestIntervals: nonNil(d.RestIntervals),
		TotalDuration: d.TotalDuration,
		RecordedAt:    d.RecordedAt.UTC(),
	}
}

func nonNil(values []int) []int {
	if values == nil {
		return []int{}
	}
	return values
}
