package sink

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"retailetl/internal/domain"
)

// ── Document Sink ───────────────────────────────────────────
// Writes cleaned record sets into MongoDB collections, one
// collection per dataset, emptied and refilled on every run.

// Document is a collection writer over MongoDB.
type Document struct {
	client *mongo.Client
	dbName string
}

// OpenDocument connects to MongoDB and verifies the connection
// with a ping.
func OpenDocument(ctx context.Context, cfg DocumentConfig) (*Document, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &ConnectionError{Sink: "mongo", Err: fmt.Errorf("connect: %w", err)}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		discCtx, discCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer discCancel()
		client.Disconnect(discCtx)
		return nil, &ConnectionError{Sink: "mongo", Err: err}
	}

	log.Printf("[MONGO] connected to database %s", cfg.Database)
	return &Document{client: client, dbName: cfg.Database}, nil
}

// Replace empties the collection and inserts every record. An empty
// record set still empties the collection; the insert is skipped
// because InsertMany rejects empty batches.
func (d *Document) Replace(ctx context.Context, collection string, rs *domain.RecordSet) error {
	coll := d.client.Database(d.dbName).Collection(collection)

	if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
		return &WriteError{Sink: "mongo", Target: collection, Err: fmt.Errorf("clear collection: %w", err)}
	}

	if rs.Len() == 0 {
		log.Printf("[MONGO] replaced %s (0 documents)", collection)
		return nil
	}

	docs := make([]any, len(rs.Records))
	for i, rec := range rs.Records {
		docs[i] = rec
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return &WriteError{Sink: "mongo", Target: collection, Err: fmt.Errorf("insert documents: %w", err)}
	}

	log.Printf("[MONGO] replaced %s (%d documents)", collection, rs.Len())
	return nil
}

func (d *Document) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
