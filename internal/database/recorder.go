package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/airelay/qwen-bridge/internal/logger"
)

// ExchangeRecord is one completed chat exchange persisted for
// later analysis.
type ExchangeRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID      string             `bson:"request_id" json:"request_id"`
	Model          string             `bson:"model" json:"model"`
	BaseModel      string             `bson:"base_model" json:"base_model"`
	ChatMode       string             `bson:"chat_mode" json:"chat_mode"`
	Stream         bool               `bson:"stream" json:"stream"`
	UpstreamStatus int                `bson:"upstream_status" json:"upstream_status"`
	DurationMillis int64              `bson:"duration_ms" json:"duration_ms"`
	Errored        bool               `bson:"errored" json:"errored"`
	RequestedAt    time.Time          `bson:"requested_at" json:"requested_at"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// Recorder persists exchange records to MongoDB. It is optional: a
// nil Recorder is valid and records nothing.
type Recorder struct {
	client     *mongo.Client
	collection *mongo.Collection
}

const exchangeCollection = "chat-exchanges"

// NewRecorder connects to MongoDB and verifies the connection. An
// empty URI returns a nil recorder with no error.
func NewRecorder(ctx context.Context, uri, databaseName string) (*Recorder, error) {
	if uri == "" {
		return nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri).SetAppName("qwen-bridge"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info(ctx, "Exchange recorder connected",
		"database", databaseName,
		"collection", exchangeCollection)

	return &Recorder{
		client:     client,
		collection: client.Database(databaseName).Collection(exchangeCollection),
	}, nil
}

// Record inserts one exchange record. Failures are logged, never
// surfaced: persistence is best-effort and must not affect requests.
func (r *Recorder) Record(ctx context.Context, record *ExchangeRecord) {
	if r == nil {
		return
	}
	record.CreatedAt = time.Now().UTC()

	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := r.collection.InsertOne(insertCtx, record); err != nil {
		logger.Warn(ctx, "Failed to persist exchange record",
			"request_id", record.RequestID,
			"error", err.Error())
	}
}

// HealthCheck pings the database
func (r *Recorder) HealthCheck(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("recorder not configured")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.client.Ping(pingCtx, readpref.Primary())
}

// Close disconnects from the database
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}
