package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/example/shopeasy/pkg/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultHistoryLimit bounds History when the query sets no limit.
const DefaultHistoryLimit = 50

// AuditLog is one recorded change to an order.
type AuditLog struct {
	ID        string    `bson:"_id,omitempty" json:"id,omitempty"`
	Service   string    `bson:"service" json:"service"`
	Action    string    `bson:"action" json:"action"`
	EntityID  string    `bson:"entity_id" json:"entityId"`
	Data      bson.M    `bson:"data" json:"data,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// Auditor records who changed which order.
type Auditor interface {
	Record(ctx context.Context, log *AuditLog) error
}

type NopAuditor struct{}

func (NopAuditor) Record(context.Context, *AuditLog) error { return nil }

// HistoryQuery selects the audit entries of one order. Service narrows the
// result to the part of the store that wrote them ("checkout" or "admin").
type HistoryQuery struct {
	EntityID string
	Service  string
	Limit    int64
}

// MongoAuditor keeps the audit trail in one MongoDB collection, indexed for
// per-order history lookups.
type MongoAuditor struct {
	client *mongo.Client
	logs   *mongo.Collection
}

func NewMongoAuditor(cfg *config.MongoDBConfig) (*MongoAuditor, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	a := newMongoAuditor(client, client.Database(cfg.Database).Collection(cfg.Collection))
	if err := a.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return a, nil
}

func newMongoAuditor(client *mongo.Client, logs *mongo.Collection) *MongoAuditor {
	return &MongoAuditor{client: client, logs: logs}
}

func (m *MongoAuditor) ensureIndexes(ctx context.Context) error {
	_, err := m.logs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit index: %w", err)
	}
	return nil
}

func (m *MongoAuditor) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoAuditor) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Record stores log, stamping it with the current time unless the caller
// already did.
func (m *MongoAuditor) Record(ctx context.Context, log *AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if _, err := m.logs.InsertOne(ctx, log); err != nil {
		return fmt.Errorf("failed to write audit log for %s: %w", log.EntityID, err)
	}
	return nil
}

// History returns the newest entries for an order first.
func (m *MongoAuditor) History(ctx context.Context, q HistoryQuery) ([]*AuditLog, error) {
	filter := bson.D{{Key: "entity_id", Value: q.EntityID}}
	if q.Service != "" {
		filter = append(filter, bson.E{Key: "service", Value: q.Service})
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := m.logs.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	logs := []*AuditLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode audit logs: %w", err)
	}
	return logs, nil
}
