package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fz-pos-api/internal/logger"
	"fz-pos-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const counterID = "pos_audit"

// MongoDBAuditRepository implements AuditRepository using MongoDB. Entry IDs
// come from a counter document so they stay numeric like the SQL stores.
type MongoDBAuditRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	counters   *mongo.Collection
}

// auditDocument is the stored shape of an AuditEntry.
type auditDocument struct {
	ID        int64     `bson:"_id"`
	SessionID string    `bson:"session_id"`
	Action    string    `bson:"action"`
	Code      string    `bson:"code,omitempty"`
	ProductID int64     `bson:"product_id,omitempty"`
	OrderID   int64     `bson:"order_id,omitempty"`
	Detail    string    `bson:"detail,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// NewMongoDBAuditRepository connects to MongoDB and prepares the indexes.
func NewMongoDBAuditRepository(ctx context.Context, uri, database string) (*MongoDBAuditRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	coll := db.Collection(auditTable)

	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		logger.Log.Warnf("[MongoDBAuditRepository] Failed to create indexes: %v", err)
	}

	logger.Log.Infof("[MongoDBAuditRepository] Connected to %s/%s", database, auditTable)
	return &MongoDBAuditRepository{
		client:     client,
		collection: coll,
		counters:   db.Collection("counters"),
	}, nil
}

// reserveIDs allocates n consecutive IDs and returns the first.
func (r *MongoDBAuditRepository) reserveIDs(ctx context.Context, n int) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": counterID},
		bson.M{"$inc": bson.M{"seq": int64(n)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve audit ids: %w", err)
	}
	return counter.Seq - int64(n) + 1, nil
}

func toDocument(id int64, e *model.AuditEntry) auditDocument {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return auditDocument{
		ID:        id,
		SessionID: e.SessionID,
		Action:    string(e.Action),
		Code:      e.Code,
		ProductID: e.ProductID,
		OrderID:   e.OrderID,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt.UTC(),
	}
}

func (r *MongoDBAuditRepository) Insert(ctx context.Context, entry *model.AuditEntry) error {
	id, err := r.reserveIDs(ctx, 1)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, toDocument(id, entry)); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	entry.ID = id
	return nil
}

func (r *MongoDBAuditRepository) BatchInsert(ctx context.Context, entries []model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	first, err := r.reserveIDs(ctx, len(entries))
	if err != nil {
		return err
	}

	docs := make([]interface{}, len(entries))
	for i := range entries {
		docs[i] = toDocument(first+int64(i), &entries[i])
	}

	if _, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to batch insert: %w", err)
	}
	return nil
}

func (r *MongoDBAuditRepository) List(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error) {
	q := bson.M{}
	if filter.SessionID != "" {
		q["session_id"] = filter.SessionID
	}
	if filter.Action != "" {
		q["action"] = string(filter.Action)
	}
	if !filter.Since.IsZero() {
		q["created_at"] = bson.M{"$gte": filter.Since.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(listLimit(filter.Limit)))

	cursor, err := r.collection.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []auditDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	out := make([]model.AuditEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.AuditEntry{
			ID:        d.ID,
			SessionID: d.SessionID,
			Action:    model.AuditAction(d.Action),
			Code:      d.Code,
			ProductID: d.ProductID,
			OrderID:   d.OrderID,
			Detail:    d.Detail,
			CreatedAt: d.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (r *MongoDBAuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *MongoDBAuditRepository) GetStats(ctx context.Context) (*model.AuditStats, error) {
	stats := &model.AuditStats{ByAction: make(map[model.AuditAction]int64)}

	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	stats.Total = total

	cursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$action"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count audit actions: %w", err)
	}
	var groups []struct {
		Action string `bson:"_id"`
		N      int64  `bson:"n"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}
	for _, g := range groups {
		stats.ByAction[model.AuditAction(g.Action)] = g.N
	}

	sessions, err := r.collection.Distinct(ctx, "session_id", bson.M{})
	if err != nil {
		return nil, err
	}
	stats.Sessions = int64(len(sessions))

	stats.Oldest, err = r.edge(ctx, 1)
	if err != nil {
		return nil, err
	}
	stats.Newest, err = r.edge(ctx, -1)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// edge returns the oldest (dir 1) or newest (dir -1) created_at.
func (r *MongoDBAuditRepository) edge(ctx context.Context, dir int) (*time.Time, error) {
	var d auditDocument
	err := r.collection.FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: dir}}),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := d.CreatedAt.UTC()
	return &t, nil
}

func (r *MongoDBAuditRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

var _ AuditRepository = (*MongoDBAuditRepository)(nil)
