package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/ports"
)

const authEventsCollection = "auth_events"

// authEventDocument is the stored shape of a domain.AuthEvent.
type authEventDocument struct {
	SessionID  string    `bson:"console_id"`
	UserID     string    `bson:"user_id,omitempty"`
	Role       string    `bson:"role,omitempty"`
	Kind       string    `bson:"kind"`
	Route      string    `bson:"route,omitempty"`
	Detail     string    `bson:"detail,omitempty"`
	At         time.Time `bson:"at"`
	RecordedAt time.Time `bson:"recorded_at"`
}

func toDocument(ev *domain.AuthEvent, now time.Time) authEventDocument {
	return authEventDocument{
		SessionID:  ev.SessionID,
		UserID:     ev.UserID,
		Role:       string(ev.Role),
		Kind:       string(ev.Kind),
		Route:      ev.Route,
		Detail:     ev.Detail,
		At:         ev.At.UTC(),
		RecordedAt: now.UTC(),
	}
}

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	db *mongo.Database
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *mongo.Database) ports.AuditRepository {
	return &AuditRepository{db: db}
}

// EnsureIndexes creates the lookup indexes of the auth_events collection.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(authEventsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "console_id", Value: 1}, {Key: "at", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "at", Value: -1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("auth_events indexes: %w", err)
	}
	return nil
}

// Insert appends an auth event to the auth_events collection and sets its ID.
func (r *AuditRepository) Insert(ctx context.Context, ev *domain.AuthEvent) error {
	res, err := r.db.Collection(authEventsCollection).InsertOne(ctx, toDocument(ev, time.Now()))
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(interface{ Hex() string }); ok {
		ev.ID = id.Hex()
	}
	return nil
}
