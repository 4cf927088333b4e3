package ports

import (
	"context"
	"time"
)

// SessionRecord is the persisted layout of a session: four independently
// expiring fields. User holds the JSON-encoded identity.
type SessionRecord struct {
	AccessToken  string
	RefreshToken string
	User         string
	CSRFToken    string
}

// Empty reports whether no field is present at all.
func (r SessionRecord) Empty() bool {
	return r.AccessToken == "" && r.RefreshToken == "" && r.User == "" && r.CSRFToken == ""
}

// SessionTTL holds the expirations applied on save. Access covers the access
// token, the identity and the anti-forgery token.
type SessionTTL struct {
	Access  time.Duration
	Refresh time.Duration
}

// SessionPersistence is the durable store behind one console session.
// Missing fields are returned as empty strings, never as errors.
type SessionPersistence interface {
	Load(ctx context.Context) (SessionRecord, error)
	Save(ctx context.Context, rec SessionRecord, ttl SessionTTL) error
	Delete(ctx context.Context) error
}
