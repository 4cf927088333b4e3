package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/backoffice-console/internal/core/ports"
)

const keyPrefix = "console:session:"

// Session field names. Each is stored under its own key with its own TTL.
const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldUser         = "user"
	fieldCSRFToken    = "csrf_token"
)

// SessionStore persists the session of one console in Redis.
// Key format: console:session:<console_id>:<field>
type SessionStore struct {
	client    redis.Cmdable
	consoleID string
}

// NewSessionStore returns the persistence of the console identified by consoleID.
func NewSessionStore(client redis.Cmdable, consoleID string) *SessionStore {
	return &SessionStore{client: client, consoleID: consoleID}
}

// Factory adapts a client to the per-console constructor the session
// registry expects.
func Factory(client redis.Cmdable) func(consoleID string) ports.SessionPersistence {
	return func(consoleID string) ports.SessionPersistence {
		return NewSessionStore(client, consoleID)
	}
}

// Load reads all four fields in one round trip. Missing or expired keys come
// back empty.
func (s *SessionStore) Load(ctx context.Context) (ports.SessionRecord, error) {
	vals, err := s.client.MGet(ctx, s.keys()...).Result()
	if err != nil {
		return ports.SessionRecord{}, fmt.Errorf("session load: %w", err)
	}
	if len(vals) != 4 {
		return ports.SessionRecord{}, errors.New("session load: unexpected reply length")
	}
	return ports.SessionRecord{
		AccessToken:  str(vals[0]),
		RefreshToken: str(vals[1]),
		User:         str(vals[2]),
		CSRFToken:    str(vals[3]),
	}, nil
}

// Save writes all four fields in a MULTI/EXEC transaction so a reader never
// observes a half-written session. The refresh token gets its own, longer TTL.
func (s *SessionStore) Save(ctx context.Context, rec ports.SessionRecord, ttl ports.SessionTTL) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(fieldAccessToken), rec.AccessToken, ttl.Access)
		pipe.Set(ctx, s.key(fieldRefreshToken), rec.RefreshToken, ttl.Refresh)
		pipe.Set(ctx, s.key(fieldUser), rec.User, ttl.Access)
		pipe.Set(ctx, s.key(fieldCSRFToken), rec.CSRFToken, ttl.Access)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

// Delete removes every field. Deleting an absent session is not an error.
func (s *SessionStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.keys()...).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (s *SessionStore) key(field string) string {
	return keyPrefix + s.consoleID + ":" + field
}

func (s *SessionStore) keys() []string {
	return []string{
		s.key(fieldAccessToken),
		s.key(fieldRefreshToken),
		s.key(fieldUser),
		s.key(fieldCSRFToken),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
