// Package session keeps the profile of the signed-in user and carries it
// through request contexts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates no session is stored for the user.
var ErrNotFound = errors.New("session not found")

// Session is the user context shared by header components and handlers.
type Session struct {
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store persists sessions keyed by user id.
type Store interface {
	Save(ctx context.Context, session Session) (Session, error)
	Get(ctx context.Context, userID string) (Session, error)
	Delete(ctx context.Context, userID string) error
}

// RedisStore stores sessions as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore constructs a redis-backed session store.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "tracker"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *RedisStore) key(userID string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, userID)
}

// Save writes the session and refreshes its expiry.
func (s *RedisStore) Save(ctx context.Context, session Session) (Session, error) {
	if strings.TrimSpace(session.UserID) == "" {
		return Session{}, errors.New("session user id is required")
	}

	session.Name = strings.TrimSpace(session.Name)
	session.ExpiresAt = s.now().UTC().Add(s.ttl)

	payload, err := json.Marshal(session)
	if err != nil {
		return Session{}, err
	}
	if err := s.client.Set(ctx, s.key(session.UserID), payload, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("failed to store session: %w", err)
	}
	return session, nil
}

// Get loads the session of userID.
func (s *RedisStore) Get(ctx context.Context, userID string) (Session, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return session, nil
}

// Delete removes the session of userID. Deleting a missing session is not an error.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying session.
func WithContext(ctx context.Context, session Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, session)
}

// FromContext returns the session bound to ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	session, ok := ctx.Value(contextKey{}).(Session)
	return session, ok
}
