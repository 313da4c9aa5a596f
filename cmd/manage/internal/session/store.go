package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Store is the interface for session persistence.
// Implementations key records by HashID(id), never by the raw cookie value.
type Store interface {
	// Create persists a new session and returns its ID.
	Create(ctx context.Context, data *Data, ttl time.Duration) (string, error)

	// Get retrieves a session by ID. Returns ErrNotFound if missing or expired.
	Get(ctx context.Context, id string) (*Data, error)

	// Update replaces session data and resets the TTL.
	Update(ctx context.Context, id string, data *Data, ttl time.Duration) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error

	// Touch extends the session TTL (sliding expiration).
	Touch(ctx context.Context, id string, ttl time.Duration) error
}

// NewID generates a session identifier.
func NewID() string {
	return uuid.New().String()
}

// HashID hashes a session identifier for storage/lookup.
func HashID(id string) string {
	hash := sha256.Sum256([]byte(id))
	return hex.EncodeToString(hash[:])
}

// NewCSRFToken generates a random token bound to one session.
func NewCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RedisStore implements Store backed by Redis.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "manage:session:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + HashID(id)
}

// Create persists a new session and returns its ID.
func (s *RedisStore) Create(ctx context.Context, data *Data, ttl time.Duration) (string, error) {
	id := NewID()
	data.CreatedAt = time.Now().Unix()

	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(id), b, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return id, nil
}

// Get retrieves a session by ID.
func (s *RedisStore) Get(ctx context.Context, id string) (*Data, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var data Data
	if err := json.Unmarshal(val, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &data, nil
}

// Update replaces session data and resets the TTL.
func (s *RedisStore) Update(ctx context.Context, id string, data *Data, ttl time.Duration) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(id), b, ttl).Err(); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// Delete removes a session by ID.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Touch extends the session TTL.
func (s *RedisStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, s.key(id), ttl).Err(); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}
