package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Metadata is the lightweight, serializable record of a live session
// published to Redis. Unlike Handle, it carries no callback — it exists
// so that any instance in a multi-instance deployment can answer "is
// session X live, and on which instance" without holding the session's
// in-process handle (spec §5: "Session Store: concurrent map; ... entries
// are short-lived references").
type Metadata struct {
	SessionID   string    `json:"session_id"`
	InterviewID string    `json:"interview_id"`
	Instance    string    `json:"instance"`
	StartedAt   time.Time `json:"started_at"`
}

// RedisIndex publishes session liveness metadata to Redis with a TTL,
// refreshed by the owning Orchestrator on a heartbeat. It does not
// replace the in-process Store (which still owns the real Handle for
// same-instance callbacks) — it's the cross-instance view.
type RedisIndex struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisIndexOption configures a RedisIndex.
type RedisIndexOption func(*RedisIndex)

// WithTTL sets the key expiry refreshed by heartbeats. Default 60s.
func WithTTL(ttl time.Duration) RedisIndexOption {
	return func(r *RedisIndex) { r.ttl = ttl }
}

// WithPrefix sets the Redis key prefix. Default "interviewrt:session".
func WithPrefix(prefix string) RedisIndexOption {
	return func(r *RedisIndex) { r.prefix = prefix }
}

// NewRedisIndex constructs a RedisIndex over an existing client.
func NewRedisIndex(client *redis.Client, opts ...RedisIndexOption) *RedisIndex {
	r := &RedisIndex{client: client, ttl: 60 * time.Second, prefix: "interviewrt:session"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Heartbeat publishes (or refreshes the TTL of) a session's metadata.
func (r *RedisIndex) Heartbeat(ctx context.Context, meta Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal metadata: %w", err)
	}
	if err := r.client.Set(ctx, r.key(meta.SessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("sessionstore: redis set: %w", err)
	}
	return nil
}

// Lookup returns the metadata for a session-id, or (Metadata{}, false) if
// absent or expired.
func (r *RedisIndex) Lookup(ctx context.Context, sessionID string) (Metadata, bool, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Metadata{}, false, nil
		}
		return Metadata{}, false, fmt.Errorf("sessionstore: redis get: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, false, fmt.Errorf("sessionstore: unmarshal metadata: %w", err)
	}
	return meta, true, nil
}

// Remove deletes a session's published metadata, called on teardown.
func (r *RedisIndex) Remove(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("sessionstore: redis del: %w", err)
	}
	return nil
}

func (r *RedisIndex) key(sessionID string) string {
	return r.prefix + ":" + sessionID
}
