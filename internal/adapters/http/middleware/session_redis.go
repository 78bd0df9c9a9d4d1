package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionPrefix namespaces session keys in a shared Redis.
const DefaultSessionPrefix = "studio:session:"

// RedisSessionStore keeps sessions in Redis so they survive restarts and are
// shared between instances. Expiry is delegated to the key TTL.
type RedisSessionStore struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore wraps an existing client. An empty prefix uses DefaultSessionPrefix.
func NewRedisSessionStore(rdb redis.UniversalClient, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	return &RedisSessionStore{rdb: rdb, prefix: prefix}
}

func (rs *RedisSessionStore) key(token string) string {
	return rs.prefix + token
}

// Create stores sess with a SessionTTL expiry.
func (rs *RedisSessionStore) Create(ctx context.Context, sess Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	if err := rs.rdb.Set(ctx, rs.key(token), data, SessionTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Get loads a session. Redis errors are logged and treated as a missing session.
func (rs *RedisSessionStore) Get(ctx context.Context, token string) (Session, bool) {
	data, err := rs.rdb.Get(ctx, rs.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false
	}
	if err != nil {
		slog.Error("session_get_error", "error", err)
		return Session{}, false
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		slog.Warn("session_decode_error", "error", err)
		return Session{}, false
	}
	return sess, true
}

func (rs *RedisSessionStore) Delete(ctx context.Context, token string) {
	if err := rs.rdb.Del(ctx, rs.key(token)).Err(); err != nil {
		slog.Error("session_delete_error", "error", err)
	}
}

// Update rewrites an existing session in place.
// INVARIANT: the key TTL is kept so updates never extend a session
func (rs *RedisSessionStore) Update(ctx context.Context, token string, sess Session) bool {
	data, err := json.Marshal(sess)
	if err != nil {
		return false
	}
	err = rs.rdb.SetArgs(ctx, rs.key(token), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		slog.Error("session_update_error", "error", err)
		return false
	}
	return true
}
