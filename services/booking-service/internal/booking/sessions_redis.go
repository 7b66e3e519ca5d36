package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("booking session not found")

// Session is a wizard run owned by one user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Flow      Flow      `json:"flow"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RedisSessionStore keeps sessions as JSON under "<prefix>:<id>" with a
// sliding TTL.
type RedisSessionStore struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewRedisSessionStore(rdb redis.Cmdable, ttl time.Duration, prefix string) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if prefix == "" {
		prefix = "booking:session"
	}
	return &RedisSessionStore{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, sess Session) error {
	sess.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(sess.ID), raw, s.ttl).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}
