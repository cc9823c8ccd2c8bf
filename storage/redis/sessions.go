package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hk-meko/hasura-auth/handshake"
)

const defaultPrefix = "auth:handshake:"

// Sessions is a Redis-backed handshake store; the TTL rides on the key.
type Sessions struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewSessions(rdb *redis.Client, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Sessions{rdb: rdb, prefix: defaultPrefix, ttl: ttl}
}

func (s *Sessions) Create(ctx context.Context, sess handshake.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.prefix+sess.ID, b, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("session id already in use")
	}
	return nil
}

func (s *Sessions) Load(ctx context.Context, id string) (handshake.Session, bool, error) {
	b, err := s.rdb.Get(ctx, s.prefix+id).Bytes()
	if err == redis.Nil {
		return handshake.Session{}, false, nil
	}
	if err != nil {
		return handshake.Session{}, false, err
	}
	var sess handshake.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return handshake.Session{}, false, err
	}
	return sess, true, nil
}

func (s *Sessions) Save(ctx context.Context, sess handshake.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	// XX + KEEPTTL: only updates a live session and keeps its expiry
	// anchored to creation time.
	ok, err := s.rdb.SetXX(ctx, s.prefix+sess.ID, b, redis.KeepTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("unknown session")
	}
	return nil
}

func (s *Sessions) Destroy(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.prefix+id).Err()
}
