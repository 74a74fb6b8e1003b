package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "milkadmin:session"

// RedisStore keeps the record under a single key so several console
// replicas share one operator session.
type RedisStore struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces the record key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.key = prefix + ":tokens"
		}
	}
}

// WithRecordTTL expires the record after d of inactivity. Zero keeps it forever.
func WithRecordTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = d
	}
}

func NewRedisStore(client redis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, key: defaultKeyPrefix + ":tokens"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session record: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	return nil
}
